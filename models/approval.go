package models

import "time"

type ApprovalType string

const (
	ApprovalDocuments         ApprovalType = "documentsIncomplete"
	ApprovalSafetyChecks      ApprovalType = "safetyChecks"
	ApprovalWeightDiscrepancy ApprovalType = "weightDiscrepancy"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a request has been decided.
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// ApprovalRequest asks a privileged actor to unblock a gate. Exactly one of the
// payload fields is set, matching RequestType.
type ApprovalRequest struct {
	ID          string         `json:"id" bson:"_id"`
	Version     int64          `json:"version" bson:"version"`
	TruckID     string         `json:"truckId" bson:"truckId"`
	TruckNumber string         `json:"truckNumber" bson:"truckNumber"`
	RequestType ApprovalType   `json:"requestType" bson:"requestType"`
	Status      ApprovalStatus `json:"status" bson:"status"`
	Reason      string         `json:"reason" bson:"reason"`

	RequestedBy   string     `json:"requestedBy" bson:"requestedBy"`
	RequestedAt   time.Time  `json:"requestedAt" bson:"requestedAt"`
	DecidedBy     string     `json:"decidedBy,omitempty" bson:"decidedBy,omitempty"`
	DecidedAt     *time.Time `json:"decidedAt,omitempty" bson:"decidedAt,omitempty"`
	DecisionNotes string     `json:"decisionNotes,omitempty" bson:"decisionNotes,omitempty"`

	Documents *DocumentExceptionPayload `json:"documents,omitempty" bson:"documents,omitempty"`
	Safety    *SafetyExceptionPayload   `json:"safety,omitempty" bson:"safety,omitempty"`
	Weight    *WeightDiscrepancyPayload `json:"weight,omitempty" bson:"weight,omitempty"`
}

// DocumentExceptionPayload names the mandatory documents that were invalid when
// the request was raised, along with the document section at that moment.
type DocumentExceptionPayload struct {
	Documents []DocumentType                 `json:"documents" bson:"documents"`
	Snapshot  map[DocumentType]DocumentCheck `json:"snapshot" bson:"snapshot"`
}

type SafetyExceptionPayload struct {
	Checklist   []SafetyCheckItem `json:"checklist" bson:"checklist"`
	FailedItems []string          `json:"failedItems" bson:"failedItems"`
}

type WeightDiscrepancyPayload struct {
	InvoiceNumber  string  `json:"invoiceNumber,omitempty" bson:"invoiceNumber,omitempty"`
	InvoiceWeight  int64   `json:"invoiceWeight" bson:"invoiceWeight"`
	AverageWeight  int64   `json:"averageWeight" bson:"averageWeight"`
	TotalWeight    int64   `json:"totalWeight" bson:"totalWeight"`
	Difference     int64   `json:"difference" bson:"difference"`
	PercentageDiff float64 `json:"percentageDiff" bson:"percentageDiff"`
	Threshold      float64 `json:"threshold" bson:"threshold"`
}
