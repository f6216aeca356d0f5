package models

import "time"

type DocumentType string

const (
	DocLicense   DocumentType = "license"
	DocPermit    DocumentType = "permit"
	DocInsurance DocumentType = "insurance"
	DocPollution DocumentType = "pollution"
)

// MandatoryDocuments gate entry; the pollution certificate is tracked only.
var MandatoryDocuments = []DocumentType{DocLicense, DocPermit, DocInsurance}

func (d DocumentType) IsValid() bool {
	switch d {
	case DocLicense, DocPermit, DocInsurance, DocPollution:
		return true
	default:
		return false
	}
}

type DocumentCheck struct {
	Verified              bool   `json:"verified" bson:"verified"`
	ValidUntil            string `json:"validUntil" bson:"validUntil"`
	ExceptionallyApproved bool   `json:"exceptionallyApproved" bson:"exceptionallyApproved"`
}

type SafetyResponse string

const (
	SafetyYes SafetyResponse = "Yes"
	SafetyNo  SafetyResponse = "No"
)

type SafetyStatus string

const (
	SafetyPass SafetyStatus = "PASS"
	SafetyFail SafetyStatus = "FAIL"
)

type SafetyCheckItem struct {
	Name     string         `json:"name" bson:"name"`
	Response SafetyResponse `json:"response" bson:"response"`
	Status   SafetyStatus   `json:"status" bson:"status"`
}

type UploadedDocument struct {
	Name       string    `json:"name" bson:"name"`
	URL        string    `json:"url" bson:"url"`
	UploadedAt time.Time `json:"uploadedAt" bson:"uploadedAt"`
	UploadedBy string    `json:"uploadedBy" bson:"uploadedBy"`
}

// Processing form steps.
const (
	StepDocumentCheck = 1
	StepVehicleRisk   = 2
	StepUpload        = 3
	StepSummary       = 4
)

// ProcessingForm is the gate-processing form. It lives on the truck as processingDraft
// while in progress and is frozen into processingData on completion.
type ProcessingForm struct {
	CurrentStep int `json:"currentStep" bson:"currentStep"`

	Documents                 map[DocumentType]DocumentCheck `json:"documents" bson:"documents"`
	DocumentsVerified         bool                           `json:"documentsVerified" bson:"documentsVerified"`
	AllDocumentsAreValid      bool                           `json:"allDocumentsAreValid" bson:"allDocumentsAreValid"`
	PendingApproval           bool                           `json:"pendingApproval" bson:"pendingApproval"`
	ExceptionallyApproved     bool                           `json:"exceptionallyApproved" bson:"exceptionallyApproved"`
	DocumentApprovalRequestID string                         `json:"documentApprovalRequestId,omitempty" bson:"documentApprovalRequestId,omitempty"`

	SafetyChecks                      []SafetyCheckItem `json:"safetyChecks" bson:"safetyChecks"`
	AllSafetyChecksPassed             bool              `json:"allSafetyChecksPassed" bson:"allSafetyChecksPassed"`
	SafetyChecksPendingApproval       bool              `json:"safetyChecksPendingApproval" bson:"safetyChecksPendingApproval"`
	SafetyChecksExceptionallyApproved bool              `json:"safetyChecksExceptionallyApproved" bson:"safetyChecksExceptionallyApproved"`
	SafetyApprovalRequestID           string            `json:"safetyApprovalRequestId,omitempty" bson:"safetyApprovalRequestId,omitempty"`

	VehicleConditionChecked bool   `json:"vehicleConditionChecked" bson:"vehicleConditionChecked"`
	RiskLevel               string `json:"riskLevel,omitempty" bson:"riskLevel,omitempty"`
	TireCondition           string `json:"tireCondition,omitempty" bson:"tireCondition,omitempty"`
	VehicleRemarks          string `json:"vehicleRemarks,omitempty" bson:"vehicleRemarks,omitempty"`

	Uploads []UploadedDocument `json:"uploads,omitempty" bson:"uploads,omitempty"`

	NextMilestone       Milestone `json:"nextMilestone,omitempty" bson:"nextMilestone,omitempty"`
	ProcessingCompleted bool      `json:"processingCompleted" bson:"processingCompleted"`
	FinalRemarks        string    `json:"finalRemarks,omitempty" bson:"finalRemarks,omitempty"`

	LastSavedAt *time.Time `json:"lastSavedAt,omitempty" bson:"lastSavedAt,omitempty"`
	LastSavedBy string     `json:"lastSavedBy,omitempty" bson:"lastSavedBy,omitempty"`
}
