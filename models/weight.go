package models

import (
	"strconv"
	"time"
)

// MaxWeightSlots is the number of scale readings a truck may carry.
const MaxWeightSlots = 4

// WeightSlotKey maps slot "1".."4" to its key in WeightData.Weights.
func WeightSlotKey(weightNumber string) string {
	return "weight" + weightNumber
}

// ValidWeightNumber reports whether n names one of the four weight slots.
func ValidWeightNumber(n string) bool {
	i, err := strconv.Atoi(n)
	if err != nil || strconv.Itoa(i) != n {
		return false
	}
	return i >= 1 && i <= MaxWeightSlots
}

type WeightApprovalStatus string

const (
	WeightApprovalNotRequired WeightApprovalStatus = "notRequired"
	WeightApprovalPending     WeightApprovalStatus = "pending"
	WeightApprovalApproved    WeightApprovalStatus = "approved"
	WeightApprovalRejected    WeightApprovalStatus = "rejected"
)

type WeightEntry struct {
	Weight       int64        `json:"weight" bson:"weight"`
	MaterialType MaterialType `json:"materialType" bson:"materialType"`
	RecordedAt   time.Time    `json:"recordedAt" bson:"recordedAt"`
	RecordedBy   string       `json:"recordedBy" bson:"recordedBy"`
}

// WeightData is the weighbridge stage state kept on the truck.
type WeightData struct {
	Weights map[string]WeightEntry `json:"weights,omitempty" bson:"weights,omitempty"`

	InvoiceNumber  string  `json:"invoiceNumber,omitempty" bson:"invoiceNumber,omitempty"`
	InvoiceWeight  int64   `json:"invoiceWeight,omitempty" bson:"invoiceWeight,omitempty"`
	AverageWeight  int64   `json:"averageWeight,omitempty" bson:"averageWeight,omitempty"`
	TotalWeight    int64   `json:"totalWeight,omitempty" bson:"totalWeight,omitempty"`
	Difference     int64   `json:"difference,omitempty" bson:"difference,omitempty"`
	PercentageDiff float64 `json:"percentageDiff,omitempty" bson:"percentageDiff,omitempty"`
	Threshold      float64 `json:"threshold,omitempty" bson:"threshold,omitempty"`

	ApprovalStatus    WeightApprovalStatus `json:"approvalStatus,omitempty" bson:"approvalStatus,omitempty"`
	ApprovalRequestID string               `json:"approvalRequestId,omitempty" bson:"approvalRequestId,omitempty"`
	SlipURL           string               `json:"slipUrl,omitempty" bson:"slipUrl,omitempty"`
}

// WeightRecord is the standalone per-reading document in weight_records.
type WeightRecord struct {
	ID           string       `json:"id" bson:"_id"`
	Version      int64        `json:"version" bson:"version"`
	TruckID      string       `json:"truckId" bson:"truckId"`
	WeightNumber string       `json:"weightNumber" bson:"weightNumber"`
	MaterialType MaterialType `json:"materialType" bson:"materialType"`
	Weight       int64        `json:"weight" bson:"weight"`
	RecordedAt   time.Time    `json:"recordedAt" bson:"recordedAt"`
	RecordedBy   string       `json:"recordedBy" bson:"recordedBy"`
}
