package models

// WeighbridgeSlipData feeds templates/weighbridge_slip.html.
type WeighbridgeSlipData struct {
	Truck        *Truck
	Readings     []SlipReading
	Date         string // formatted print date
	ArrivedAt    string
	Average      int64
	Total        int64
	AverageWords string // average weight spelled out
	Invoice      *WeightDiscrepancyPayload
	Approval     WeightApprovalStatus
	CopyTitle    string
}

type SlipReading struct {
	Slot         string
	MaterialType MaterialType
	Weight       int64
	RecordedAt   string
	RecordedBy   string
}
