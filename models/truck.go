package models

import "time"

type TruckStatus string

const (
	StatusUpcoming TruckStatus = "Upcoming"
	StatusAtGate   TruckStatus = "At Gate"
	StatusInside   TruckStatus = "Inside"
	StatusExited   TruckStatus = "Exited"
	StatusDeleted  TruckStatus = "Deleted"
)

func (s TruckStatus) IsValid() bool {
	switch s {
	case StatusUpcoming, StatusAtGate, StatusInside, StatusExited, StatusDeleted:
		return true
	default:
		return false
	}
}

// EntryStatus is the gate-keeper decision for the current gate visit.
type EntryStatus string

const (
	EntryUndecided       EntryStatus = ""
	EntryAllowed         EntryStatus = "allowed"
	EntryHeld            EntryStatus = "held"
	EntryExternalParking EntryStatus = "external_parking"
)

func (e EntryStatus) IsValid() bool {
	switch e {
	case EntryAllowed, EntryHeld, EntryExternalParking:
		return true
	default:
		return false
	}
}

type ChannelType string

const (
	ChannelGreen  ChannelType = "green"
	ChannelOrange ChannelType = "orange"
)

func (c ChannelType) IsValid() bool {
	return c == ChannelGreen || c == ChannelOrange
}

// Milestone is where a truck goes after gate processing.
type Milestone string

const (
	MilestoneWeighBridge     Milestone = "WeighBridge"
	MilestoneInternalParking Milestone = "InternalParking"
)

func (m Milestone) IsValid() bool {
	return m == MilestoneWeighBridge || m == MilestoneInternalParking
}

// DestinationInternalParking is the non-dock destination a gate-keeper may pick.
const DestinationInternalParking = string(MilestoneInternalParking)

type MaterialType string

const (
	MaterialFG    MaterialType = "FG"
	MaterialRM    MaterialType = "RM"
	MaterialPM    MaterialType = "PM"
	MaterialOther MaterialType = "other"
)

func (m MaterialType) IsValid() bool {
	switch m {
	case MaterialFG, MaterialRM, MaterialPM, MaterialOther:
		return true
	default:
		return false
	}
}

// Truck is the single mutable record for one truck visit.
type Truck struct {
	ID      string `json:"id" bson:"_id"`
	Version int64  `json:"version" bson:"version"`

	TruckNumber   string `json:"truckNumber" bson:"truckNumber"`
	DriverName    string `json:"driverName" bson:"driverName"`
	DriverMobile  string `json:"driverMobile,omitempty" bson:"driverMobile,omitempty"`
	DriverLicense string `json:"driverLicense,omitempty" bson:"driverLicense,omitempty"`

	Transporter  string       `json:"transporter,omitempty" bson:"transporter,omitempty"`
	Depot        string       `json:"depot,omitempty" bson:"depot,omitempty"`
	MaterialType MaterialType `json:"materialType,omitempty" bson:"materialType,omitempty"`
	Supplier     string       `json:"supplier,omitempty" bson:"supplier,omitempty"`
	LRNumber     string       `json:"lrNumber,omitempty" bson:"lrNumber,omitempty"`
	CapacityKG   int64        `json:"capacityKg,omitempty" bson:"capacityKg,omitempty"`

	Status             TruckStatus `json:"status" bson:"status"`
	EntryStatus        EntryStatus `json:"entryStatus,omitempty" bson:"entryStatus,omitempty"`
	HoldReason         string      `json:"holdReason,omitempty" bson:"holdReason,omitempty"`
	ChannelType        ChannelType `json:"channelType,omitempty" bson:"channelType,omitempty"`
	DockAssigned       string      `json:"dockAssigned,omitempty" bson:"dockAssigned,omitempty"`
	PlannedDestination string      `json:"plannedDestination,omitempty" bson:"plannedDestination,omitempty"`
	NextMilestone      Milestone   `json:"nextMilestone,omitempty" bson:"nextMilestone,omitempty"`

	ProcessingDraft *ProcessingForm `json:"processingDraft,omitempty" bson:"processingDraft,omitempty"`
	ProcessingData  *ProcessingForm `json:"processingData,omitempty" bson:"processingData,omitempty"`
	ProcessedAt     *time.Time      `json:"processedAt,omitempty" bson:"processedAt,omitempty"`
	ProcessedBy     string          `json:"processedBy,omitempty" bson:"processedBy,omitempty"`

	WeightData                    *WeightData `json:"weightData,omitempty" bson:"weightData,omitempty"`
	WeighbridgeProcessingComplete bool        `json:"weighbridgeProcessingComplete" bson:"weighbridgeProcessingComplete"`
	WeighbridgeCompletedAt        *time.Time  `json:"weighbridgeCompletedAt,omitempty" bson:"weighbridgeCompletedAt,omitempty"`

	IssuedWheelChoke *EquipmentIssue `json:"issuedWheelChoke,omitempty" bson:"issuedWheelChoke,omitempty"`
	IssuedSafetyShoe *EquipmentIssue `json:"issuedSafetyShoe,omitempty" bson:"issuedSafetyShoe,omitempty"`

	ArrivedAt            *time.Time `json:"arrivedAt,omitempty" bson:"arrivedAt,omitempty"`
	InsideAt             *time.Time `json:"insideAt,omitempty" bson:"insideAt,omitempty"`
	UnloadingStartedAt   *time.Time `json:"unloadingStartedAt,omitempty" bson:"unloadingStartedAt,omitempty"`
	UnloadingCompletedAt *time.Time `json:"unloadingCompletedAt,omitempty" bson:"unloadingCompletedAt,omitempty"`
	ExitedAt             *time.Time `json:"exitedAt,omitempty" bson:"exitedAt,omitempty"`

	History []TruckEvent `json:"history,omitempty" bson:"history,omitempty"`

	CreatedAt     time.Time  `json:"createdAt" bson:"createdAt"`
	CreatedBy     string     `json:"createdBy" bson:"createdBy"`
	LastUpdatedAt *time.Time `json:"lastUpdatedAt,omitempty" bson:"lastUpdatedAt,omitempty"`
	LastUpdatedBy string     `json:"lastUpdatedBy,omitempty" bson:"lastUpdatedBy,omitempty"`
	IsDeleted     bool       `json:"isDeleted" bson:"isDeleted"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty" bson:"deletedAt,omitempty"`
	DeletedBy     string     `json:"deletedBy,omitempty" bson:"deletedBy,omitempty"`
}

// IsProcessed reports whether gate processing has been finalized.
func (t *Truck) IsProcessed() bool {
	return t.ProcessingData != nil
}

// TruckEvent is one entry of the append-only movement register kept on the truck.
type TruckEvent struct {
	At     time.Time   `json:"at" bson:"at"`
	By     string      `json:"by" bson:"by"`
	Event  string      `json:"event" bson:"event"`
	Status TruckStatus `json:"status" bson:"status"`
	Note   string      `json:"note,omitempty" bson:"note,omitempty"`
}

// Register event names.
const (
	EventRegistered          = "REGISTERED"
	EventArrivedAtGate       = "ARRIVED_AT_GATE"
	EventMovedBackToUpcoming = "MOVED_BACK_TO_UPCOMING"
	EventEntryDecision       = "ENTRY_DECISION"
	EventChannelSet          = "CHANNEL_SET"
	EventProcessingStarted   = "PROCESSING_STARTED"
	EventProcessingCompleted = "PROCESSING_COMPLETED"
	EventDispatchedToWeigh   = "DISPATCHED_TO_WEIGHBRIDGE"
	EventWeightRecorded      = "WEIGHT_RECORDED"
	EventWeighbridgeBlocked  = "WEIGHBRIDGE_BLOCKED"
	EventWeighbridgeComplete = "WEIGHBRIDGE_COMPLETED"
	EventApprovalRequested   = "APPROVAL_REQUESTED"
	EventApprovalDecided     = "APPROVAL_DECIDED"
	EventDockAssigned        = "DOCK_ASSIGNED"
	EventUnloadingStarted    = "UNLOADING_STARTED"
	EventUnloadingCompleted  = "UNLOADING_COMPLETED"
	EventEquipmentIssued     = "EQUIPMENT_ISSUED"
	EventExited              = "EXITED"
	EventDeleted             = "DELETED"
)
