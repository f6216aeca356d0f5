package models

import "time"

type EquipmentKind string

const (
	EquipmentWheelChoke EquipmentKind = "wheelChoke"
	EquipmentSafetyShoe EquipmentKind = "safetyShoe"
)

func (k EquipmentKind) IsValid() bool {
	return k == EquipmentWheelChoke || k == EquipmentSafetyShoe
}

// TruckField is the truck field holding the issuance record for this kind.
func (k EquipmentKind) TruckField() string {
	if k == EquipmentWheelChoke {
		return "issuedWheelChoke"
	}
	return "issuedSafetyShoe"
}

// InventoryField is the counter in the safety_equipment settings document.
func (k EquipmentKind) InventoryField() string {
	if k == EquipmentWheelChoke {
		return "wheelChokes"
	}
	return "safetyShoes"
}

type EquipmentIssue struct {
	Quantity int64     `json:"quantity" bson:"quantity"`
	Remarks  string    `json:"remarks,omitempty" bson:"remarks,omitempty"`
	IssuedBy string    `json:"issuedBy" bson:"issuedBy"`
	IssuedAt time.Time `json:"issuedAt" bson:"issuedAt"`
}
