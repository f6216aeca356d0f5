package models

import "time"

// Settings document ids in the settings collection.
const (
	SettingsDocks           = "docks"
	SettingsWeighbridge     = "weighbridge"
	SettingsTAT             = "tat"
	SettingsSafetyEquipment = "safety_equipment"
	SettingsTransporters    = "transporters"
)

type Dock struct {
	ID            string `json:"id" bson:"id"`
	Name          string `json:"name" bson:"name"`
	IsServiceable bool   `json:"isServiceable" bson:"isServiceable"`
}

type DockSettings struct {
	Version   int64      `json:"version" bson:"version"`
	Docks     []Dock     `json:"docks" bson:"docks"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
	UpdatedBy string     `json:"updatedBy,omitempty" bson:"updatedBy,omitempty"`
}

// DefaultWeightThresholdPercent applies until an admin configures one.
const DefaultWeightThresholdPercent = 5.0

type WeighbridgeSettings struct {
	Version          int64      `json:"version" bson:"version"`
	ThresholdPercent float64    `json:"thresholdPercent" bson:"thresholdPercent"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
	UpdatedBy        string     `json:"updatedBy,omitempty" bson:"updatedBy,omitempty"`
}

type TATSettings struct {
	Version         int64                `json:"version" bson:"version"`
	IdealMinutes    map[MaterialType]int `json:"idealMinutes" bson:"idealMinutes"`
	WarningPercent  float64              `json:"warningPercent" bson:"warningPercent"`
	CriticalPercent float64              `json:"criticalPercent" bson:"criticalPercent"`
	UpdatedAt       *time.Time           `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
	UpdatedBy       string               `json:"updatedBy,omitempty" bson:"updatedBy,omitempty"`
}

func DefaultTATSettings() TATSettings {
	return TATSettings{
		IdealMinutes: map[MaterialType]int{
			MaterialFG:    120,
			MaterialRM:    180,
			MaterialPM:    150,
			MaterialOther: 180,
		},
		WarningPercent:  100,
		CriticalPercent: 150,
	}
}

// SafetyEquipmentInventory holds the counts currently available for issue.
type SafetyEquipmentInventory struct {
	Version     int64      `json:"version" bson:"version"`
	WheelChokes int64      `json:"wheelChokes" bson:"wheelChokes"`
	SafetyShoes int64      `json:"safetyShoes" bson:"safetyShoes"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
	UpdatedBy   string     `json:"updatedBy,omitempty" bson:"updatedBy,omitempty"`
}

// Available returns the count for kind.
func (inv SafetyEquipmentInventory) Available(kind EquipmentKind) int64 {
	if kind == EquipmentWheelChoke {
		return inv.WheelChokes
	}
	return inv.SafetyShoes
}

type TransporterSettings struct {
	Version   int64      `json:"version" bson:"version"`
	Names     []string   `json:"names" bson:"names"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
	UpdatedBy string     `json:"updatedBy,omitempty" bson:"updatedBy,omitempty"`
}
