package models

import (
	"strings"
	"time"
)

type Component string

const (
	ComponentRBC       Component = "RBC"
	ComponentPlasma    Component = "Plasma"
	ComponentPlatelets Component = "Platelets"
)

// AllComponents is the canonical component order.
var AllComponents = []Component{ComponentRBC, ComponentPlasma, ComponentPlatelets}

// ParseComponent matches a component name case-insensitively.
func ParseComponent(s string) (Component, bool) {
	for _, c := range AllComponents {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, true
		}
	}
	return "", false
}

type SegregationStatus string

const (
	SegregationAvailable SegregationStatus = "Available"
	SegregationExpired   SegregationStatus = "Expired"
)

// BloodSegregation is one component split off a collection.
type BloodSegregation struct {
	SegregationID uint              `gorm:"primaryKey;column:segregation_id" json:"segregation_id"`
	CollectionID  uint              `gorm:"not null;uniqueIndex:ux_blood_segregation_collection_component,priority:1" json:"collection_id"`
	Component     Component         `gorm:"size:20;not null;uniqueIndex:ux_blood_segregation_collection_component,priority:2" json:"component"`
	VolumeML      int               `gorm:"column:volume_ml;not null" json:"volume_ml"`
	Units         int               `gorm:"not null" json:"units"`
	ExpiryDate    time.Time         `gorm:"type:date;index;not null" json:"expiry_date"`
	Status        SegregationStatus `gorm:"size:20;index;not null;default:'Available'" json:"status"`
	CentreID      string            `gorm:"size:50;index;not null" json:"centre_id"`
	SegregatedAt  time.Time         `gorm:"index;not null" json:"segregated_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (BloodSegregation) TableName() string { return "blood_segregation" }

// ComponentSetting overrides the default ratio and shelf life of a component.
type ComponentSetting struct {
	Component     Component `gorm:"primaryKey;size:20" yaml:"component"`
	Ratio         float64   `gorm:"type:numeric(6,4);not null" yaml:"ratio"`
	ShelfLifeDays int       `gorm:"not null" yaml:"shelf_life_days"`
}

func (ComponentSetting) TableName() string { return "component_settings" }
