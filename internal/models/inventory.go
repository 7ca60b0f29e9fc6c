package models

import "time"

// BloodInventory is the running counter of available units per
// centre, blood group and component.
type BloodInventory struct {
	InventoryID    uint      `gorm:"primaryKey;column:inventory_id" json:"inventory_id"`
	CentreID       string    `gorm:"size:50;not null;uniqueIndex:ux_blood_inventory_key,priority:1" json:"centre_id"`
	BloodGroupID   uint      `gorm:"not null;uniqueIndex:ux_blood_inventory_key,priority:2" json:"blood_group_id"`
	Component      Component `gorm:"size:20;not null;uniqueIndex:ux_blood_inventory_key,priority:3" json:"component"`
	UnitsAvailable int       `gorm:"not null;default:0" json:"units_available"`
	LastUpdated    time.Time `json:"last_updated"`
}

func (BloodInventory) TableName() string { return "blood_inventory" }

type AlertPriority string

const (
	PriorityCritical AlertPriority = "CRITICAL"
	PriorityUrgent   AlertPriority = "URGENT"
	PriorityWarning  AlertPriority = "WARNING"
)

// Notification records an alert sent about a segregated unit.
type Notification struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	SegregationID *uint         `gorm:"index" json:"segregation_id"`
	CentreID      string        `gorm:"size:50;index" json:"centre_id"`
	Priority      AlertPriority `gorm:"size:20" json:"priority"`
	Message       string        `gorm:"size:500" json:"message"`
	IsRead        bool          `gorm:"default:false" json:"is_read"`
	CreatedAt     time.Time     `json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
