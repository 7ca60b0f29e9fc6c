package models

import "time"

// Centre is a physical blood-bank location and the unit of access scoping.
type Centre struct {
	CentreID   string `gorm:"primaryKey;size:50;column:centre_id"`
	CentreName string `gorm:"size:150;not null"`
	Address    string `gorm:"size:255"`
	Phone      string `gorm:"size:50"`
	Email      string `gorm:"size:150"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Centre) TableName() string { return "centres" }

type BloodGroup struct {
	ID        uint   `gorm:"primaryKey;column:id"`
	GroupName string `gorm:"size:10;not null;uniqueIndex"`
	IsRare    bool   `gorm:"default:false"`
}

func (BloodGroup) TableName() string { return "blood_groups" }
