package models

import "time"

// Donor holds the fields of the donor registry that the ledger reads.
type Donor struct {
	DonorID      uint    `gorm:"primaryKey;column:donor_id"`
	BloodGroupID *uint   `gorm:"index"`
	FirstName    string  `gorm:"size:100"`
	LastName     string  `gorm:"size:100"`
	MobileNo     string  `gorm:"size:20"`
	Email        string  `gorm:"size:150"`
	CentreID     *string `gorm:"size:50"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Donor) TableName() string { return "donors" }

// BloodCollection is a recorded blood draw. Immutable once created.
type BloodCollection struct {
	CollectionID    uint      `gorm:"primaryKey;column:collection_id"`
	DonorID         uint      `gorm:"index;not null"`
	CentreID        string    `gorm:"size:50;index;not null"`
	CollectedAmount float64   `gorm:"column:collected_amount;not null"` // ml
	BagSize         string    `gorm:"size:20"`
	LotNumber       string    `gorm:"size:50"`
	CollectionDate  time.Time `gorm:"index"`
	CreatedAt       time.Time
}

func (BloodCollection) TableName() string { return "blood_collection" }

// BloodTesting is the one-to-one test outcome of a collection.
type BloodTesting struct {
	TestingID     uint    `gorm:"primaryKey;column:testing_id"`
	CollectionID  uint    `gorm:"uniqueIndex;not null"`
	BloodGroupID  *uint   `gorm:"index"`
	OverallStatus *string `gorm:"size:20"`
	TestedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (BloodTesting) TableName() string { return "blood_testing" }
