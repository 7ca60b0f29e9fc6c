package segregation

import (
	"context"

	"bloodbank-backend/internal/models"
)

// LockedCollection is a collection row joined with its test result, read
// under a row lock.
type LockedCollection struct {
	CollectionID     uint
	DonorID          uint
	CentreID         string
	CollectedAmount  float64
	OverallStatus    *string
	TestBloodGroupID *uint
}

// Store opens the transaction a segregation runs in.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx TxStore) error) error
}

// TxStore is the set of reads and writes available inside one transaction.
type TxStore interface {
	// LockCollection returns ErrNotFound when the collection does not exist.
	LockCollection(ctx context.Context, collectionID uint) (*LockedCollection, error)
	ExistingComponents(ctx context.Context, collectionID uint, components []models.Component) ([]models.Component, error)
	ComponentSettings(ctx context.Context) ([]models.ComponentSetting, error)
	DonorBloodGroup(ctx context.Context, donorID uint) (*uint, error)
	// InsertSegregation returns ErrDuplicate on a (collection, component) clash.
	InsertSegregation(ctx context.Context, rec *models.BloodSegregation) error
	UpsertInventory(ctx context.Context, centreID string, bloodGroupID uint, component models.Component, units int) (*models.BloodInventory, error)
}
