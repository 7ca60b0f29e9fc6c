package segregation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bloodbank-backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// GormStore runs segregations against Postgres.
type GormStore struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewGormStore(db *gorm.DB, lockTimeout time.Duration) *GormStore {
	return &GormStore{db: db, lockTimeout: lockTimeout}
}

func (s *GormStore) WithinTx(ctx context.Context, fn func(tx TxStore) error) error {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if stmt := lockTimeoutStatement(s.lockTimeout); stmt != "" {
		if err := tx.Exec(stmt).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}

	if err := fn(&gormTx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// lockTimeoutStatement renders the SET LOCAL for d, or "" when d is not
// positive. SET does not take bind parameters. Sub-millisecond values round
// up so they never turn into 0, which Postgres reads as "wait forever".
func lockTimeoutStatement(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	ms := d.Milliseconds()
	if ms == 0 {
		ms = 1
	}
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)
}

// insertError maps a unique violation on (collection_id, component) to ErrDuplicate.
func insertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

type gormTx struct {
	tx *gorm.DB
}

func (t *gormTx) LockCollection(ctx context.Context, collectionID uint) (*LockedCollection, error) {
	var rows []LockedCollection
	err := t.tx.WithContext(ctx).Raw(`
		SELECT bc.collection_id, bc.donor_id, bc.centre_id, bc.collected_amount,
		       bt.overall_status, bt.blood_group_id AS test_blood_group_id
		FROM blood_collection bc
		LEFT JOIN blood_testing bt ON bt.collection_id = bc.collection_id
		WHERE bc.collection_id = ?
		FOR UPDATE OF bc`, collectionID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (t *gormTx) ExistingComponents(ctx context.Context, collectionID uint, components []models.Component) ([]models.Component, error) {
	names := make([]string, len(components))
	for i, c := range components {
		names[i] = string(c)
	}

	var found []models.Component
	err := t.tx.WithContext(ctx).Raw(`
		SELECT component FROM blood_segregation
		WHERE collection_id = ? AND component = ANY(?)`,
		collectionID, pq.Array(names)).Scan(&found).Error
	return found, err
}

func (t *gormTx) ComponentSettings(ctx context.Context) ([]models.ComponentSetting, error) {
	var rows []models.ComponentSetting
	err := t.tx.WithContext(ctx).Find(&rows).Error
	return rows, err
}

func (t *gormTx) DonorBloodGroup(ctx context.Context, donorID uint) (*uint, error) {
	var donor models.Donor
	err := t.tx.WithContext(ctx).Select("donor_id", "blood_group_id").
		First(&donor, "donor_id = ?", donorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return donor.BloodGroupID, nil
}

func (t *gormTx) InsertSegregation(ctx context.Context, rec *models.BloodSegregation) error {
	return insertError(t.tx.WithContext(ctx).Create(rec).Error)
}

func (t *gormTx) UpsertInventory(ctx context.Context, centreID string, bloodGroupID uint, component models.Component, units int) (*models.BloodInventory, error) {
	var inv models.BloodInventory
	err := t.tx.WithContext(ctx).Raw(`
		INSERT INTO blood_inventory (centre_id, blood_group_id, component, units_available, last_updated)
		VALUES (?, ?, ?, ?, now())
		ON CONFLICT (centre_id, blood_group_id, component)
		DO UPDATE SET units_available = blood_inventory.units_available + EXCLUDED.units_available,
		              last_updated = now()
		RETURNING inventory_id, centre_id, blood_group_id, component, units_available, last_updated`,
		centreID, bloodGroupID, component, units).Scan(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
