package alerts

import (
	"context"
	"fmt"
	"time"

	"bloodbank-backend/internal/models"

	"gorm.io/gorm"
)

// Days are sent as plain dates so the session TimeZone cannot shift them.
const dateLayout = "2006-01-02"

type Store interface {
	// ExpireBefore marks every Available unit with an expiry date before day
	// as Expired and takes those units off their inventory counters, clamped
	// at zero, in one transaction.
	ExpireBefore(ctx context.Context, day time.Time) ([]ExpiredUnit, error)
	ExpiringRareUnits(ctx context.Context, from, to time.Time) ([]ExpiringUnit, error)
	AlreadyNotified(ctx context.Context, segregationID uint, priority models.AlertPriority) (bool, error)
	SaveNotification(ctx context.Context, n *models.Notification) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ExpireBefore(ctx context.Context, day time.Time) ([]ExpiredUnit, error) {
	var expired []ExpiredUnit

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(`
			WITH expired AS (
				UPDATE blood_segregation
				SET status = ?, updated_at = now()
				WHERE status = ? AND expiry_date < ?::date
				RETURNING segregation_id, collection_id, component, centre_id, units
			)
			SELECT e.segregation_id, e.collection_id, e.component, e.centre_id, e.units,
			       COALESCE(bt.blood_group_id, d.blood_group_id) AS blood_group_id
			FROM expired e
			JOIN blood_collection bc ON bc.collection_id = e.collection_id
			LEFT JOIN blood_testing bt ON bt.collection_id = e.collection_id
			LEFT JOIN donors d ON d.donor_id = bc.donor_id
			ORDER BY e.segregation_id`,
			models.SegregationExpired, models.SegregationAvailable, day.Format(dateLayout)).
			Scan(&expired).Error; err != nil {
			return fmt.Errorf("mark expired: %w", err)
		}

		plan, _ := DecrementPlan(expired)
		for key, units := range plan {
			if err := tx.Exec(`
				UPDATE blood_inventory
				SET units_available = GREATEST(units_available - ?, 0), last_updated = now()
				WHERE centre_id = ? AND blood_group_id = ? AND component = ?`,
				units, key.CentreID, key.BloodGroupID, key.Component).Error; err != nil {
				return fmt.Errorf("decrement %s/%d/%s: %w", key.CentreID, key.BloodGroupID, key.Component, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func (s *GormStore) ExpiringRareUnits(ctx context.Context, from, to time.Time) ([]ExpiringUnit, error) {
	var units []ExpiringUnit
	err := s.db.WithContext(ctx).Raw(`
		SELECT bs.segregation_id, bs.collection_id, bs.component, bs.volume_ml, bs.units,
		       bs.expiry_date, bs.centre_id,
		       bg.group_name AS blood_group_name,
		       COALESCE(d.first_name, '') AS donor_first_name,
		       COALESCE(d.last_name, '') AS donor_last_name,
		       COALESCE(d.mobile_no, '') AS donor_mobile
		FROM blood_segregation bs
		JOIN blood_collection bc ON bc.collection_id = bs.collection_id
		LEFT JOIN blood_testing bt ON bt.collection_id = bs.collection_id
		LEFT JOIN donors d ON d.donor_id = bc.donor_id
		JOIN blood_groups bg ON bg.id = COALESCE(bt.blood_group_id, d.blood_group_id)
		WHERE bs.status = ?
		  AND bg.is_rare = true
		  AND bs.expiry_date >= ?::date
		  AND bs.expiry_date <= ?::date
		ORDER BY bs.expiry_date ASC, bs.segregation_id`,
		models.SegregationAvailable, from.Format(dateLayout), to.Format(dateLayout)).Scan(&units).Error
	return units, err
}

func (s *GormStore) AlreadyNotified(ctx context.Context, segregationID uint, priority models.AlertPriority) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("segregation_id = ? AND priority = ?", segregationID, priority).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) SaveNotification(ctx context.Context, n *models.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}
