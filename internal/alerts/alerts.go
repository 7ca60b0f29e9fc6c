// Package alerts runs the periodic expiry jobs: marking lapsed units expired
// and warning about rare blood units that are close to expiry.
package alerts

import (
	"fmt"
	"sort"
	"time"

	"bloodbank-backend/internal/models"
	"bloodbank-backend/internal/segregation"
)

// Days before expiry at which each priority starts.
const (
	CriticalDays = 1
	UrgentDays   = 3
	WarningDays  = 7
)

// Classify maps days left to a priority. Units already past expiry or more
// than WarningDays away get no alert.
func Classify(daysToExpiry int) (models.AlertPriority, bool) {
	switch {
	case daysToExpiry < 0:
		return "", false
	case daysToExpiry <= CriticalDays:
		return models.PriorityCritical, true
	case daysToExpiry <= UrgentDays:
		return models.PriorityUrgent, true
	case daysToExpiry <= WarningDays:
		return models.PriorityWarning, true
	default:
		return "", false
	}
}

// ExpiringUnit is an available rare-group segregation near its expiry date.
type ExpiringUnit struct {
	SegregationID  uint             `json:"segregation_id"`
	CollectionID   uint             `json:"collection_id"`
	Component      models.Component `json:"component"`
	VolumeML       int              `json:"volume_ml"`
	Units          int              `json:"units"`
	ExpiryDate     time.Time        `json:"expiry_date"`
	CentreID       string           `json:"centre_id"`
	BloodGroupName string           `json:"blood_group"`
	DonorFirstName string           `json:"-"`
	DonorLastName  string           `json:"-"`
	DonorMobile    string           `json:"-"`
}

type Alert struct {
	Priority     models.AlertPriority `json:"priority"`
	DaysToExpiry int                  `json:"days_to_expiry"`
	Message      string               `json:"message"`
	Unit         ExpiringUnit         `json:"unit"`
}

// BuildAlerts classifies units against now, most urgent first.
func BuildAlerts(units []ExpiringUnit, now time.Time) []Alert {
	out := make([]Alert, 0, len(units))
	for _, u := range units {
		days := segregation.DaysUntilExpiry(u.ExpiryDate, now)
		priority, ok := Classify(days)
		if !ok {
			continue
		}
		out = append(out, Alert{
			Priority:     priority,
			DaysToExpiry: days,
			Message:      alertMessage(priority, u, days),
			Unit:         u,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DaysToExpiry < out[j].DaysToExpiry
	})
	return out
}

func alertMessage(p models.AlertPriority, u ExpiringUnit, days int) string {
	return fmt.Sprintf("%s: Rare blood %s %s (%d unit(s), %d ml) at centre %s expires in %d day(s)",
		p, u.BloodGroupName, u.Component, u.Units, u.VolumeML, u.CentreID, days)
}

// ExpiredUnit is a segregation the sweep moved to Expired. BloodGroupID is nil
// when neither the test result nor the donor carries a group.
type ExpiredUnit struct {
	SegregationID uint
	CollectionID  uint
	Component     models.Component
	CentreID      string
	Units         int
	BloodGroupID  *uint
}

type CounterKey struct {
	CentreID     string
	BloodGroupID uint
	Component    models.Component
}

// DecrementPlan totals the units to remove per inventory counter. Units
// without a blood group cannot be matched to a counter and are returned apart.
func DecrementPlan(units []ExpiredUnit) (map[CounterKey]int, []ExpiredUnit) {
	plan := map[CounterKey]int{}
	var orphans []ExpiredUnit
	for _, u := range units {
		if u.BloodGroupID == nil {
			orphans = append(orphans, u)
			continue
		}
		plan[CounterKey{u.CentreID, *u.BloodGroupID, u.Component}] += u.Units
	}
	return plan, orphans
}
