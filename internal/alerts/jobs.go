package alerts

import (
	"context"
	"fmt"
	"time"

	"bloodbank-backend/internal/audit"
	"bloodbank-backend/internal/cache"
	"bloodbank-backend/internal/models"
	"bloodbank-backend/internal/segregation"

	"go.uber.org/zap"
)

type SweepResult struct {
	Expired []ExpiredUnit
	// Unmatched units had no blood group, so no counter was decremented.
	Unmatched []ExpiredUnit
}

// Sweeper retires units whose expiry date has passed.
type Sweeper struct {
	store   Store
	auditor segregation.Auditor
	cache   segregation.Invalidator
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time
}

// NewSweeper builds a sweeper whose "today" is the calendar date in loc,
// the same calendar expiry dates are written in. A nil loc means UTC.
func NewSweeper(store Store, auditor segregation.Auditor, invalidator segregation.Invalidator, loc *time.Location, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Sweeper{store: store, auditor: auditor, cache: invalidator, loc: loc, logger: logger, now: time.Now}
}

func (s *Sweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	today := segregation.CalendarDay(s.now().In(s.loc))
	expired, err := s.store.ExpireBefore(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("expiry sweep: %w", err)
	}

	_, orphans := DecrementPlan(expired)
	res := &SweepResult{Expired: expired, Unmatched: orphans}
	if len(expired) == 0 {
		s.logger.Info("expiry sweep found nothing to expire")
		return res, nil
	}

	s.logger.Info("expiry sweep completed",
		zap.Int("expired", len(expired)),
		zap.Int("unmatched", len(orphans)))
	for _, o := range orphans {
		s.logger.Warn("expired unit has no blood group, counter not decremented",
			zap.Uint("segregation_id", o.SegregationID),
			zap.Uint("collection_id", o.CollectionID))
	}

	if s.auditor != nil {
		ids := make([]uint, len(expired))
		for i, u := range expired {
			ids[i] = u.SegregationID
		}
		if err := s.auditor.WriteLog(ctx, audit.LogOptions{
			ActorRole:   "system",
			Action:      models.AuditActionExpire,
			Description: fmt.Sprintf("%d unit(s) expired before %s", len(ids), today.Format("2006-01-02")),
			Payload:     map[string]any{"expired": ids},
		}); err != nil {
			s.logger.Warn("audit write failed", zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.DeletePrefix(ctx, cache.InventoryKeyPrefix); err != nil {
			s.logger.Warn("inventory cache invalidation failed", zap.Error(err))
		}
	}
	return res, nil
}

// Checker sends rare blood expiry alerts.
type Checker struct {
	store    Store
	notifier Notifier
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

func NewChecker(store Store, notifier Notifier, loc *time.Location, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Checker{store: store, notifier: notifier, loc: loc, logger: logger, now: time.Now}
}

// Check alerts on every rare unit within WarningDays of expiry.
func (c *Checker) Check(ctx context.Context) (int, error) {
	return c.run(ctx, WarningDays)
}

// CheckCritical only looks at units within CriticalDays of expiry.
func (c *Checker) CheckCritical(ctx context.Context) (int, error) {
	return c.run(ctx, CriticalDays)
}

// run returns the number of alerts delivered. A unit is alerted at most once
// per priority; failures on one unit are logged and do not stop the others.
func (c *Checker) run(ctx context.Context, withinDays int) (int, error) {
	now := c.now().In(c.loc)
	today := segregation.CalendarDay(now)
	units, err := c.store.ExpiringRareUnits(ctx, today, today.AddDate(0, 0, withinDays))
	if err != nil {
		return 0, fmt.Errorf("load expiring rare units: %w", err)
	}

	sent := 0
	for _, alert := range BuildAlerts(units, now) {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		log := c.logger.With(
			zap.Uint("segregation_id", alert.Unit.SegregationID),
			zap.String("priority", string(alert.Priority)))

		done, err := c.store.AlreadyNotified(ctx, alert.Unit.SegregationID, alert.Priority)
		if err != nil {
			log.Warn("notification lookup failed", zap.Error(err))
			continue
		}
		if done {
			continue
		}

		if err := c.notifier.Notify(ctx, alert); err != nil {
			log.Warn("alert delivery failed", zap.Error(err))
			continue
		}

		segID := alert.Unit.SegregationID
		if err := c.store.SaveNotification(ctx, &models.Notification{
			SegregationID: &segID,
			CentreID:      alert.Unit.CentreID,
			Priority:      alert.Priority,
			Message:       alert.Message,
		}); err != nil {
			log.Warn("notification not recorded", zap.Error(err))
		}
		sent++
	}

	c.logger.Info("rare blood check completed",
		zap.Int("candidates", len(units)),
		zap.Int("sent", sent),
		zap.Int("within_days", withinDays))
	return sent, nil
}
