package segregation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"bloodbank-backend/internal/audit"
	"bloodbank-backend/internal/auth"
	"bloodbank-backend/internal/cache"
	"bloodbank-backend/internal/models"

	"go.uber.org/zap"
)

// UnitsPerComponent is the fixed number of units credited per segregation.
const UnitsPerComponent = 1

type Auditor interface {
	WriteLog(ctx context.Context, opts audit.LogOptions) error
}

type Invalidator interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

type Options struct {
	Auditor  Auditor
	Cache    Invalidator
	Logger   *zap.Logger
	// Timeout bounds the whole transaction, lock wait included. Zero disables it.
	Timeout  time.Duration
	// Location is the calendar expiry dates are counted in. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
}

// Engine splits tested collections into components and credits inventory.
type Engine struct {
	store   Store
	auditor Auditor
	cache   Invalidator
	logger  *zap.Logger
	timeout time.Duration
	loc     *time.Location
	now     func() time.Time
}

func NewEngine(store Store, opts Options) *Engine {
	e := &Engine{
		store:   store,
		auditor: opts.Auditor,
		cache:   opts.Cache,
		logger:  opts.Logger,
		timeout: opts.Timeout,
		loc:     opts.Location,
		now:     opts.Now,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	return e
}

// Created is one new segregation row together with the counter it credited.
type Created struct {
	models.BloodSegregation
	Inventory models.BloodInventory `json:"inventory"`
}

type Result struct {
	Segregations []Created
}

// Segregate splits a collection into the requested components. Every
// precondition is checked with the collection row locked, and either all
// records and counter updates are committed or none are.
func (e *Engine) Segregate(ctx context.Context, collectionID uint, requested []string, actor auth.Actor) (*Result, error) {
	components := ResolveComponents(requested)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	segregatedAt := e.now().UTC()
	var (
		result   Result
		centreID string
	)

	err := e.store.WithinTx(ctx, func(tx TxStore) error {
		col, err := tx.LockCollection(ctx, collectionID)
		if errors.Is(err, ErrNotFound) {
			return newError(KindNotFound, CodeCollectionNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock collection: %w", err)
		}
		centreID = col.CentreID

		if !actor.CanAccessCentre(col.CentreID) {
			return newError(KindForbidden, CodeForbidden)
		}
		if col.OverallStatus == nil || !strings.EqualFold(strings.TrimSpace(*col.OverallStatus), "passed") {
			return newError(KindInvalidState, CodeNotPassed)
		}
		if !(col.CollectedAmount > 0) || math.IsInf(col.CollectedAmount, 1) {
			return newError(KindInvalidState, CodeInvalidAmount)
		}

		existing, err := tx.ExistingComponents(ctx, collectionID, components)
		if err != nil {
			return fmt.Errorf("existing components: %w", err)
		}
		if len(existing) > 0 {
			return &Error{Kind: KindConflict, Code: CodeAlreadySegregated, Components: orderLike(existing, components)}
		}

		bloodGroupID := col.TestBloodGroupID
		if bloodGroupID == nil {
			bloodGroupID, err = tx.DonorBloodGroup(ctx, col.DonorID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("donor blood group: %w", err)
			}
		}
		if bloodGroupID == nil {
			return newError(KindInvalidState, CodeBloodGroupUnknown)
		}

		rows, err := tx.ComponentSettings(ctx)
		if err != nil {
			return fmt.Errorf("component settings: %w", err)
		}
		settings := MergeSettings(rows)
		volumes := ComputeVolumes(col.CollectedAmount, components, settings)

		for _, c := range components {
			rec := models.BloodSegregation{
				CollectionID: collectionID,
				Component:    c,
				VolumeML:     volumes[c],
				Units:        UnitsPerComponent,
				ExpiryDate:   ExpiryDate(segregatedAt.In(e.loc), settingFor(settings, c).ShelfLifeDays),
				Status:       models.SegregationAvailable,
				CentreID:     col.CentreID,
				SegregatedAt: segregatedAt,
			}
			if err := tx.InsertSegregation(ctx, &rec); err != nil {
				if errors.Is(err, ErrDuplicate) {
					return &Error{Kind: KindConflict, Code: CodeAlreadySegregated, Components: []models.Component{c}}
				}
				return fmt.Errorf("insert %s: %w", c, err)
			}

			inv, err := tx.UpsertInventory(ctx, col.CentreID, *bloodGroupID, c, rec.Units)
			if err != nil {
				return fmt.Errorf("upsert inventory %s: %w", c, err)
			}
			result.Segregations = append(result.Segregations, Created{BloodSegregation: rec, Inventory: *inv})
		}
		return nil
	})
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			return nil, se
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		e.logger.Error("segregation failed",
			zap.Uint("collection_id", collectionID),
			zap.Error(err))
		return nil, serverError(err)
	}

	e.afterCommit(collectionID, centreID, components, actor, &result)
	return &result, nil
}

// afterCommit writes the audit entry and drops cached summaries. Neither can
// fail the segregation.
func (e *Engine) afterCommit(collectionID uint, centreID string, components []models.Component, actor auth.Actor, result *Result) {
	// The request context may already be near its deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if e.auditor != nil {
		ids := make([]uint, 0, len(result.Segregations))
		for _, s := range result.Segregations {
			ids = append(ids, s.SegregationID)
		}
		userID := actor.UserID
		err := e.auditor.WriteLog(ctx, audit.LogOptions{
			CollectionID: &collectionID,
			CentreID:     &centreID,
			ActorUserID:  &userID,
			ActorRole:    string(actor.Role),
			Action:       models.AuditActionSegregate,
			Description:  fmt.Sprintf("Collection %d segregated into %d component(s)", collectionID, len(ids)),
			Payload: map[string]any{
				"created":   ids,
				"requested": components,
			},
		})
		if err != nil {
			e.logger.Warn("audit write failed",
				zap.Uint("collection_id", collectionID),
				zap.Error(err))
		}
	}

	if e.cache != nil {
		if err := e.cache.DeletePrefix(ctx, cache.InventoryKeyPrefix); err != nil {
			e.logger.Warn("inventory cache invalidation failed", zap.Error(err))
		}
	}
}

// orderLike returns found in the order it appears in reference.
func orderLike(found, reference []models.Component) []models.Component {
	set := make(map[models.Component]bool, len(found))
	for _, c := range found {
		set[c] = true
	}
	out := make([]models.Component, 0, len(found))
	for _, c := range reference {
		if set[c] {
			out = append(out, c)
		}
	}
	return out
}
