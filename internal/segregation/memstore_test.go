package segregation

import (
	"context"
	"errors"
	"sync"
	"time"

	"bloodbank-backend/internal/audit"
	"bloodbank-backend/internal/models"
)

type invKey struct {
	centre string
	group  uint
	comp   models.Component
}

// memStore emulates the Postgres store: a per-collection lock held until the
// transaction ends, staged writes applied on commit.
type memStore struct {
	mu          sync.Mutex
	locks       map[uint]chan struct{}
	collections map[uint]LockedCollection
	donorGroups map[uint]*uint
	settings    []models.ComponentSetting
	segs        []models.BloodSegregation
	inventory   map[invKey]models.BloodInventory
	nextSegID   uint
	nextInvID   uint

	failUpsertOn models.Component
}

func newMemStore() *memStore {
	return &memStore{
		locks:       map[uint]chan struct{}{},
		collections: map[uint]LockedCollection{},
		donorGroups: map[uint]*uint{},
		inventory:   map[invKey]models.BloodInventory{},
	}
}

func (m *memStore) addCollection(col LockedCollection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[col.CollectionID] = col
	m.locks[col.CollectionID] = make(chan struct{}, 1)
}

func (m *memStore) segregations(collectionID uint) []models.BloodSegregation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.BloodSegregation
	for _, s := range m.segs {
		if s.CollectionID == collectionID {
			out = append(out, s)
		}
	}
	return out
}

func (m *memStore) units(centre string, group uint, comp models.Component) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inventory[invKey{centre, group, comp}].UnitsAvailable
}

func (m *memStore) WithinTx(ctx context.Context, fn func(tx TxStore) error) error {
	tx := &memTx{store: m, deltas: map[invKey]int{}}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range tx.segs {
		for _, existing := range m.segs {
			if existing.CollectionID == s.CollectionID && existing.Component == s.Component {
				return ErrDuplicate
			}
		}
	}
	m.segs = append(m.segs, tx.segs...)
	for k, d := range tx.deltas {
		inv, ok := m.inventory[k]
		if !ok {
			m.nextInvID++
			inv = models.BloodInventory{InventoryID: m.nextInvID, CentreID: k.centre, BloodGroupID: k.group, Component: k.comp}
		}
		inv.UnitsAvailable += d
		inv.LastUpdated = time.Now()
		m.inventory[k] = inv
	}
	return nil
}

type memTx struct {
	store  *memStore
	held   []chan struct{}
	segs   []models.BloodSegregation
	deltas map[invKey]int
}

func (t *memTx) release() {
	for _, l := range t.held {
		<-l
	}
}

func (t *memTx) LockCollection(ctx context.Context, collectionID uint) (*LockedCollection, error) {
	t.store.mu.Lock()
	col, ok := t.store.collections[collectionID]
	lock := t.store.locks[collectionID]
	t.store.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	select {
	case lock <- struct{}{}:
		t.held = append(t.held, lock)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Re-read after acquiring the lock.
	t.store.mu.Lock()
	col = t.store.collections[collectionID]
	t.store.mu.Unlock()
	return &col, nil
}

func (t *memTx) ExistingComponents(_ context.Context, collectionID uint, components []models.Component) ([]models.Component, error) {
	want := map[models.Component]bool{}
	for _, c := range components {
		want[c] = true
	}
	var out []models.Component
	for _, s := range t.store.segregations(collectionID) {
		if want[s.Component] {
			out = append(out, s.Component)
		}
	}
	return out, nil
}

func (t *memTx) ComponentSettings(context.Context) ([]models.ComponentSetting, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return append([]models.ComponentSetting(nil), t.store.settings...), nil
}

func (t *memTx) DonorBloodGroup(_ context.Context, donorID uint) (*uint, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	g, ok := t.store.donorGroups[donorID]
	if !ok {
		return nil, ErrNotFound
	}
	return g, nil
}

func (t *memTx) InsertSegregation(_ context.Context, rec *models.BloodSegregation) error {
	t.store.mu.Lock()
	t.store.nextSegID++
	rec.SegregationID = t.store.nextSegID
	t.store.mu.Unlock()
	rec.UpdatedAt = rec.SegregatedAt
	t.segs = append(t.segs, *rec)
	return nil
}

func (t *memTx) UpsertInventory(_ context.Context, centreID string, bloodGroupID uint, component models.Component, units int) (*models.BloodInventory, error) {
	if t.store.failUpsertOn == component {
		return nil, errors.New("connection reset by peer")
	}
	k := invKey{centreID, bloodGroupID, component}
	t.deltas[k] += units

	t.store.mu.Lock()
	inv := t.store.inventory[k]
	t.store.mu.Unlock()
	inv.CentreID, inv.BloodGroupID, inv.Component = centreID, bloodGroupID, component
	inv.UnitsAvailable += t.deltas[k]
	return &inv, nil
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []audit.LogOptions
	err     error
}

func (a *recordingAuditor) WriteLog(_ context.Context, opts audit.LogOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, opts)
	return a.err
}

type recordingCache struct {
	mu       sync.Mutex
	prefixes []string
}

func (c *recordingCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefixes = append(c.prefixes, prefix)
	return nil
}
