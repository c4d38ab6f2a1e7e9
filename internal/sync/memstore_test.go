package sync

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
)

// memStore is an in-memory EntityStore for engine tests. It mirrors the
// database adapter's contract: records are cloned on the way in and
// out, lookups are scoped to the owner, and Update is guarded by the
// expected local_updated_at. Hooks let a test inject infrastructure
// failures and concurrent writers; hooks run on the engine's goroutine.
type memStore struct {
	mu      sync.Mutex
	records map[models.EntityType]map[string]models.SyncableEntity

	// failAll makes every store call fail, simulating a database that
	// went away mid-cycle.
	failAll error

	// failChangedSince fails only the download query, so a test can
	// check that uploads committed before the abort stay committed.
	failChangedSince error

	// beforeInsert / beforeUpdate run once before the next matching
	// call and are then cleared. A hook that wants to fire again
	// re-arms itself.
	beforeInsert func()
	beforeUpdate func()
}

var _ EntityStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{records: make(map[models.EntityType]map[string]models.SyncableEntity)}
}

// bucket returns the per-kind map, creating it on first use. Callers
// hold mu.
func (m *memStore) bucket(kind models.EntityType) map[string]models.SyncableEntity {
	if m.records[kind] == nil {
		m.records[kind] = make(map[string]models.SyncableEntity)
	}
	return m.records[kind]
}

// put seeds a record directly, bypassing the engine.
func (m *memStore) put(rec models.SyncableEntity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(rec.GetEntityType())[rec.GetEntityID()] = cloneRecord(rec)
}

// stored reads a record directly; nil when absent.
func (m *memStore) stored(kind models.EntityType, id string) models.SyncableEntity {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.bucket(kind)[id]
	if !ok {
		return nil
	}
	return cloneRecord(rec)
}

func (m *memStore) takeHook(slot *func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := *slot
	*slot = nil
	return f
}

func (m *memStore) Get(ctx context.Context, userID string, kind models.EntityType, id string) (models.SyncableEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	rec, ok := m.bucket(kind)[id]
	if !ok || rec.GetUserID() != userID {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *memStore) Insert(ctx context.Context, rec models.SyncableEntity) error {
	if f := m.takeHook(&m.beforeInsert); f != nil {
		f()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	bucket := m.bucket(rec.GetEntityType())
	if _, exists := bucket[rec.GetEntityID()]; exists {
		return ErrDuplicateID
	}
	bucket[rec.GetEntityID()] = cloneRecord(rec)
	return nil
}

func (m *memStore) Update(ctx context.Context, rec models.SyncableEntity, expected time.Time) error {
	if f := m.takeHook(&m.beforeUpdate); f != nil {
		f()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	bucket := m.bucket(rec.GetEntityType())
	cur, exists := bucket[rec.GetEntityID()]
	if !exists || !cur.GetLocalUpdatedAt().Equal(expected) {
		return ErrStaleRecord
	}
	bucket[rec.GetEntityID()] = cloneRecord(rec)
	return nil
}

func (m *memStore) ChangedSince(ctx context.Context, userID string, kind models.EntityType, since *time.Time) ([]models.SyncableEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	if m.failChangedSince != nil {
		return nil, m.failChangedSince
	}
	var out []models.SyncableEntity
	for _, rec := range m.bucket(kind) {
		if rec.GetUserID() != userID {
			continue
		}
		if since != nil && !rec.GetLocalUpdatedAt().After(*since) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].GetLocalUpdatedAt().Before(out[j].GetLocalUpdatedAt())
	})
	return out, nil
}

func (m *memStore) IDUsedByOtherKind(ctx context.Context, userID string, kind models.EntityType, id string) (models.EntityType, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return "", false, m.failAll
	}
	for _, other := range models.SyncKindOrder {
		if other == kind {
			continue
		}
		if rec, ok := m.bucket(other)[id]; ok && rec.GetUserID() == userID {
			return other, true, nil
		}
	}
	return "", false, nil
}

// cloneRecord deep-copies a record so the store never shares memory
// with the engine or the test.
func cloneRecord(rec models.SyncableEntity) models.SyncableEntity {
	switch r := rec.(type) {
	case *models.Trip:
		c := *r
		if r.Preferences != nil {
			c.Preferences = append(datatypes.JSON(nil), r.Preferences...)
		}
		return &c
	case *models.Day:
		c := *r
		return &c
	case *models.Activity:
		c := *r
		return &c
	case *models.BudgetItem:
		c := *r
		c.TripID = cloneStringPtr(r.TripID)
		c.DayID = cloneStringPtr(r.DayID)
		c.SpentOn = cloneTimePtr(r.SpentOn)
		return &c
	case *models.Note:
		c := *r
		c.TripID = cloneStringPtr(r.TripID)
		c.DayID = cloneStringPtr(r.DayID)
		return &c
	}
	return rec
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
