package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/sync"
)

// EntityStore is the GORM-backed persistence adapter behind the sync
// engine. Every call touches one record or one indexed range; there is
// deliberately no batch transaction, so two concurrent cycles only
// contend on records they actually share. Update serializes those
// races with a compare-and-swap on local_updated_at, Insert with the
// primary-key constraint.
type EntityStore struct {
	db *DB
}

var _ sync.EntityStore = (*EntityStore)(nil)

// NewEntityStore creates the store adapter on an open connection.
func NewEntityStore(db *DB) *EntityStore {
	return &EntityStore{db: db}
}

// newRecord returns an empty record of the given kind, or nil for a
// kind that does not exist.
func newRecord(kind models.EntityType) models.SyncableEntity {
	switch kind {
	case models.EntityTypeTrip:
		return &models.Trip{}
	case models.EntityTypeDay:
		return &models.Day{}
	case models.EntityTypeActivity:
		return &models.Activity{}
	case models.EntityTypeBudgetItem:
		return &models.BudgetItem{}
	case models.EntityTypeNote:
		return &models.Note{}
	}
	return nil
}

// Get fetches the user's record of one kind by id. Tombstones count as
// present. Returns sync.ErrNotFound when the user owns nothing under
// the id.
func (s *EntityStore) Get(ctx context.Context, userID string, kind models.EntityType, id string) (models.SyncableEntity, error) {
	rec := newRecord(kind)
	if rec == nil {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	err := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrNotFound
		}
		return nil, fmt.Errorf("lookup of %s %s failed: %w", kind, id, err)
	}
	return rec, nil
}

// Insert creates a never-seen record exactly as submitted. A
// concurrent insert of the same id loses against the primary key and
// comes back as sync.ErrDuplicateID.
func (s *EntityStore) Insert(ctx context.Context, rec models.SyncableEntity) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return sync.ErrDuplicateID
		}
		return fmt.Errorf("insert of %s %s failed: %w", rec.GetEntityType(), rec.GetEntityID(), err)
	}
	return nil
}

// Update replaces the whole record, guarded by the local_updated_at
// the caller resolved against. Zero rows affected means a concurrent
// cycle won the race: sync.ErrStaleRecord, re-read and resolve again.
func (s *EntityStore) Update(ctx context.Context, rec models.SyncableEntity, expected time.Time) error {
	tx := s.db.WithContext(ctx).
		Model(rec).
		Where("user_id = ? AND id = ? AND local_updated_at = ?", rec.GetUserID(), rec.GetEntityID(), expected).
		Select("*").
		Omit("id", "user_id", "created_at").
		Updates(rec)
	if tx.Error != nil {
		return fmt.Errorf("update of %s %s failed: %w", rec.GetEntityType(), rec.GetEntityID(), tx.Error)
	}
	if tx.RowsAffected == 0 {
		return sync.ErrStaleRecord
	}
	return nil
}

// ChangedSince lists the user's records of one kind changed strictly
// after since, oldest first; nil means everything (first sync).
func (s *EntityStore) ChangedSince(ctx context.Context, userID string, kind models.EntityType, since *time.Time) ([]models.SyncableEntity, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("local_updated_at ASC")
	if since != nil {
		q = q.Where("local_updated_at > ?", since.UTC())
	}

	switch kind {
	case models.EntityTypeTrip:
		var recs []*models.Trip
		if err := q.Find(&recs).Error; err != nil {
			return nil, fmt.Errorf("query of %s changes failed: %w", kind, err)
		}
		return asSyncables(recs), nil
	case models.EntityTypeDay:
		var recs []*models.Day
		if err := q.Find(&recs).Error; err != nil {
			return nil, fmt.Errorf("query of %s changes failed: %w", kind, err)
		}
		return asSyncables(recs), nil
	case models.EntityTypeActivity:
		var recs []*models.Activity
		if err := q.Find(&recs).Error; err != nil {
			return nil, fmt.Errorf("query of %s changes failed: %w", kind, err)
		}
		return asSyncables(recs), nil
	case models.EntityTypeBudgetItem:
		var recs []*models.BudgetItem
		if err := q.Find(&recs).Error; err != nil {
			return nil, fmt.Errorf("query of %s changes failed: %w", kind, err)
		}
		return asSyncables(recs), nil
	case models.EntityTypeNote:
		var recs []*models.Note
		if err := q.Find(&recs).Error; err != nil {
			return nil, fmt.Errorf("query of %s changes failed: %w", kind, err)
		}
		return asSyncables(recs), nil
	}
	return nil, fmt.Errorf("unknown entity kind %q", kind)
}

func asSyncables[T models.SyncableEntity](recs []T) []models.SyncableEntity {
	out := make([]models.SyncableEntity, 0, len(recs))
	for _, r := range recs {
		out = append(out, r)
	}
	return out
}

// IDUsedByOtherKind probes the other four kinds for the same id in the
// user's partition. Ids are unique per kind by schema; cross-kind
// reuse is an identity violation the engine rejects per record.
func (s *EntityStore) IDUsedByOtherKind(ctx context.Context, userID string, kind models.EntityType, id string) (models.EntityType, bool, error) {
	for _, other := range models.SyncKindOrder {
		if other == kind {
			continue
		}
		var count int64
		err := s.db.WithContext(ctx).
			Model(newRecord(other)).
			Where("user_id = ? AND id = ?", userID, id).
			Count(&count).Error
		if err != nil {
			return "", false, fmt.Errorf("identity probe on %s failed: %w", other, err)
		}
		if count > 0 {
			return other, true, nil
		}
	}
	return "", false, nil
}
