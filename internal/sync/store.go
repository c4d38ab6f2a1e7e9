package sync

import (
	"context"
	"time"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
)

// EntityStore is the persistence seam the engine works against. All
// operations are scoped to a single record of a single user; the
// engine never asks for batch transactions or table locks, so two
// concurrent cycles only ever contend on the records they both touch.
type EntityStore interface {
	// Get returns the current server record, ErrNotFound when the user
	// owns no record of this kind under this id. Tombstones are
	// records like any other and are returned, not filtered.
	Get(ctx context.Context, userID string, kind models.EntityType, id string) (models.SyncableEntity, error)

	// Insert creates a never-seen record (tombstone or live) with its
	// fields exactly as submitted. ErrDuplicateID signals that a
	// concurrent cycle inserted the same id first.
	Insert(ctx context.Context, rec models.SyncableEntity) error

	// Update replaces the whole record, but only while the stored
	// local_updated_at still equals expected. A concurrent writer that
	// got there first turns this into ErrStaleRecord and the caller
	// re-reads. This per-record compare-and-swap is the only
	// serialization the engine relies on.
	Update(ctx context.Context, rec models.SyncableEntity, expected time.Time) error

	// ChangedSince lists the user's records of one kind whose
	// local_updated_at is strictly after since, oldest first. A nil
	// since means a first sync: everything the user owns, tombstones
	// included.
	ChangedSince(ctx context.Context, userID string, kind models.EntityType, since *time.Time) ([]models.SyncableEntity, error)

	// IDUsedByOtherKind probes the other four kinds for the same id
	// within the user's partition. Used to reject cross-kind id
	// collisions before they corrupt the identity space.
	IDUsedByOtherKind(ctx context.Context, userID string, kind models.EntityType, id string) (models.EntityType, bool, error)
}
