package models

import "time"

// Syncable holds the bookkeeping fields shared by all five record
// kinds. It is embedded, not referenced, so each kind stays a flat row
// and a flat JSON object on the wire.
//
// IDs are opaque strings generated by the client at creation time and
// never reassigned. The server only mints ids for records it creates
// itself (e.g. AI-generated days). UserID is the owner scope and is
// never serialized to clients.
type Syncable struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)" json:"id" validate:"required"`
	UserID         string    `gorm:"type:uuid;not null;index" json:"-"`
	LocalUpdatedAt time.Time `gorm:"not null;index" json:"local_updated_at"`
	IsDeleted      bool      `gorm:"default:false" json:"is_deleted"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GetEntityID implements SyncableEntity.
func (s *Syncable) GetEntityID() string {
	return s.ID
}

// GetUserID implements SyncableEntity.
func (s *Syncable) GetUserID() string {
	return s.UserID
}

// SetUserID implements SyncableEntity.
func (s *Syncable) SetUserID(userID string) {
	s.UserID = userID
}

// GetLocalUpdatedAt implements SyncableEntity.
func (s *Syncable) GetLocalUpdatedAt() time.Time {
	return s.LocalUpdatedAt
}

// SetLocalUpdatedAt implements SyncableEntity.
func (s *Syncable) SetLocalUpdatedAt(t time.Time) {
	s.LocalUpdatedAt = t
}

// Tombstoned implements SyncableEntity.
func (s *Syncable) Tombstoned() bool {
	return s.IsDeleted
}

// Touch bumps the modification instant. Server-side edits go through
// here so CRUD writes take part in sync like any other change.
func (s *Syncable) Touch(now time.Time) {
	s.LocalUpdatedAt = now.UTC()
}

// MarkDeleted turns the record into a tombstone. All other fields are
// kept as they were at deletion time so late-arriving peers can still
// see what was deleted.
func (s *Syncable) MarkDeleted(now time.Time) {
	s.IsDeleted = true
	s.Touch(now)
}
