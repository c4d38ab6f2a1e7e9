package models

import "time"

// EntityType discriminates the five synchronizable record kinds.
type EntityType string

const (
	EntityTypeTrip       EntityType = "trip"
	EntityTypeDay        EntityType = "day"
	EntityTypeActivity   EntityType = "activity"
	EntityTypeBudgetItem EntityType = "budget_item"
	EntityTypeNote       EntityType = "note"
)

// SyncKindOrder is the fixed processing order for a sync cycle.
// Parents always come before children so a batch containing a new trip
// plus its days applies in one pass; the engine never reorders records.
var SyncKindOrder = []EntityType{
	EntityTypeTrip,
	EntityTypeDay,
	EntityTypeActivity,
	EntityTypeBudgetItem,
	EntityTypeNote,
}

// ValidEntityType reports whether t names one of the five record kinds.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityTypeTrip, EntityTypeDay, EntityTypeActivity, EntityTypeBudgetItem, EntityTypeNote:
		return true
	}
	return false
}

// SyncableEntity is implemented by every record kind that flows through
// the sync protocol. Dispatch is by the explicit GetEntityType
// discriminator, never by structural typing.
type SyncableEntity interface {
	GetEntityID() string
	GetEntityType() EntityType
	GetUserID() string
	SetUserID(userID string)
	GetLocalUpdatedAt() time.Time
	SetLocalUpdatedAt(t time.Time)
	Tombstoned() bool
}

// ChildRecord is implemented by kinds that reference a parent record.
// ParentRef returns the parent kind and id; an empty id means no parent
// is set (the validator rejects that before the reference is checked).
type ChildRecord interface {
	ParentRef() (EntityType, string)
}
