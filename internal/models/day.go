package models

import "time"

// Day is one calendar day inside a trip.
type Day struct {
	Syncable

	TripID    string    `gorm:"type:varchar(64);not null;index" json:"trip_id" validate:"required"`
	Date      time.Time `gorm:"type:date" json:"date"`
	Title     string    `json:"title,omitempty"`
	Summary   string    `gorm:"type:text" json:"summary,omitempty"`
	SortOrder int       `gorm:"default:0" json:"sort_order"`
}

// TableName specifies the table name for Day model
func (Day) TableName() string {
	return "days"
}

// GetEntityType implements SyncableEntity interface
func (Day) GetEntityType() EntityType {
	return EntityTypeDay
}

// ParentRef implements ChildRecord interface
func (d Day) ParentRef() (EntityType, string) {
	return EntityTypeTrip, d.TripID
}
