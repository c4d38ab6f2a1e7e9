package models

// Note is free-form text attached to exactly one of a trip or a day.
type Note struct {
	Syncable

	TripID  *string `gorm:"type:varchar(64);index" json:"trip_id,omitempty" validate:"required_without=DayID,excluded_with=DayID"`
	DayID   *string `gorm:"type:varchar(64);index" json:"day_id,omitempty"`
	Title   string  `json:"title,omitempty"`
	Content string  `gorm:"type:text;not null" json:"content" validate:"required"`
	Pinned  bool    `gorm:"default:false" json:"pinned"`
}

// TableName specifies the table name for Note model
func (Note) TableName() string {
	return "notes"
}

// GetEntityType implements SyncableEntity interface
func (Note) GetEntityType() EntityType {
	return EntityTypeNote
}

// ParentRef implements ChildRecord interface
func (n Note) ParentRef() (EntityType, string) {
	if n.TripID != nil {
		return EntityTypeTrip, *n.TripID
	}
	if n.DayID != nil {
		return EntityTypeDay, *n.DayID
	}
	return EntityTypeTrip, ""
}
