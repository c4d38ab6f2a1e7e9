package models

// Activity is a scheduled item within a day: a visit, a meal, a
// transfer. Times are local wall-clock strings ("HH:MM") because the
// client renders them in the destination's timezone, not the device's.
type Activity struct {
	Syncable

	DayID      string  `gorm:"type:varchar(64);not null;index" json:"day_id" validate:"required"`
	Title      string  `gorm:"not null" json:"title" validate:"required"`
	Category   string  `gorm:"type:varchar(50)" json:"category,omitempty"`
	Location   string  `json:"location,omitempty"`
	StartTime  string  `gorm:"type:varchar(5)" json:"start_time,omitempty" validate:"omitempty,datetime=15:04"`
	EndTime    string  `gorm:"type:varchar(5)" json:"end_time,omitempty" validate:"omitempty,datetime=15:04"`
	Cost       float64 `gorm:"default:0" json:"cost" validate:"gte=0"`
	BookingRef string  `json:"booking_ref,omitempty"`
	Notes      string  `gorm:"type:text" json:"notes,omitempty"`
	SortOrder  int     `gorm:"default:0" json:"sort_order"`
}

// TableName specifies the table name for Activity model
func (Activity) TableName() string {
	return "activities"
}

// GetEntityType implements SyncableEntity interface
func (Activity) GetEntityType() EntityType {
	return EntityTypeActivity
}

// ParentRef implements ChildRecord interface
func (a Activity) ParentRef() (EntityType, string) {
	return EntityTypeDay, a.DayID
}
