package models

import "time"

// BudgetItem is a planned or recorded expense. It belongs to exactly
// one of a trip (trip-level costs like flights) or a day (day-level
// costs like tickets) — never both, never neither.
type BudgetItem struct {
	Syncable

	TripID      *string    `gorm:"type:varchar(64);index" json:"trip_id,omitempty" validate:"required_without=DayID,excluded_with=DayID"`
	DayID       *string    `gorm:"type:varchar(64);index" json:"day_id,omitempty"`
	Category    string     `gorm:"not null;type:varchar(50)" json:"category" validate:"required"`
	Description string     `json:"description,omitempty"`
	Amount      float64    `gorm:"not null;default:0" json:"amount" validate:"gte=0"`
	Currency    string     `gorm:"type:varchar(3)" json:"currency,omitempty" validate:"omitempty,iso4217"`
	IsPaid      bool       `gorm:"default:false" json:"is_paid"`
	SpentOn     *time.Time `gorm:"type:date" json:"spent_on,omitempty"`
}

// TableName specifies the table name for BudgetItem model
func (BudgetItem) TableName() string {
	return "budget_items"
}

// GetEntityType implements SyncableEntity interface
func (BudgetItem) GetEntityType() EntityType {
	return EntityTypeBudgetItem
}

// ParentRef implements ChildRecord interface
func (b BudgetItem) ParentRef() (EntityType, string) {
	if b.TripID != nil {
		return EntityTypeTrip, *b.TripID
	}
	if b.DayID != nil {
		return EntityTypeDay, *b.DayID
	}
	return EntityTypeTrip, ""
}
