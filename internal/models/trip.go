package models

import (
	"time"

	"gorm.io/datatypes"
)

// Trip is the root planning record. Days, budget items and notes hang
// off it; everything below shares its lifecycle on the client.
type Trip struct {
	Syncable

	Name          string         `gorm:"not null" json:"name" validate:"required"`
	Destination   string         `gorm:"not null" json:"destination" validate:"required"`
	Description   string         `gorm:"type:text" json:"description,omitempty"`
	StartDate     time.Time      `gorm:"type:date" json:"start_date"`
	EndDate       time.Time      `gorm:"type:date" json:"end_date" validate:"gtefield=StartDate"`
	TotalBudget   float64        `gorm:"default:0" json:"total_budget" validate:"gte=0"`
	Currency      string         `gorm:"type:varchar(3);default:'EUR'" json:"currency" validate:"omitempty,iso4217"`
	CoverImageURL string         `json:"cover_image_url,omitempty" validate:"omitempty,url"`
	Preferences   datatypes.JSON `gorm:"type:jsonb" json:"preferences,omitempty"`
}

// TableName specifies the table name for Trip model
func (Trip) TableName() string {
	return "trips"
}

// GetEntityType implements SyncableEntity interface
func (Trip) GetEntityType() EntityType {
	return EntityTypeTrip
}
