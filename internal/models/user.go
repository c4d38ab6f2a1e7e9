package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account in the system. Users are not part of the
// sync protocol; the engine only ever sees their resolved id.
type User struct {
	ID           string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Email        string     `gorm:"unique;not null" json:"email" validate:"required,email"`
	Password     string     `gorm:"not null" json:"-"`
	DisplayName  string     `json:"display_name,omitempty"`
	HomeCurrency string     `gorm:"type:varchar(3);default:'EUR'" json:"home_currency" validate:"omitempty,iso4217"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
