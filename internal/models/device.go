package models

import (
	"time"

	"gorm.io/gorm"
)

// RegisteredDevice is a phone or tablet that syncs against this server.
// The device_id is chosen by the client (install id) and is stable
// across app restarts; one user can have many devices, which is exactly
// the situation the sync engine reconciles.
type RegisteredDevice struct {
	ID         string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID     string     `gorm:"type:uuid;not null;uniqueIndex:idx_devices_user_device" json:"-"`
	DeviceID   string     `gorm:"not null;uniqueIndex:idx_devices_user_device" json:"device_id" validate:"required"`
	Name       string     `json:"name,omitempty"`
	Platform   string     `gorm:"type:varchar(20)" json:"platform,omitempty" validate:"omitempty,oneof=ios android web"`
	AppVersion string     `gorm:"type:varchar(20)" json:"app_version,omitempty"`
	LastSeenAt time.Time  `json:"last_seen_at"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for RegisteredDevice
func (RegisteredDevice) TableName() string {
	return "registered_devices"
}
