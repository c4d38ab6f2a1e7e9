package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncLog records one sync cycle per row. Purely observational: the
// engine never reads it back, the status endpoint and operators do.
type SyncLog struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string         `gorm:"type:uuid;not null;index" json:"user_id"`
	DeviceID    string         `gorm:"index" json:"device_id,omitempty"`
	Strategy    string         `gorm:"type:varchar(20)" json:"strategy"`
	Status      string         `gorm:"not null;index" json:"status"` // "success", "error"
	StartedAt   time.Time      `gorm:"not null" json:"started_at"`
	Duration    int            `gorm:"default:0" json:"duration"` // milliseconds
	Uploaded    int            `gorm:"default:0" json:"uploaded"`
	Downloaded  int            `gorm:"default:0" json:"downloaded"`
	Conflicts   int            `gorm:"default:0" json:"conflicts"`
	Errors      int            `gorm:"default:0" json:"errors"`
	ErrorDetail string         `gorm:"type:text" json:"error_detail,omitempty"`
	Details     datatypes.JSON `gorm:"type:jsonb" json:"details,omitempty"` // per-kind counts
	CreatedAt   time.Time      `json:"-"`
	UpdatedAt   time.Time      `json:"-"`
}

// TableName specifies the table name
func (SyncLog) TableName() string {
	return "sync_logs"
}
