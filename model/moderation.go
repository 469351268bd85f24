package model

import (
	"time"

	"gorm.io/datatypes"
)

// ModerationLog records one ban/unban attempt against a game server,
// whether autonomous (cascade) or manual.
type ModerationLog struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OpID      string         `gorm:"index;size:36" json:"op_id"` // groups bulk cascade operations
	ServerID  string         `gorm:"index;size:32" json:"server_id"`
	Name      string         `gorm:"size:64" json:"name"`
	Action    string         `gorm:"size:16" json:"action"` // ban | unban
	Automatic bool           `json:"automatic"`
	Success   bool           `json:"success"`
	Error     string         `gorm:"size:512" json:"error"`
	Detail    datatypes.JSON `json:"detail"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
