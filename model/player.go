package model

import "time"

// PlayerStat is the persistent identity for one player account, keyed by
// display name (case-insensitive). Rows are created on first sighting in
// either log stream and never deleted.
type PlayerStat struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"size:64;not null" json:"name"`
	NameLower   string    `gorm:"uniqueIndex;size:64;not null" json:"-"`
	Kills       int       `gorm:"default:0" json:"kills"`
	Deaths      int       `gorm:"default:0" json:"deaths"`
	KillStreak  int       `gorm:"default:0" json:"kill_streak"`
	DeathStreak int       `gorm:"default:0" json:"death_streak"`
	Money       int64     `gorm:"default:0" json:"money"`
	Bounty      int64     `gorm:"default:0" json:"bounty"`
	AliveSince  int64     `json:"alive_since"` // unix seconds of first sighting
	DeviceID    string    `gorm:"index;size:64" json:"device_id"`
	AccountID   string    `gorm:"size:64" json:"account_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
