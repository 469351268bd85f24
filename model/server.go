package model

import "time"

// GameServer is one registered game server whose log streams are polled.
type GameServer struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ServerID  string    `gorm:"uniqueIndex;size:32;not null" json:"server_id"`
	Map       string    `gorm:"size:32;default:chernarus" json:"map"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
