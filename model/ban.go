package model

import "time"

// DeviceBan marks a device identifier as banned. The Name column records
// which account the ban originated from; the ban itself applies to every
// account seen on the device.
type DeviceBan struct {
	ID       int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name     string    `gorm:"size:64" json:"name"`
	DeviceID string    `gorm:"uniqueIndex;size:64;not null" json:"device_id"`
	BannedAt time.Time `gorm:"autoCreateTime" json:"banned_at"`
}
