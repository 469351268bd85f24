package model

import "time"

// ActivityCounter is a named monotonically increasing global counter
// (total kills, total deaths).
type ActivityCounter struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:32;not null" json:"name"`
	Value     int64     `gorm:"default:0" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ActivitySeries holds a rolling semicolon-delimited sample series
// appended to once per poll tick.
type ActivitySeries struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:32;not null" json:"name"`
	Data      string    `gorm:"type:text" json:"data"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
