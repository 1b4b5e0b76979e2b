// Package analytics implements the playback analytics pipeline: recording
// listener events into per-day aggregates and reshaping those aggregates
// into time series, breakdowns, creator summaries, and CSV exports.
//
// The package is organized into focused modules:
//   - models.go: Aggregate table model definitions
//   - recorder.go: Event recording and the weighted-average fold
//   - reader.go: Per-podcast time series and top-N breakdowns
//   - summary.go: Per-creator totals and top-podcast ranking
//   - export.go: CSV export of daily aggregates
package analytics

import (
	"time"
)

// Device types tracked in the device breakdown. Every breakdown response
// lists all three, even at zero.
const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceTablet  = "tablet"
)

// MetricCountResult represents a generic key-count pair for query results
type MetricCountResult struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// ===== Aggregate Table Definitions =====

// DailyStat is the per-(podcast, calendar day) rollup record. At most one
// row exists per podcast per day; all events recorded within the same UTC
// day fold into it.
//
// UniqueListeners counts identified plays (plays carrying a user or device
// identifier), not deduplicated listeners. The name is kept for wire
// compatibility with the existing clients.
type DailyStat struct {
	ID                   uint      `gorm:"primaryKey;autoIncrement"`
	PodcastID            uint      `gorm:"uniqueIndex:idx_daily_unique;not null"`
	Day                  time.Time `gorm:"uniqueIndex:idx_daily_unique;type:datetime;not null"`
	Plays                int       `gorm:"not null;default:0"`
	UniqueListeners      int       `gorm:"not null;default:0"`
	CompletionRate       float64   `gorm:"not null;default:0"`
	AverageListeningTime float64   `gorm:"not null;default:0"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CountryStat tallies demographic country values per podcast per day
type CountryStat struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	PodcastID uint      `gorm:"uniqueIndex:idx_country_unique;not null"`
	Country   string    `gorm:"uniqueIndex:idx_country_unique;not null"`
	Count     int       `gorm:"not null;default:0"`
	Day       time.Time `gorm:"uniqueIndex:idx_country_unique;type:datetime;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeviceStat tallies demographic device types per podcast per day
type DeviceStat struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	PodcastID  uint      `gorm:"uniqueIndex:idx_device_unique;not null"`
	DeviceType string    `gorm:"uniqueIndex:idx_device_unique;not null"`
	Count      int       `gorm:"not null;default:0"`
	Day        time.Time `gorm:"uniqueIndex:idx_device_unique;type:datetime;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ReferrerStat tallies demographic referrer sources per podcast per day
type ReferrerStat struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	PodcastID uint      `gorm:"uniqueIndex:idx_referrer_unique;not null"`
	Source    string    `gorm:"uniqueIndex:idx_referrer_unique;not null"`
	Count     int       `gorm:"not null;default:0"`
	Day       time.Time `gorm:"uniqueIndex:idx_referrer_unique;type:datetime;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
