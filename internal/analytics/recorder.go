package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"podstream/internal/pkg/geoip"
	"podstream/internal/pkg/useragent"
)

// EventType identifies a playback event sent by a listening client.
type EventType string

const (
	EventPlay        EventType = "play"
	EventComplete    EventType = "complete"
	EventPartial     EventType = "partial"
	EventDemographic EventType = "demographic"
)

// Validation errors surfaced as 4xx by the record endpoint.
var (
	ErrMissingPodcastID = errors.New("podcastId is required")
	ErrMissingEventType = errors.New("event type is required")
)

// EventPayload carries the event-specific fields of a recorded event.
// All fields are optional; which ones are read depends on the event type.
type EventPayload struct {
	UserID        string   `json:"userId"`
	DeviceID      string   `json:"deviceId"`
	Percentage    *float64 `json:"percentage"`
	ListeningTime *float64 `json:"listeningTime"`
	Country       string   `json:"country"`
	Device        string   `json:"device"`
	Referrer      string   `json:"referrer"`
}

// RecordEventInput defines the input required to record a playback event.
// IPAddress and UserAgent come from the HTTP layer and are only used to
// enrich demographic events whose payload omits country or device.
type RecordEventInput struct {
	PodcastID uint
	Event     EventType
	Data      EventPayload
	IPAddress string
	UserAgent string
}

// RecordEvent folds one event into the daily aggregate for
// (podcast, current UTC day). The aggregate row is created lazily on the
// first event of the day. Unknown event types are accepted as a no-op so
// newer clients can ship event types this server does not understand yet.
//
// Counter bumps (plays, unique listeners, demographic tallies) are
// single-statement upserts; the weighted-average folds are read-modify-write
// and rely on PerformWrite serializing writers.
func RecordEvent(dbManager cartridge.DBManager, logger *slog.Logger, input *RecordEventInput) error {
	if input.PodcastID == 0 {
		return ErrMissingPodcastID
	}
	if input.Event == "" {
		return ErrMissingEventType
	}

	// Bucket by processing time, not client-supplied event time.
	day := truncateToDay(time.Now().UTC())
	db := dbManager.GetConnection()

	switch input.Event {
	case EventPlay:
		identified := input.Data.UserID != "" || input.Data.DeviceID != ""
		return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
			return applyPlay(tx, input.PodcastID, day, identified)
		})

	case EventComplete:
		return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
			return applyCompletionSample(tx, input.PodcastID, day, 100)
		})

	case EventPartial:
		return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
			if input.Data.Percentage != nil {
				if err := applyCompletionSample(tx, input.PodcastID, day, *input.Data.Percentage); err != nil {
					return err
				}
			}
			if input.Data.ListeningTime != nil {
				if err := applyListeningSample(tx, input.PodcastID, day, *input.Data.ListeningTime); err != nil {
					return err
				}
			}
			return nil
		})

	case EventDemographic:
		country := input.Data.Country
		if country == "" && input.IPAddress != "" {
			country = geoip.CountryFromIP(input.IPAddress)
		}
		device := normalizeDevice(input.Data.Device)
		if device == "" && input.UserAgent != "" {
			device = useragent.Classify(input.UserAgent)
		}
		return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
			if country != "" {
				if err := updateCountryStat(tx, input.PodcastID, country, day); err != nil {
					return err
				}
			}
			if device != "" {
				if err := updateDeviceStat(tx, input.PodcastID, device, day); err != nil {
					return err
				}
			}
			if input.Data.Referrer != "" {
				if err := updateReferrerStat(tx, input.PodcastID, input.Data.Referrer, day); err != nil {
					return err
				}
			}
			return nil
		})

	default:
		logger.Debug("Ignoring unknown event type",
			slog.String("event", string(input.Event)),
			slog.Uint64("podcastID", uint64(input.PodcastID)))
		return nil
	}
}

// truncateToDay truncates a timestamp to UTC midnight, the aggregation
// bucket key.
// normalizeDevice maps a payload-supplied device value onto the tracked
// device classes. Anything else is discarded so the breakdown keeps its
// fixed mobile/desktop/tablet shape; the caller may still fall back to
// user agent classification.
func normalizeDevice(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case DeviceMobile:
		return DeviceMobile
	case DeviceDesktop:
		return DeviceDesktop
	case DeviceTablet:
		return DeviceTablet
	}
	return ""
}

func truncateToDay(timestamp time.Time) time.Time {
	t := timestamp.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// foldWeightedAverage blends a new sample into a running average using the
// play counter as the sample-size denominator. The first sample (n <= 1)
// seeds the average.
func foldWeightedAverage(oldAvg, sample float64, n int) float64 {
	if n <= 1 {
		return sample
	}
	return (oldAvg*float64(n-1) + sample) / float64(n)
}

func getIdentifiedIncrement(identified bool) int {
	if identified {
		return 1
	}
	return 0
}

// Incremental update functions

func applyPlay(tx *gorm.DB, podcastID uint, day time.Time, identified bool) error {
	listenerInc := getIdentifiedIncrement(identified)
	now := time.Now().UTC()
	query := `
		INSERT INTO daily_stats (podcast_id, day, plays, unique_listeners, completion_rate, average_listening_time, created_at, updated_at)
		VALUES (?, ?, 1, ?, 0, 0, ?, ?)
		ON CONFLICT (podcast_id, day) DO UPDATE SET
			plays = daily_stats.plays + 1,
			unique_listeners = daily_stats.unique_listeners + ?,
			updated_at = ?
	`
	return tx.Exec(query, podcastID, day, listenerInc, now, now, listenerInc, now).Error
}

// findOrCreateDailyStat loads the aggregate row for (podcast, day),
// creating a zeroed one when this is the first event of the day.
func findOrCreateDailyStat(tx *gorm.DB, podcastID uint, day time.Time) (*DailyStat, error) {
	var stat DailyStat
	err := tx.Where("podcast_id = ? AND day = ?", podcastID, day).First(&stat).Error
	if err == nil {
		return &stat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load daily stat: %w", err)
	}

	stat = DailyStat{
		PodcastID: podcastID,
		Day:       day,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Create(&stat).Error; err != nil {
		return nil, fmt.Errorf("failed to create daily stat: %w", err)
	}
	return &stat, nil
}

func applyCompletionSample(tx *gorm.DB, podcastID uint, day time.Time, percentage float64) error {
	stat, err := findOrCreateDailyStat(tx, podcastID, day)
	if err != nil {
		return err
	}

	newRate := foldWeightedAverage(stat.CompletionRate, percentage, stat.Plays)
	return tx.Model(stat).Updates(map[string]interface{}{
		"completion_rate": newRate,
		"updated_at":      time.Now().UTC(),
	}).Error
}

func applyListeningSample(tx *gorm.DB, podcastID uint, day time.Time, listeningTime float64) error {
	stat, err := findOrCreateDailyStat(tx, podcastID, day)
	if err != nil {
		return err
	}

	newAvg := foldWeightedAverage(stat.AverageListeningTime, listeningTime, stat.Plays)
	return tx.Model(stat).Updates(map[string]interface{}{
		"average_listening_time": newAvg,
		"updated_at":             time.Now().UTC(),
	}).Error
}

func updateCountryStat(tx *gorm.DB, podcastID uint, country string, day time.Time) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO country_stats (podcast_id, country, day, count, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT (podcast_id, country, day) DO UPDATE SET
			count = country_stats.count + 1,
			updated_at = ?
	`
	return tx.Exec(query, podcastID, country, day, now, now, now).Error
}

func updateDeviceStat(tx *gorm.DB, podcastID uint, deviceType string, day time.Time) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO device_stats (podcast_id, device_type, day, count, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT (podcast_id, device_type, day) DO UPDATE SET
			count = device_stats.count + 1,
			updated_at = ?
	`
	return tx.Exec(query, podcastID, deviceType, day, now, now, now).Error
}

func updateReferrerStat(tx *gorm.DB, podcastID uint, source string, day time.Time) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO referrer_stats (podcast_id, source, day, count, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT (podcast_id, source, day) DO UPDATE SET
			count = referrer_stats.count + 1,
			updated_at = ?
	`
	return tx.Exec(query, podcastID, source, day, now, now, now).Error
}
