package analytics

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"podstream/internal/pkg/async"
)

const topBreakdownLimit = 5

// dateFormat is the wire format for time-series dates and CSV export dates.
const dateFormat = "2006-01-02"

// CountPoint is one day of an integer time series.
type CountPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// RatePoint is one day of the completion-rate series.
type RatePoint struct {
	Date string  `json:"date"`
	Rate float64 `json:"rate"`
}

// TimePoint is one day of the average-listening-time series (seconds).
type TimePoint struct {
	Date string  `json:"date"`
	Time float64 `json:"time"`
}

// PodcastAnalytics is the full analytics view of a single podcast: four
// time series over every recorded day plus aggregated breakdowns.
type PodcastAnalytics struct {
	Plays                []CountPoint        `json:"plays"`
	UniqueListeners      []CountPoint        `json:"uniqueListeners"`
	CompletionRate       []RatePoint         `json:"completionRate"`
	AverageListeningTime []TimePoint         `json:"averageListeningTime"`
	TopCountries         []MetricCountResult `json:"topCountries"`
	DeviceBreakdown      map[string]int64    `json:"deviceBreakdown"`
	TopReferrers         []MetricCountResult `json:"topReferrers"`
}

// GetPodcastAnalytics loads every daily aggregate for the podcast, ordered
// by day ascending, and reshapes them into time series plus top-N
// breakdowns. No date-range filtering: the full history is returned.
func GetPodcastAnalytics(ctx context.Context, db *gorm.DB, podcastID uint) (*PodcastAnalytics, error) {
	var stats []DailyStat
	if err := db.Where("podcast_id = ?", podcastID).Order("day ASC").Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to load daily stats: %w", err)
	}

	result := &PodcastAnalytics{
		Plays:                make([]CountPoint, len(stats)),
		UniqueListeners:      make([]CountPoint, len(stats)),
		CompletionRate:       make([]RatePoint, len(stats)),
		AverageListeningTime: make([]TimePoint, len(stats)),
	}

	for i, stat := range stats {
		date := stat.Day.Format(dateFormat)
		result.Plays[i] = CountPoint{Date: date, Count: stat.Plays}
		result.UniqueListeners[i] = CountPoint{Date: date, Count: stat.UniqueListeners}
		result.CompletionRate[i] = RatePoint{Date: date, Rate: stat.CompletionRate}
		result.AverageListeningTime[i] = TimePoint{Date: date, Time: stat.AverageListeningTime}
	}

	// The three breakdown queries are independent reads, so they run
	// through a small worker pool.
	pool := async.NewPool(3)
	breakdowns := pool.Execute(ctx, []async.Task{
		{Name: "countries", Run: func() (interface{}, error) {
			return getTopCountries(db, podcastID)
		}},
		{Name: "devices", Run: func() (interface{}, error) {
			return getDeviceBreakdown(db, podcastID)
		}},
		{Name: "referrers", Run: func() (interface{}, error) {
			return getTopReferrers(db, podcastID)
		}},
	})
	if len(breakdowns) < 3 {
		return nil, ctx.Err()
	}

	for name, res := range breakdowns {
		if res.Err != nil {
			return nil, res.Err
		}
		switch name {
		case "countries":
			result.TopCountries = res.Data.([]MetricCountResult)
		case "devices":
			result.DeviceBreakdown = res.Data.(map[string]int64)
		case "referrers":
			result.TopReferrers = res.Data.([]MetricCountResult)
		}
	}

	return result, nil
}

// getTopCountries fetches the top countries by summed count across all days.
// Ties break toward the entry that appeared first (lowest row id).
func getTopCountries(db *gorm.DB, podcastID uint) ([]MetricCountResult, error) {
	var rawResults []struct {
		Country string
		Count   int64
	}

	query := `
    SELECT
        country as country,
        SUM(count) as count
    FROM country_stats
    WHERE podcast_id = ?
    GROUP BY country
    HAVING count > 0
    ORDER BY count DESC, MIN(id) ASC
    LIMIT ?
    `

	err := db.Raw(query, podcastID, topBreakdownLimit).Scan(&rawResults).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching top countries from CountryStat: %w", err)
	}

	results := make([]MetricCountResult, len(rawResults))
	for i, r := range rawResults {
		results[i] = MetricCountResult{Name: r.Country, Count: r.Count}
	}

	return results, nil
}

// getDeviceBreakdown returns the total count per device type. All three
// tracked types are always present, zero when never seen.
func getDeviceBreakdown(db *gorm.DB, podcastID uint) (map[string]int64, error) {
	var rawResults []struct {
		DeviceType string
		Count      int64
	}

	query := `
    SELECT
        device_type as device_type,
        SUM(count) as count
    FROM device_stats
    WHERE podcast_id = ?
    GROUP BY device_type
    `

	err := db.Raw(query, podcastID).Scan(&rawResults).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching device breakdown from DeviceStat: %w", err)
	}

	breakdown := map[string]int64{
		DeviceMobile:  0,
		DeviceDesktop: 0,
		DeviceTablet:  0,
	}
	for _, r := range rawResults {
		breakdown[r.DeviceType] = r.Count
	}

	return breakdown, nil
}

// getTopReferrers fetches the top referrer sources by summed count.
func getTopReferrers(db *gorm.DB, podcastID uint) ([]MetricCountResult, error) {
	var rawResults []struct {
		Source string
		Count  int64
	}

	query := `
    SELECT
        source as source,
        SUM(count) as count
    FROM referrer_stats
    WHERE podcast_id = ?
    GROUP BY source
    HAVING count > 0
    ORDER BY count DESC, MIN(id) ASC
    LIMIT ?
    `

	err := db.Raw(query, podcastID, topBreakdownLimit).Scan(&rawResults).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching top referrers from ReferrerStat: %w", err)
	}

	results := make([]MetricCountResult, len(rawResults))
	for i, r := range rawResults {
		results[i] = MetricCountResult{Name: r.Source, Count: r.Count}
	}

	return results, nil
}
