package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"podstream/internal/analytics"
	"podstream/internal/testsupport"
)

func day(offset int) time.Time {
	now := time.Now().UTC()
	base := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func seedDailyStats(t *testing.T, db *gorm.DB, stats []analytics.DailyStat) {
	t.Helper()
	require.NoError(t, db.CreateInBatches(stats, 50).Error)
}

func TestGetPodcastAnalyticsEmpty(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)

	result, err := analytics.GetPodcastAnalytics(context.Background(), dbManager.GetConnection(), 42)
	require.NoError(t, err)

	assert.Empty(t, result.Plays)
	assert.Empty(t, result.UniqueListeners)
	assert.Empty(t, result.CompletionRate)
	assert.Empty(t, result.AverageListeningTime)
	assert.Empty(t, result.TopCountries)
	assert.Empty(t, result.TopReferrers)

	// Device breakdown is always fully populated.
	assert.Equal(t, map[string]int64{
		analytics.DeviceMobile:  0,
		analytics.DeviceDesktop: 0,
		analytics.DeviceTablet:  0,
	}, result.DeviceBreakdown)
}

func TestGetPodcastAnalyticsTimeSeries(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	seedDailyStats(t, db, []analytics.DailyStat{
		{PodcastID: 1, Day: day(-1), Plays: 5, UniqueListeners: 3, CompletionRate: 80, AverageListeningTime: 1200},
		{PodcastID: 1, Day: day(-3), Plays: 2, UniqueListeners: 1, CompletionRate: 50, AverageListeningTime: 600},
		{PodcastID: 2, Day: day(-1), Plays: 99, UniqueListeners: 99},
	})

	result, err := analytics.GetPodcastAnalytics(context.Background(), db, 1)
	require.NoError(t, err)

	require.Len(t, result.Plays, 2)

	// Days come back ascending regardless of insertion order.
	assert.Equal(t, day(-3).Format("2006-01-02"), result.Plays[0].Date)
	assert.Equal(t, 2, result.Plays[0].Count)
	assert.Equal(t, day(-1).Format("2006-01-02"), result.Plays[1].Date)
	assert.Equal(t, 5, result.Plays[1].Count)

	require.Len(t, result.UniqueListeners, 2)
	assert.Equal(t, 1, result.UniqueListeners[0].Count)
	assert.Equal(t, 3, result.UniqueListeners[1].Count)

	require.Len(t, result.CompletionRate, 2)
	assert.InDelta(t, 50.0, result.CompletionRate[0].Rate, 0.0001)
	assert.InDelta(t, 80.0, result.CompletionRate[1].Rate, 0.0001)

	require.Len(t, result.AverageListeningTime, 2)
	assert.InDelta(t, 600.0, result.AverageListeningTime[0].Time, 0.0001)
	assert.InDelta(t, 1200.0, result.AverageListeningTime[1].Time, 0.0001)
}

func TestGetPodcastAnalyticsTopCountries(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	// Six countries: only the top five make the cut, summed across days.
	rows := []analytics.CountryStat{
		{PodcastID: 1, Country: "us", Day: day(-2), Count: 4},
		{PodcastID: 1, Country: "us", Day: day(-1), Count: 6},
		{PodcastID: 1, Country: "de", Day: day(-1), Count: 8},
		{PodcastID: 1, Country: "fr", Day: day(-1), Count: 5},
		{PodcastID: 1, Country: "br", Day: day(-1), Count: 3},
		{PodcastID: 1, Country: "jp", Day: day(-1), Count: 2},
		{PodcastID: 1, Country: "es", Day: day(-1), Count: 1},
		{PodcastID: 2, Country: "nl", Day: day(-1), Count: 50},
	}
	require.NoError(t, db.CreateInBatches(rows, 50).Error)

	result, err := analytics.GetPodcastAnalytics(context.Background(), db, 1)
	require.NoError(t, err)

	require.Len(t, result.TopCountries, 5)
	assert.Equal(t, analytics.MetricCountResult{Name: "us", Count: 10}, result.TopCountries[0])
	assert.Equal(t, analytics.MetricCountResult{Name: "de", Count: 8}, result.TopCountries[1])
	assert.Equal(t, analytics.MetricCountResult{Name: "fr", Count: 5}, result.TopCountries[2])
	assert.Equal(t, analytics.MetricCountResult{Name: "br", Count: 3}, result.TopCountries[3])
	assert.Equal(t, analytics.MetricCountResult{Name: "jp", Count: 2}, result.TopCountries[4])
}

func TestGetPodcastAnalyticsTieBreaksByFirstSeen(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	// Equal counts: the source inserted first wins the higher rank.
	rows := []analytics.ReferrerStat{
		{PodcastID: 1, Source: "spotify", Day: day(-1), Count: 3},
		{PodcastID: 1, Source: "apple", Day: day(-1), Count: 3},
	}
	require.NoError(t, db.CreateInBatches(rows, 50).Error)

	result, err := analytics.GetPodcastAnalytics(context.Background(), db, 1)
	require.NoError(t, err)

	require.Len(t, result.TopReferrers, 2)
	assert.Equal(t, "spotify", result.TopReferrers[0].Name)
	assert.Equal(t, "apple", result.TopReferrers[1].Name)
}

func TestGetPodcastAnalyticsDeviceBreakdown(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	rows := []analytics.DeviceStat{
		{PodcastID: 1, DeviceType: analytics.DeviceMobile, Day: day(-2), Count: 4},
		{PodcastID: 1, DeviceType: analytics.DeviceMobile, Day: day(-1), Count: 2},
		{PodcastID: 1, DeviceType: analytics.DeviceTablet, Day: day(-1), Count: 1},
	}
	require.NoError(t, db.CreateInBatches(rows, 50).Error)

	result, err := analytics.GetPodcastAnalytics(context.Background(), db, 1)
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{
		analytics.DeviceMobile:  6,
		analytics.DeviceDesktop: 0,
		analytics.DeviceTablet:  1,
	}, result.DeviceBreakdown)
}

func TestGetPodcastAnalyticsDeviceBreakdownKeepsFixedShape(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventDemographic,
		Data: analytics.EventPayload{Device: "smartwatch"},
	})
	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventDemographic,
		Data: analytics.EventPayload{Device: analytics.DeviceMobile},
	})

	result, err := analytics.GetPodcastAnalytics(context.Background(), db, 1)
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{
		analytics.DeviceMobile:  1,
		analytics.DeviceDesktop: 0,
		analytics.DeviceTablet:  0,
	}, result.DeviceBreakdown)
}
