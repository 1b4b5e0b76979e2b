package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podstream/internal/analytics"
	"podstream/internal/testsupport"
)

func floatPtr(v float64) *float64 { return &v }

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func loadDailyStat(t *testing.T, dbManager *testsupport.TestDBManager, podcastID uint) analytics.DailyStat {
	t.Helper()
	var stat analytics.DailyStat
	err := dbManager.GetConnection().
		Where("podcast_id = ? AND day = ?", podcastID, today()).
		First(&stat).Error
	require.NoError(t, err)
	return stat
}

func TestRecordEventValidation(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	err := analytics.RecordEvent(dbManager, logger, &analytics.RecordEventInput{
		Event: analytics.EventPlay,
	})
	assert.ErrorIs(t, err, analytics.ErrMissingPodcastID)

	err = analytics.RecordEvent(dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1,
	})
	assert.ErrorIs(t, err, analytics.ErrMissingEventType)
}

func TestRecordEventUnknownTypeIsNoOp(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	err := analytics.RecordEvent(dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1,
		Event:     analytics.EventType("buffering"),
	})
	require.NoError(t, err)

	var count int64
	dbManager.GetConnection().Model(&analytics.DailyStat{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestRecordPlayIncrementsCounters(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	// Two identified plays and one anonymous play.
	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventPlay,
		Data: analytics.EventPayload{UserID: "listener-1"},
	})
	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventPlay,
		Data: analytics.EventPayload{DeviceID: "device-9"},
	})
	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventPlay,
	})

	stat := loadDailyStat(t, dbManager, 1)
	assert.Equal(t, 3, stat.Plays)
	assert.Equal(t, 2, stat.UniqueListeners)
	assert.Equal(t, float64(0), stat.CompletionRate)
}

func TestRecordPlaySameListenerCountedTwice(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	// Identified plays are tallied per event, not per distinct listener.
	for i := 0; i < 2; i++ {
		testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
			PodcastID: 1, Event: analytics.EventPlay,
			Data: analytics.EventPayload{UserID: "listener-1"},
		})
	}

	stat := loadDailyStat(t, dbManager, 1)
	assert.Equal(t, 2, stat.Plays)
	assert.Equal(t, 2, stat.UniqueListeners)
}

func TestRecordCompleteFoldsHundredPercent(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventPlay,
	})
	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventComplete,
	})

	stat := loadDailyStat(t, dbManager, 1)
	assert.InDelta(t, 100.0, stat.CompletionRate, 0.0001)
}

func TestCompletionRateWeightedByPlays(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	// First play, partial at 50% seeds the average.
	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventPlay,
	})
	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventPartial,
		Data: analytics.EventPayload{Percentage: floatPtr(50)},
	})

	stat := loadDailyStat(t, dbManager, 1)
	assert.InDelta(t, 50.0, stat.CompletionRate, 0.0001)

	// Second play, then complete: (50*1 + 100) / 2 = 75.
	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventPlay,
	})
	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventComplete,
	})

	stat = loadDailyStat(t, dbManager, 1)
	assert.InDelta(t, 75.0, stat.CompletionRate, 0.0001)
}

func TestPartialWithListeningTime(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventPlay,
	})
	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventPartial,
		Data: analytics.EventPayload{
			Percentage:    floatPtr(40),
			ListeningTime: floatPtr(600),
		},
	})

	stat := loadDailyStat(t, dbManager, 1)
	assert.InDelta(t, 40.0, stat.CompletionRate, 0.0001)
	assert.InDelta(t, 600.0, stat.AverageListeningTime, 0.0001)

	// Second play, new listening sample folds in weighted by play count:
	// (600*1 + 300) / 2 = 450.
	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventPlay,
	})
	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventPartial,
		Data: analytics.EventPayload{ListeningTime: floatPtr(300)},
	})

	stat = loadDailyStat(t, dbManager, 1)
	assert.InDelta(t, 450.0, stat.AverageListeningTime, 0.0001)
}

func TestPartialWithoutSamplesCreatesRow(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventPartial,
	})

	var count int64
	dbManager.GetConnection().Model(&analytics.DailyStat{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestCompleteBeforeAnyPlaySeedsAverage(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	// With zero plays the sample seeds the average outright.
	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventComplete,
	})

	stat := loadDailyStat(t, dbManager, 1)
	assert.Equal(t, 0, stat.Plays)
	assert.InDelta(t, 100.0, stat.CompletionRate, 0.0001)
}

func TestRecordDemographicTallies(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	for i := 0; i < 2; i++ {
		testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
			PodcastID: 1, Event: analytics.EventDemographic,
			Data: analytics.EventPayload{
				Country:  "de",
				Device:   analytics.DeviceMobile,
				Referrer: "spotify",
			},
		})
	}
	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventDemographic,
		Data: analytics.EventPayload{
			Country: "us",
			Device:  analytics.DeviceDesktop,
		},
	})

	var de analytics.CountryStat
	require.NoError(t, db.Where("podcast_id = ? AND country = ?", 1, "de").First(&de).Error)
	assert.Equal(t, 2, de.Count)

	var us analytics.CountryStat
	require.NoError(t, db.Where("podcast_id = ? AND country = ?", 1, "us").First(&us).Error)
	assert.Equal(t, 1, us.Count)

	var mobile analytics.DeviceStat
	require.NoError(t, db.Where("podcast_id = ? AND device_type = ?", 1, analytics.DeviceMobile).First(&mobile).Error)
	assert.Equal(t, 2, mobile.Count)

	var spotify analytics.ReferrerStat
	require.NoError(t, db.Where("podcast_id = ? AND source = ?", 1, "spotify").First(&spotify).Error)
	assert.Equal(t, 2, spotify.Count)

	// Demographic events never touch the daily play counters.
	var dailyCount int64
	db.Model(&analytics.DailyStat{}).Count(&dailyCount)
	assert.Equal(t, int64(0), dailyCount)
}

func TestRecordDemographicDeviceFromUserAgent(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventDemographic,
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
	})

	var mobile analytics.DeviceStat
	require.NoError(t, db.Where("podcast_id = ? AND device_type = ?", 1, analytics.DeviceMobile).First(&mobile).Error)
	assert.Equal(t, 1, mobile.Count)
}

func TestRecordDemographicRejectsUnknownDevice(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventDemographic,
		Data: analytics.EventPayload{Device: "smartwatch", Country: "de"},
	})

	// The country still tallies, but the untracked device type does not.
	var de analytics.CountryStat
	require.NoError(t, db.Where("podcast_id = ? AND country = ?", 1, "de").First(&de).Error)

	var deviceCount int64
	db.Model(&analytics.DeviceStat{}).Count(&deviceCount)
	assert.Equal(t, int64(0), deviceCount)
}

func TestRecordDemographicUnknownDeviceFallsBackToUserAgent(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventDemographic,
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
		Data:      analytics.EventPayload{Device: "smartwatch"},
	})

	var mobile analytics.DeviceStat
	require.NoError(t, db.Where("podcast_id = ? AND device_type = ?", 1, analytics.DeviceMobile).First(&mobile).Error)
	assert.Equal(t, 1, mobile.Count)

	var total int64
	db.Model(&analytics.DeviceStat{}).Count(&total)
	assert.Equal(t, int64(1), total)
}

func TestRecordDemographicNormalizesDeviceCasing(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	testsupport.RecordTestEvent(t, dbManager, logger, &analytics.RecordEventInput{
		PodcastID: 1, Event: analytics.EventDemographic,
		Data: analytics.EventPayload{Device: " Tablet "},
	})

	var tablet analytics.DeviceStat
	require.NoError(t, db.Where("podcast_id = ? AND device_type = ?", 1, analytics.DeviceTablet).First(&tablet).Error)
	assert.Equal(t, 1, tablet.Count)
}
