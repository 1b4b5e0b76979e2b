package analytics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podstream/internal/analytics"
	"podstream/internal/testsupport"
)

func TestGetUserAnalyticsEmpty(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	user := testsupport.CreateTestUser(db, "empty@podstream.local", "password")

	result, err := analytics.GetUserAnalytics(db, user.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.PodcastCount)
	assert.Equal(t, int64(0), result.TotalPlays)
	assert.Equal(t, int64(0), result.TotalUniqueListeners)
	assert.Empty(t, result.TopPodcasts)
	assert.NotNil(t, result.TopPodcasts)
}

func TestGetUserAnalyticsTotalsAndRanking(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	owner := testsupport.CreateTestUser(db, "owner@podstream.local", "password")
	other := testsupport.CreateTestUser(db, "other@podstream.local", "password")

	first := testsupport.CreateTestPodcast(t, db, owner.ID, "Morning Brief")
	second := testsupport.CreateTestPodcast(t, db, owner.ID, "Deep Dive")
	// Owned but never played: counts toward PodcastCount only.
	testsupport.CreateTestPodcast(t, db, owner.ID, "Silent Show")
	foreign := testsupport.CreateTestPodcast(t, db, other.ID, "Not Mine")

	seedDailyStats(t, db, []analytics.DailyStat{
		{PodcastID: first.ID, Day: day(-2), Plays: 10, UniqueListeners: 4},
		{PodcastID: first.ID, Day: day(-1), Plays: 5, UniqueListeners: 2},
		{PodcastID: second.ID, Day: day(-1), Plays: 20, UniqueListeners: 9},
		{PodcastID: foreign.ID, Day: day(-1), Plays: 100, UniqueListeners: 100},
	})

	result, err := analytics.GetUserAnalytics(db, owner.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.PodcastCount)
	assert.Equal(t, int64(35), result.TotalPlays)
	assert.Equal(t, int64(15), result.TotalUniqueListeners)

	require.Len(t, result.TopPodcasts, 2)
	assert.Equal(t, analytics.PodcastSummary{
		PodcastID:       second.ID,
		Title:           "Deep Dive",
		Plays:           20,
		UniqueListeners: 9,
	}, result.TopPodcasts[0])
	assert.Equal(t, analytics.PodcastSummary{
		PodcastID:       first.ID,
		Title:           "Morning Brief",
		Plays:           15,
		UniqueListeners: 6,
	}, result.TopPodcasts[1])
}

func TestGetUserAnalyticsRankingLimit(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	owner := testsupport.CreateTestUser(db, "prolific@podstream.local", "password")

	var stats []analytics.DailyStat
	for i := 0; i < 7; i++ {
		p := testsupport.CreateTestPodcast(t, db, owner.ID, "Show")
		stats = append(stats, analytics.DailyStat{
			PodcastID: p.ID, Day: day(-1), Plays: 10 + i, UniqueListeners: 1,
		})
	}
	seedDailyStats(t, db, stats)

	result, err := analytics.GetUserAnalytics(db, owner.ID)
	require.NoError(t, err)

	require.Len(t, result.TopPodcasts, 5)
	assert.Equal(t, int64(16), result.TopPodcasts[0].Plays)
	assert.Equal(t, int64(12), result.TopPodcasts[4].Plays)
}
