package v1_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podstream/internal/analytics"
	"podstream/internal/testsupport"
	"podstream/internal/users"
)

func getWithToken(t *testing.T, app *fiber.App, path, token string) *http.Response {
	t.Helper()

	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, 30000)
	require.NoError(t, err)
	return resp
}

func TestGetPodcastAnalyticsHandler(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		resp := getWithToken(t, app, "/api/v1/analytics/podcast/1", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects garbage tokens", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		resp := getWithToken(t, app, "/api/v1/analytics/podcast/1", "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("serves the owner's analytics", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		owner := testsupport.CreateTestUserForAuth(t, db, "owner@example.com", "password", users.RoleCreator)
		podcast := testsupport.CreateTestPodcast(t, db, owner.ID, "My Show")

		now := time.Now().UTC()
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		require.NoError(t, db.Create(&analytics.DailyStat{
			PodcastID: podcast.ID, Day: day, Plays: 4, UniqueListeners: 2,
		}).Error)
		require.NoError(t, db.Create(&analytics.CountryStat{
			PodcastID: podcast.ID, Country: "de", Day: day, Count: 3,
		}).Error)

		app := testsupport.CreateMinimalTestApp(t, db)
		token := testsupport.AuthToken(t, owner)

		resp := getWithToken(t, app, "/api/v1/analytics/podcast/1", token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeJSON(t, resp)

		plays, ok := body["plays"].([]interface{})
		require.True(t, ok)
		require.Len(t, plays, 1)
		point := plays[0].(map[string]interface{})
		assert.Equal(t, day.Format("2006-01-02"), point["date"])
		assert.Equal(t, float64(4), point["count"])

		devices, ok := body["deviceBreakdown"].(map[string]interface{})
		require.True(t, ok)
		assert.Len(t, devices, 3)
		assert.Equal(t, float64(0), devices["mobile"])

		// Country codes come back as display names.
		countries, ok := body["topCountries"].([]interface{})
		require.True(t, ok)
		require.Len(t, countries, 1)
		top := countries[0].(map[string]interface{})
		assert.Equal(t, "Germany", top["name"])
		assert.Equal(t, float64(3), top["count"])
	})

	t.Run("forbids other creators", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		owner := testsupport.CreateTestUserForAuth(t, db, "owner@example.com", "password", users.RoleCreator)
		intruder := testsupport.CreateTestUserForAuth(t, db, "intruder@example.com", "password", users.RoleCreator)
		testsupport.CreateTestPodcast(t, db, owner.ID, "My Show")

		app := testsupport.CreateMinimalTestApp(t, db)
		token := testsupport.AuthToken(t, intruder)

		resp := getWithToken(t, app, "/api/v1/analytics/podcast/1", token)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admins can read any podcast", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		owner := testsupport.CreateTestUserForAuth(t, db, "owner@example.com", "password", users.RoleCreator)
		admin := testsupport.CreateTestUserForAuth(t, db, "admin@example.com", "password", users.RoleAdmin)
		testsupport.CreateTestPodcast(t, db, owner.ID, "My Show")

		app := testsupport.CreateMinimalTestApp(t, db)
		token := testsupport.AuthToken(t, admin)

		resp := getWithToken(t, app, "/api/v1/analytics/podcast/1", token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("returns 404 for unknown podcast", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		user := testsupport.CreateTestUserForAuth(t, db, "user@example.com", "password", users.RoleCreator)
		app := testsupport.CreateMinimalTestApp(t, db)
		token := testsupport.AuthToken(t, user)

		resp := getWithToken(t, app, "/api/v1/analytics/podcast/9999", token)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("returns 400 for invalid podcast id", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		user := testsupport.CreateTestUserForAuth(t, db, "user@example.com", "password", users.RoleCreator)
		app := testsupport.CreateMinimalTestApp(t, db)
		token := testsupport.AuthToken(t, user)

		resp := getWithToken(t, app, "/api/v1/analytics/podcast/abc", token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestExportPodcastAnalyticsHandler(t *testing.T) {
	t.Run("serves a CSV attachment to the owner", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		owner := testsupport.CreateTestUserForAuth(t, db, "owner@example.com", "password", users.RoleCreator)
		podcast := testsupport.CreateTestPodcast(t, db, owner.ID, "My Show")

		now := time.Now().UTC()
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		require.NoError(t, db.Create(&analytics.DailyStat{
			PodcastID: podcast.ID, Day: day, Plays: 4, UniqueListeners: 2,
		}).Error)

		app := testsupport.CreateMinimalTestApp(t, db)
		token := testsupport.AuthToken(t, owner)

		resp := getWithToken(t, app, "/api/v1/analytics/podcast/1/export", token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
		assert.Equal(t, `attachment; filename="podcast-analytics-1.csv"`, resp.Header.Get("Content-Disposition"))
	})

	t.Run("requires authentication", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		resp := getWithToken(t, app, "/api/v1/analytics/podcast/1/export", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestGetUserSummaryHandler(t *testing.T) {
	t.Run("sums the authenticated user's podcasts", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		owner := testsupport.CreateTestUserForAuth(t, db, "owner@example.com", "password", users.RoleCreator)
		first := testsupport.CreateTestPodcast(t, db, owner.ID, "Show A")
		second := testsupport.CreateTestPodcast(t, db, owner.ID, "Show B")

		now := time.Now().UTC()
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		require.NoError(t, db.Create(&analytics.DailyStat{
			PodcastID: first.ID, Day: day, Plays: 10, UniqueListeners: 4,
		}).Error)
		require.NoError(t, db.Create(&analytics.DailyStat{
			PodcastID: second.ID, Day: day, Plays: 3, UniqueListeners: 1,
		}).Error)

		app := testsupport.CreateMinimalTestApp(t, db)
		token := testsupport.AuthToken(t, owner)

		resp := getWithToken(t, app, "/api/v1/analytics/user/summary", token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeJSON(t, resp)
		assert.Equal(t, float64(13), body["totalPlays"])
		assert.Equal(t, float64(5), body["totalUniqueListeners"])
		assert.Equal(t, float64(2), body["podcastCount"])

		top, ok := body["topPodcasts"].([]interface{})
		require.True(t, ok)
		require.Len(t, top, 2)
		assert.Equal(t, "Show A", top[0].(map[string]interface{})["title"])
	})

	t.Run("requires authentication", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		resp := getWithToken(t, app, "/api/v1/analytics/user/summary", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
