package analytics

import (
	"fmt"

	"gorm.io/gorm"
)

// PodcastSummary is one row of the cross-podcast ranking.
type PodcastSummary struct {
	PodcastID       uint   `json:"podcastId"`
	Title           string `json:"title"`
	Plays           int64  `json:"plays"`
	UniqueListeners int64  `json:"uniqueListeners"`
}

// UserAnalytics aggregates plays across all podcasts owned by one user.
type UserAnalytics struct {
	TotalPlays           int64            `json:"totalPlays"`
	TotalUniqueListeners int64            `json:"totalUniqueListeners"`
	PodcastCount         int64            `json:"podcastCount"`
	TopPodcasts          []PodcastSummary `json:"topPodcasts"`
}

// GetUserAnalytics sums daily aggregates over every podcast the user owns
// and ranks the top podcasts by total plays. Podcasts without any
// recorded activity still count toward PodcastCount.
func GetUserAnalytics(db *gorm.DB, userID uint) (*UserAnalytics, error) {
	result := &UserAnalytics{TopPodcasts: []PodcastSummary{}}

	err := db.Raw(`
    SELECT COUNT(*) FROM podcasts WHERE user_id = ?
    `, userID).Scan(&result.PodcastCount).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count podcasts for user %d: %w", userID, err)
	}

	var totals struct {
		Plays           int64
		UniqueListeners int64
	}
	err = db.Raw(`
    SELECT
        COALESCE(SUM(ds.plays), 0) as plays,
        COALESCE(SUM(ds.unique_listeners), 0) as unique_listeners
    FROM daily_stats ds
    INNER JOIN podcasts p ON p.id = ds.podcast_id
    WHERE p.user_id = ?
    `, userID).Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum analytics totals for user %d: %w", userID, err)
	}
	result.TotalPlays = totals.Plays
	result.TotalUniqueListeners = totals.UniqueListeners

	var rows []PodcastSummary
	err = db.Raw(`
    SELECT
        p.id as podcast_id,
        p.title as title,
        COALESCE(SUM(ds.plays), 0) as plays,
        COALESCE(SUM(ds.unique_listeners), 0) as unique_listeners
    FROM daily_stats ds
    INNER JOIN podcasts p ON p.id = ds.podcast_id
    WHERE p.user_id = ?
    GROUP BY p.id, p.title
    ORDER BY plays DESC, p.id ASC
    LIMIT ?
    `, userID, topBreakdownLimit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank podcasts for user %d: %w", userID, err)
	}
	if rows != nil {
		result.TopPodcasts = rows
	}

	return result, nil
}
