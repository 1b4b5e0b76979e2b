package analytics

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"podstream/internal/podcasts"
)

var exportHeader = []string{
	"podcastId", "title", "plays", "uniqueListeners",
	"averageListeningTime", "completionRate", "date",
}

// ExportCSV renders the podcast's full daily-aggregate history as CSV,
// one row per recorded day plus a header row. The podcast title is
// repeated on every row so the file is self-describing.
func ExportCSV(db *gorm.DB, podcastID uint) ([]byte, error) {
	podcast, err := podcasts.GetPodcastByID(db, podcastID)
	if err != nil {
		return nil, err
	}

	var stats []DailyStat
	if err := db.Where("podcast_id = ?", podcastID).Order("day ASC").Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to load daily stats for export: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	id := strconv.FormatUint(uint64(podcastID), 10)
	for _, stat := range stats {
		row := []string{
			id,
			podcast.Title,
			strconv.Itoa(stat.Plays),
			strconv.Itoa(stat.UniqueListeners),
			strconv.FormatFloat(stat.AverageListeningTime, 'f', -1, 64),
			strconv.FormatFloat(stat.CompletionRate, 'f', -1, 64),
			stat.Day.Format(dateFormat),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return buf.Bytes(), nil
}
