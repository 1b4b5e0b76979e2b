package podcasts

import (
	"fmt"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// PodcastNotFoundError represents an error when a podcast is not found
type PodcastNotFoundError struct {
	ID uint
}

func (e *PodcastNotFoundError) Error() string {
	return fmt.Sprintf("podcast not found: %d", e.ID)
}

// NewPodcastNotFoundError creates a new PodcastNotFoundError
func NewPodcastNotFoundError(id uint) *PodcastNotFoundError {
	return &PodcastNotFoundError{ID: id}
}

// Podcast represents a hosted podcast owned by a creator
type Podcast struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"index" json:"category"`
	CoverURL    string    `json:"cover_url"`
	IsPublished bool      `gorm:"default:false;index" json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Episode represents one uploaded audio episode of a podcast. The audio file
// itself lives on the media CDN; only its URL is stored here.
type Episode struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PodcastID   uint      `gorm:"index;not null" json:"podcast_id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	AudioURL    string    `gorm:"not null" json:"audio_url"`
	Duration    int       `json:"duration"` // seconds
	CreatedAt   time.Time `json:"created_at"`
}

// IsOwnedBy reports whether the podcast belongs to the given user.
func (p *Podcast) IsOwnedBy(userID uint) bool {
	return p.UserID == userID
}

// GetPodcastByID retrieves a podcast by its ID, returning a typed not-found error.
func GetPodcastByID(db *gorm.DB, id uint) (*Podcast, error) {
	var podcast Podcast
	if err := db.First(&podcast, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewPodcastNotFoundError(id)
		}
		return nil, fmt.Errorf("unexpected error querying podcast: %w", err)
	}
	return &podcast, nil
}

// GetPodcastsByUser retrieves all podcasts owned by a user.
func GetPodcastsByUser(db *gorm.DB, userID uint) ([]Podcast, error) {
	var list []Podcast
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to get podcasts for user: %w", err)
	}
	return list, nil
}

// GetPublishedPodcasts retrieves published podcasts, optionally filtered by category.
func GetPublishedPodcasts(db *gorm.DB, category string) ([]Podcast, error) {
	query := db.Where("is_published = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var list []Podcast
	if err := query.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to get podcasts: %w", err)
	}
	return list, nil
}

// CreatePodcast creates a new podcast
func CreatePodcast(db *gorm.DB, podcast *Podcast) error {
	podcast.CreatedAt = time.Now().UTC()

	logger := slog.Default()
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(podcast).Error
	})
}

// UpdatePodcast updates an existing podcast
func UpdatePodcast(db *gorm.DB, podcast *Podcast) error {
	logger := slog.Default()
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Save(podcast).Error
	})
}

// DeletePodcast deletes a podcast by its ID
func DeletePodcast(db *gorm.DB, id uint) error {
	logger := slog.Default()
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		result := tx.Delete(&Podcast{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// CreateEpisode adds an episode to a podcast.
func CreateEpisode(db *gorm.DB, episode *Episode) error {
	episode.CreatedAt = time.Now().UTC()

	logger := slog.Default()
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(episode).Error
	})
}

// GetEpisodesByPodcast retrieves all episodes for a podcast, newest first.
func GetEpisodesByPodcast(db *gorm.DB, podcastID uint) ([]Episode, error) {
	var list []Episode
	if err := db.Where("podcast_id = ?", podcastID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to get episodes: %w", err)
	}
	return list, nil
}

// CountByUser returns the number of podcasts owned by a user.
func CountByUser(db *gorm.DB, userID uint) (int64, error) {
	var count int64
	err := db.Model(&Podcast{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
