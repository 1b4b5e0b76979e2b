// Package seeder populates the database with sample podcasts and
// listening activity for local development.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/karloscodes/cartridge"

	"podstream/internal/analytics"
	"podstream/internal/podcasts"
	"podstream/internal/users"
)

const seedUserEmail = "demo@podstream.local"

// Seeder handles the data seeding process.
type Seeder struct {
	DBManager  cartridge.DBManager
	Logger     *slog.Logger
	EventCount int
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, eventCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:  dbManager,
		Logger:     logger,
		EventCount: eventCount,
	}
}

var samplePodcasts = []struct {
	Title    string
	Category string
	Episodes int
}{
	{"Morning Signal", "news", 5},
	{"Deep Dive Engineering", "technology", 8},
	{"The Long Run", "sports", 4},
	{"Quiet History", "education", 6},
}

var sampleCountries = []string{"us", "de", "gb", "fr", "es", "br", "jp", "in"}
var sampleDevices = []string{"mobile", "mobile", "desktop", "tablet"}
var sampleReferrers = []string{"spotify", "apple_podcasts", "web", "rss", "newsletter"}

// Run seeds a demo creator, a small catalog and EventCount listening events.
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Seeding database...", slog.Int("eventCount", s.EventCount))

	db := s.DBManager.GetConnection()

	user, err := users.FindByEmail(db, seedUserEmail)
	if err != nil {
		user, err = users.CreateUser(db, seedUserEmail, "Demo Creator", "password123", users.RoleCreator)
		if err != nil {
			return fmt.Errorf("failed to create seed user: %w", err)
		}
	}

	created := make([]*podcasts.Podcast, 0, len(samplePodcasts))
	for _, sample := range samplePodcasts {
		podcast := &podcasts.Podcast{
			UserID:      user.ID,
			Title:       sample.Title,
			Description: fmt.Sprintf("Sample feed for %s.", sample.Title),
			Category:    sample.Category,
			IsPublished: true,
		}
		if err := podcasts.CreatePodcast(db, podcast); err != nil {
			return fmt.Errorf("failed to create podcast %q: %w", sample.Title, err)
		}
		for i := 1; i <= sample.Episodes; i++ {
			episode := &podcasts.Episode{
				PodcastID: podcast.ID,
				Title:     fmt.Sprintf("%s - Episode %d", sample.Title, i),
				AudioURL:  fmt.Sprintf("https://cdn.podstream.local/%d/ep%d.mp3", podcast.ID, i),
				Duration:  900 + rand.IntN(2400),
			}
			if err := podcasts.CreateEpisode(db, episode); err != nil {
				return fmt.Errorf("failed to create episode: %w", err)
			}
		}
		created = append(created, podcast)
	}

	for i := 0; i < s.EventCount; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.seedEvent(created[rand.IntN(len(created))].ID); err != nil {
			return err
		}
	}

	s.Logger.Info("Seeding completed",
		slog.Int("podcasts", len(created)),
		slog.Int("events", s.EventCount),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// seedEvent records one play plus, with decreasing probability, the
// follow-up events a real listening session would emit.
func (s *Seeder) seedEvent(podcastID uint) error {
	userID := ""
	if rand.IntN(100) < 70 {
		userID = fmt.Sprintf("listener-%d", rand.IntN(500))
	}

	play := &analytics.RecordEventInput{
		PodcastID: podcastID,
		Event:     analytics.EventPlay,
		Data:      analytics.EventPayload{UserID: userID},
	}
	if err := analytics.RecordEvent(s.DBManager, s.Logger, play); err != nil {
		return fmt.Errorf("failed to seed play event: %w", err)
	}

	roll := rand.IntN(100)
	switch {
	case roll < 30:
		if err := analytics.RecordEvent(s.DBManager, s.Logger, &analytics.RecordEventInput{
			PodcastID: podcastID,
			Event:     analytics.EventComplete,
		}); err != nil {
			return fmt.Errorf("failed to seed complete event: %w", err)
		}
	case roll < 75:
		pct := float64(10 + rand.IntN(85))
		listening := pct * float64(15+rand.IntN(20))
		if err := analytics.RecordEvent(s.DBManager, s.Logger, &analytics.RecordEventInput{
			PodcastID: podcastID,
			Event:     analytics.EventPartial,
			Data: analytics.EventPayload{
				Percentage:    &pct,
				ListeningTime: &listening,
			},
		}); err != nil {
			return fmt.Errorf("failed to seed partial event: %w", err)
		}
	}

	demographic := &analytics.RecordEventInput{
		PodcastID: podcastID,
		Event:     analytics.EventDemographic,
		Data: analytics.EventPayload{
			Country:  sampleCountries[rand.IntN(len(sampleCountries))],
			Device:   sampleDevices[rand.IntN(len(sampleDevices))],
			Referrer: sampleReferrers[rand.IntN(len(sampleReferrers))],
		},
	}
	if err := analytics.RecordEvent(s.DBManager, s.Logger, demographic); err != nil {
		return fmt.Errorf("failed to seed demographic event: %w", err)
	}

	return nil
}
