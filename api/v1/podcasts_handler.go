package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"podstream/internal/http/middleware"
	"podstream/internal/podcasts"
)

type PodcastParams struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	CoverURL    string `json:"coverUrl"`
	IsPublished *bool  `json:"isPublished"`
}

type EpisodeParams struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	AudioURL    string  `json:"audioUrl"`
	Duration    float64 `json:"duration"`
}

// ListPodcastsHandler lists published podcasts, optionally filtered by the
// category query parameter.
func ListPodcastsHandler(ctx *cartridge.Context) error {
	category := strings.TrimSpace(ctx.Query("category"))

	result, err := podcasts.GetPublishedPodcasts(ctx.DB(), category)
	if err != nil {
		ctx.Logger.Error("Failed to list podcasts", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list podcasts",
		})
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{"podcasts": result})
}

// ListMyPodcastsHandler lists every podcast owned by the authenticated
// user, published or not.
func ListMyPodcastsHandler(ctx *cartridge.Context) error {
	user := middleware.CurrentUser(ctx.Ctx)
	if user == nil {
		return ctx.Status(http.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	result, err := podcasts.GetPodcastsByUser(ctx.DB(), user.ID)
	if err != nil {
		ctx.Logger.Error("Failed to list user podcasts",
			slog.Uint64("user_id", uint64(user.ID)),
			slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list podcasts",
		})
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{"podcasts": result})
}

// CreatePodcastHandler creates a podcast owned by the authenticated user.
func CreatePodcastHandler(ctx *cartridge.Context) error {
	user := middleware.CurrentUser(ctx.Ctx)
	if user == nil {
		return ctx.Status(http.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var params PodcastParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
		})
	}

	if strings.TrimSpace(params.Title) == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Title is required",
		})
	}

	podcast := &podcasts.Podcast{
		UserID:      user.ID,
		Title:       params.Title,
		Description: params.Description,
		Category:    params.Category,
		CoverURL:    params.CoverURL,
	}
	if params.IsPublished != nil {
		podcast.IsPublished = *params.IsPublished
	}

	if err := podcasts.CreatePodcast(ctx.DB(), podcast); err != nil {
		ctx.Logger.Error("Failed to create podcast", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create podcast",
		})
	}

	return ctx.Status(http.StatusCreated).JSON(podcast)
}

// GetPodcastHandler returns one podcast. Unpublished podcasts are only
// visible to their owner or an admin.
func GetPodcastHandler(ctx *cartridge.Context) error {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid podcast ID",
		})
	}

	podcast, err := podcasts.GetPodcastByID(ctx.DB(), uint(id))
	if err != nil {
		var notFound *podcasts.PodcastNotFoundError
		if errors.As(err, &notFound) {
			return ctx.Status(http.StatusNotFound).JSON(fiber.Map{
				"error": "Podcast not found",
			})
		}
		ctx.Logger.Error("Failed to get podcast", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get podcast",
		})
	}

	if !podcast.IsPublished {
		user := middleware.CurrentUser(ctx.Ctx)
		if user == nil || (!podcast.IsOwnedBy(user.ID) && !user.IsAdmin()) {
			return ctx.Status(http.StatusNotFound).JSON(fiber.Map{
				"error": "Podcast not found",
			})
		}
	}

	return ctx.Status(http.StatusOK).JSON(podcast)
}

// UpdatePodcastHandler updates podcast metadata. Owner or admin only.
func UpdatePodcastHandler(ctx *cartridge.Context) error {
	podcast, err := resolvePodcastAccess(ctx)
	if err != nil {
		return handleAccessError(ctx, err)
	}

	var params PodcastParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
		})
	}

	if params.Title != "" {
		podcast.Title = params.Title
	}
	if params.Description != "" {
		podcast.Description = params.Description
	}
	if params.Category != "" {
		podcast.Category = params.Category
	}
	if params.CoverURL != "" {
		podcast.CoverURL = params.CoverURL
	}
	if params.IsPublished != nil {
		podcast.IsPublished = *params.IsPublished
	}

	if err := podcasts.UpdatePodcast(ctx.DB(), podcast); err != nil {
		ctx.Logger.Error("Failed to update podcast",
			slog.Uint64("podcast_id", uint64(podcast.ID)),
			slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update podcast",
		})
	}

	return ctx.Status(http.StatusOK).JSON(podcast)
}

// DeletePodcastHandler removes a podcast. Owner or admin only.
func DeletePodcastHandler(ctx *cartridge.Context) error {
	podcast, err := resolvePodcastAccess(ctx)
	if err != nil {
		return handleAccessError(ctx, err)
	}

	if err := podcasts.DeletePodcast(ctx.DB(), podcast.ID); err != nil {
		ctx.Logger.Error("Failed to delete podcast",
			slog.Uint64("podcast_id", uint64(podcast.ID)),
			slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete podcast",
		})
	}

	return ctx.SendStatus(http.StatusNoContent)
}

// ListEpisodesHandler lists the episodes of one podcast, newest first.
func ListEpisodesHandler(ctx *cartridge.Context) error {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid podcast ID",
		})
	}

	episodes, err := podcasts.GetEpisodesByPodcast(ctx.DB(), uint(id))
	if err != nil {
		ctx.Logger.Error("Failed to list episodes", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list episodes",
		})
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{"episodes": episodes})
}

// CreateEpisodeHandler adds an episode to a podcast. Owner or admin only.
func CreateEpisodeHandler(ctx *cartridge.Context) error {
	podcast, err := resolvePodcastAccess(ctx)
	if err != nil {
		return handleAccessError(ctx, err)
	}

	var params EpisodeParams
	if err := ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
		})
	}

	if strings.TrimSpace(params.Title) == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Title is required",
		})
	}

	episode := &podcasts.Episode{
		PodcastID:   podcast.ID,
		Title:       params.Title,
		Description: params.Description,
		AudioURL:    params.AudioURL,
		Duration:    int(params.Duration),
	}

	if err := podcasts.CreateEpisode(ctx.DB(), episode); err != nil {
		ctx.Logger.Error("Failed to create episode",
			slog.Uint64("podcast_id", uint64(podcast.ID)),
			slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create episode",
		})
	}

	return ctx.Status(http.StatusCreated).JSON(episode)
}
