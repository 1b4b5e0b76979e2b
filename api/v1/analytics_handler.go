package v1

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"podstream/internal/analytics"
	"podstream/internal/http/middleware"
	"podstream/internal/podcasts"
)

// PodcastAnalyticsResponse is the JSON shape of the per-podcast analytics
// endpoint. Country codes are expanded to display names for presentation.
type PodcastAnalyticsResponse struct {
	Plays                []analytics.CountPoint        `json:"plays"`
	UniqueListeners      []analytics.CountPoint        `json:"uniqueListeners"`
	CompletionRate       []analytics.RatePoint         `json:"completionRate"`
	AverageListeningTime []analytics.TimePoint         `json:"averageListeningTime"`
	TopCountries         []analytics.MetricCountResult `json:"topCountries"`
	DeviceBreakdown      map[string]int64              `json:"deviceBreakdown"`
	TopReferrers         []analytics.MetricCountResult `json:"topReferrers"`
}

// GetPodcastAnalyticsHandler serves the analytics view of one podcast.
// Only the podcast owner or an admin may read it.
func GetPodcastAnalyticsHandler(ctx *cartridge.Context) error {
	podcast, err := resolvePodcastAccess(ctx)
	if err != nil {
		return handleAccessError(ctx, err)
	}

	result, err := analytics.GetPodcastAnalytics(ctx.Context(), ctx.DB(), podcast.ID)
	if err != nil {
		ctx.Logger.Error("Failed to load podcast analytics",
			slog.Uint64("podcast_id", uint64(podcast.ID)),
			slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load analytics",
		})
	}

	return ctx.Status(http.StatusOK).JSON(PodcastAnalyticsResponse{
		Plays:                result.Plays,
		UniqueListeners:      result.UniqueListeners,
		CompletionRate:       result.CompletionRate,
		AverageListeningTime: result.AverageListeningTime,
		TopCountries:         convertCountryStats(result.TopCountries),
		DeviceBreakdown:      result.DeviceBreakdown,
		TopReferrers:         result.TopReferrers,
	})
}

// GetUserSummaryHandler serves aggregate totals across every podcast the
// authenticated user owns.
func GetUserSummaryHandler(ctx *cartridge.Context) error {
	user := middleware.CurrentUser(ctx.Ctx)
	if user == nil {
		return ctx.Status(http.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	summary, err := analytics.GetUserAnalytics(ctx.DB(), user.ID)
	if err != nil {
		ctx.Logger.Error("Failed to load user analytics summary",
			slog.Uint64("user_id", uint64(user.ID)),
			slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load analytics summary",
		})
	}

	return ctx.Status(http.StatusOK).JSON(summary)
}

// ExportPodcastAnalyticsHandler streams the podcast's daily aggregates as
// a CSV attachment. Same access rule as the analytics view.
func ExportPodcastAnalyticsHandler(ctx *cartridge.Context) error {
	podcast, err := resolvePodcastAccess(ctx)
	if err != nil {
		return handleAccessError(ctx, err)
	}

	data, err := analytics.ExportCSV(ctx.DB(), podcast.ID)
	if err != nil {
		ctx.Logger.Error("Failed to export podcast analytics",
			slog.Uint64("podcast_id", uint64(podcast.ID)),
			slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export analytics",
		})
	}

	ctx.Ctx.Set("Content-Type", "text/csv")
	ctx.Ctx.Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="podcast-analytics-%d.csv"`, podcast.ID))
	return ctx.Ctx.Status(http.StatusOK).Send(data)
}

var errForbidden = errors.New("forbidden")

// resolvePodcastAccess loads the podcast from the :id param and checks the
// authenticated user is its owner or an admin.
func resolvePodcastAccess(ctx *cartridge.Context) (*podcasts.Podcast, error) {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, fiber.NewError(http.StatusBadRequest, "Invalid podcast ID")
	}

	user := middleware.CurrentUser(ctx.Ctx)
	if user == nil {
		return nil, fiber.NewError(http.StatusUnauthorized, "Authentication required")
	}

	podcast, err := podcasts.GetPodcastByID(ctx.DB(), uint(id))
	if err != nil {
		var notFound *podcasts.PodcastNotFoundError
		if errors.As(err, &notFound) {
			return nil, fiber.NewError(http.StatusNotFound, "Podcast not found")
		}
		return nil, err
	}

	if !podcast.IsOwnedBy(user.ID) && !user.IsAdmin() {
		return nil, errForbidden
	}

	return podcast, nil
}

func handleAccessError(ctx *cartridge.Context, err error) error {
	if errors.Is(err, errForbidden) {
		return ctx.Status(http.StatusForbidden).JSON(fiber.Map{
			"error": "You do not have access to this podcast",
		})
	}
	if fiberErr, ok := err.(*fiber.Error); ok {
		return ctx.Status(fiberErr.Code).JSON(fiber.Map{
			"error": fiberErr.Message,
		})
	}
	ctx.Logger.Error("Failed to resolve podcast access", slog.Any("error", err))
	return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}

func convertCountryStats(items []analytics.MetricCountResult) []analytics.MetricCountResult {
	caser := cases.Upper(language.AmericanEnglish)
	countries := gountries.New()

	if len(items) == 0 {
		return []analytics.MetricCountResult{}
	}

	result := make([]analytics.MetricCountResult, len(items))
	for i, item := range items {
		countryName, err := countries.FindCountryByAlpha(item.Name)
		if err != nil {
			result[i] = analytics.MetricCountResult{
				Name:  caser.String(item.Name),
				Count: item.Count,
			}
		} else {
			result[i] = analytics.MetricCountResult{
				Name:  countryName.Name.Common,
				Count: item.Count,
			}
		}
	}
	return result
}
