package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"podstream/internal/analytics"
)

const (
	msgEventRecorded  = "Event recorded successfully"
	errInvalidRequest = "Invalid request"
)

type RecordEventParams struct {
	PodcastID uint                   `json:"podcastId"`
	Event     string                 `json:"event"`
	Data      analytics.EventPayload `json:"data"`
	UserAgent string                 `json:"userAgent"`
}

// RecordEventPublicAPIHandler ingests a single listening event. Unknown
// event types are accepted and dropped so old player builds keep working.
func RecordEventPublicAPIHandler(ctx *cartridge.Context) error {
	ctx.Logger.Debug("Received analytics event",
		slog.String("method", ctx.Method()),
		slog.String("path", ctx.Path()))

	var params RecordEventParams
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse event request", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
		})
	}

	userAgentHeader := ctx.Get("User-Agent")
	if params.UserAgent != "" {
		userAgentHeader = params.UserAgent
	}

	input := &analytics.RecordEventInput{
		PodcastID: params.PodcastID,
		Event:     analytics.EventType(params.Event),
		Data:      params.Data,
		IPAddress: getClientIP(ctx.Ctx),
		UserAgent: userAgentHeader,
	}

	if err := analytics.RecordEvent(ctx.DBManager, ctx.Logger, input); err != nil {
		if errors.Is(err, analytics.ErrMissingPodcastID) || errors.Is(err, analytics.ErrMissingEventType) {
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		ctx.Logger.Error("Failed to record event", slog.Any("error", err))
		if strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "busy") {
			return ctx.Status(599).JSON(fiber.Map{}) // custom status code
		}

		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record event",
			"code":  "RECORD_ERROR",
		})
	}

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"message": msgEventRecorded,
		"status":  http.StatusAccepted,
	})
}
