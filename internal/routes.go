package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "podstream/api/v1"
	"podstream/internal/config"
	"podstream/internal/http/middleware"
)

// publicCORSConfig returns the standard CORS configuration for public endpoints.
// Player builds are served from arbitrary origins, so this stays permissive.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,PUT,DELETE,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()

	// Helper to conditionally apply rate limiting (only in production)
	// In development/test, rate limiting would interfere with testing
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Rate limiter for the public event ingestion API (120 requests per
	// minute per IP). Listening events arrive in bursts when an episode
	// starts, so this is looser than the auth limiter.
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(120),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Stricter rate limiter for auth endpoints (10 requests per minute)
	// Prevents brute force login attempts
	authRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Public API config (event ingestion and catalog browsing)
	// CORS runs first ensuring error responses carry CORS headers.
	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CustomMiddleware:   []fiber.Handler{publicRateLimiter},
		CORSConfig:         publicCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
	}

	authConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CustomMiddleware:   []fiber.Handler{authRateLimiter},
		CORSConfig:         publicCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
	}

	// Get dependencies for middleware
	db := srv.GetDBManager().GetConnection()
	logger := srv.GetLogger()
	tokens := v1.NewTokenService()

	protectedConfig := &cartridge.RouteConfig{
		EnableCORS: true,
		CustomMiddleware: []fiber.Handler{
			middleware.RequireAuth(tokens, db, logger),
		},
		CORSConfig:         publicCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
	}

	// === HEALTH CHECK ===
	srv.Get("/_health", v1.HealthHandler)
	srv.Head("/_health", v1.HealthHandler)

	// === PUBLIC EVENT INGESTION ===
	srv.Post("/api/v1/analytics/record", v1.RecordEventPublicAPIHandler, publicAPIConfig)
	srv.Options("/api/v1/analytics/record", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicAPIConfig)

	// === AUTHENTICATION ===
	srv.Post("/api/v1/auth/register", v1.RegisterHandler, authConfig)
	srv.Post("/api/v1/auth/login", v1.LoginHandler, authConfig)
	srv.Post("/api/v1/auth/forgot-password", v1.ForgotPasswordHandler, authConfig)
	srv.Post("/api/v1/auth/reset-password", v1.ResetPasswordHandler, authConfig)

	// === PODCAST CATALOG ===
	srv.Get("/api/v1/podcasts", v1.ListPodcastsHandler, publicAPIConfig)
	srv.Get("/api/v1/podcasts/mine", v1.ListMyPodcastsHandler, protectedConfig)
	srv.Post("/api/v1/podcasts", v1.CreatePodcastHandler, protectedConfig)
	srv.Get("/api/v1/podcasts/:id", v1.GetPodcastHandler, publicAPIConfig)
	srv.Post("/api/v1/podcasts/:id", v1.UpdatePodcastHandler, protectedConfig)
	srv.Delete("/api/v1/podcasts/:id", v1.DeletePodcastHandler, protectedConfig)
	srv.Get("/api/v1/podcasts/:id/episodes", v1.ListEpisodesHandler, publicAPIConfig)
	srv.Post("/api/v1/podcasts/:id/episodes", v1.CreateEpisodeHandler, protectedConfig)

	// === ANALYTICS QUERIES ===
	srv.Get("/api/v1/analytics/podcast/:id", v1.GetPodcastAnalyticsHandler, protectedConfig)
	srv.Get("/api/v1/analytics/podcast/:id/export", v1.ExportPodcastAnalyticsHandler, protectedConfig)
	srv.Get("/api/v1/analytics/user/summary", v1.GetUserSummaryHandler, protectedConfig)
}
