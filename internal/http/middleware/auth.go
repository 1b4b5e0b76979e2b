package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"podstream/internal/auth"
	"podstream/internal/users"
)

// CurrentUserKey is the fiber.Ctx Locals key holding the authenticated user.
const CurrentUserKey = "current_user"

// RequireAuth validates the Bearer token and loads the authenticated user
// into c.Locals under CurrentUserKey.
// Expects: Authorization: Bearer <jwt>
func RequireAuth(tokens *auth.TokenService, db *gorm.DB, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Authorization header",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid Authorization header format. Expected: Bearer <token>",
			})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Token is empty",
			})
		}

		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		userID, err := claims.UserID()
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		user, err := users.FindByID(db, userID)
		if err != nil {
			logger.Warn("Token references unknown user",
				slog.Uint64("user_id", uint64(userID)),
				slog.Any("error", err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(CurrentUserKey, user)
		return c.Next()
	}
}

// CurrentUser returns the authenticated user set by RequireAuth, or nil.
func CurrentUser(c *fiber.Ctx) *users.User {
	user, _ := c.Locals(CurrentUserKey).(*users.User)
	return user
}
