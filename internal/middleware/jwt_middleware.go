package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/models"
	"storefront/internal/services"
)

const (
	localUserID   = "user_id"
	localUsername = "username"
	localRole     = "role"
)

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(authService *services.AuthService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			log.Debug("jwt validation failed", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
			})
		}

		userID, _ := claims["user_id"].(string)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Token carries no user",
			})
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)

		c.Locals(localUserID, userID)
		c.Locals(localUsername, username)
		c.Locals(localRole, role)

		return c.Next()
	}
}

// RequireAdmin rejects callers whose token does not carry the admin role.
// It must run after AuthRequired.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsAdmin(c) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Admin access required",
			})
		}
		return c.Next()
	}
}

// UserID returns the authenticated user's id, or "".
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

// IsAdmin reports whether the authenticated user is an admin.
func IsAdmin(c *fiber.Ctx) bool {
	role, _ := c.Locals(localRole).(string)
	return role == models.RoleAdmin
}

// OwnerScope returns the owner id lookups should be scoped to. Admins see
// every order, so their scope is empty.
func OwnerScope(c *fiber.Ctx) string {
	if IsAdmin(c) {
		return ""
	}
	return UserID(c)
}
