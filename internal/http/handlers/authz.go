package handlers

import (
	"motodean/internal/domain"
	applog "motodean/internal/log"
	"motodean/internal/services"

	"github.com/gofiber/fiber/v2"
)

// RequireStaff admits admin and staff sessions to the back-office API.
func RequireStaff(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies("sid")
		if sid == "" {
			applog.Security(c, "access.denied.anonymous", nil)
			return fail(c, fiber.StatusUnauthorized, "Admin login required")
		}
		u, err := auth.CurrentUser(c.UserContext(), sid)
		if err != nil || u == nil {
			applog.Security(c, "access.denied.session", nil)
			return fail(c, fiber.StatusUnauthorized, "Admin login required")
		}
		if u.Role != domain.RoleAdmin && u.Role != domain.RoleStaff {
			c.Locals("actor_id", u.ID)
			applog.Security(c, "access.denied.role", map[string]any{"role": u.Role})
			return fail(c, fiber.StatusForbidden, "Access denied")
		}
		c.Locals("user", u)
		c.Locals("actor_id", u.ID)
		return c.Next()
	}
}
