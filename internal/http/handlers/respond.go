package handlers

import (
	"motodean/internal/domain"

	"github.com/gofiber/fiber/v2"
)

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": msg})
}

// actor converts the authenticated session user into the explicit actor passed to core calls.
func actor(c *fiber.Ctx) domain.Actor {
	u, ok := c.Locals("user").(*domain.User)
	if !ok || u == nil {
		return domain.Actor{IP: c.IP()}
	}
	return domain.ActorFromUser(*u, c.IP())
}
