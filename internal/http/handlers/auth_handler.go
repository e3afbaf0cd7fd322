package handlers

import (
	"errors"
	"time"

	"motodean/internal/log"
	"motodean/internal/services"
	"motodean/internal/validate"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AuthHandler struct {
	Auth *services.AuthService
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func ensureSID(c *fiber.Ctx) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     "sid",
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
	return sid
}

// CSRF hands API clients the token the csrf middleware expects in X-Csrf-Token.
func (h *AuthHandler) CSRF(c *fiber.Ctx) error {
	tok, _ := c.Locals("csrf").(string)
	return c.JSON(fiber.Map{"csrf_token": tok})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	email, ok := validate.Email(req.Email)
	if !ok {
		log.Security(c, "auth.login.fail", map[string]any{"reason": "bad_format"})
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password")
	}
	if !validate.Password(req.Password) {
		log.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "bad_password_format"})
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password")
	}

	sid := ensureSID(c)
	u, err := h.Auth.Login(c.UserContext(), sid, email, req.Password, c.IP())
	if err != nil {
		if !errors.Is(err, services.ErrBadCreds) {
			log.Error(c, "auth.login.error", err, nil)
			return fail(c, fiber.StatusInternalServerError, "Something went wrong. Please try again.")
		}
		log.Security(c, "auth.login.fail", map[string]any{"email": email})
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password")
	}

	c.Locals("actor_id", u.ID)
	log.Audit(c, "auth.login.success", map[string]any{"email": email})
	return c.JSON(fiber.Map{"success": true, "user": fiber.Map{"id": u.ID, "email": u.Email, "name": u.Name(), "role": u.Role}})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := c.Cookies("sid")
	if sid != "" {
		a := actor(c)
		if u, err := h.Auth.CurrentUser(c.UserContext(), sid); err == nil {
			a.ID, a.Email, a.Role = u.ID, u.Email, u.Role
		}
		if err := h.Auth.Logout(c.UserContext(), sid, a); err != nil {
			log.Error(c, "auth.logout.error", err, nil)
		}
	}
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	log.Audit(c, "auth.logout", nil)
	return c.JSON(fiber.Map{"success": true})
}
