package handlers

import (
	"errors"
	"time"

	applog "motodean/internal/log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

type AppOptions struct {
	// CSRF turns on double-submit token checks for unsafe methods.
	CSRF bool
	// RateLimit is the per-IP request budget per minute; zero disables the global limiter.
	RateLimit int
	// LoginLimit is the per-IP login attempt budget per ten minutes.
	LoginLimit int
	// Extra middleware installed after request ids, e.g. the access logger.
	Middleware []fiber.Handler
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Something went wrong. Please try again."
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		code, msg = fe.Code, fe.Message
	} else {
		applog.Error(c, "server.error", err, nil)
	}
	return c.Status(code).JSON(fiber.Map{"success": false, "message": msg})
}

// NewApp builds the fiber app with the middleware stack and every route.
func NewApp(d *Deps, opts AppOptions) *fiber.App {
	if opts.LoginLimit <= 0 {
		opts.LoginLimit = 5
	}
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		BodyLimit:    1 << 20,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	for _, m := range opts.Middleware {
		app.Use(m)
	}
	app.Use(helmet.New())
	if opts.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimit,
			Expiration: time.Minute,
			LimitReached: func(c *fiber.Ctx) error {
				applog.Security(c, "rate.global.hit", nil)
				return fail(c, fiber.StatusTooManyRequests, "Rate limit exceeded, retry soon")
			},
		}))
	}
	if opts.CSRF {
		app.Use(csrf.New(csrf.Config{
			KeyLookup:      "header:X-Csrf-Token",
			CookieName:     "csrf_",
			CookieSameSite: "Lax",
			ContextKey:     "csrf",
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				applog.Security(c, "csrf.fail", map[string]any{"reason": err.Error()})
				return fail(c, fiber.StatusForbidden, "Invalid security token. Please refresh the page and try again.")
			},
		}))
	}

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Get("/csrf", d.AuthHandler.CSRF)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        opts.LoginLimit,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return fail(c, fiber.StatusTooManyRequests, "Too many attempts. Please try again later.")
		},
	}), d.AuthHandler.Login)
	app.Post("/logout", d.AuthHandler.Logout)

	api := app.Group("/admin/api", RequireStaff(d.Auth))
	api.Get("/orders", d.OrderHandler.List)
	api.Get("/orders/:id", d.OrderHandler.Details)
	api.Post("/orders/:id/status", d.OrderHandler.UpdateStatus)
	api.Get("/audit", d.AuditHandler.Logs)
	api.Get("/audit/stats", d.AuditHandler.Stats)
	api.Get("/products/low-stock", d.InventoryHandler.LowStock)
	api.Get("/products/:id/availability", d.InventoryHandler.Check)
	api.Get("/products/:id/ledger", d.InventoryHandler.Ledger)
	api.Post("/products/:id/stock", d.InventoryHandler.Adjust)

	app.Use(func(c *fiber.Ctx) error {
		return fail(c, fiber.StatusNotFound, "Not found")
	})
	return app
}
