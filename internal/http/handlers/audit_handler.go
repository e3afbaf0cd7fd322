package handlers

import (
	"strconv"

	"motodean/internal/domain"
	applog "motodean/internal/log"
	"motodean/internal/repos"
	"motodean/internal/services"
	"motodean/internal/validate"

	"github.com/gofiber/fiber/v2"
)

const auditPageSize = 50

var (
	auditActions  = map[string]bool{"create": true, "update": true, "delete": true, "export": true, "login": true, "logout": true}
	auditEntities = map[string]bool{"order": true, "product": true, "system": true}
)

type AuditHandler struct {
	Audit *services.AuditTrail
}

// GET /admin/api/audit
func (h *AuditHandler) Logs(c *fiber.Ctx) error {
	f := repos.AuditFilter{Limit: auditPageSize}
	if v := c.Query("action_type"); v != "" {
		if !auditActions[v] {
			return fail(c, fiber.StatusBadRequest, "Invalid action type")
		}
		f.ActionType = domain.AuditAction(v)
	}
	if v := c.Query("entity_type"); v != "" {
		if !auditEntities[v] {
			return fail(c, fiber.StatusBadRequest, "Invalid entity type")
		}
		f.EntityType = domain.EntityType(v)
	}
	if v := c.Query("entity_id"); v != "" {
		id, ok := validate.ID(v)
		if !ok {
			return fail(c, fiber.StatusBadRequest, "Invalid entity ID")
		}
		f.EntityID = id
	}
	if v := c.Query("date_from"); v != "" {
		t, ok := validate.Date(v, false)
		if !ok {
			return fail(c, fiber.StatusBadRequest, "Invalid date_from")
		}
		f.From = t
	}
	if v := c.Query("date_to"); v != "" {
		t, ok := validate.Date(v, true)
		if !ok {
			return fail(c, fiber.StatusBadRequest, "Invalid date_to")
		}
		f.To = t
	}
	if v := c.Query("user_email"); v != "" {
		q, ok := validate.Q(v)
		if !ok {
			return fail(c, fiber.StatusBadRequest, "Invalid user email")
		}
		f.ActorEmail = q
	}
	if v := c.Query("search"); v != "" {
		q, ok := validate.Q(v)
		if !ok {
			return fail(c, fiber.StatusBadRequest, "Invalid search")
		}
		f.Search = q
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			f.Limit = n
		}
	}
	f.Offset = validate.Page(c.Query("page"), f.Limit)

	page, err := h.Audit.Logs(c.UserContext(), f)
	if err != nil {
		applog.Error(c, "admin.audit.list.fail", err, nil)
		return fail(c, fiber.StatusInternalServerError, "Could not load audit logs")
	}
	return c.JSON(fiber.Map{"success": true, "logs": page.Entries, "total": page.Total,
		"limit": page.Limit, "offset": page.Offset})
}

// GET /admin/api/audit/stats
func (h *AuditHandler) Stats(c *fiber.Ctx) error {
	st, err := h.Audit.Stats(c.UserContext())
	if err != nil {
		applog.Error(c, "admin.audit.stats.fail", err, nil)
		return fail(c, fiber.StatusInternalServerError, "Could not load audit statistics")
	}
	return c.JSON(fiber.Map{"success": true, "stats": st})
}
