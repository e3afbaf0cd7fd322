package handlers

import (
	"errors"
	"strconv"

	"motodean/internal/domain"
	applog "motodean/internal/log"
	"motodean/internal/services"
	"motodean/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

type adjustRequest struct {
	Action   string `json:"action" form:"action"`
	Quantity int    `json:"quantity" form:"quantity"`
	Reason   string `json:"reason" form:"reason"`
	Notes    string `json:"notes" form:"notes"`
}

// GET /admin/api/products/:id/availability
func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid product ID")
	}
	avail, err := h.Inv.CheckAvailability(c.UserContext(), id)
	if errors.Is(err, services.ErrProductNotFound) {
		return fail(c, fiber.StatusNotFound, "Product not found")
	}
	if err != nil {
		applog.Error(c, "admin.inventory.check.fail", err, map[string]any{"product_id": id})
		return fail(c, fiber.StatusInternalServerError, "Could not check availability")
	}
	return c.JSON(avail)
}

// POST /admin/api/products/:id/stock
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid product ID")
	}
	var req adjustRequest
	if err := c.BodyParser(&req); err != nil || !validate.Quantity(req.Quantity) {
		return fail(c, fiber.StatusBadRequest, "Invalid parameters")
	}
	cmd := services.AdjustCommand{
		ProductID: id,
		Action:    domain.LedgerAction(req.Action),
		Quantity:  req.Quantity,
		Reason:    domain.LedgerReason(req.Reason),
		Notes:     validate.Notes(req.Notes),
	}
	fields := map[string]any{"product_id": id, "action": req.Action, "qty": req.Quantity}

	res, err := h.Inv.AdjustStock(c.UserContext(), cmd, actor(c))
	var ise *domain.InsufficientStockError
	switch {
	case err == nil:
		fields["old"], fields["new"] = res.OldQuantity, res.NewQuantity
		applog.Audit(c, "admin.inventory.adjust", fields)
		return c.JSON(fiber.Map{"success": true, "result": res})
	case errors.Is(err, services.ErrInvalidAdjustment):
		return fail(c, fiber.StatusBadRequest, "Invalid parameters")
	case errors.Is(err, services.ErrProductNotFound):
		return fail(c, fiber.StatusNotFound, "Product not found")
	case errors.As(err, &ise):
		return fail(c, fiber.StatusConflict, "Insufficient stock. Available: "+strconv.Itoa(ise.Available))
	}
	applog.Error(c, "admin.inventory.adjust.fail", err, fields)
	return fail(c, fiber.StatusInternalServerError, "Could not update stock")
}

// GET /admin/api/products/:id/ledger
func (h *InventoryHandler) Ledger(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid product ID")
	}
	limit := c.QueryInt("limit", 50)
	entries, err := h.Inv.Ledger(c.UserContext(), id, limit)
	if errors.Is(err, services.ErrProductNotFound) {
		return fail(c, fiber.StatusNotFound, "Product not found")
	}
	if err != nil {
		applog.Error(c, "admin.inventory.ledger.fail", err, map[string]any{"product_id": id})
		return fail(c, fiber.StatusInternalServerError, "Could not load inventory history")
	}
	return c.JSON(fiber.Map{"success": true, "entries": entries})
}

// GET /admin/api/products/low-stock
func (h *InventoryHandler) LowStock(c *fiber.Ctx) error {
	products, err := h.Inv.LowStock(c.UserContext())
	if err != nil {
		applog.Error(c, "admin.inventory.lowstock.fail", err, nil)
		return fail(c, fiber.StatusInternalServerError, "Could not load low stock products")
	}
	return c.JSON(fiber.Map{"success": true, "products": products})
}
