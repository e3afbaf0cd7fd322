package handlers

import (
	"errors"

	"motodean/internal/domain"
	applog "motodean/internal/log"
	"motodean/internal/services"
	"motodean/internal/validate"

	"github.com/gofiber/fiber/v2"
)

const ordersPageSize = 20

type OrderHandler struct {
	Engine *services.OrderStatusEngine
}

type statusRequest struct {
	Status string `json:"status" form:"status"`
}

// POST /admin/api/orders/:id/status
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid order ID")
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return fail(c, fiber.StatusBadRequest, "Invalid parameters")
	}

	res, err := h.Engine.Transition(c.UserContext(), id, req.Status, actor(c))
	fields := map[string]any{"order_id": id, "status": req.Status}
	switch {
	case err == nil:
		fields["old_status"], fields["stock_deducted"] = res.OldStatus, res.StockDeducted
		applog.Audit(c, "admin.orders.status", fields)
		return c.JSON(res)
	case errors.Is(err, services.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(res)
	case errors.Is(err, services.ErrOrderNotFound):
		return c.Status(fiber.StatusNotFound).JSON(res)
	case errors.Is(err, services.ErrIllegalTransition), errors.Is(err, services.ErrInsufficientStock):
		applog.Info(c, "admin.orders.status.rejected", fields)
		return c.Status(fiber.StatusConflict).JSON(res)
	}
	applog.Error(c, "admin.orders.status.fail", err, fields)
	return c.Status(fiber.StatusInternalServerError).JSON(res)
}

// GET /admin/api/orders/:id
func (h *OrderHandler) Details(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid order ID")
	}
	d, err := h.Engine.OrderDetails(c.UserContext(), id)
	if errors.Is(err, services.ErrOrderNotFound) {
		return fail(c, fiber.StatusNotFound, "Order not found")
	}
	if err != nil {
		applog.Error(c, "admin.orders.details.fail", err, map[string]any{"order_id": id})
		return fail(c, fiber.StatusInternalServerError, "Error loading order details")
	}
	return c.JSON(fiber.Map{"success": true, "order": d.Order, "customer": d.Customer, "items": d.LineItems,
		"history": d.StatusHistory, "allowed_statuses": d.AllowedTargets})
}

// GET /admin/api/orders?status=&page=
func (h *OrderHandler) List(c *fiber.Ctx) error {
	var filter domain.OrderStatus
	if raw := c.Query("status"); raw != "" && raw != "all" {
		s, ok := validate.Status(raw)
		if !ok {
			return fail(c, fiber.StatusBadRequest, "Invalid status")
		}
		filter = s
	}
	offset := validate.Page(c.Query("page"), ordersPageSize)
	orders, total, err := h.Engine.ListOrders(c.UserContext(), filter, ordersPageSize, offset)
	if err != nil {
		applog.Error(c, "admin.orders.list.fail", err, nil)
		return fail(c, fiber.StatusInternalServerError, "Could not load orders")
	}
	return c.JSON(fiber.Map{"success": true, "orders": orders, "total": total,
		"page": offset/ordersPageSize + 1, "page_size": ordersPageSize})
}
