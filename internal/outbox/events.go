package outbox

import (
	"time"

	"motodean/internal/domain"
)

const (
	AggregateOrder   = "order"
	AggregateProduct = "product"

	EventOrderStatusChanged = "order.status_changed"
	EventInventoryDeducted  = "inventory.stock_deducted"
	EventInventoryAdjusted  = "inventory.stock_adjusted"
)

type OrderStatusChanged struct {
	OrderID       int64              `json:"order_id"`
	OrderNumber   string             `json:"order_number"`
	From          domain.OrderStatus `json:"from"`
	To            domain.OrderStatus `json:"to"`
	StockDeducted bool               `json:"stock_deducted"`
	ActorID       int64              `json:"actor_id"`
	At            time.Time          `json:"at"`
}

type StockLine struct {
	ProductID   int64 `json:"product_id"`
	Quantity    int   `json:"quantity"`
	NewQuantity int   `json:"new_quantity"`
}

type StockDeducted struct {
	OrderID     int64       `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	Lines       []StockLine `json:"lines"`
	At          time.Time   `json:"at"`
}

type StockAdjusted struct {
	ProductID   int64               `json:"product_id"`
	Action      domain.LedgerAction `json:"action"`
	OldQuantity int                 `json:"old_quantity"`
	NewQuantity int                 `json:"new_quantity"`
	Reason      domain.LedgerReason `json:"reason"`
	ActorID     int64               `json:"actor_id"`
	At          time.Time           `json:"at"`
}
