package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID               int64           `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	Category         string          `db:"category" json:"category"`
	Price            decimal.Decimal `db:"price" json:"price"`
	StockQuantity    int             `db:"stock_quantity" json:"stock_quantity"`
	ReorderThreshold int             `db:"reorder_threshold" json:"reorder_threshold"`
	IsAvailable      bool            `db:"is_available" json:"is_available"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// Order is mutated only through status transitions; TotalAmount is fixed at checkout.
type Order struct {
	ID                 int64           `db:"id" json:"id"`
	OrderNumber        string          `db:"order_number" json:"order_number"`
	CustomerID         int64           `db:"customer_id" json:"customer_id"`
	Status             OrderStatus     `db:"status" json:"status"`
	TotalAmount        decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaymentMethod      PaymentMethod   `db:"payment_method" json:"payment_method"`
	Notes              string          `db:"notes" json:"notes,omitempty"`
	CancellationReason string          `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderLineItem carries the unit price snapshot taken at order time.
type OrderLineItem struct {
	OrderID     int64           `db:"order_id" json:"order_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	// Stock is the product's current stock when the row was loaded.
	Stock int `db:"stock_quantity" json:"-"`
}

func (li OrderLineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Customer is the read-only view of the user who placed an order.
type Customer struct {
	ID    int64  `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// StatusChange is one row of an order's status history.
type StatusChange struct {
	ID        int64       `db:"id" json:"id"`
	OrderID   int64       `db:"order_id" json:"order_id"`
	OldStatus OrderStatus `db:"old_status" json:"old_status"`
	NewStatus OrderStatus `db:"new_status" json:"new_status"`
	ChangedBy int64       `db:"changed_by" json:"changed_by"`
	Notes     string      `db:"notes" json:"notes"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}
