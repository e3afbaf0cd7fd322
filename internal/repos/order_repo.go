package repos

import (
	"context"
	"fmt"
	"time"

	"motodean/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

// OrderSummary is one row of the admin order list.
type OrderSummary struct {
	domain.Order
	CustomerName  string `db:"customer_name" json:"customer_name"`
	CustomerEmail string `db:"customer_email" json:"customer_email"`
	ItemCount     int    `db:"item_count" json:"item_count"`
}

const orderCols = `id, order_number, customer_id, status, total_amount, payment_method, notes, cancellation_reason, created_at, updated_at`

func (r *OrderRepo) Get(ctx context.Context, q sqlx.ExtContext, id int64) (domain.Order, error) {
	if q == nil {
		q = r.db
	}
	var o domain.Order
	err := sqlx.GetContext(ctx, q, &o, q.Rebind(`SELECT `+orderCols+` FROM orders WHERE id = ?`), id)
	return o, notFound(err)
}

// GetForUpdate re-reads the order on the caller's transaction, row-locked where the dialect allows.
func (r *OrderRepo) GetForUpdate(ctx context.Context, q sqlx.ExtContext, id int64) (domain.Order, error) {
	var o domain.Order
	err := sqlx.GetContext(ctx, q, &o, q.Rebind(`SELECT `+orderCols+` FROM orders WHERE id = ?`+forUpdate(q)), id)
	return o, notFound(err)
}

// Items returns the order's line items with each product's current stock, ordered by
// product id. On postgres the product rows stay locked until the transaction ends.
func (r *OrderRepo) Items(ctx context.Context, q sqlx.ExtContext, orderID int64) ([]domain.OrderLineItem, error) {
	if q == nil {
		q = r.db
	}
	lock := ""
	if _, inTx := q.(*sqlx.Tx); inTx && isPostgres(q) {
		lock = " FOR UPDATE OF p"
	}
	var items []domain.OrderLineItem
	err := sqlx.SelectContext(ctx, q, &items, q.Rebind(`
		SELECT li.order_id, li.product_id, p.name AS product_name, li.quantity, li.unit_price, p.stock_quantity
		FROM order_line_items li
		JOIN products p ON p.id = li.product_id
		WHERE li.order_id = ?
		ORDER BY li.product_id`+lock), orderID)
	return items, err
}

// CompareAndSetStatus moves the order from one status to another. ErrConflict means
// the order was no longer in the expected status.
func (r *OrderRepo) CompareAndSetStatus(ctx context.Context, q sqlx.ExtContext, id int64, from, to domain.OrderStatus, at time.Time) error {
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`),
		to, at, id, from)
	if err != nil {
		return fmt.Errorf("update order %d status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (r *OrderRepo) AppendHistory(ctx context.Context, q sqlx.ExtContext, c domain.StatusChange) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO order_status_history (order_id, old_status, new_status, changed_by, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		c.OrderID, c.OldStatus, c.NewStatus, c.ChangedBy, c.Notes, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("append status history for order %d: %w", c.OrderID, err)
	}
	return nil
}

// History is oldest first.
func (r *OrderRepo) History(ctx context.Context, orderID int64) ([]domain.StatusChange, error) {
	var out []domain.StatusChange
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT id, order_id, old_status, new_status, changed_by, notes, created_at
		FROM order_status_history
		WHERE order_id = ?
		ORDER BY id`), orderID)
	return out, err
}

func (r *OrderRepo) Customer(ctx context.Context, id int64) (domain.Customer, error) {
	var c domain.Customer
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`
		SELECT id, TRIM(first_name || ' ' || last_name) AS name, email
		FROM users WHERE id = ?`), id)
	return c, notFound(err)
}

// List returns a page of orders, newest first, and the total matching count.
func (r *OrderRepo) List(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]OrderSummary, int, error) {
	if limit <= 0 {
		limit = 20
	}
	where, args := `1=1`, []any{}
	if status != "" {
		where += ` AND o.status = ?`
		args = append(args, status)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM orders o WHERE `+where), args...); err != nil {
		return nil, 0, err
	}
	var out []OrderSummary
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT o.id, o.order_number, o.customer_id, o.status, o.total_amount, o.payment_method,
		       o.notes, o.cancellation_reason, o.created_at, o.updated_at,
		       TRIM(u.first_name || ' ' || u.last_name) AS customer_name, u.email AS customer_email,
		       (SELECT COUNT(*) FROM order_line_items li WHERE li.order_id = o.id) AS item_count
		FROM orders o
		JOIN users u ON u.id = o.customer_id
		WHERE `+where+`
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT ? OFFSET ?`), append(args, limit, offset)...)
	return out, total, err
}

// Create inserts an order header and its line items. TotalAmount is computed from the
// items when left zero.
func (r *OrderRepo) Create(ctx context.Context, q sqlx.ExtContext, o *domain.Order, items []domain.OrderLineItem) error {
	if len(items) == 0 {
		return fmt.Errorf("create order %s: no line items", o.OrderNumber)
	}
	if o.TotalAmount.IsZero() {
		sum := decimal.Zero
		for _, li := range items {
			sum = sum.Add(li.Subtotal())
		}
		o.TotalAmount = sum
	}
	if o.Status == "" {
		o.Status = domain.StatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now()
	}
	o.UpdatedAt = o.CreatedAt
	err := sqlx.GetContext(ctx, q, &o.ID, q.Rebind(`
		INSERT INTO orders (order_number, customer_id, status, total_amount, payment_method, notes, cancellation_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		o.OrderNumber, o.CustomerID, o.Status, o.TotalAmount, o.PaymentMethod, o.Notes, o.CancellationReason, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create order %s: %w", o.OrderNumber, err)
	}
	for _, li := range items {
		if _, err := q.ExecContext(ctx, q.Rebind(`
			INSERT INTO order_line_items (order_id, product_id, quantity, unit_price)
			VALUES (?, ?, ?, ?)`), o.ID, li.ProductID, li.Quantity, li.UnitPrice); err != nil {
			return fmt.Errorf("create order %s item %d: %w", o.OrderNumber, li.ProductID, err)
		}
	}
	return nil
}
