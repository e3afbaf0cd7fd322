package repos

import (
	"context"
	"fmt"
	"time"

	"motodean/internal/domain"

	"github.com/jmoiron/sqlx"
)

var now = func() time.Time { return time.Now().UTC() }

// InventoryStore owns products.stock_quantity. Every mutation runs on the caller's
// transaction and appends exactly one ledger entry; nothing here commits.
type InventoryStore struct{ db *sqlx.DB }

func NewInventoryStore(db *sqlx.DB) *InventoryStore { return &InventoryStore{db: db} }

// Mutation describes who changed stock and why.
type Mutation struct {
	ActorID int64
	Reason  domain.LedgerReason
	Notes   string
}

func (s *InventoryStore) GetStock(ctx context.Context, q sqlx.ExtContext, productID int64) (int, error) {
	var qty int
	err := sqlx.GetContext(ctx, q, &qty,
		q.Rebind(`SELECT stock_quantity FROM products WHERE id = ?`+forUpdate(q)), productID)
	if err != nil {
		return 0, notFound(err)
	}
	return qty, nil
}

// Decrement subtracts amount only if enough stock remains, then records the change.
func (s *InventoryStore) Decrement(ctx context.Context, q sqlx.ExtContext, productID int64, amount int, m Mutation) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("decrement product %d: amount must be positive, got %d", productID, amount)
	}
	var newQty int
	err := sqlx.GetContext(ctx, q, &newQty, q.Rebind(`
		UPDATE products
		SET stock_quantity = stock_quantity - ?, updated_at = ?
		WHERE id = ? AND stock_quantity >= ?
		RETURNING stock_quantity`), amount, now(), productID, amount)
	if isNoRows(err) {
		available, gerr := s.GetStock(ctx, q, productID)
		if gerr != nil {
			return 0, gerr
		}
		return 0, &domain.InsufficientStockError{ProductID: productID, Available: available, Required: amount}
	}
	if err != nil {
		return 0, fmt.Errorf("decrement product %d: %w", productID, err)
	}
	if err := s.appendLedger(ctx, q, domain.LedgerEntry{
		ProductID: productID, Action: domain.LedgerDecrease,
		OldQuantity: newQty + amount, QuantityChange: amount, NewQuantity: newQty,
		Reason: m.Reason, Notes: m.Notes, ActorID: m.ActorID,
	}); err != nil {
		return 0, err
	}
	return newQty, nil
}

func (s *InventoryStore) Increment(ctx context.Context, q sqlx.ExtContext, productID int64, amount int, m Mutation) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("increment product %d: amount must be positive, got %d", productID, amount)
	}
	var newQty int
	err := sqlx.GetContext(ctx, q, &newQty, q.Rebind(`
		UPDATE products
		SET stock_quantity = stock_quantity + ?, updated_at = ?
		WHERE id = ?
		RETURNING stock_quantity`), amount, now(), productID)
	if err != nil {
		return 0, fmt.Errorf("increment product %d: %w", productID, notFound(err))
	}
	if err := s.appendLedger(ctx, q, domain.LedgerEntry{
		ProductID: productID, Action: domain.LedgerIncrease,
		OldQuantity: newQty - amount, QuantityChange: amount, NewQuantity: newQty,
		Reason: m.Reason, Notes: m.Notes, ActorID: m.ActorID,
	}); err != nil {
		return 0, err
	}
	return newQty, nil
}

// Set overwrites the stock level. It returns the previous quantity.
func (s *InventoryStore) Set(ctx context.Context, q sqlx.ExtContext, productID int64, qty int, m Mutation) (int, error) {
	if qty < 0 {
		return 0, fmt.Errorf("set product %d: quantity must not be negative, got %d", productID, qty)
	}
	old, err := s.GetStock(ctx, q, productID)
	if err != nil {
		return 0, err
	}
	if _, err := q.ExecContext(ctx, q.Rebind(`UPDATE products SET stock_quantity = ?, updated_at = ? WHERE id = ?`),
		qty, now(), productID); err != nil {
		return 0, fmt.Errorf("set product %d: %w", productID, err)
	}
	change := qty - old
	if change < 0 {
		change = -change
	}
	if err := s.appendLedger(ctx, q, domain.LedgerEntry{
		ProductID: productID, Action: domain.LedgerSet,
		OldQuantity: old, QuantityChange: change, NewQuantity: qty,
		Reason: m.Reason, Notes: m.Notes, ActorID: m.ActorID,
	}); err != nil {
		return 0, err
	}
	return old, nil
}

func (s *InventoryStore) appendLedger(ctx context.Context, q sqlx.ExtContext, e domain.LedgerEntry) error {
	if !e.Reason.Valid() {
		return fmt.Errorf("ledger: unknown reason %q", e.Reason)
	}
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO inventory_ledger
		  (product_id, action, old_quantity, quantity_change, new_quantity, reason, notes, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ProductID, e.Action, e.OldQuantity, e.QuantityChange, e.NewQuantity, e.Reason, e.Notes, e.ActorID, now())
	if err != nil {
		return fmt.Errorf("append ledger for product %d: %w", e.ProductID, err)
	}
	return nil
}

// Ledger returns the newest entries for a product first.
func (s *InventoryStore) Ledger(ctx context.Context, productID int64, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.LedgerEntry
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT id, product_id, action, old_quantity, quantity_change, new_quantity, reason, notes, actor_id, created_at
		FROM inventory_ledger
		WHERE product_id = ?
		ORDER BY id DESC
		LIMIT ?`), productID, limit)
	return out, err
}
