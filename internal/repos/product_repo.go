package repos

import (
	"context"

	"motodean/internal/domain"

	"github.com/jmoiron/sqlx"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

const productCols = `id, name, category, price, stock_quantity, reorder_threshold, is_available, created_at, updated_at`

func (r *ProductRepo) Get(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT `+productCols+` FROM products WHERE id = ?`), id)
	return p, notFound(err)
}

// GetTx reads a product on the caller's transaction.
func (r *ProductRepo) GetTx(ctx context.Context, q sqlx.ExtContext, id int64) (domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, q, &p, q.Rebind(`SELECT `+productCols+` FROM products WHERE id = ?`+forUpdate(q)), id)
	return p, notFound(err)
}

func (r *ProductRepo) List(ctx context.Context, category string, limit, offset int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 50
	}
	where, args := `1=1`, []any{}
	if category != "" {
		where += ` AND category = ?`
		args = append(args, category)
	}
	args = append(args, limit, offset)
	var out []domain.Product
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT `+productCols+` FROM products
		WHERE `+where+`
		ORDER BY name
		LIMIT ? OFFSET ?`), args...)
	return out, err
}

// LowStock lists available products at or below their reorder threshold, emptiest first.
func (r *ProductRepo) LowStock(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+productCols+` FROM products
		WHERE is_available = TRUE AND stock_quantity <= reorder_threshold
		ORDER BY stock_quantity, name`)
	return out, err
}

// Create inserts a product with zero stock; opening stock goes through InventoryStore
// so that it is recorded in the ledger.
func (r *ProductRepo) Create(ctx context.Context, q sqlx.ExtContext, p *domain.Product) error {
	t := now()
	p.StockQuantity = 0
	p.CreatedAt, p.UpdatedAt = t, t
	return sqlx.GetContext(ctx, q, &p.ID, q.Rebind(`
		INSERT INTO products (name, category, price, stock_quantity, reorder_threshold, is_available, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?, ?, ?)
		RETURNING id`),
		p.Name, p.Category, p.Price, p.ReorderThreshold, p.IsAvailable, t, t)
}
