// Package testutil provides a real SQLite database per test plus small fixture builders.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"motodean/internal/domain"
	"motodean/internal/repos"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const Password = "Passw0rd!"

var seq atomic.Int64

// NewDB opens a schema-initialised SQLite file in the test's temp dir.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(repos.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// User creates an account with Password as its password.
func User(t testing.TB, db *sqlx.DB, role domain.Role) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)
	n := seq.Add(1)
	u := &domain.User{
		Email:     fmt.Sprintf("%s%d@motodean.test", role, n),
		FirstName: string(role),
		LastName:  fmt.Sprint(n),
		Hash:      string(hash),
		Role:      role,
	}
	require.NoError(t, repos.NewUserRepo(db).Create(context.Background(), nil, u))
	return u
}

// Staff returns an admin actor backed by a real user row.
func Staff(t testing.TB, db *sqlx.DB) domain.Actor {
	t.Helper()
	return domain.ActorFromUser(*User(t, db, domain.RoleAdmin), "127.0.0.1")
}

// Product creates an available product holding stock units.
func Product(t testing.TB, db *sqlx.DB, name string, price string, stock int) domain.Product {
	t.Helper()
	ctx := context.Background()
	p := domain.Product{Name: name, Category: "parts", Price: decimal.RequireFromString(price), ReorderThreshold: 2, IsAvailable: true}
	require.NoError(t, repos.RunInTx(ctx, db, func(tx *sqlx.Tx) error {
		if err := repos.NewProductRepo(db).Create(ctx, tx, &p); err != nil {
			return err
		}
		if stock > 0 {
			_, err := repos.NewInventoryStore(db).Set(ctx, tx, p.ID, stock, repos.Mutation{ActorID: 1, Reason: domain.ReasonInitialStock})
			return err
		}
		return nil
	}))
	p.StockQuantity = stock
	return p
}

// Line is a fixture line item: quantity units of product.
type Line struct {
	Product  domain.Product
	Quantity int
}

// Order creates an order in the given status for a fresh customer.
func Order(t testing.TB, db *sqlx.DB, status domain.OrderStatus, pm domain.PaymentMethod, lines ...Line) domain.Order {
	t.Helper()
	ctx := context.Background()
	cust := User(t, db, domain.RoleCustomer)
	o := domain.Order{
		OrderNumber:   fmt.Sprintf("MD-T%04d", seq.Add(1)),
		CustomerID:    cust.ID,
		Status:        status,
		PaymentMethod: pm,
	}
	items := make([]domain.OrderLineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.OrderLineItem{ProductID: l.Product.ID, Quantity: l.Quantity, UnitPrice: l.Product.Price})
	}
	require.NoError(t, repos.RunInTx(ctx, db, func(tx *sqlx.Tx) error {
		return repos.NewOrderRepo(db).Create(ctx, tx, &o, items)
	}))
	return o
}

// Stock reads a product's current quantity.
func Stock(t testing.TB, db *sqlx.DB, productID int64) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT stock_quantity FROM products WHERE id = ?`, productID))
	return n
}

// Count runs a COUNT(*) query.
func Count(t testing.TB, db *sqlx.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, query, args...))
	return n
}
