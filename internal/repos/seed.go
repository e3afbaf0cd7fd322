package repos

import (
	"context"
	"fmt"

	"motodean/internal/domain"
	applog "motodean/internal/log"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "Passw0rd!"

// SeedDemo fills an empty database with staff accounts, customers, products with
// opening stock and a handful of orders. It does nothing once products exist.
func SeedDemo(ctx context.Context, db *sqlx.DB) error {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	applog.L().Info("seeding demo data")

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), 12)
	if err != nil {
		return err
	}
	users := NewUserRepo(db)
	products := NewProductRepo(db)
	inv := NewInventoryStore(db)
	orders := NewOrderRepo(db)

	return RunInTx(ctx, db, func(tx *sqlx.Tx) error {
		accounts := []*domain.User{
			{Email: "admin@motodean.test", FirstName: "Dean", LastName: "Admin", Role: domain.RoleAdmin},
			{Email: "staff@motodean.test", FirstName: "Sam", LastName: "Staff", Role: domain.RoleStaff},
			{Email: "maria@motodean.test", FirstName: "Maria", LastName: "Santos", Role: domain.RoleCustomer},
			{Email: "jose@motodean.test", FirstName: "Jose", LastName: "Reyes", Role: domain.RoleCustomer},
		}
		for _, u := range accounts {
			u.Hash = string(hash)
			if err := users.Create(ctx, tx, u); err != nil {
				return fmt.Errorf("seed user %s: %w", u.Email, err)
			}
		}
		admin := accounts[0]

		catalog := []struct {
			p     domain.Product
			stock int
		}{
			{domain.Product{Name: "Full Face Helmet", Category: "helmets", Price: decimal.RequireFromString("3499.00"), ReorderThreshold: 3, IsAvailable: true}, 12},
			{domain.Product{Name: "Brake Pad Set", Category: "brakes", Price: decimal.RequireFromString("650.00"), ReorderThreshold: 5, IsAvailable: true}, 20},
			{domain.Product{Name: "Chain and Sprocket Kit", Category: "drivetrain", Price: decimal.RequireFromString("1899.50"), ReorderThreshold: 2, IsAvailable: true}, 4},
			{domain.Product{Name: "Riding Gloves", Category: "apparel", Price: decimal.RequireFromString("799.00"), ReorderThreshold: 4, IsAvailable: true}, 2},
		}
		ids := make([]int64, len(catalog))
		for i := range catalog {
			p := &catalog[i].p
			if err := products.Create(ctx, tx, p); err != nil {
				return fmt.Errorf("seed product %s: %w", p.Name, err)
			}
			if _, err := inv.Set(ctx, tx, p.ID, catalog[i].stock, Mutation{
				ActorID: admin.ID, Reason: domain.ReasonInitialStock, Notes: "Opening stock",
			}); err != nil {
				return err
			}
			ids[i] = p.ID
		}

		demo := []struct {
			o     domain.Order
			items []domain.OrderLineItem
		}{
			{
				domain.Order{OrderNumber: "MD-0001", CustomerID: accounts[2].ID, Status: domain.StatusProcessing, PaymentMethod: domain.PaymentGCash},
				[]domain.OrderLineItem{
					{ProductID: ids[0], Quantity: 1, UnitPrice: catalog[0].p.Price},
					{ProductID: ids[1], Quantity: 2, UnitPrice: catalog[1].p.Price},
				},
			},
			{
				domain.Order{OrderNumber: "MD-0002", CustomerID: accounts[3].ID, Status: domain.StatusProcessing, PaymentMethod: domain.PaymentCOD},
				[]domain.OrderLineItem{{ProductID: ids[2], Quantity: 1, UnitPrice: catalog[2].p.Price}},
			},
			{
				domain.Order{OrderNumber: "MD-0003", CustomerID: accounts[2].ID, Status: domain.StatusPending, PaymentMethod: domain.PaymentPayMaya},
				[]domain.OrderLineItem{{ProductID: ids[3], Quantity: 1, UnitPrice: catalog[3].p.Price}},
			},
		}
		for i := range demo {
			if err := orders.Create(ctx, tx, &demo[i].o, demo[i].items); err != nil {
				return err
			}
		}
		applog.L().Info("demo data seeded", zap.Int("products", len(catalog)), zap.Int("orders", len(demo)))
		return nil
	})
}
