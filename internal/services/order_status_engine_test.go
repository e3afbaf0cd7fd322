package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"motodean/internal/domain"
	"motodean/internal/repos"
	"motodean/internal/services"
	"motodean/internal/testutil"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newEngine(t *testing.T, db *sqlx.DB) (*services.OrderStatusEngine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	return services.NewOrderStatusEngine(services.EngineDeps{
		DB:      db,
		Audit:   services.NewAuditTrail(repos.NewAuditRepo(db), logger),
		Outbox:  repos.NewOutboxRepo(db),
		Logger:  logger,
		Retries: 3,
	}), logs
}

func ledgerCount(t *testing.T, db *sqlx.DB, productID int64, reason domain.LedgerReason) int {
	return testutil.Count(t, db, `SELECT COUNT(*) FROM inventory_ledger WHERE product_id = ? AND reason = ?`, productID, reason)
}

func auditCount(t *testing.T, db *sqlx.DB, et domain.EntityType, id int64) int {
	return testutil.Count(t, db, `SELECT COUNT(*) FROM audit_log WHERE entity_type = ? AND entity_id = ?`, et, id)
}

func status(t *testing.T, db *sqlx.DB, orderID int64) domain.OrderStatus {
	var s domain.OrderStatus
	require.NoError(t, db.Get(&s, `SELECT status FROM orders WHERE id = ?`, orderID))
	return s
}

func TestTransition_ScenariosAB_PaymentDrainsStockThenCODShortfall(t *testing.T) {
	db := testutil.NewDB(t)
	eng, _ := newEngine(t, db)
	actor := testutil.Staff(t, db)
	ctx := context.Background()

	p := testutil.Product(t, db, "Brake Pad Set", "650.00", 5)
	o1 := testutil.Order(t, db, domain.StatusProcessing, domain.PaymentGCash, testutil.Line{Product: p, Quantity: 5})
	o2 := testutil.Order(t, db, domain.StatusProcessing, domain.PaymentCOD, testutil.Line{Product: p, Quantity: 1})

	res, err := eng.Transition(ctx, o1.ID, "paid", actor)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.StockDeducted)
	assert.Equal(t, "Order payment confirmed. Stock deducted automatically.", res.Message)
	assert.Equal(t, domain.StatusProcessing, res.OldStatus)
	assert.Equal(t, domain.StatusPaid, res.NewStatus)
	assert.Equal(t, 0, testutil.Stock(t, db, p.ID))

	entries, err := repos.NewInventoryStore(db).Ledger(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2) // initial stock + payment
	assert.Equal(t, domain.LedgerDecrease, entries[0].Action)
	assert.Equal(t, 5, entries[0].QuantityChange)
	assert.Equal(t, 5, entries[0].OldQuantity)
	assert.Equal(t, 0, entries[0].NewQuantity)
	assert.Equal(t, domain.ReasonOrderPayment, entries[0].Reason)
	assert.True(t, entries[0].Consistent())

	res, err = eng.Transition(ctx, o2.ID, "shipped", actor)
	require.Error(t, err)
	assert.False(t, res.Success)
	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 0, ise.Available)
	assert.Equal(t, 1, ise.Required)
	assert.Equal(t, p.ID, ise.ProductID)
	assert.ErrorIs(t, err, services.ErrInsufficientStock)
	assert.Equal(t, "Insufficient stock for Brake Pad Set. Available: 0, Needed: 1", res.Message)
	assert.Equal(t, domain.StatusProcessing, status(t, db, o2.ID))
	assert.Equal(t, 0, auditCount(t, db, domain.EntityOrder, o2.ID))
}

func TestTransition_ScenarioC_CODShipThenCompleteDeductsOnce(t *testing.T) {
	db := testutil.NewDB(t)
	eng, _ := newEngine(t, db)
	actor := testutil.Staff(t, db)
	ctx := context.Background()

	q := testutil.Product(t, db, "Chain Kit", "1899.50", 10)
	o3 := testutil.Order(t, db, domain.StatusProcessing, domain.PaymentCOD, testutil.Line{Product: q, Quantity: 2})

	res, err := eng.Transition(ctx, o3.ID, "shipped", actor)
	require.NoError(t, err)
	assert.True(t, res.StockDeducted)
	assert.Equal(t, "COD order marked as shipped. Stock deducted automatically.", res.Message)
	assert.Equal(t, 8, testutil.Stock(t, db, q.ID))

	res, err = eng.Transition(ctx, o3.ID, "completed", actor)
	require.NoError(t, err)
	assert.False(t, res.StockDeducted)
	assert.Equal(t, "Order completed successfully", res.Message)
	assert.Equal(t, 8, testutil.Stock(t, db, q.ID))
	assert.Equal(t, 1, ledgerCount(t, db, q.ID, domain.ReasonOrderPayment))
}

func TestTransition_ScenarioD_CancelPendingWritesOnlyAudit(t *testing.T) {
	db := testutil.NewDB(t)
	eng, _ := newEngine(t, db)
	actor := testutil.Staff(t, db)

	p := testutil.Product(t, db, "Gloves", "799.00", 4)
	o4 := testutil.Order(t, db, domain.StatusPending, domain.PaymentPayMaya, testutil.Line{Product: p, Quantity: 1})

	res, err := eng.Transition(context.Background(), o4.ID, "cancelled", actor)
	require.NoError(t, err)
	assert.Equal(t, "Order cancelled", res.Message)
	assert.Equal(t, domain.StatusCancelled, status(t, db, o4.ID))
	assert.Equal(t, 0, ledgerCount(t, db, p.ID, domain.ReasonOrderPayment))
	assert.Equal(t, 1, auditCount(t, db, domain.EntityOrder, o4.ID))
	assert.Equal(t, 4, testutil.Stock(t, db, p.ID))
}

func TestTransition_ScenarioE_RepeatedPaidIsNoop(t *testing.T) {
	db := testutil.NewDB(t)
	eng, _ := newEngine(t, db)
	actor := testutil.Staff(t, db)
	ctx := context.Background()

	p := testutil.Product(t, db, "Helmet", "3499.00", 5)
	o := testutil.Order(t, db, domain.StatusProcessing, domain.PaymentGCash, testutil.Line{Product: p, Quantity: 5})

	_, err := eng.Transition(ctx, o.ID, "paid", actor)
	require.NoError(t, err)
	audits := testutil.Count(t, db, `SELECT COUNT(*) FROM audit_log`)

	res, err := eng.Transition(ctx, o.ID, "PAID ", actor)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.StockDeducted)
	assert.Equal(t, domain.StatusPaid, res.OldStatus)
	assert.Equal(t, domain.StatusPaid, res.NewStatus)
	assert.Equal(t, 0, testutil.Stock(t, db, p.ID))
	assert.Equal(t, 1, ledgerCount(t, db, p.ID, domain.ReasonOrderPayment))
	assert.Equal(t, audits, testutil.Count(t, db, `SELECT COUNT(*) FROM audit_log`))
	assert.Equal(t, 1, testutil.Count(t, db, `SELECT COUNT(*) FROM order_status_history WHERE order_id = ?`, o.ID))
}

func TestTransition_DeductionWritesLedgerAuditHistoryAndEvents(t *testing.T) {
	db := testutil.NewDB(t)
	eng, _ := newEngine(t, db)
	actor := testutil.Staff(t, db)

	a := testutil.Product(t, db, "Helmet", "3499.00", 3)
	b := testutil.Product(t, db, "Pads", "650.00", 10)
	o := testutil.Order(t, db, domain.StatusProcessing, domain.PaymentGCash,
		testutil.Line{Product: a, Quantity: 1}, testutil.Line{Product: b, Quantity: 4})

	_, err := eng.Transition(context.Background(), o.ID, "paid", actor)
	require.NoError(t, err)

	assert.Equal(t, 1, ledgerCount(t, db, a.ID, domain.ReasonOrderPayment))
	assert.Equal(t, 1, ledgerCount(t, db, b.ID, domain.ReasonOrderPayment))
	assert.Equal(t, 1, auditCount(t, db, domain.EntityOrder, o.ID))
	assert.Equal(t, 1, auditCount(t, db, domain.EntityProduct, a.ID))
	assert.Equal(t, 1, auditCount(t, db, domain.EntityProduct, b.ID))

	var entry domain.AuditEntry
	require.NoError(t, db.Get(&entry, `
		SELECT id, entity_type, entity_id, action, old_values, new_values, actor_id, actor_email, actor_role, ip_address, details, created_at
		FROM audit_log WHERE entity_type = 'product' AND entity_id = ?`, b.ID))
	assert.Equal(t, domain.Snapshot{"stock_quantity": float64(10)}, entry.OldValues)
	assert.Equal(t, domain.Snapshot{"stock_quantity": float64(6)}, entry.NewValues)
	assert.Equal(t, actor.ID, entry.ActorID)
	assert.Equal(t, actor.Email, entry.ActorEmail)

	hist, err := repos.NewOrderRepo(db).History(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "Payment approved by admin", hist[0].Notes)
	assert.Equal(t, actor.ID, hist[0].ChangedBy)

	assert.Equal(t, 2, testutil.Count(t, db, `SELECT COUNT(*) FROM outbox_events WHERE aggregate_id = ?`, o.ID))
}

func TestTransition_ShortItemLeavesEverythingUntouched(t *testing.T) {
	db := testutil.NewDB(t)
	eng, _ := newEngine(t, db)
	actor := testutil.Staff(t, db)

	plenty := testutil.Product(t, db, "Pads", "650.00", 10)
	scarce := testutil.Product(t, db, "Helmet", "3499.00", 1)
	o := testutil.Order(t, db, domain.StatusProcessing, domain.PaymentGCash,
		testutil.Line{Product: plenty, Quantity: 2}, testutil.Line{Product: scarce, Quantity: 2})

	_, err := eng.Transition(context.Background(), o.ID, "paid", actor)
	require.ErrorIs(t, err, services.ErrInsufficientStock)

	assert.Equal(t, 10, testutil.Stock(t, db, plenty.ID))
	assert.Equal(t, 1, testutil.Stock(t, db, scarce.ID))
	assert.Equal(t, domain.StatusProcessing, status(t, db, o.ID))
	assert.Equal(t, 0, ledgerCount(t, db, plenty.ID, domain.ReasonOrderPayment))
	assert.Equal(t, 0, testutil.Count(t, db, `SELECT COUNT(*) FROM order_status_history WHERE order_id = ?`, o.ID))
	assert.Equal(t, 0, testutil.Count(t, db, `SELECT COUNT(*) FROM audit_log`))
	assert.Equal(t, 0, testutil.Count(t, db, `SELECT COUNT(*) FROM outbox_events`))
}

func TestTransition_EveryPathDeductsExactlyOnce(t *testing.T) {
	paths := map[string][]string{
		"paid-shipped-completed": {"paid", "shipped", "completed"},
		"cod-shipped-completed":  {"shipped", "completed"},
		"direct-complete":        {"completed"},
		"paid-completed":         {"paid", "completed"},
		"reject-then-pay":        {"pending", "processing", "paid", "shipped", "completed"},
	}
	for name, steps := range paths {
		t.Run(name, func(t *testing.T) {
			db := testutil.NewDB(t)
			eng, _ := newEngine(t, db)
			actor := testutil.Staff(t, db)
			p := testutil.Product(t, db, "Pads", "650.00", 10)
			o := testutil.Order(t, db, domain.StatusProcessing, domain.PaymentCOD, testutil.Line{Product: p, Quantity: 3})

			for _, s := range steps {
				_, err := eng.Transition(context.Background(), o.ID, s, actor)
				require.NoError(t, err, "step %s", s)
			}
			assert.Equal(t, 7, testutil.Stock(t, db, p.ID))
			assert.Equal(t, 1, ledgerCount(t, db, p.ID, domain.ReasonOrderPayment))
		})
	}
}

func TestTransition_Rejections(t *testing.T) {
	db := testutil.NewDB(t)
	eng, _ := newEngine(t, db)
	actor := testutil.Staff(t, db)
	ctx := context.Background()
	p := testutil.Product(t, db, "Pads", "650.00", 10)

	t.Run("invalid status", func(t *testing.T) {
		o := testutil.Order(t, db, domain.StatusProcessing, domain.PaymentGCash, testutil.Line{Product: p, Quantity: 1})
		for _, raw := range []string{"refunded", " PAID ", "Paid"} {
			res, err := eng.Transition(ctx, o.ID, raw, actor)
			require.ErrorIs(t, err, services.ErrInvalidStatus, raw)
			assert.Equal(t, "Invalid status", res.Message)
			assert.False(t, res.StockDeducted)
		}
		assert.Equal(t, domain.StatusProcessing, status(t, db, o.ID))
		assert.Equal(t, 10, testutil.Stock(t, db, p.ID))
	})

	t.Run("unknown order", func(t *testing.T) {
		res, err := eng.Transition(ctx, 999999, "paid", actor)
		require.ErrorIs(t, err, services.ErrOrderNotFound)
		assert.Equal(t, "Order not found", res.Message)
	})

	t.Run("out of terminal state", func(t *testing.T) {
		o := testutil.Order(t, db, domain.StatusCompleted, domain.PaymentGCash, testutil.Line{Product: p, Quantity: 1})
		res, err := eng.Transition(ctx, o.ID, "cancelled", actor)
		require.ErrorIs(t, err, services.ErrIllegalTransition)
		var ite *services.IllegalTransitionError
		require.ErrorAs(t, err, &ite)
		assert.Equal(t, domain.StatusCompleted, ite.From)
		assert.False(t, res.Success)
		assert.Equal(t, domain.StatusCompleted, status(t, db, o.ID))
	})

	t.Run("paid back to pending", func(t *testing.T) {
		o := testutil.Order(t, db, domain.StatusPaid, domain.PaymentGCash, testutil.Line{Product: p, Quantity: 1})
		_, err := eng.Transition(ctx, o.ID, "pending", actor)
		require.ErrorIs(t, err, services.ErrIllegalTransition)
	})

	assert.Equal(t, 10, testutil.Stock(t, db, p.ID))
}

func TestTransition_CompetingOrdersNeverOversell(t *testing.T) {
	db := testutil.NewDB(t)
	eng, _ := newEngine(t, db)
	actor := testutil.Staff(t, db)

	p := testutil.Product(t, db, "Helmet", "3499.00", 5)
	orders := []domain.Order{
		testutil.Order(t, db, domain.StatusProcessing, domain.PaymentGCash, testutil.Line{Product: p, Quantity: 3}),
		testutil.Order(t, db, domain.StatusProcessing, domain.PaymentCOD, testutil.Line{Product: p, Quantity: 3}),
	}
	targets := []string{"paid", "shipped"}

	var wg sync.WaitGroup
	errs := make([]error, len(orders))
	for i := range orders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.Transition(context.Background(), orders[i].ID, targets[i], actor)
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, services.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 2, testutil.Stock(t, db, p.ID))
	assert.Equal(t, 1, ledgerCount(t, db, p.ID, domain.ReasonOrderPayment))
}

func TestTransition_ConcurrentSameOrderDeductsOnce(t *testing.T) {
	db := testutil.NewDB(t)
	eng, _ := newEngine(t, db)
	actor := testutil.Staff(t, db)

	p := testutil.Product(t, db, "Pads", "650.00", 20)
	o := testutil.Order(t, db, domain.StatusProcessing, domain.PaymentGCash, testutil.Line{Product: p, Quantity: 4})

	var wg sync.WaitGroup
	results := make([]services.Result, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := eng.Transition(context.Background(), o.ID, "paid", actor)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	deducted := 0
	for _, r := range results {
		if r.StockDeducted {
			deducted++
		}
	}
	assert.Equal(t, 1, deducted)
	assert.Equal(t, 16, testutil.Stock(t, db, p.ID))
	assert.Equal(t, 1, ledgerCount(t, db, p.ID, domain.ReasonOrderPayment))
}

func TestTransition_AuditFailureDoesNotAbortTransition(t *testing.T) {
	db := testutil.NewDB(t)
	eng, logs := newEngine(t, db)
	actor := testutil.Staff(t, db)

	p := testutil.Product(t, db, "Pads", "650.00", 5)
	o := testutil.Order(t, db, domain.StatusProcessing, domain.PaymentGCash, testutil.Line{Product: p, Quantity: 2})

	_, err := db.Exec(`DROP TABLE audit_log`)
	require.NoError(t, err)

	res, err := eng.Transition(context.Background(), o.ID, "paid", actor)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.StatusPaid, status(t, db, o.ID))
	assert.Equal(t, 3, testutil.Stock(t, db, p.ID))
	assert.Equal(t, 1, ledgerCount(t, db, p.ID, domain.ReasonOrderPayment))
	assert.Equal(t, 2, logs.FilterMessage("audit write failed").Len())
}

func TestTransition_StorageFailureIsGeneric(t *testing.T) {
	db := testutil.NewDB(t)
	eng, logs := newEngine(t, db)
	actor := testutil.Staff(t, db)

	p := testutil.Product(t, db, "Pads", "650.00", 5)
	o := testutil.Order(t, db, domain.StatusPending, domain.PaymentGCash, testutil.Line{Product: p, Quantity: 1})

	_, err := db.Exec(`DROP TABLE order_status_history`)
	require.NoError(t, err)

	res, err := eng.Transition(context.Background(), o.ID, "processing", actor)
	require.ErrorIs(t, err, services.ErrTransitionFailed)
	var tfe *services.TransitionFailedError
	require.ErrorAs(t, err, &tfe)
	assert.Error(t, tfe.Cause)
	assert.Equal(t, "Error updating order status", res.Message)
	assert.NotContains(t, res.Message, "order_status_history")
	assert.Equal(t, domain.StatusPending, status(t, db, o.ID))
	assert.Equal(t, 1, logs.FilterMessage("order status transition failed").Len())
}

func TestOrderDetails(t *testing.T) {
	db := testutil.NewDB(t)
	eng, _ := newEngine(t, db)
	actor := testutil.Staff(t, db)
	ctx := context.Background()

	p := testutil.Product(t, db, "Pads", "650.00", 5)
	o := testutil.Order(t, db, domain.StatusProcessing, domain.PaymentGCash, testutil.Line{Product: p, Quantity: 2})
	_, err := eng.Transition(ctx, o.ID, "paid", actor)
	require.NoError(t, err)

	d, err := eng.OrderDetails(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, d.Order.Status)
	assert.Equal(t, "1300.00", d.Order.TotalAmount.StringFixed(2))
	require.Len(t, d.LineItems, 1)
	assert.Equal(t, "Pads", d.LineItems[0].ProductName)
	assert.Equal(t, "1300.00", d.LineItems[0].Subtotal)
	require.Len(t, d.StatusHistory, 1)
	assert.Equal(t, []domain.OrderStatus{domain.StatusShipped, domain.StatusCompleted, domain.StatusCancelled}, d.AllowedTargets)
	assert.Equal(t, o.CustomerID, d.Customer.ID)

	_, err = eng.OrderDetails(ctx, 424242)
	assert.ErrorIs(t, err, services.ErrOrderNotFound)
}
