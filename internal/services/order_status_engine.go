package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"motodean/internal/domain"
	"motodean/internal/outbox"
	"motodean/internal/repos"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Result describes the outcome of a transition request. Message is always set and
// safe to show to staff.
type Result struct {
	Success       bool               `json:"success"`
	Message       string             `json:"message"`
	OrderID       int64              `json:"order_id"`
	OrderNumber   string             `json:"order_number,omitempty"`
	OldStatus     domain.OrderStatus `json:"old_status,omitempty"`
	NewStatus     domain.OrderStatus `json:"new_status,omitempty"`
	StockDeducted bool               `json:"stock_deducted"`
}

type EngineDeps struct {
	DB        *sqlx.DB
	Orders    *repos.OrderRepo
	Inventory *repos.InventoryStore
	Audit     *AuditTrail
	Outbox    *repos.OutboxRepo
	Logger    *zap.Logger

	TxTimeout time.Duration
	Retries   int
	Now       func() time.Time
}

// OrderStatusEngine moves orders through their lifecycle and takes stock out of
// inventory at the transitions that confirm a sale.
type OrderStatusEngine struct {
	db        *sqlx.DB
	orders    *repos.OrderRepo
	inventory *repos.InventoryStore
	audit     *AuditTrail
	outbox    *repos.OutboxRepo
	log       *zap.Logger
	txTimeout time.Duration
	retries   int
	now       func() time.Time
}

// NewOrderStatusEngine fills unset dependencies with defaults.
func NewOrderStatusEngine(d EngineDeps) *OrderStatusEngine {
	e := &OrderStatusEngine{
		db:        d.DB,
		orders:    d.Orders,
		inventory: d.Inventory,
		audit:     d.Audit,
		outbox:    d.Outbox,
		log:       d.Logger,
		txTimeout: d.TxTimeout,
		retries:   d.Retries,
		now:       d.Now,
	}
	if e.orders == nil {
		e.orders = repos.NewOrderRepo(d.DB)
	}
	if e.inventory == nil {
		e.inventory = repos.NewInventoryStore(d.DB)
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.audit == nil {
		e.audit = NewAuditTrail(repos.NewAuditRepo(d.DB), e.log)
	}
	if e.txTimeout <= 0 {
		e.txTimeout = 5 * time.Second
	}
	if e.retries < 0 {
		e.retries = 0
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	return e
}

// Transition applies requested to the order. On success every effect (status,
// history, stock, ledger, audit, events) is committed together; on failure none is.
func (e *OrderStatusEngine) Transition(ctx context.Context, orderID int64, requested string, actor domain.Actor) (Result, error) {
	res := Result{OrderID: orderID}

	to, ok := domain.ParseOrderStatus(requested)
	if !ok {
		res.Message = "Invalid status"
		return res, fmt.Errorf("%w: %q", ErrInvalidStatus, requested)
	}
	res.NewStatus = to

	current, err := e.orders.Get(ctx, nil, orderID)
	if errors.Is(err, repos.ErrNotFound) {
		res.Message = "Order not found"
		return res, ErrOrderNotFound
	}
	if err != nil {
		return e.failed(res, actor, err)
	}
	res.OrderNumber, res.OldStatus = current.OrderNumber, current.Status
	if current.Status == to {
		return noop(res), nil
	}

	op := func() error {
		r, err := e.attempt(ctx, orderID, to, actor)
		if err == nil {
			res = r
			return nil
		}
		if repos.IsRetryable(err) {
			e.log.Warn("retrying order status transition",
				zap.Int64("order_id", orderID), zap.String("to", string(to)), zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(e.retries)), ctx)); err != nil {
		return e.classify(res, actor, err)
	}
	return res, nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 0
	return b
}

func noop(res Result) Result {
	res.Success = true
	res.NewStatus = res.OldStatus
	res.Message = "Order status is already " + string(res.OldStatus)
	return res
}

func (e *OrderStatusEngine) attempt(ctx context.Context, orderID int64, to domain.OrderStatus, actor domain.Actor) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.txTimeout)
	defer cancel()

	var res Result
	err := repos.RunInTx(ctx, e.db, func(tx *sqlx.Tx) error {
		o, err := e.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		res = Result{OrderID: o.ID, OrderNumber: o.OrderNumber, OldStatus: o.Status, NewStatus: to}
		if o.Status == to {
			res = noop(res)
			return nil
		}
		if !CanTransition(o.Status, to) {
			return &IllegalTransitionError{From: o.Status, To: to}
		}

		deduct := RequiresDeduction(o.Status, to)
		var lines []outbox.StockLine
		if deduct {
			if lines, err = e.deduct(ctx, tx, o, actor); err != nil {
				return err
			}
		}

		at := e.now()
		if err := e.orders.CompareAndSetStatus(ctx, tx, o.ID, o.Status, to, at); err != nil {
			return err
		}
		if err := e.orders.AppendHistory(ctx, tx, domain.StatusChange{
			OrderID: o.ID, OldStatus: o.Status, NewStatus: to,
			ChangedBy: actor.ID, Notes: historyNote(to), CreatedAt: at,
		}); err != nil {
			return err
		}

		_ = e.audit.Record(ctx, tx, Entry(actor, domain.EntityOrder, domain.EntityRef(o.ID), domain.AuditUpdate,
			domain.Snapshot{"status": string(o.Status)},
			domain.Snapshot{"status": string(to)},
			fmt.Sprintf("Order %s status changed from %s to %s", o.OrderNumber, o.Status, to)))
		for _, l := range lines {
			_ = e.audit.Record(ctx, tx, Entry(actor, domain.EntityProduct, domain.EntityRef(l.ProductID), domain.AuditUpdate,
				domain.Snapshot{"stock_quantity": l.NewQuantity + l.Quantity},
				domain.Snapshot{"stock_quantity": l.NewQuantity},
				fmt.Sprintf("Stock deducted for order %s", o.OrderNumber)))
		}

		if e.outbox != nil {
			key := strconv.FormatInt(o.ID, 10)
			if err := e.outbox.Add(ctx, tx, outbox.AggregateOrder, key, outbox.EventOrderStatusChanged, outbox.OrderStatusChanged{
				OrderID: o.ID, OrderNumber: o.OrderNumber, From: o.Status, To: to,
				StockDeducted: deduct, ActorID: actor.ID, At: at,
			}); err != nil {
				return err
			}
			if len(lines) > 0 {
				if err := e.outbox.Add(ctx, tx, outbox.AggregateOrder, key, outbox.EventInventoryDeducted, outbox.StockDeducted{
					OrderID: o.ID, OrderNumber: o.OrderNumber, Lines: lines, At: at,
				}); err != nil {
					return err
				}
			}
		}

		res.Success = true
		res.StockDeducted = deduct
		res.Message = resultMessage(to, deduct)
		return nil
	})
	return res, err
}

// deduct takes every line item's quantity out of stock. Availability is checked for
// all items before the first write so a short item leaves stock untouched.
func (e *OrderStatusEngine) deduct(ctx context.Context, tx *sqlx.Tx, o domain.Order, actor domain.Actor) ([]outbox.StockLine, error) {
	items, err := e.orders.Items(ctx, tx, o.ID)
	if err != nil {
		return nil, err
	}
	for _, li := range items {
		if li.Stock < li.Quantity {
			return nil, &domain.InsufficientStockError{
				ProductID: li.ProductID, ProductName: li.ProductName,
				Available: li.Stock, Required: li.Quantity,
			}
		}
	}
	lines := make([]outbox.StockLine, 0, len(items))
	for _, li := range items {
		left, err := e.inventory.Decrement(ctx, tx, li.ProductID, li.Quantity, repos.Mutation{
			ActorID: actor.ID,
			Reason:  domain.ReasonOrderPayment,
			Notes:   "Stock deducted for order " + o.OrderNumber,
		})
		if err != nil {
			var ise *domain.InsufficientStockError
			if errors.As(err, &ise) {
				ise.ProductName = li.ProductName
			}
			return nil, err
		}
		lines = append(lines, outbox.StockLine{ProductID: li.ProductID, Quantity: li.Quantity, NewQuantity: left})
	}
	return lines, nil
}

func (e *OrderStatusEngine) classify(res Result, actor domain.Actor, err error) (Result, error) {
	res.Success = false
	var ite *IllegalTransitionError
	var ise *domain.InsufficientStockError
	switch {
	case errors.As(err, &ite):
		res.OldStatus = ite.From
		res.Message = fmt.Sprintf("Cannot change status from %s to %s", ite.From, ite.To)
		return res, err
	case errors.As(err, &ise):
		name := ise.ProductName
		if name == "" {
			name = "product " + strconv.FormatInt(ise.ProductID, 10)
		}
		res.Message = fmt.Sprintf("Insufficient stock for %s. Available: %d, Needed: %d", name, ise.Available, ise.Required)
		return res, err
	case errors.Is(err, repos.ErrNotFound):
		res.Message = "Order not found"
		return res, ErrOrderNotFound
	}
	return e.failed(res, actor, err)
}

func (e *OrderStatusEngine) failed(res Result, actor domain.Actor, cause error) (Result, error) {
	e.log.Error("order status transition failed",
		zap.Int64("order_id", res.OrderID),
		zap.String("from", string(res.OldStatus)),
		zap.String("to", string(res.NewStatus)),
		zap.Int64("actor_id", actor.ID),
		zap.Error(cause))
	terr := &TransitionFailedError{OrderID: res.OrderID, Cause: cause}
	res.Success = false
	res.Message = terr.Error()
	return res, terr
}

// LineItemView is a line item with its computed subtotal.
type LineItemView struct {
	domain.OrderLineItem
	Subtotal string `json:"subtotal"`
}

type OrderDetails struct {
	Order          domain.Order          `json:"order"`
	Customer       domain.Customer       `json:"customer"`
	LineItems      []LineItemView        `json:"line_items"`
	StatusHistory  []domain.StatusChange `json:"status_history"`
	AllowedTargets []domain.OrderStatus  `json:"allowed_targets"`
}

// OrderDetails is read-only.
func (e *OrderStatusEngine) OrderDetails(ctx context.Context, orderID int64) (OrderDetails, error) {
	o, err := e.orders.Get(ctx, nil, orderID)
	if errors.Is(err, repos.ErrNotFound) {
		return OrderDetails{}, ErrOrderNotFound
	}
	if err != nil {
		return OrderDetails{}, fmt.Errorf("load order %d: %w", orderID, err)
	}
	d := OrderDetails{Order: o, AllowedTargets: AllowedTargets(o.Status)}
	if d.AllowedTargets == nil {
		d.AllowedTargets = []domain.OrderStatus{}
	}
	if d.Customer, err = e.orders.Customer(ctx, o.CustomerID); err != nil && !errors.Is(err, repos.ErrNotFound) {
		return OrderDetails{}, fmt.Errorf("load customer %d: %w", o.CustomerID, err)
	}
	items, err := e.orders.Items(ctx, nil, orderID)
	if err != nil {
		return OrderDetails{}, fmt.Errorf("load items for order %d: %w", orderID, err)
	}
	d.LineItems = make([]LineItemView, 0, len(items))
	for _, li := range items {
		d.LineItems = append(d.LineItems, LineItemView{OrderLineItem: li, Subtotal: li.Subtotal().StringFixed(2)})
	}
	if d.StatusHistory, err = e.orders.History(ctx, orderID); err != nil {
		return OrderDetails{}, fmt.Errorf("load history for order %d: %w", orderID, err)
	}
	if d.StatusHistory == nil {
		d.StatusHistory = []domain.StatusChange{}
	}
	return d, nil
}

// ListOrders pages through orders, optionally filtered by status.
func (e *OrderStatusEngine) ListOrders(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]repos.OrderSummary, int, error) {
	out, total, err := e.orders.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	if out == nil {
		out = []repos.OrderSummary{}
	}
	return out, total, nil
}
