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

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	InStock    = "IN_STOCK"
	LowStock   = "LOW_STOCK"
	OutOfStock = "OUT_OF_STOCK"
)

type Availability struct {
	ProductID int64  `json:"product_id"`
	Status    string `json:"status"`
	Qty       int    `json:"qty"`
	Threshold int    `json:"reorder_threshold"`
}

// AdjustCommand is a manual stock change from product management.
type AdjustCommand struct {
	ProductID int64
	Action    domain.LedgerAction
	Quantity  int
	Reason    domain.LedgerReason
	Notes     string
}

type AdjustResult struct {
	ProductID   int64               `json:"product_id"`
	Action      domain.LedgerAction `json:"action"`
	OldQuantity int                 `json:"old_quantity"`
	NewQuantity int                 `json:"new_quantity"`
	Message     string              `json:"message"`
}

type InventoryService struct {
	db       *sqlx.DB
	Inv      *repos.InventoryStore
	Products *repos.ProductRepo
	Audit    *AuditTrail
	Outbox   *repos.OutboxRepo
	log      *zap.Logger
}

func NewInventoryService(db *sqlx.DB, audit *AuditTrail, ob *repos.OutboxRepo, logger *zap.Logger) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = NewAuditTrail(repos.NewAuditRepo(db), logger)
	}
	return &InventoryService{
		db:       db,
		Inv:      repos.NewInventoryStore(db),
		Products: repos.NewProductRepo(db),
		Audit:    audit,
		Outbox:   ob,
		log:      logger,
	}
}

// CheckAvailability classifies a product's stock against its reorder threshold.
func (s *InventoryService) CheckAvailability(ctx context.Context, productID int64) (Availability, error) {
	p, err := s.Products.Get(ctx, productID)
	if errors.Is(err, repos.ErrNotFound) {
		return Availability{}, ErrProductNotFound
	}
	if err != nil {
		return Availability{}, err
	}
	a := Availability{ProductID: p.ID, Qty: p.StockQuantity, Threshold: p.ReorderThreshold, Status: OutOfStock}
	switch {
	case p.StockQuantity <= 0:
	case p.StockQuantity <= p.ReorderThreshold:
		a.Status = LowStock
	default:
		a.Status = InStock
	}
	return a, nil
}

func (c AdjustCommand) validate() error {
	if !c.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidAdjustment, c.Action)
	}
	if c.Action == domain.LedgerSet {
		if c.Quantity < 0 {
			return fmt.Errorf("%w: quantity must not be negative", ErrInvalidAdjustment)
		}
	} else if c.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidAdjustment)
	}
	if !c.Reason.Valid() || c.Reason == domain.ReasonOrderPayment {
		return fmt.Errorf("%w: reason %q not allowed for manual adjustments", ErrInvalidAdjustment, c.Reason)
	}
	return nil
}

// AdjustStock applies one manual change. Stock, ledger, audit entry and event commit together.
func (s *InventoryService) AdjustStock(ctx context.Context, cmd AdjustCommand, actor domain.Actor) (AdjustResult, error) {
	if cmd.Reason == "" {
		cmd.Reason = domain.ReasonManualAdjustment
	}
	if err := cmd.validate(); err != nil {
		return AdjustResult{}, err
	}
	res := AdjustResult{ProductID: cmd.ProductID, Action: cmd.Action}
	err := repos.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		p, err := s.Products.GetTx(ctx, tx, cmd.ProductID)
		if err != nil {
			return err
		}
		m := repos.Mutation{ActorID: actor.ID, Reason: cmd.Reason, Notes: cmd.Notes}
		res.OldQuantity = p.StockQuantity
		switch cmd.Action {
		case domain.LedgerIncrease:
			res.NewQuantity, err = s.Inv.Increment(ctx, tx, p.ID, cmd.Quantity, m)
		case domain.LedgerDecrease:
			res.NewQuantity, err = s.Inv.Decrement(ctx, tx, p.ID, cmd.Quantity, m)
		case domain.LedgerSet:
			_, err = s.Inv.Set(ctx, tx, p.ID, cmd.Quantity, m)
			res.NewQuantity = cmd.Quantity
		}
		if err != nil {
			return err
		}

		details := fmt.Sprintf("Stock %s for %s (%s)", cmd.Action, p.Name, cmd.Reason)
		if cmd.Notes != "" {
			details += ": " + cmd.Notes
		}
		_ = s.Audit.Record(ctx, tx, Entry(actor, domain.EntityProduct, domain.EntityRef(p.ID), domain.AuditUpdate,
			domain.Snapshot{"stock_quantity": res.OldQuantity},
			domain.Snapshot{"stock_quantity": res.NewQuantity},
			details))

		if s.Outbox != nil {
			return s.Outbox.Add(ctx, tx, outbox.AggregateProduct, strconv.FormatInt(p.ID, 10), outbox.EventInventoryAdjusted, outbox.StockAdjusted{
				ProductID: p.ID, Action: cmd.Action, OldQuantity: res.OldQuantity, NewQuantity: res.NewQuantity,
				Reason: cmd.Reason, ActorID: actor.ID, At: time.Now().UTC(),
			})
		}
		return nil
	})
	if errors.Is(err, repos.ErrNotFound) {
		return AdjustResult{}, ErrProductNotFound
	}
	if err != nil {
		if !errors.Is(err, ErrInsufficientStock) {
			s.log.Error("stock adjustment failed", zap.Int64("product_id", cmd.ProductID), zap.Int64("actor_id", actor.ID), zap.Error(err))
		}
		return AdjustResult{}, err
	}
	res.Message = fmt.Sprintf("Stock updated from %d to %d", res.OldQuantity, res.NewQuantity)
	return res, nil
}

func (s *InventoryService) LowStock(ctx context.Context) ([]domain.Product, error) {
	out, err := s.Products.LowStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}
	if out == nil {
		out = []domain.Product{}
	}
	return out, nil
}

func (s *InventoryService) Ledger(ctx context.Context, productID int64, limit int) ([]domain.LedgerEntry, error) {
	if _, err := s.Products.Get(ctx, productID); err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	out, err := s.Inv.Ledger(ctx, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger for product %d: %w", productID, err)
	}
	if out == nil {
		out = []domain.LedgerEntry{}
	}
	return out, nil
}
