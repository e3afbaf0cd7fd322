package domain

import "time"

type LedgerAction string

const (
	LedgerIncrease LedgerAction = "increase"
	LedgerDecrease LedgerAction = "decrease"
	LedgerSet      LedgerAction = "set"
)

func (a LedgerAction) Valid() bool {
	return a == LedgerIncrease || a == LedgerDecrease || a == LedgerSet
}

type LedgerReason string

const (
	ReasonOrderPayment     LedgerReason = "order_payment"
	ReasonProductUpdate    LedgerReason = "product_update"
	ReasonInitialStock     LedgerReason = "initial_stock"
	ReasonManualAdjustment LedgerReason = "manual_adjustment"
)

func (r LedgerReason) Valid() bool {
	switch r {
	case ReasonOrderPayment, ReasonProductUpdate, ReasonInitialStock, ReasonManualAdjustment:
		return true
	}
	return false
}

// LedgerEntry is one append-only stock mutation record.
type LedgerEntry struct {
	ID             int64        `db:"id" json:"id"`
	ProductID      int64        `db:"product_id" json:"product_id"`
	Action         LedgerAction `db:"action" json:"action"`
	OldQuantity    int          `db:"old_quantity" json:"old_quantity"`
	QuantityChange int          `db:"quantity_change" json:"quantity_change"`
	NewQuantity    int          `db:"new_quantity" json:"new_quantity"`
	Reason         LedgerReason `db:"reason" json:"reason"`
	Notes          string       `db:"notes" json:"notes"`
	ActorID        int64        `db:"actor_id" json:"actor_id"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}

// Consistent reports whether the entry's arithmetic matches its action.
func (e LedgerEntry) Consistent() bool {
	switch e.Action {
	case LedgerIncrease:
		return e.NewQuantity == e.OldQuantity+e.QuantityChange
	case LedgerDecrease:
		return e.NewQuantity == e.OldQuantity-e.QuantityChange
	case LedgerSet:
		d := e.NewQuantity - e.OldQuantity
		if d < 0 {
			d = -d
		}
		return e.QuantityChange == d
	}
	return false
}
