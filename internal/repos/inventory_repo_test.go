package repos_test

import (
	"context"
	"sync"
	"testing"

	"motodean/internal/domain"
	"motodean/internal/repos"
	"motodean/internal/testutil"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var manual = repos.Mutation{ActorID: 9, Reason: domain.ReasonManualAdjustment}

func TestInventoryStore_DecrementGuardsStock(t *testing.T) {
	db := testutil.NewDB(t)
	store := repos.NewInventoryStore(db)
	ctx := context.Background()
	p := testutil.Product(t, db, "Pads", "650.00", 3)

	left, err := store.Decrement(ctx, db, p.ID, 2, manual)
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	_, err = store.Decrement(ctx, db, p.ID, 2, manual)
	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 1, ise.Available)
	assert.Equal(t, 2, ise.Required)
	assert.Equal(t, 1, testutil.Stock(t, db, p.ID))

	_, err = store.Decrement(ctx, db, 4040, 1, manual)
	assert.ErrorIs(t, err, repos.ErrNotFound)

	_, err = store.Decrement(ctx, db, p.ID, 0, manual)
	assert.Error(t, err)
}

func TestInventoryStore_EveryMutationAppendsOneConsistentEntry(t *testing.T) {
	db := testutil.NewDB(t)
	store := repos.NewInventoryStore(db)
	ctx := context.Background()
	p := testutil.Product(t, db, "Pads", "650.00", 0)

	_, err := store.Increment(ctx, db, p.ID, 10, manual)
	require.NoError(t, err)
	_, err = store.Decrement(ctx, db, p.ID, 4, manual)
	require.NoError(t, err)
	old, err := store.Set(ctx, db, p.ID, 2, manual)
	require.NoError(t, err)
	assert.Equal(t, 6, old)

	entries, err := store.Ledger(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	want := []struct {
		action           domain.LedgerAction
		old, change, new int
	}{
		{domain.LedgerSet, 6, 4, 2},
		{domain.LedgerDecrease, 10, 4, 6},
		{domain.LedgerIncrease, 0, 10, 10},
	}
	for i, w := range want {
		e := entries[i]
		assert.Equal(t, w.action, e.Action)
		assert.Equal(t, w.old, e.OldQuantity)
		assert.Equal(t, w.change, e.QuantityChange)
		assert.Equal(t, w.new, e.NewQuantity)
		assert.Equal(t, int64(9), e.ActorID)
		assert.True(t, e.Consistent())
	}

	_, err = store.Set(ctx, db, p.ID, -1, manual)
	assert.Error(t, err)
	assert.Equal(t, 2, testutil.Stock(t, db, p.ID))
}

func TestInventoryStore_RollsBackWithCallerTransaction(t *testing.T) {
	db := testutil.NewDB(t)
	store := repos.NewInventoryStore(db)
	ctx := context.Background()
	p := testutil.Product(t, db, "Pads", "650.00", 5)

	err := repos.RunInTx(ctx, db, func(tx *sqlx.Tx) error {
		if _, err := store.Decrement(ctx, tx, p.ID, 5, manual); err != nil {
			return err
		}
		return repos.ErrConflict
	})
	require.ErrorIs(t, err, repos.ErrConflict)
	assert.Equal(t, 5, testutil.Stock(t, db, p.ID))
	assert.Equal(t, 0, testutil.Count(t, db, `SELECT COUNT(*) FROM inventory_ledger WHERE reason = 'manual_adjustment'`))
}

func TestInventoryStore_ConcurrentDecrementsNeverGoNegative(t *testing.T) {
	db := testutil.NewDB(t)
	store := repos.NewInventoryStore(db)
	p := testutil.Product(t, db, "Pads", "650.00", 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repos.RunInTx(context.Background(), db, func(tx *sqlx.Tx) error {
				_, err := store.Decrement(context.Background(), tx, p.ID, 3, manual)
				return err
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, ok)
	assert.Equal(t, 1, testutil.Stock(t, db, p.ID))
	assert.Equal(t, 3, testutil.Count(t, db, `SELECT COUNT(*) FROM inventory_ledger WHERE action = 'decrease'`))
}
