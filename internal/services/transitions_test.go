package services

import (
	"testing"

	"motodean/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := map[domain.OrderStatus][]domain.OrderStatus{
		domain.StatusPending:    {domain.StatusProcessing, domain.StatusCancelled},
		domain.StatusProcessing: {domain.StatusPending, domain.StatusPaid, domain.StatusShipped, domain.StatusCompleted, domain.StatusCancelled},
		domain.StatusPaid:       {domain.StatusShipped, domain.StatusCompleted, domain.StatusCancelled},
		domain.StatusShipped:    {domain.StatusCompleted, domain.StatusCancelled},
	}
	for _, from := range domain.OrderStatuses {
		for _, to := range domain.OrderStatuses {
			want := false
			for _, s := range legal[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatesOfferNothing(t *testing.T) {
	assert.Empty(t, AllowedTargets(domain.StatusCompleted))
	assert.Empty(t, AllowedTargets(domain.StatusCancelled))
	assert.NotContains(t, AllowedTargets(domain.StatusCompleted), domain.StatusCancelled)
}

func TestAllowedTargetsIsACopy(t *testing.T) {
	got := AllowedTargets(domain.StatusPending)
	got[0] = domain.StatusCompleted
	assert.Equal(t, domain.StatusProcessing, AllowedTargets(domain.StatusPending)[0])
}

func TestRequiresDeduction(t *testing.T) {
	cases := []struct {
		from, to domain.OrderStatus
		want     bool
	}{
		{domain.StatusProcessing, domain.StatusPaid, true},
		{domain.StatusProcessing, domain.StatusShipped, true},
		{domain.StatusProcessing, domain.StatusCompleted, true},
		{domain.StatusPending, domain.StatusCompleted, true},
		{domain.StatusPaid, domain.StatusShipped, false},
		{domain.StatusPaid, domain.StatusCompleted, false},
		{domain.StatusShipped, domain.StatusCompleted, false},
		{domain.StatusProcessing, domain.StatusPending, false},
		{domain.StatusProcessing, domain.StatusCancelled, false},
		{domain.StatusPending, domain.StatusProcessing, false},
		{domain.StatusPaid, domain.StatusCancelled, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, RequiresDeduction(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

// No legal walk through the table may cross two deducting edges.
func TestNoPathDeductsTwice(t *testing.T) {
	var walk func(s domain.OrderStatus, deducted bool, depth int)
	walk = func(s domain.OrderStatus, deducted bool, depth int) {
		if depth > 8 {
			return
		}
		for _, next := range AllowedTargets(s) {
			d := RequiresDeduction(s, next)
			if deducted && d {
				t.Fatalf("second deduction on %s -> %s", s, next)
			}
			// re-entering pending is only possible before stock was taken
			if next == domain.StatusPending && deducted {
				t.Fatalf("pending reachable after deduction via %s", s)
			}
			walk(next, deducted || d, depth+1)
		}
	}
	walk(domain.StatusPending, false, 0)
}

func TestResultMessages(t *testing.T) {
	assert.Equal(t, "COD order marked as shipped. Stock deducted automatically.", resultMessage(domain.StatusShipped, true))
	assert.Equal(t, "Order marked as shipped", resultMessage(domain.StatusShipped, false))
	assert.Equal(t, "Order completed successfully. Stock deducted from inventory.", resultMessage(domain.StatusCompleted, true))
	assert.Equal(t, "Order set back to pending", resultMessage(domain.StatusPending, false))
	assert.Equal(t, "Order rejected and set back to pending", historyNote(domain.StatusPending))
}
