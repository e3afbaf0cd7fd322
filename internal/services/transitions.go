package services

import (
	"slices"

	"motodean/internal/domain"
)

var transitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.StatusPending: {domain.StatusProcessing, domain.StatusCancelled},
	// pending here is the admin rejecting the payment proof; stock has not been taken yet.
	domain.StatusProcessing: {domain.StatusPending, domain.StatusPaid, domain.StatusShipped, domain.StatusCompleted, domain.StatusCancelled},
	domain.StatusPaid:       {domain.StatusShipped, domain.StatusCompleted, domain.StatusCancelled},
	domain.StatusShipped:    {domain.StatusCompleted, domain.StatusCancelled},
	domain.StatusCompleted:  nil,
	domain.StatusCancelled:  nil,
}

// AllowedTargets lists the statuses an order in from may move to.
func AllowedTargets(from domain.OrderStatus) []domain.OrderStatus {
	return slices.Clone(transitions[from])
}

// CanTransition reports whether the table has an edge from from to to.
func CanTransition(from, to domain.OrderStatus) bool {
	return slices.Contains(transitions[from], to)
}

// RequiresDeduction reports whether moving from to to is the moment stock leaves
// inventory. Payment confirmation and COD shipment take it, and so does completing
// an order whose stock was never taken.
func RequiresDeduction(from, to domain.OrderStatus) bool {
	switch {
	case to == domain.StatusCompleted:
		return from != domain.StatusPaid && from != domain.StatusShipped && from != domain.StatusCompleted
	case from == domain.StatusProcessing:
		return to == domain.StatusPaid || to == domain.StatusShipped
	}
	return false
}

func resultMessage(to domain.OrderStatus, deducted bool) string {
	switch to {
	case domain.StatusPending:
		return "Order set back to pending"
	case domain.StatusProcessing:
		return "Order moved to processing status"
	case domain.StatusPaid:
		return "Order payment confirmed. Stock deducted automatically."
	case domain.StatusShipped:
		if deducted {
			return "COD order marked as shipped. Stock deducted automatically."
		}
		return "Order marked as shipped"
	case domain.StatusCompleted:
		if deducted {
			return "Order completed successfully. Stock deducted from inventory."
		}
		return "Order completed successfully"
	case domain.StatusCancelled:
		return "Order cancelled"
	}
	return "Order status updated successfully"
}

func historyNote(to domain.OrderStatus) string {
	switch to {
	case domain.StatusPaid:
		return "Payment approved by admin"
	case domain.StatusPending:
		return "Order rejected and set back to pending"
	case domain.StatusShipped:
		return "Order marked as shipped"
	case domain.StatusCompleted:
		return "Order marked as completed"
	case domain.StatusCancelled:
		return "Order cancelled by admin"
	}
	return "Status updated by admin"
}
