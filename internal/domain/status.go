package domain

import "strings"

// OrderStatus is the closed set of order lifecycle states.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusPaid       OrderStatus = "paid"
	StatusShipped    OrderStatus = "shipped"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	StatusPending, StatusProcessing, StatusPaid, StatusShipped, StatusCompleted, StatusCancelled,
}

// Valid reports whether s is one of the six defined statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusPaid, StatusShipped, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses have no outgoing transitions.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseOrderStatus trims surrounding whitespace and reports whether the value is
// exactly one of the known statuses. Case is significant.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	s := OrderStatus(strings.TrimSpace(raw))
	return s, s.Valid()
}

type PaymentMethod string

const (
	PaymentGCash   PaymentMethod = "gcash"
	PaymentPayMaya PaymentMethod = "paymaya"
	PaymentCOD     PaymentMethod = "cod"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentGCash || p == PaymentPayMaya || p == PaymentCOD
}
