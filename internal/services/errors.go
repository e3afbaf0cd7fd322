package services

import (
	"errors"
	"fmt"

	"motodean/internal/domain"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrInsufficientStock = domain.ErrInsufficientStock
	ErrTransitionFailed  = errors.New("status transition failed")
	ErrAuditWriteFailed  = errors.New("audit write failed")
	ErrInvalidAdjustment = errors.New("invalid stock adjustment")
)

// IllegalTransitionError names a move the transition table does not allow.
type IllegalTransitionError struct {
	From, To domain.OrderStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// TransitionFailedError wraps an unexpected storage failure. Its message never
// includes the cause; callers log Cause instead.
type TransitionFailedError struct {
	OrderID int64
	Cause   error
}

func (e *TransitionFailedError) Error() string { return "Error updating order status" }

func (e *TransitionFailedError) Unwrap() error { return e.Cause }

func (e *TransitionFailedError) Is(target error) bool { return target == ErrTransitionFailed }
