package domain

import (
	"errors"
	"fmt"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// InsufficientStockError reports the first product that could not cover the requested quantity.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Required    int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = fmt.Sprintf("product %d", e.ProductID)
	}
	return fmt.Sprintf("insufficient stock for %s: available %d, required %d", name, e.Available, e.Required)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }
