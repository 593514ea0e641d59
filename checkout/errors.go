package checkout

import (
	"errors"
	"fmt"
)

// ErrDuplicateOrderID is returned by a Ledger when the generated order id
// collides with an existing order. The finalizer retries the whole
// transaction with a fresh id.
var ErrDuplicateOrderID = errors.New("order id already exists")

// ValidationError rejects bad input before any transaction starts.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NotFoundError reports an unknown product or pending-purchase reference.
type NotFoundError struct {
	Resource string
	Ref      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Ref)
}

// InsufficientStockError aborts the transaction and names the offending
// product.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}
