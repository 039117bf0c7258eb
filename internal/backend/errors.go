package backend

import (
	"errors"
	"fmt"
)

// OrderCreationError means the backend did not create the order.
// Nothing was persisted; the caller may retry.
type OrderCreationError struct {
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

func (e *OrderCreationError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("order creation failed: %s", e.Message)
	}
	return fmt.Sprintf("order creation failed (status %d): %s", e.StatusCode, e.Message)
}

func (e *OrderCreationError) Unwrap() error { return e.Err }

// PaymentProcessingError means the backend did not accept a payment for
// an existing order.
type PaymentProcessingError struct {
	OrderID    int64
	StatusCode int
	Message    string
	Err        error
}

func (e *PaymentProcessingError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("payment for order %d failed: %s", e.OrderID, e.Message)
	}
	return fmt.Sprintf("payment for order %d failed (status %d): %s", e.OrderID, e.StatusCode, e.Message)
}

func (e *PaymentProcessingError) Unwrap() error { return e.Err }

// ErrMenuUnavailable wraps failures of the menu endpoint.
var ErrMenuUnavailable = errors.New("menu unavailable")
