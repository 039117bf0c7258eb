package checkout

import (
	"time"

	"github.com/kiwari-pos/terminal/internal/backend"
	"github.com/kiwari-pos/terminal/internal/cart"
)

// Result is the outcome of one checkout attempt. It is never modified
// after the attempt finishes.
//
// Succeeded means an order exists. Partial means the order exists but no
// payment was recorded and the cashier must take payment manually.
type Result struct {
	OrderID   *int64 `json:"order_id"`
	PaymentID *int64 `json:"payment_id"`
	Succeeded bool   `json:"succeeded"`
	Partial   bool   `json:"partial"`
	Message   string `json:"message"`

	BranchID      int64               `json:"branch_id"`
	PaymentMethod string              `json:"payment_method"`
	Amount        string              `json:"amount"`
	Summary       cart.PricingSummary `json:"pricing"`
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    time.Time           `json:"finished_at"`

	// Finalized records for receipts; Payment is nil unless paid.
	Order   *backend.Order   `json:"-"`
	Payment *backend.Payment `json:"-"`
}

// Outcome is a short label for metrics and events.
func (r Result) Outcome() string {
	switch {
	case r.Succeeded && r.Partial:
		return "partial"
	case r.Succeeded:
		return "completed"
	default:
		return "failed"
	}
}
