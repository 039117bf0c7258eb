// Package reconcile records partial checkouts: orders that were created but
// whose payment failed twice, so a cashier has to take payment by hand.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/terminal/internal/checkout"
	"github.com/kiwari-pos/terminal/internal/metrics"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNotFound        = errors.New("reconciliation entry not found")
	ErrAlreadyResolved = errors.New("reconciliation entry already resolved")
)

type Entry struct {
	OrderID    int64           `json:"order_id"`
	BranchID   int64           `json:"branch_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Reason     string          `json:"reason"`
	CreatedAt  time.Time       `json:"created_at"`
	ResolvedAt *time.Time      `json:"resolved_at"`
	ResolvedBy *uuid.UUID      `json:"resolved_by"`
}

func (e Entry) Open() bool { return e.ResolvedAt == nil }

// Store is the ledger of partial checkouts. Record is idempotent on
// OrderID.
type Store interface {
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context, branchID int64, includeResolved bool) ([]Entry, error)
	Resolve(ctx context.Context, branchID, orderID int64, by uuid.UUID) (Entry, error)
}

// FromResult builds a ledger entry for a partial checkout result. ok is
// false for any other outcome.
func FromResult(r checkout.Result) (Entry, bool) {
	if !r.Partial || r.OrderID == nil {
		return Entry{}, false
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		amount = r.Summary.AmountDue()
	}
	return Entry{
		OrderID:   *r.OrderID,
		BranchID:  r.BranchID,
		Amount:    amount,
		Method:    r.PaymentMethod,
		Reason:    r.Message,
		CreatedAt: r.FinishedAt,
	}, true
}

// Listener returns a checkout listener that records partial results in
// store. Each write gets its own timeout so a slow database never holds up
// the checkout that produced it.
func Listener(store Store, timeout time.Duration) checkout.Listener {
	return func(r checkout.Result) {
		e, ok := FromResult(r)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		logger := log.WithFields(log.Fields{
			"order_id":  e.OrderID,
			"branch_id": e.BranchID,
			"amount":    e.Amount.StringFixed(2),
		})
		if err := store.Record(ctx, e); err != nil {
			logger.WithError(err).Error("failed to record partial checkout")
			return
		}
		logger.Warn("partial checkout awaiting manual payment")
	}
}

func setOpenGauge(n int) {
	metrics.OpenReconciliations.Set(float64(n))
}
