// Package checkout turns a POS cart into a persisted order and payment.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/kiwari-pos/terminal/internal/backend"
	"github.com/kiwari-pos/terminal/internal/cart"
	"github.com/kiwari-pos/terminal/internal/enum"
	"github.com/kiwari-pos/terminal/internal/metrics"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Errors returned by Checkout before any remote call is made.
var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrCheckoutInProgress   = errors.New("checkout already in progress")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
)

// OrderAPI is the slice of the backend the orchestrator needs.
// Satisfied by *backend.Client.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req backend.CreateOrderRequest) (*backend.Order, error)
	ProcessPayment(ctx context.Context, req backend.ProcessPaymentRequest) (*backend.Payment, error)
}

// Listener is told about every finished attempt.
type Listener func(Result)

// Request carries the checkout inputs. Rates are used as given; clamp
// them before calling.
type Request struct {
	BranchID        int64
	PaymentMethod   string
	DeliveryLabel   string
	DiscountPercent decimal.Decimal
	TaxPercent      decimal.Decimal
}

// Options tunes an Orchestrator.
type Options struct {
	RetryDelay time.Duration // Pause before the single payment retry
	Listeners  []Listener
	Now        func() time.Time
}

// Orchestrator runs checkouts for one cart. At most one checkout runs at
// a time; a trigger while one is in flight is rejected.
type Orchestrator struct {
	api  OrderAPI
	cart *cart.Cart
	opts Options

	mu    sync.Mutex
	state State
	last  *Result
}

// New creates an Orchestrator for c.
func New(api OrderAPI, c *cart.Cart, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{api: api, cart: c, opts: opts, state: StateIdle}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastResult returns the result of the most recent finished attempt, or
// nil if none finished since the last trigger.
func (o *Orchestrator) LastResult() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// attempt is the working state of one checkout run.
type attempt struct {
	req      Request
	snapshot cart.Snapshot
	amount   decimal.Decimal
	started  time.Time
	order    *backend.Order
	payment  *backend.Payment
	lastErr  error
	logger   *log.Entry
}

// Checkout snapshots the cart, creates the order and pays for it. Remote
// failures are reported in the Result, not as an error; the error is only
// set when the attempt was rejected before starting.
func (o *Orchestrator) Checkout(ctx context.Context, req Request) (Result, error) {
	if !enum.IsValidPaymentMethod(req.PaymentMethod) {
		return Result{}, ErrInvalidPaymentMethod
	}

	o.mu.Lock()
	if o.state.InFlight() {
		o.mu.Unlock()
		metrics.CheckoutsTotal.WithLabelValues(branchLabel(req.BranchID), "rejected").Inc()
		return Result{}, ErrCheckoutInProgress
	}
	snap := o.cart.Snapshot(req.DiscountPercent, req.TaxPercent)
	if snap.IsEmpty() {
		o.mu.Unlock()
		return Result{}, ErrEmptyCart
	}
	if _, err := o.fireLocked(evTrigger); err != nil {
		o.mu.Unlock()
		return Result{}, err
	}
	o.last = nil
	o.mu.Unlock()

	a := &attempt{
		req:      req,
		snapshot: snap,
		amount:   snap.Summary.AmountDue(),
		started:  o.opts.Now(),
		logger: log.WithFields(log.Fields{
			"branch_id": req.BranchID,
			"method":    req.PaymentMethod,
		}),
	}
	a.logger.WithField("amount", a.amount.StringFixed(2)).Info("checkout started")

	return o.run(ctx, a), nil
}

// run drives the state machine until a terminal outcome.
func (o *Orchestrator) run(ctx context.Context, a *attempt) Result {
	ev := o.createOrder(ctx, a)
	for {
		t, err := o.fire(ev)
		if err != nil {
			// Table bug; fail closed without touching the cart.
			a.logger.WithError(err).Error("checkout state machine")
			t = transition{next: StateFailed, outcome: outcomeNoOrder}
		}
		if t.outcome != outcomeNone {
			return o.finish(a, ev, t)
		}

		switch t.next {
		case StateProcessingPayment:
			ev = o.processPayment(ctx, a, "initial")
		case StateRetryingPayment:
			if err := sleep(ctx, o.opts.RetryDelay); err != nil {
				a.lastErr = err
				ev = evPaymentFailed
				continue
			}
			ev = o.processPayment(ctx, a, "retry")
		}
	}
}

func (o *Orchestrator) createOrder(ctx context.Context, a *attempt) event {
	items := make([]backend.OrderItemRequest, len(a.snapshot.Lines))
	for i, l := range a.snapshot.Lines {
		items[i] = backend.OrderItemRequest{MenuItemID: l.MenuItemID, Quantity: l.Quantity}
	}

	order, err := o.api.CreateOrder(ctx, backend.CreateOrderRequest{
		BranchID:      a.req.BranchID,
		Items:         items,
		DeliveryLabel: a.req.DeliveryLabel,
	})
	if err != nil {
		a.lastErr = err
		a.logger.WithError(err).Warn("order creation failed")
		return evOrderFailed
	}
	a.order = order
	a.logger = a.logger.WithField("order_id", order.ID)
	return evOrderCreated
}

func (o *Orchestrator) processPayment(ctx context.Context, a *attempt, label string) event {
	payment, err := o.api.ProcessPayment(ctx, backend.ProcessPaymentRequest{
		OrderID: a.order.ID,
		Amount:  a.amount,
		Method:  a.req.PaymentMethod,
	})
	if err != nil {
		metrics.PaymentAttemptsTotal.WithLabelValues(label, "failed").Inc()
		a.lastErr = err
		a.logger.WithError(err).WithField("attempt", label).Warn("payment failed")
		return evPaymentFailed
	}
	metrics.PaymentAttemptsTotal.WithLabelValues(label, "ok").Inc()
	a.payment = payment
	return evPaymentOK
}

// finish builds the Result for a terminal outcome and applies its side
// effect on the cart.
func (o *Orchestrator) finish(a *attempt, ev event, t transition) Result {
	oc := t.outcome
	res := Result{
		BranchID:      a.req.BranchID,
		PaymentMethod: a.req.PaymentMethod,
		Amount:        a.amount.StringFixed(2),
		Summary:       a.snapshot.Summary,
		StartedAt:     a.started,
		FinishedAt:    o.opts.Now(),
	}

	switch oc {
	case outcomeNoOrder:
		res.Message = fmt.Sprintf("Order was not created: %s. The cart was kept, please try again.", errText(a.lastErr))
	case outcomePaid:
		res.OrderID = &a.order.ID
		res.PaymentID = &a.payment.ID
		res.Succeeded = true
		res.Order = finalizeOrder(a, res.FinishedAt)
		res.Payment = a.payment
		res.Message = fmt.Sprintf("Order #%d paid (%s %s).", a.order.ID, a.req.PaymentMethod, res.Amount)
	case outcomeUnpaid:
		res.OrderID = &a.order.ID
		res.Succeeded = true
		res.Partial = true
		res.Order = finalizeOrder(a, res.FinishedAt)
		res.Message = fmt.Sprintf("Order #%d was created but payment failed: %s. Process payment manually for order #%d.",
			a.order.ID, errText(a.lastErr), a.order.ID)
	}

	// The terminal state, the cart clear and the result become visible
	// together; until then the attempt still counts as in flight.
	o.mu.Lock()
	o.applyLocked(ev, t)
	if oc == outcomePaid || oc == outcomeUnpaid {
		o.cart.Clear()
	}
	o.last = &res
	o.mu.Unlock()

	outcome := res.Outcome()
	metrics.CheckoutsTotal.WithLabelValues(branchLabel(a.req.BranchID), outcome).Inc()
	metrics.CheckoutDuration.WithLabelValues(outcome).Observe(res.FinishedAt.Sub(a.started).Seconds())
	a.logger.WithField("outcome", outcome).Info("checkout finished")

	for _, l := range o.opts.Listeners {
		l(res)
	}
	return res
}

// fire looks up the transition for ev. Non-terminal transitions are
// applied at once; terminal ones are applied by finish.
func (o *Orchestrator) fire(ev event) (transition, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, err := next(o.state, ev)
	if err != nil {
		return transition{}, err
	}
	if t.outcome == outcomeNone {
		o.applyLocked(ev, t)
	}
	return t, nil
}

func (o *Orchestrator) fireLocked(ev event) (transition, error) {
	t, err := next(o.state, ev)
	if err != nil {
		return transition{}, err
	}
	o.applyLocked(ev, t)
	return t, nil
}

func (o *Orchestrator) applyLocked(ev event, t transition) {
	log.WithFields(log.Fields{"from": o.state, "event": ev, "to": t.next}).Debug("checkout transition")
	o.state = t.next
}

// EditCart applies fn to the cart unless a checkout is in flight. Edits
// made during a checkout would be lost when the submitted cart is cleared.
func (o *Orchestrator) EditCart(fn func(c *cart.Cart)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.InFlight() {
		return ErrCheckoutInProgress
	}
	fn(o.cart)
	return nil
}

// finalizeOrder fills whatever the backend left out of the order with the
// values this terminal submitted, so receipts always have lines and totals.
func finalizeOrder(a *attempt, at time.Time) *backend.Order {
	ord := *a.order
	sum := a.snapshot.Summary.Rounded()

	if ord.BranchID == 0 {
		ord.BranchID = a.req.BranchID
	}
	if ord.DeliveryLabel == "" {
		ord.DeliveryLabel = a.req.DeliveryLabel
	}
	if ord.CreatedAt.IsZero() {
		ord.CreatedAt = at
	}
	if len(ord.Items) == 0 {
		ord.Items = make([]backend.OrderItem, len(a.snapshot.Lines))
		for i, l := range a.snapshot.Lines {
			ord.Items[i] = backend.OrderItem{
				MenuItemID: l.MenuItemID,
				Name:       l.Name,
				Quantity:   l.Quantity,
				UnitPrice:  l.UnitPrice,
				Subtotal:   l.Subtotal.Round(2),
			}
		}
	}
	if ord.Total.IsZero() {
		ord.Subtotal = sum.Subtotal
		ord.DiscountPercent = sum.DiscountPercent
		ord.DiscountAmount = sum.DiscountAmount
		ord.TaxPercent = sum.TaxPercent
		ord.TaxAmount = sum.TaxAmount
		ord.Total = sum.Total
	}
	return &ord
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func errText(err error) string {
	var oce *backend.OrderCreationError
	if errors.As(err, &oce) {
		return oce.Message
	}
	var ppe *backend.PaymentProcessingError
	if errors.As(err, &ppe) {
		return ppe.Message
	}
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func branchLabel(id int64) string {
	return strconv.FormatInt(id, 10)
}
