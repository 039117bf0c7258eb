package checkout

import (
	"fmt"

	"github.com/kiwari-pos/terminal/internal/enum"
)

// State is a checkout state. Values match enum.CheckoutState*.
type State string

const (
	StateIdle              State = enum.CheckoutStateIdle
	StateCreatingOrder     State = enum.CheckoutStateCreatingOrder
	StateProcessingPayment State = enum.CheckoutStateProcessingPayment
	StateRetryingPayment   State = enum.CheckoutStateRetryingPayment
	StateCompleted         State = enum.CheckoutStateCompleted
	StateFailed            State = enum.CheckoutStateFailed
)

// InFlight reports whether a checkout is running in this state.
func (s State) InFlight() bool {
	return s == StateCreatingOrder || s == StateProcessingPayment || s == StateRetryingPayment
}

func (s State) String() string { return string(s) }

type event string

const (
	evTrigger       event = "trigger"
	evOrderCreated  event = "order_created"
	evOrderFailed   event = "order_failed"
	evPaymentOK     event = "payment_ok"
	evPaymentFailed event = "payment_failed"
)

// outcome is what a transition does to the attempt's result.
type outcome int

const (
	outcomeNone    outcome = iota
	outcomeNoOrder         // order never created; cart kept
	outcomePaid            // order and payment persisted; cart cleared
	outcomeUnpaid          // order persisted, payment not; cart cleared, manual follow-up
)

type transition struct {
	next    State
	outcome outcome
}

// transitions is the whole checkout policy. A payment failure moves to
// RetryingPayment exactly once; a second failure still completes the
// checkout, flagged partial, so the order record is never abandoned.
var transitions = map[State]map[event]transition{
	StateIdle: {
		evTrigger: {StateCreatingOrder, outcomeNone},
	},
	StateCreatingOrder: {
		evOrderCreated: {StateProcessingPayment, outcomeNone},
		evOrderFailed:  {StateFailed, outcomeNoOrder},
	},
	StateProcessingPayment: {
		evPaymentOK:     {StateCompleted, outcomePaid},
		evPaymentFailed: {StateRetryingPayment, outcomeNone},
	},
	StateRetryingPayment: {
		evPaymentOK:     {StateCompleted, outcomePaid},
		evPaymentFailed: {StateCompleted, outcomeUnpaid},
	},
	StateCompleted: {
		evTrigger: {StateCreatingOrder, outcomeNone},
	},
	StateFailed: {
		evTrigger: {StateCreatingOrder, outcomeNone},
	},
}

func next(from State, ev event) (transition, error) {
	t, ok := transitions[from][ev]
	if !ok {
		return transition{}, fmt.Errorf("checkout: no transition from %s on %s", from, ev)
	}
	return t, nil
}
