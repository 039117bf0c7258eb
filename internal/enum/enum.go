package enum

// ── Group A: State machines (owned by the backend API) ──

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusRefunded  = "REFUNDED"
)

// ── Group B: Terminal-local state (never leaves this service) ──

const (
	CheckoutStateIdle              = "IDLE"
	CheckoutStateCreatingOrder     = "CREATING_ORDER"
	CheckoutStateProcessingPayment = "PROCESSING_PAYMENT"
	CheckoutStateRetryingPayment   = "RETRYING_PAYMENT"
	CheckoutStateCompleted         = "COMPLETED"
	CheckoutStateFailed            = "FAILED"
)

// ── Group C: Borderline (validated on both sides) ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
	UserRoleChef    = "CHEF"
)

func IsValidUserRole(s string) bool {
	switch s {
	case UserRoleAdmin, UserRoleManager, UserRoleCashier, UserRoleChef:
		return true
	}
	return false
}

const (
	PaymentMethodCash          = "CASH"
	PaymentMethodCreditCard    = "CREDIT_CARD"
	PaymentMethodDebitCard     = "DEBIT_CARD"
	PaymentMethodMobilePayment = "MOBILE_PAYMENT"
)

// IsValidPaymentMethod reports whether s is one of the payment methods the
// backend accepts.
func IsValidPaymentMethod(s string) bool {
	switch s {
	case PaymentMethodCash, PaymentMethodCreditCard,
		PaymentMethodDebitCard, PaymentMethodMobilePayment:
		return true
	}
	return false
}

// ── Group D: WebSocket event types ──

const (
	EventCheckoutCompleted = "checkout.completed"
	EventCheckoutPartial   = "checkout.partial"
	EventCheckoutFailed    = "checkout.failed"
	EventReconciled        = "reconciliation.resolved"
)
