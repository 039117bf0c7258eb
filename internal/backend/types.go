package backend

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OrderItemRequest is a single cart line as submitted to the backend.
type OrderItemRequest struct {
	MenuItemID int64 `json:"menuItemId"`
	Quantity   int   `json:"quantity"`
}

// CreateOrderRequest is the body of POST /api/orders.
type CreateOrderRequest struct {
	BranchID      int64              `json:"branchId"`
	Items         []OrderItemRequest `json:"items"`
	DeliveryLabel string             `json:"deliveryLabel,omitempty"`
}

// ProcessPaymentRequest is the body of POST /api/payments.
type ProcessPaymentRequest struct {
	OrderID int64           `json:"orderId"`
	Amount  decimal.Decimal `json:"-"`
	Method  string          `json:"method"`
}

// MarshalJSON sends the amount as a 2-place JSON number.
func (r ProcessPaymentRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		OrderID int64       `json:"orderId"`
		Amount  json.Number `json:"amount"`
		Method  string      `json:"method"`
	}{
		OrderID: r.OrderID,
		Amount:  json.Number(r.Amount.StringFixed(2)),
		Method:  r.Method,
	})
}

// OrderItem is an order line as stored by the backend.
type OrderItem struct {
	MenuItemID int64           `json:"menuItemId"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// Order is the backend's order record. Monetary fields the backend does
// not return are left zero.
type Order struct {
	ID              int64           `json:"id"`
	BranchID        int64           `json:"branchId"`
	Status          string          `json:"status"`
	Items           []OrderItem     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	TaxPercent      decimal.Decimal `json:"taxPercent"`
	TaxAmount       decimal.Decimal `json:"taxAmount"`
	Total           decimal.Decimal `json:"total"`
	DeliveryLabel   string          `json:"deliveryLabel"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Payment is the backend's payment record.
type Payment struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"orderId"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Status      string          `json:"status"`
	ProcessedAt time.Time       `json:"processedAt"`
}

// apiError is the error body shape returned by the backend.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) text() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
