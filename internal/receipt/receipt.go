// Package receipt renders customer receipts from a finalized order and
// its payment. Rendering has no side effects; delivery (printer, email)
// belongs to the caller.
package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/terminal/internal/backend"
	"github.com/shopspring/decimal"
)

// receiptNamespace seeds deterministic receipt IDs.
var receiptNamespace = uuid.MustParse("4b6f1c7e-2f7a-4d0e-9b1a-6b3c2d9e8f10")

// MissingDataError is returned when the order or payment is absent or
// incomplete. It indicates a caller bug; a partial receipt is never rendered.
type MissingDataError struct {
	Field string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("receipt: missing %s", e.Field)
}

// Options controls presentation.
type Options struct {
	StoreName      string
	CurrencySymbol string
	Footer         string
	PrintWidth     int
	Location       *time.Location
	Clock          func() time.Time
}

// Line is one order item on a receipt.
type Line struct {
	Name     string
	Quantity int
	Subtotal decimal.Decimal
}

// Receipt is the rendered content, independent of the output format.
type Receipt struct {
	ID            string
	OrderID       int64
	IssuedAt      time.Time
	CustomerLabel string
	Lines         []Line

	Subtotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxPercent      decimal.Decimal
	TaxAmount       decimal.Decimal
	Total           decimal.Decimal

	PaymentMethod string
	PaymentStatus string
	PaymentAmount decimal.Decimal

	StoreName string
	Closing   string

	currency string
}

// Renderer builds receipts with fixed presentation options.
type Renderer struct {
	opts Options
}

// NewRenderer creates a Renderer, filling unset options with defaults.
func NewRenderer(opts Options) *Renderer {
	if opts.PrintWidth <= 0 {
		opts.PrintWidth = 40
	}
	if opts.Footer == "" {
		opts.Footer = "Thank you for dining with us!"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Renderer{opts: opts}
}

// Render validates the inputs and builds a Receipt. Totals are copied from
// the order as stored; nothing is recomputed.
func (r *Renderer) Render(order *backend.Order, payment *backend.Payment) (*Receipt, error) {
	issuedAt := r.opts.Clock().In(r.opts.Location)

	if err := validate(order, payment); err != nil {
		return nil, err
	}

	lines := make([]Line, len(order.Items))
	for i, it := range order.Items {
		lines[i] = Line{Name: it.Name, Quantity: it.Quantity, Subtotal: it.Subtotal}
	}

	return &Receipt{
		ID:              uuid.NewSHA1(receiptNamespace, []byte(fmt.Sprintf("%d/%d", order.ID, payment.ID))).String(),
		OrderID:         order.ID,
		IssuedAt:        issuedAt,
		CustomerLabel:   order.DeliveryLabel,
		Lines:           lines,
		Subtotal:        order.Subtotal,
		DiscountPercent: order.DiscountPercent,
		DiscountAmount:  order.DiscountAmount,
		TaxPercent:      order.TaxPercent,
		TaxAmount:       order.TaxAmount,
		Total:           order.Total,
		PaymentMethod:   payment.Method,
		PaymentStatus:   payment.Status,
		PaymentAmount:   payment.Amount,
		StoreName:       r.opts.StoreName,
		Closing:         r.opts.Footer,
		currency:        r.opts.CurrencySymbol,
	}, nil
}

func validate(order *backend.Order, payment *backend.Payment) error {
	switch {
	case order == nil:
		return &MissingDataError{Field: "order"}
	case order.ID == 0:
		return &MissingDataError{Field: "order.id"}
	case len(order.Items) == 0:
		return &MissingDataError{Field: "order.items"}
	case payment == nil:
		return &MissingDataError{Field: "payment"}
	case payment.ID == 0:
		return &MissingDataError{Field: "payment.id"}
	case payment.Method == "":
		return &MissingDataError{Field: "payment.method"}
	case payment.OrderID != 0 && payment.OrderID != order.ID:
		return &MissingDataError{Field: "payment for this order"}
	}
	return nil
}

// Money formats d with the receipt's currency symbol.
func (rc *Receipt) Money(d decimal.Decimal) string {
	return FormatMoney(rc.currency, d)
}

// HasDiscount reports whether the discount row should be shown.
func (rc *Receipt) HasDiscount() bool {
	return rc.DiscountAmount.GreaterThan(decimal.Zero)
}

// Text is the plain rendering used for screen display and email bodies.
func (rc *Receipt) Text() string {
	var b strings.Builder
	rule := strings.Repeat("-", 32)

	if rc.StoreName != "" {
		fmt.Fprintln(&b, rc.StoreName)
	}
	fmt.Fprintf(&b, "Receipt: %s\n", rc.ID)
	fmt.Fprintf(&b, "Order: #%d\n", rc.OrderID)
	fmt.Fprintf(&b, "Date: %s\n", rc.IssuedAt.Format("2006-01-02 15:04"))
	if rc.CustomerLabel != "" {
		fmt.Fprintf(&b, "Customer: %s\n", rc.CustomerLabel)
	}
	fmt.Fprintln(&b, rule)

	for _, l := range rc.Lines {
		fmt.Fprintf(&b, "%s × %d = %s\n", l.Name, l.Quantity, rc.Money(l.Subtotal))
	}
	fmt.Fprintln(&b, rule)

	fmt.Fprintf(&b, "Subtotal: %s\n", rc.Money(rc.Subtotal))
	if rc.HasDiscount() {
		fmt.Fprintf(&b, "Discount (%s%%): -%s\n", rc.DiscountPercent.String(), rc.Money(rc.DiscountAmount))
	}
	fmt.Fprintf(&b, "Tax (%s%%): %s\n", rc.TaxPercent.String(), rc.Money(rc.TaxAmount))
	fmt.Fprintf(&b, "Total: %s\n", rc.Money(rc.Total))
	fmt.Fprintln(&b, rule)

	fmt.Fprintf(&b, "Payment: %s (%s)\n", rc.PaymentMethod, rc.PaymentStatus)
	fmt.Fprintln(&b, rc.Closing)
	return b.String()
}

// FormatMoney renders d with 2 decimals and comma thousand separators,
// prefixed by symbol when set.
func FormatMoney(symbol string, d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var grouped strings.Builder
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(ch)
	}

	out := grouped.String() + frac
	if symbol != "" {
		out = symbol + out
	}
	if d.IsNegative() {
		out = "-" + out
	}
	return out
}
