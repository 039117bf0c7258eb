package receipt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kiwari-pos/terminal/internal/backend"
)

// RenderForPrint formats the receipt for a fixed-width thermal printer.
func (r *Renderer) RenderForPrint(order *backend.Order, payment *backend.Payment) (string, error) {
	rc, err := r.Render(order, payment)
	if err != nil {
		return "", err
	}
	return rc.Print(r.opts.PrintWidth), nil
}

// Print lays the receipt out in width monospace columns.
func (rc *Receipt) Print(width int) string {
	var lines []string
	double := strings.Repeat("=", width)
	single := strings.Repeat("-", width)

	lines = append(lines, double)
	if rc.StoreName != "" {
		lines = append(lines, center(rc.StoreName, width))
	}
	lines = append(lines, center("RECEIPT", width))
	lines = append(lines, double)
	lines = append(lines, columns("Receipt", shorten(rc.ID, 13), width))
	lines = append(lines, columns("Order", fmt.Sprintf("#%d", rc.OrderID), width))
	lines = append(lines, columns("Date", rc.IssuedAt.Format("2006-01-02 15:04"), width))
	if rc.CustomerLabel != "" {
		lines = append(lines, columns("Customer", rc.CustomerLabel, width))
	}
	lines = append(lines, single)

	for _, l := range rc.Lines {
		amount := rc.Money(l.Subtotal)
		label := fmt.Sprintf("%s x%d", l.Name, l.Quantity)
		lines = append(lines, columns(label, amount, width))
	}
	lines = append(lines, single)

	lines = append(lines, columns("Subtotal", rc.Money(rc.Subtotal), width))
	if rc.HasDiscount() {
		lines = append(lines, columns(fmt.Sprintf("Discount %s%%", rc.DiscountPercent), "-"+rc.Money(rc.DiscountAmount), width))
	}
	lines = append(lines, columns(fmt.Sprintf("Tax %s%%", rc.TaxPercent), rc.Money(rc.TaxAmount), width))
	lines = append(lines, columns("TOTAL", rc.Money(rc.Total), width))
	lines = append(lines, single)
	lines = append(lines, columns("Payment", rc.PaymentMethod, width))
	lines = append(lines, columns("Status", rc.PaymentStatus, width))
	lines = append(lines, double)
	lines = append(lines, center(rc.Closing, width))
	lines = append(lines, double)

	return strings.Join(lines, "\n") + "\n"
}

// columns puts left and right on one row, truncating left if needed.
// The right side always fits.
func columns(left, right string, width int) string {
	rw := utf8.RuneCountInString(right)
	room := width - rw - 1
	if room < 1 {
		return shorten(right, width)
	}
	left = shorten(left, room)
	pad := width - utf8.RuneCountInString(left) - rw
	return left + strings.Repeat(" ", pad) + right
}

func center(s string, width int) string {
	s = shorten(s, width)
	pad := (width - utf8.RuneCountInString(s)) / 2
	return strings.Repeat(" ", pad) + s
}

// shorten cuts s to at most n runes, marking the cut with "~".
func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 1 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-1]) + "~"
}
