package cart

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PricingSummary is derived on every read and never stored. Amounts are
// exact; call Rounded (or marshal to JSON) for presentation.
//
//	DiscountAmount = Subtotal * DiscountPercent / 100
//	TaxAmount      = (Subtotal - DiscountAmount) * TaxPercent / 100
//	Total          = Subtotal - DiscountAmount + TaxAmount
type PricingSummary struct {
	Subtotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxPercent      decimal.Decimal
	TaxAmount       decimal.Decimal
	Total           decimal.Decimal
}

// Summarize computes a PricingSummary from a subtotal and rates.
func Summarize(subtotal, discountPercent, taxPercent decimal.Decimal) PricingSummary {
	discount := subtotal.Mul(discountPercent).Div(hundred)
	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(taxPercent).Div(hundred)

	return PricingSummary{
		Subtotal:        subtotal,
		DiscountPercent: discountPercent,
		DiscountAmount:  discount,
		TaxPercent:      taxPercent,
		TaxAmount:       tax,
		Total:           taxable.Add(tax),
	}
}

// Rounded returns the summary with every amount rounded to 2 places.
func (p PricingSummary) Rounded() PricingSummary {
	return PricingSummary{
		Subtotal:        p.Subtotal.Round(2),
		DiscountPercent: p.DiscountPercent,
		DiscountAmount:  p.DiscountAmount.Round(2),
		TaxPercent:      p.TaxPercent,
		TaxAmount:       p.TaxAmount.Round(2),
		Total:           p.Total.Round(2),
	}
}

// AmountDue is the total as submitted for payment.
func (p PricingSummary) AmountDue() decimal.Decimal {
	return p.Total.Round(2)
}

type pricingSummaryJSON struct {
	Subtotal        string `json:"subtotal"`
	DiscountPercent string `json:"discount_percent"`
	DiscountAmount  string `json:"discount_amount"`
	TaxPercent      string `json:"tax_percent"`
	TaxAmount       string `json:"tax_amount"`
	Total           string `json:"total"`
}

// MarshalJSON renders amounts as fixed 2-place strings.
func (p PricingSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(pricingSummaryJSON{
		Subtotal:        p.Subtotal.StringFixed(2),
		DiscountPercent: p.DiscountPercent.String(),
		DiscountAmount:  p.DiscountAmount.StringFixed(2),
		TaxPercent:      p.TaxPercent.String(),
		TaxAmount:       p.TaxAmount.StringFixed(2),
		Total:           p.Total.StringFixed(2),
	})
}

// ClampPercent limits a caller-supplied rate to [0, 100].
func ClampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}
