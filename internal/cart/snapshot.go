package cart

import "github.com/shopspring/decimal"

// PricedLine is a cart line resolved against the catalog at snapshot time.
type PricedLine struct {
	MenuItemID int64
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	Subtotal   decimal.Decimal
	Resolved   bool
}

// Snapshot is a frozen copy of the cart and its pricing. Checkout works on
// a snapshot so edits made while remote calls are in flight are not seen.
type Snapshot struct {
	Lines   []PricedLine
	Summary PricingSummary
}

// Snapshot resolves every line once and prices the result.
func (c *Cart) Snapshot(discountPercent, taxPercent decimal.Decimal) Snapshot {
	lines := c.Lines()
	priced := make([]PricedLine, 0, len(lines))
	subtotal := decimal.Zero

	for _, l := range lines {
		pl := PricedLine{MenuItemID: l.MenuItemID, Quantity: l.Quantity, UnitPrice: decimal.Zero, Subtotal: decimal.Zero}
		if it, ok := c.catalog.Lookup(l.MenuItemID); ok {
			pl.Name = it.Name
			pl.UnitPrice = it.Price
			pl.Subtotal = it.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
			pl.Resolved = true
		}
		subtotal = subtotal.Add(pl.Subtotal)
		priced = append(priced, pl)
	}

	return Snapshot{
		Lines:   priced,
		Summary: Summarize(subtotal, discountPercent, taxPercent),
	}
}

// IsEmpty reports whether the snapshot has no lines.
func (s Snapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}
