// Package cart is the working set of a single POS transaction.
//
// A cart line stores only the menu item ID and quantity. Names and prices
// are resolved through the Catalog every time they are read, so a price
// change published before checkout is reflected in the totals. Do not
// snapshot prices into Line.
package cart

import (
	"sync"

	"github.com/kiwari-pos/terminal/internal/catalog"
	"github.com/shopspring/decimal"
)

// Catalog resolves menu items by ID. Satisfied by *catalog.Menu.
type Catalog interface {
	Lookup(id int64) (catalog.MenuItem, bool)
}

// Line is one (menu item, quantity) pair. Quantity is always > 0.
type Line struct {
	MenuItemID int64 `json:"menu_item_id"`
	Quantity   int   `json:"quantity"`
}

// Cart holds the lines of the current transaction in insertion order.
type Cart struct {
	catalog Catalog

	mu    sync.Mutex
	lines []Line
}

// New creates an empty cart resolving prices through c.
func New(c Catalog) *Cart {
	return &Cart{catalog: c}
}

// AddItem adds one unit of item. An existing line for the same item is
// incremented instead of duplicated. Availability is not checked here;
// callers only offer available items.
func (c *Cart) AddItem(item catalog.MenuItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(item.ID); i >= 0 {
		c.lines[i].Quantity++
		return
	}
	c.lines = append(c.lines, Line{MenuItemID: item.ID, Quantity: 1})
}

// SetQuantity sets the quantity of an existing line. A quantity <= 0
// removes the line. Unknown IDs are ignored.
func (c *Cart) SetQuantity(menuItemID int64, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(menuItemID)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		c.removeAt(i)
		return
	}
	c.lines[i].Quantity = quantity
}

// RemoveItem drops the line for menuItemID if present.
func (c *Cart) RemoveItem(menuItemID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(menuItemID); i >= 0 {
		c.removeAt(i)
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
}

// Lines returns a copy of the current lines.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// ItemCount is the total number of units across all lines.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Subtotal sums resolved unit price times quantity over all lines.
// Lines whose item no longer resolves contribute zero.
func (c *Cart) Subtotal() decimal.Decimal {
	return SubtotalOf(c.Lines(), c.catalog)
}

// UnresolvedItems lists the IDs of lines the catalog cannot resolve.
func (c *Cart) UnresolvedItems() []int64 {
	var ids []int64
	for _, l := range c.Lines() {
		if _, ok := c.catalog.Lookup(l.MenuItemID); !ok {
			ids = append(ids, l.MenuItemID)
		}
	}
	return ids
}

// PricingSummary derives the totals for the current lines.
// Percentages are expected in [0, 100]; see ClampPercent.
func (c *Cart) PricingSummary(discountPercent, taxPercent decimal.Decimal) PricingSummary {
	return Summarize(c.Subtotal(), discountPercent, taxPercent)
}

// SubtotalOf prices lines against cat. Exported so a snapshot of lines can
// be priced exactly like the live cart.
func SubtotalOf(lines []Line, cat Catalog) decimal.Decimal {
	subtotal := decimal.Zero
	for _, l := range lines {
		item, ok := cat.Lookup(l.MenuItemID)
		if !ok {
			continue
		}
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return subtotal
}

func (c *Cart) indexOf(id int64) int {
	for i, l := range c.lines {
		if l.MenuItemID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}
