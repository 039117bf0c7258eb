// Package catalog holds the branch menu as seen by a POS terminal.
// The backend owns the data; this package only keeps the latest copy
// and answers lookups by ID.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// MenuItem is a read-only reference to a menu entry.
type MenuItem struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	IsAvailable bool            `json:"isAvailable"`
}

// Source fetches the menu for a branch. Satisfied by *backend.Client.
type Source interface {
	ListMenuItems(ctx context.Context, branchID int64) ([]MenuItem, error)
}

// Menu is the menu view of a single branch. Lookups always hit the latest
// refreshed copy; nothing downstream caches prices.
type Menu struct {
	branchID int64
	source   Source
	maxAge   time.Duration
	now      func() time.Time

	mu        sync.RWMutex
	items     map[int64]MenuItem
	refreshed time.Time

	sfg singleflight.Group // Collapses concurrent refreshes
}

// NewMenu creates a Menu for branchID. maxAge controls how stale the copy
// may be before EnsureFresh goes back to the source; 0 means always refresh.
func NewMenu(branchID int64, source Source, maxAge time.Duration) *Menu {
	return &Menu{
		branchID: branchID,
		source:   source,
		maxAge:   maxAge,
		now:      time.Now,
		items:    make(map[int64]MenuItem),
	}
}

// BranchID returns the branch this menu belongs to.
func (m *Menu) BranchID() int64 {
	return m.branchID
}

// Refresh replaces the menu with the source's current list.
func (m *Menu) Refresh(ctx context.Context) error {
	_, err, _ := m.sfg.Do(strconv.FormatInt(m.branchID, 10), func() (interface{}, error) {
		items, err := m.source.ListMenuItems(ctx, m.branchID)
		if err != nil {
			return nil, fmt.Errorf("list menu items: %w", err)
		}
		m.Replace(items)
		log.WithFields(log.Fields{
			"branch_id": m.branchID,
			"items":     len(items),
		}).Debug("menu refreshed")
		return nil, nil
	})
	return err
}

// EnsureFresh refreshes the menu when it is older than maxAge. A failed
// refresh keeps the previous copy and returns the error.
func (m *Menu) EnsureFresh(ctx context.Context) error {
	m.mu.RLock()
	stale := m.refreshed.IsZero() || m.now().Sub(m.refreshed) >= m.maxAge
	m.mu.RUnlock()
	if !stale {
		return nil
	}
	return m.Refresh(ctx)
}

// Replace swaps the whole menu. Used by Refresh and by tests.
func (m *Menu) Replace(items []MenuItem) {
	next := make(map[int64]MenuItem, len(items))
	for _, it := range items {
		next[it.ID] = it
	}
	m.mu.Lock()
	m.items = next
	m.refreshed = m.now()
	m.mu.Unlock()
}

// Lookup returns the current entry for id.
func (m *Menu) Lookup(id int64) (MenuItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	return it, ok
}

// Available lists items offered for sale, ordered by category then name.
func (m *Menu) Available() []MenuItem {
	m.mu.RLock()
	out := make([]MenuItem, 0, len(m.items))
	for _, it := range m.items {
		if it.IsAvailable {
			out = append(out, it)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}
