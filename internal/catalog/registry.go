package catalog

import (
	"sync"
	"time"
)

// Registry hands out one Menu per branch.
type Registry struct {
	source Source
	maxAge time.Duration

	mu    sync.Mutex
	menus map[int64]*Menu
}

// NewRegistry creates an empty Registry backed by source.
func NewRegistry(source Source, maxAge time.Duration) *Registry {
	return &Registry{
		source: source,
		maxAge: maxAge,
		menus:  make(map[int64]*Menu),
	}
}

// For returns the menu of branchID, creating it on first use.
func (r *Registry) For(branchID int64) *Menu {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.menus[branchID]
	if !ok {
		m = NewMenu(branchID, r.source, r.maxAge)
		r.menus[branchID] = m
	}
	return m
}
