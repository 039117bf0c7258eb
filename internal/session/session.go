// Package session keeps the live POS sessions of this terminal service.
// A session is one cashier's cart plus the orchestrator that checks it out.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/terminal/internal/cart"
	"github.com/kiwari-pos/terminal/internal/catalog"
	"github.com/kiwari-pos/terminal/internal/checkout"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrBusy     = errors.New("session has a checkout in progress")
)

// Session is one cashier's open cart and its checkout orchestrator.
type Session struct {
	ID        uuid.UUID
	BranchID  int64
	CashierID uuid.UUID
	CreatedAt time.Time

	Menu *catalog.Menu
	// Cart is read directly; edits go through Checkout.EditCart.
	Cart     *cart.Cart
	Checkout *checkout.Orchestrator

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen is the last time the session was fetched from the store.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Options are shared by every session the store creates.
type Options struct {
	API        checkout.OrderAPI
	Menus      *catalog.Registry
	RetryDelay time.Duration
	Listeners  []checkout.Listener
	Now        func() time.Time
}

// Store holds the open sessions of every branch, keyed by session ID.
type Store struct {
	opts Options

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewStore returns an empty store whose sessions share opts.
func NewStore(opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{opts: opts, sessions: make(map[uuid.UUID]*Session)}
}

// Create opens a session with an empty cart bound to the branch menu.
func (st *Store) Create(branchID int64, cashierID uuid.UUID) *Session {
	now := st.opts.Now()
	menu := st.opts.Menus.For(branchID)
	c := cart.New(menu)

	s := &Session{
		ID:        uuid.New(),
		BranchID:  branchID,
		CashierID: cashierID,
		CreatedAt: now,
		Menu:      menu,
		Cart:      c,
		Checkout: checkout.New(st.opts.API, c, checkout.Options{
			RetryDelay: st.opts.RetryDelay,
			Listeners:  st.opts.Listeners,
			Now:        st.opts.Now,
		}),
		lastSeen: now,
	}

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	log.WithFields(log.Fields{
		"session_id": s.ID,
		"branch_id":  branchID,
		"cashier_id": cashierID,
	}).Info("session opened")
	return s
}

// Get returns the session if it exists and belongs to the branch.
func (st *Store) Get(branchID int64, id uuid.UUID) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok || s.BranchID != branchID {
		return nil, ErrNotFound
	}
	s.touch(st.opts.Now())
	return s, nil
}

// Delete closes a session. A session with a checkout in flight is kept
// and ErrBusy is returned.
func (st *Store) Delete(branchID int64, id uuid.UUID) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok || s.BranchID != branchID {
		return ErrNotFound
	}
	if s.Checkout.State().InFlight() {
		return ErrBusy
	}
	delete(st.sessions, id)
	log.WithField("session_id", id).Info("session closed")
	return nil
}

// Len returns the number of open sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep closes sessions idle for longer than ttl, skipping any with a
// checkout in flight. It returns how many were closed.
func (st *Store) Sweep(ttl time.Duration) int {
	cutoff := st.opts.Now().Add(-ttl)

	st.mu.Lock()
	defer st.mu.Unlock()

	n := 0
	for id, s := range st.sessions {
		if s.LastSeen().After(cutoff) || s.Checkout.State().InFlight() {
			continue
		}
		delete(st.sessions, id)
		n++
	}
	if n > 0 {
		log.WithField("closed", n).Info("idle sessions swept")
	}
	return n
}
