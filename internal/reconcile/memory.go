package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps the ledger in process memory. Entries are lost on
// restart; use PostgresStore when DATABASE_URL is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[int64]Entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[int64]Entry), now: time.Now}
}

func (s *MemoryStore) Record(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[e.OrderID]; ok {
		return nil
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.entries[e.OrderID] = e
	setOpenGauge(s.openLocked())
	return nil
}

func (s *MemoryStore) List(ctx context.Context, branchID int64, includeResolved bool) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Entry{}
	for _, e := range s.entries {
		if e.BranchID != branchID || (!includeResolved && !e.Open()) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out, nil
}

func (s *MemoryStore) Resolve(ctx context.Context, branchID, orderID int64, by uuid.UUID) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[orderID]
	if !ok || e.BranchID != branchID {
		return Entry{}, ErrNotFound
	}
	if !e.Open() {
		return e, ErrAlreadyResolved
	}
	now := s.now()
	e.ResolvedAt = &now
	e.ResolvedBy = &by
	s.entries[orderID] = e
	setOpenGauge(s.openLocked())
	return e, nil
}

func (s *MemoryStore) openLocked() int {
	n := 0
	for _, e := range s.entries {
		if e.Open() {
			n++
		}
	}
	return n
}
