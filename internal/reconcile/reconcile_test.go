package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/terminal/internal/checkout"
	"github.com/shopspring/decimal"
)

func int64Ptr(v int64) *int64 { return &v }

func partialResult(orderID int64) checkout.Result {
	return checkout.Result{
		OrderID:       int64Ptr(orderID),
		Succeeded:     true,
		Partial:       true,
		Message:       "payment declined",
		BranchID:      3,
		PaymentMethod: "CASH",
		Amount:        "19.53",
		FinishedAt:    time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	}
}

// =====================
// FromResult
// =====================

func TestFromResult(t *testing.T) {
	e, ok := FromResult(partialResult(43))
	if !ok {
		t.Fatal("expected entry for partial result")
	}
	if e.OrderID != 43 || e.BranchID != 3 || e.Method != "CASH" {
		t.Errorf("entry: got %+v", e)
	}
	if !e.Amount.Equal(decimal.RequireFromString("19.53")) {
		t.Errorf("amount: got %s, want 19.53", e.Amount)
	}
	if !e.Open() {
		t.Error("new entry should be open")
	}
}

func TestFromResult_IgnoresOtherOutcomes(t *testing.T) {
	paid := partialResult(42)
	paid.Partial = false
	if _, ok := FromResult(paid); ok {
		t.Error("paid result must not be recorded")
	}

	failed := checkout.Result{Succeeded: false}
	if _, ok := FromResult(failed); ok {
		t.Error("failed result must not be recorded")
	}
}

// =====================
// MemoryStore
// =====================

func TestMemoryStore_RecordIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	e, _ := FromResult(partialResult(43))

	if err := s.Record(ctx, e); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record(ctx, e); err != nil {
		t.Fatalf("record again: %v", err)
	}

	list, _ := s.List(ctx, 3, false)
	if len(list) != 1 {
		t.Errorf("entries: got %d, want 1", len(list))
	}
}

func TestMemoryStore_ListFiltersBranchAndSorts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	s.Record(ctx, Entry{OrderID: 50, BranchID: 3, CreatedAt: base.Add(time.Minute)})
	s.Record(ctx, Entry{OrderID: 51, BranchID: 3, CreatedAt: base})
	s.Record(ctx, Entry{OrderID: 52, BranchID: 4, CreatedAt: base})

	list, err := s.List(ctx, 3, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("entries: got %d, want 2", len(list))
	}
	if list[0].OrderID != 51 || list[1].OrderID != 50 {
		t.Errorf("order: got %d, %d; want 51, 50", list[0].OrderID, list[1].OrderID)
	}
}

func TestMemoryStore_Resolve(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	e, _ := FromResult(partialResult(43))
	s.Record(ctx, e)

	manager := uuid.New()
	got, err := s.Resolve(ctx, 3, 43, manager)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Open() || got.ResolvedBy == nil || *got.ResolvedBy != manager {
		t.Errorf("resolved entry: got %+v", got)
	}

	open, _ := s.List(ctx, 3, false)
	if len(open) != 0 {
		t.Errorf("open entries: got %d, want 0", len(open))
	}
	all, _ := s.List(ctx, 3, true)
	if len(all) != 1 {
		t.Errorf("all entries: got %d, want 1", len(all))
	}

	if _, err := s.Resolve(ctx, 3, 43, manager); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second resolve: expected ErrAlreadyResolved, got %v", err)
	}
}

func TestMemoryStore_ResolveNotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Record(ctx, Entry{OrderID: 43, BranchID: 3})

	if _, err := s.Resolve(ctx, 3, 99, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown order: expected ErrNotFound, got %v", err)
	}
	if _, err := s.Resolve(ctx, 4, 43, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("other branch: expected ErrNotFound, got %v", err)
	}
}

// =====================
// Listener
// =====================

type failingStore struct{ MemoryStore }

func (f *failingStore) Record(ctx context.Context, e Entry) error {
	return errors.New("db down")
}

func TestListener_RecordsPartialOnly(t *testing.T) {
	s := NewMemoryStore()
	listen := Listener(s, time.Second)

	paid := partialResult(42)
	paid.Partial = false
	listen(paid)
	listen(partialResult(43))

	list, _ := s.List(context.Background(), 3, false)
	if len(list) != 1 || list[0].OrderID != 43 {
		t.Errorf("entries: got %+v", list)
	}
}

func TestListener_StoreErrorDoesNotPanic(t *testing.T) {
	listen := Listener(&failingStore{}, time.Second)
	listen(partialResult(43))
}
