package handler_test

import (
	"net/http"
	"testing"
)

// partialCheckout leaves order 77 awaiting manual payment.
func (env *testEnv) partialCheckout(t *testing.T) {
	t.Helper()
	env.api.createOrderFn = orderCreated(77)
	env.api.processPaymentFn = paymentDeclined

	claims := cashierClaims()
	base := env.openSession(t, claims)
	env.addItem(t, base, claims, 2, 2)
	rr := doAuthRequest(t, env.router, "POST", base+"/checkout", checkoutBody(), claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("checkout: got %d; body: %s", rr.Code, rr.Body.String())
	}
}

// --- Reconciliation Tests ---

func TestReconciliations_CashierForbidden(t *testing.T) {
	env := newTestEnv(t)

	rr := doAuthRequest(t, env.router, "GET", "/branches/3/reconciliations", nil, cashierClaims())
	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestReconciliations_ListAndResolve(t *testing.T) {
	env := newTestEnv(t)
	env.partialCheckout(t)
	manager := managerClaims()

	rr := doAuthRequest(t, env.router, "GET", "/branches/3/reconciliations", nil, manager)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	var open []map[string]interface{}
	decodeInto(t, rr, &open)
	if len(open) != 1 {
		t.Fatalf("open entries: got %d, want 1", len(open))
	}
	if open[0]["order_id"] != float64(77) || open[0]["method"] != "CASH" {
		t.Errorf("entry: got %v", open[0])
	}

	rr = doAuthRequest(t, env.router, "POST", "/branches/3/reconciliations/77/resolve", nil, manager)
	if rr.Code != http.StatusOK {
		t.Fatalf("resolve status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	resolved := decodeJSON(t, rr)
	if resolved["resolved_by"] != manager.UserID.String() {
		t.Errorf("resolved_by: got %v, want %s", resolved["resolved_by"], manager.UserID)
	}
	if len(env.publisher.events) != 1 || env.publisher.events[0] != "reconciliation.resolved" {
		t.Errorf("published: got %v", env.publisher.events)
	}

	rr = doAuthRequest(t, env.router, "GET", "/branches/3/reconciliations", nil, manager)
	decodeInto(t, rr, &open)
	if len(open) != 0 {
		t.Errorf("open after resolve: got %d, want 0", len(open))
	}

	rr = doAuthRequest(t, env.router, "GET", "/branches/3/reconciliations?all=true", nil, manager)
	var all []map[string]interface{}
	decodeInto(t, rr, &all)
	if len(all) != 1 {
		t.Errorf("all entries: got %d, want 1", len(all))
	}
}

func TestReconciliations_ResolveErrors(t *testing.T) {
	env := newTestEnv(t)
	env.partialCheckout(t)
	manager := managerClaims()

	tests := []struct {
		name string
		path string
		want int
	}{
		{"invalid id", "/branches/3/reconciliations/abc/resolve", http.StatusBadRequest},
		{"unknown order", "/branches/3/reconciliations/5/resolve", http.StatusNotFound},
		{"first resolve", "/branches/3/reconciliations/77/resolve", http.StatusOK},
		{"already resolved", "/branches/3/reconciliations/77/resolve", http.StatusConflict},
	}
	for _, tt := range tests {
		rr := doAuthRequest(t, env.router, "POST", tt.path, nil, manager)
		if rr.Code != tt.want {
			t.Errorf("%s: got %d, want %d; body: %s", tt.name, rr.Code, tt.want, rr.Body.String())
		}
	}
}
