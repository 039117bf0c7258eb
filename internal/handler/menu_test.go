package handler_test

import (
	"net/http"
	"testing"
)

// --- Menu Tests ---

func TestListMenu(t *testing.T) {
	env := newTestEnv(t)

	rr := doAuthRequest(t, env.router, "GET", "/branches/3/menu", nil, cashierClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	var items []map[string]interface{}
	decodeInto(t, rr, &items)
	if len(items) != 2 {
		t.Fatalf("items: got %d, want 2 (unavailable item hidden)", len(items))
	}
	if items[0]["name"] != "Es Teh Manis" || items[1]["name"] != "Nasi Bakar Ayam" {
		t.Errorf("order: got %v, %v", items[0]["name"], items[1]["name"])
	}
	if items[1]["price"] != "10.00" {
		t.Errorf("price: got %v, want 10.00", items[1]["price"])
	}
}

func TestListMenu_ServesCacheWhenSourceFails(t *testing.T) {
	env := newTestEnv(t)
	env.menus.For(testBranch).Replace(sampleMenu().items)

	env.source.mu.Lock()
	env.source.err = errBoom
	env.source.mu.Unlock()

	// Still fresh: no refresh attempted
	rr := doAuthRequest(t, env.router, "GET", "/branches/3/menu", nil, cashierClaims())
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestListMenu_SourceDownWithoutCache(t *testing.T) {
	env := newTestEnv(t)
	env.source.err = errBoom

	rr := doAuthRequest(t, env.router, "GET", "/branches/3/menu", nil, cashierClaims())
	if rr.Code != http.StatusBadGateway {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadGateway)
	}
}
