package handler_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/kiwari-pos/terminal/internal/backend"
)

func checkoutBody() map[string]interface{} {
	return map[string]interface{}{
		"payment_method":   "CASH",
		"delivery_label":   "Table 4",
		"discount_percent": "10",
		"tax_percent":      "8.5",
	}
}

// --- Checkout Tests ---

func TestCheckout_Success(t *testing.T) {
	env := newTestEnv(t)
	claims := cashierClaims()
	base := env.openSession(t, claims)
	env.addItem(t, base, claims, 1, 2)

	var charged string
	env.api.processPaymentFn = func(ctx context.Context, req backend.ProcessPaymentRequest) (*backend.Payment, error) {
		charged = req.Amount.StringFixed(2)
		return paymentOK(900)(ctx, req)
	}

	rr := doAuthRequest(t, env.router, "POST", base+"/checkout", checkoutBody(), claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeJSON(t, rr)
	result := resp["result"].(map[string]interface{})
	if result["succeeded"] != true || result["partial"] != false {
		t.Errorf("result flags: got %v", result)
	}
	if result["order_id"] != float64(42) || result["payment_id"] != float64(900) {
		t.Errorf("ids: got order %v payment %v", result["order_id"], result["payment_id"])
	}
	if charged != "19.53" {
		t.Errorf("charged: got %s, want 19.53", charged)
	}

	session := resp["session"].(map[string]interface{})
	if session["item_count"] != float64(0) {
		t.Errorf("cart should be cleared, item_count: %v", session["item_count"])
	}
	if session["checkout_state"] != "COMPLETED" {
		t.Errorf("checkout_state: got %v, want COMPLETED", session["checkout_state"])
	}
}

func TestCheckout_PartialIsRecordedForReconciliation(t *testing.T) {
	env := newTestEnv(t)
	env.api.createOrderFn = orderCreated(43)
	env.api.processPaymentFn = paymentDeclined
	claims := cashierClaims()
	base := env.openSession(t, claims)
	env.addItem(t, base, claims, 1, 2)

	rr := doAuthRequest(t, env.router, "POST", base+"/checkout", checkoutBody(), claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	result := decodeJSON(t, rr)["result"].(map[string]interface{})
	if result["succeeded"] != true || result["partial"] != true {
		t.Errorf("result flags: got %v", result)
	}
	if result["payment_id"] != nil {
		t.Errorf("payment_id: got %v, want null", result["payment_id"])
	}
	if msg, _ := result["message"].(string); !strings.Contains(msg, "#43") {
		t.Errorf("message should name the order: %q", msg)
	}
	if n := env.api.paymentCalls.Load(); n != 2 {
		t.Errorf("payment calls: got %d, want 2", n)
	}

	entries, _ := env.ledger.List(context.Background(), testBranch, false)
	if len(entries) != 1 || entries[0].OrderID != 43 {
		t.Errorf("ledger: got %+v", entries)
	}
}

func TestCheckout_OrderFailureKeepsCart(t *testing.T) {
	env := newTestEnv(t)
	env.api.createOrderFn = orderRejected
	claims := cashierClaims()
	base := env.openSession(t, claims)
	env.addItem(t, base, claims, 1, 2)

	rr := doAuthRequest(t, env.router, "POST", base+"/checkout", checkoutBody(), claims)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadGateway, rr.Body.String())
	}

	resp := decodeJSON(t, rr)
	result := resp["result"].(map[string]interface{})
	if result["succeeded"] != false || result["order_id"] != nil {
		t.Errorf("result: got %v", result)
	}
	session := resp["session"].(map[string]interface{})
	if session["item_count"] != float64(2) {
		t.Errorf("cart should be kept, item_count: %v", session["item_count"])
	}
	if env.api.paymentCalls.Load() != 0 {
		t.Error("payment must not be attempted without an order")
	}
}

func TestCheckout_Rejections(t *testing.T) {
	env := newTestEnv(t)
	claims := cashierClaims()
	base := env.openSession(t, claims)

	rr := doAuthRequest(t, env.router, "POST", base+"/checkout", checkoutBody(), claims)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty cart: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}

	env.addItem(t, base, claims, 1, 1)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing method", map[string]interface{}{}},
		{"unknown method", map[string]interface{}{"payment_method": "BARTER"}},
		{"discount out of range", map[string]interface{}{"payment_method": "CASH", "discount_percent": "150"}},
		{"bad tax", map[string]interface{}{"payment_method": "CASH", "tax_percent": "ten"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doAuthRequest(t, env.router, "POST", base+"/checkout", tt.body, claims)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
		})
	}
	if env.api.createCalls.Load() != 0 {
		t.Error("no order should be created for rejected requests")
	}
}

func TestCheckout_DoubleSubmitCreatesOneOrder(t *testing.T) {
	env := newTestEnv(t)
	claims := cashierClaims()
	base := env.openSession(t, claims)
	env.addItem(t, base, claims, 1, 1)

	entered := make(chan struct{})
	release := make(chan struct{})
	env.api.createOrderFn = func(ctx context.Context, req backend.CreateOrderRequest) (*backend.Order, error) {
		close(entered)
		<-release
		return &backend.Order{ID: 42}, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var first int
	go func() {
		defer wg.Done()
		first = doAuthRequest(t, env.router, "POST", base+"/checkout", checkoutBody(), claims).Code
	}()

	<-entered
	rr := doAuthRequest(t, env.router, "POST", base+"/checkout", checkoutBody(), claims)
	if rr.Code != http.StatusConflict {
		t.Errorf("second submit: got %d, want %d", rr.Code, http.StatusConflict)
	}

	// A session with a checkout in flight cannot be closed
	rr = doAuthRequest(t, env.router, "DELETE", base, nil, claims)
	if rr.Code != http.StatusConflict {
		t.Errorf("delete during checkout: got %d, want %d", rr.Code, http.StatusConflict)
	}

	close(release)
	wg.Wait()

	if first != http.StatusCreated {
		t.Errorf("first submit: got %d, want %d", first, http.StatusCreated)
	}
	if n := env.api.createCalls.Load(); n != 1 {
		t.Errorf("create calls: got %d, want 1", n)
	}
}

func TestCartEditsRejectedDuringCheckout(t *testing.T) {
	env := newTestEnv(t)
	claims := cashierClaims()
	base := env.openSession(t, claims)
	env.addItem(t, base, claims, 1, 1)

	entered := make(chan struct{})
	release := make(chan struct{})
	env.api.processPaymentFn = func(ctx context.Context, req backend.ProcessPaymentRequest) (*backend.Payment, error) {
		close(entered)
		<-release
		return &backend.Payment{ID: 7, OrderID: req.OrderID, Amount: req.Amount, Method: req.Method, Status: "COMPLETED"}, nil
	}

	done := make(chan int)
	go func() {
		done <- doAuthRequest(t, env.router, "POST", base+"/checkout", checkoutBody(), claims).Code
	}()

	<-entered
	edits := []struct {
		method string
		path   string
		body   interface{}
	}{
		{"POST", base + "/cart/items", map[string]interface{}{"menu_item_id": 2}},
		{"PUT", base + "/cart/items/1", map[string]interface{}{"quantity": 5}},
		{"DELETE", base + "/cart/items/1", nil},
		{"DELETE", base + "/cart", nil},
	}
	for _, e := range edits {
		rr := doAuthRequest(t, env.router, e.method, e.path, e.body, claims)
		if rr.Code != http.StatusConflict {
			t.Errorf("%s %s during checkout: got %d, want %d", e.method, e.path, rr.Code, http.StatusConflict)
		}
	}

	close(release)
	if code := <-done; code != http.StatusCreated {
		t.Fatalf("checkout: got %d, want %d", code, http.StatusCreated)
	}

	rr := doAuthRequest(t, env.router, "GET", base, nil, claims)
	var sess struct {
		ItemCount int `json:"item_count"`
	}
	decodeInto(t, rr, &sess)
	if sess.ItemCount != 0 {
		t.Errorf("item count after checkout: got %d, want 0", sess.ItemCount)
	}

	// The cart accepts edits again once the checkout has finished
	env.addItem(t, base, claims, 2, 1)
}
