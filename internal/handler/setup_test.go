package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/terminal/internal/auth"
	"github.com/kiwari-pos/terminal/internal/backend"
	"github.com/kiwari-pos/terminal/internal/catalog"
	"github.com/kiwari-pos/terminal/internal/checkout"
	"github.com/kiwari-pos/terminal/internal/handler"
	"github.com/kiwari-pos/terminal/internal/middleware"
	"github.com/kiwari-pos/terminal/internal/receipt"
	"github.com/kiwari-pos/terminal/internal/reconcile"
	"github.com/kiwari-pos/terminal/internal/session"
	"github.com/shopspring/decimal"
)

const testJWTSecret = "test-secret-for-terminal"

const testBranch = int64(3)

// --- Mock backend ---

type mockAPI struct {
	createCalls  atomic.Int32
	paymentCalls atomic.Int32

	createOrderFn    func(ctx context.Context, req backend.CreateOrderRequest) (*backend.Order, error)
	processPaymentFn func(ctx context.Context, req backend.ProcessPaymentRequest) (*backend.Payment, error)
}

func (m *mockAPI) CreateOrder(ctx context.Context, req backend.CreateOrderRequest) (*backend.Order, error) {
	m.createCalls.Add(1)
	return m.createOrderFn(ctx, req)
}

func (m *mockAPI) ProcessPayment(ctx context.Context, req backend.ProcessPaymentRequest) (*backend.Payment, error) {
	m.paymentCalls.Add(1)
	return m.processPaymentFn(ctx, req)
}

func orderCreated(id int64) func(context.Context, backend.CreateOrderRequest) (*backend.Order, error) {
	return func(ctx context.Context, req backend.CreateOrderRequest) (*backend.Order, error) {
		return &backend.Order{ID: id, BranchID: req.BranchID, DeliveryLabel: req.DeliveryLabel}, nil
	}
}

func orderRejected(ctx context.Context, req backend.CreateOrderRequest) (*backend.Order, error) {
	return nil, &backend.OrderCreationError{StatusCode: 400, Message: "menu item 9 is not available"}
}

func paymentOK(id int64) func(context.Context, backend.ProcessPaymentRequest) (*backend.Payment, error) {
	return func(ctx context.Context, req backend.ProcessPaymentRequest) (*backend.Payment, error) {
		return &backend.Payment{ID: id, OrderID: req.OrderID, Amount: req.Amount, Method: req.Method, Status: "COMPLETED"}, nil
	}
}

func paymentDeclined(ctx context.Context, req backend.ProcessPaymentRequest) (*backend.Payment, error) {
	return nil, &backend.PaymentProcessingError{OrderID: req.OrderID, StatusCode: 402, Message: "card declined"}
}

// --- Mock menu source ---

type mockSource struct {
	mu    sync.Mutex
	items []catalog.MenuItem
	err   error
}

func (m *mockSource) ListMenuItems(ctx context.Context, branchID int64) ([]catalog.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]catalog.MenuItem(nil), m.items...), nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleMenu() *mockSource {
	return &mockSource{items: []catalog.MenuItem{
		{ID: 1, Name: "Nasi Bakar Ayam", Price: dec("10.00"), Category: "Rice", IsAvailable: true},
		{ID: 2, Name: "Es Teh Manis", Price: dec("4.50"), Category: "Beverage", IsAvailable: true},
		{ID: 3, Name: "Sate Maranggi", Price: dec("12.25"), Category: "Grill", IsAvailable: false},
	}}
}

// --- Mock mailer ---

type mockMailer struct {
	sent []*receipt.EmailMessage
	err  error
}

func (m *mockMailer) Send(ctx context.Context, msg *receipt.EmailMessage) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// --- Mock publisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []string
}

func (m *mockPublisher) Publish(branchID int64, eventType string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
	return nil
}

// --- Test environment ---

type testEnv struct {
	api       *mockAPI
	source    *mockSource
	menus     *catalog.Registry
	sessions  *session.Store
	ledger    *reconcile.MemoryStore
	mailer    *mockMailer
	publisher *mockPublisher
	router    *chi.Mux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		api:       &mockAPI{createOrderFn: orderCreated(42), processPaymentFn: paymentOK(900)},
		source:    sampleMenu(),
		ledger:    reconcile.NewMemoryStore(),
		mailer:    &mockMailer{},
		publisher: &mockPublisher{},
	}
	menus := catalog.NewRegistry(env.source, time.Minute)
	env.menus = menus
	env.sessions = session.NewStore(session.Options{
		API:       env.api,
		Menus:     menus,
		Listeners: []checkout.Listener{reconcile.Listener(env.ledger, time.Second)},
	})

	renderer := receipt.NewRenderer(receipt.Options{
		StoreName:      "Kiwari Nasi Bakar",
		CurrencySymbol: "$",
		Location:       time.UTC,
	})

	sh := handler.NewSessionHandler(env.sessions, dec("8.5"))
	ch := handler.NewCheckoutHandler(env.sessions, dec("8.5"))
	rh := handler.NewReceiptHandler(env.sessions, renderer, env.mailer)
	mh := handler.NewMenuHandler(menus)
	rech := handler.NewReconciliationHandler(env.ledger, env.publisher)

	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/branches/{bid}", func(r chi.Router) {
		r.Use(middleware.RequireBranch)
		r.Route("/menu", mh.RegisterRoutes)
		r.Route("/sessions", func(r chi.Router) {
			sh.RegisterRoutes(r)
			ch.RegisterRoutes(r)
			rh.RegisterRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("ADMIN", "MANAGER"))
			r.Route("/reconciliations", rech.RegisterRoutes)
		})
	})
	env.router = r
	return env
}

func cashierClaims() *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), BranchID: testBranch, Role: "CASHIER"}
}

func managerClaims() *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), BranchID: testBranch, Role: "MANAGER"}
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	// Generate a real JWT token from claims
	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.BranchID, claims.Role, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// openSession creates a session through the API and returns its base path.
func (env *testEnv) openSession(t *testing.T, claims *auth.Claims) string {
	t.Helper()
	rr := doAuthRequest(t, env.router, "POST", "/branches/3/sessions", nil, claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("open session: got %d; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	return "/branches/3/sessions/" + resp["id"].(string)
}

func (env *testEnv) addItem(t *testing.T, base string, claims *auth.Claims, id int64, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		rr := doAuthRequest(t, env.router, "POST", base+"/cart/items", map[string]interface{}{"menu_item_id": id}, claims)
		if rr.Code != http.StatusOK {
			t.Fatalf("add item %d: got %d; body: %s", id, rr.Code, rr.Body.String())
		}
	}
}

var errBoom = errors.New("boom")
