package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/terminal/internal/cart"
	"github.com/kiwari-pos/terminal/internal/checkout"
	"github.com/kiwari-pos/terminal/internal/middleware"
	"github.com/kiwari-pos/terminal/internal/session"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// SessionHandler handles POS session, cart, and pricing endpoints.
type SessionHandler struct {
	store      SessionStore
	defaultTax decimal.Decimal
}

func NewSessionHandler(store SessionStore, defaultTax decimal.Decimal) *SessionHandler {
	return &SessionHandler{store: store, defaultTax: defaultTax}
}

// RegisterRoutes registers session endpoints on the given Chi router.
// Expected to be mounted at /branches/{bid}/sessions
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{sid}", h.Get)
	r.Delete("/{sid}", h.Delete)

	r.Post("/{sid}/cart/items", h.AddItem)
	r.Put("/{sid}/cart/items/{mid}", h.SetQuantity)
	r.Delete("/{sid}/cart/items/{mid}", h.RemoveItem)
	r.Delete("/{sid}/cart", h.ClearCart)

	r.Get("/{sid}/pricing", h.Pricing)
}

// --- Request / Response types ---

type addItemRequest struct {
	MenuItemID int64 `json:"menu_item_id"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

type cartLineResponse struct {
	MenuItemID int64  `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
	Subtotal   string `json:"subtotal"`
	Resolved   bool   `json:"resolved"`
}

type sessionResponse struct {
	ID              uuid.UUID          `json:"id"`
	BranchID        int64              `json:"branch_id"`
	CashierID       uuid.UUID          `json:"cashier_id"`
	CreatedAt       time.Time          `json:"created_at"`
	CheckoutState   checkout.State     `json:"checkout_state"`
	Items           []cartLineResponse `json:"items"`
	ItemCount       int                `json:"item_count"`
	Subtotal        string             `json:"subtotal"`
	UnresolvedItems []int64            `json:"unresolved_items"`
	LastResult      *checkout.Result   `json:"last_result"`
}

func toSessionResponse(s *session.Session) sessionResponse {
	snap := s.Cart.Snapshot(decimal.Zero, decimal.Zero)

	items := make([]cartLineResponse, 0, len(snap.Lines))
	unresolved := []int64{}
	count := 0
	for _, l := range snap.Lines {
		items = append(items, cartLineResponse{
			MenuItemID: l.MenuItemID,
			Name:       l.Name,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice.StringFixed(2),
			Subtotal:   l.Subtotal.StringFixed(2),
			Resolved:   l.Resolved,
		})
		if !l.Resolved {
			unresolved = append(unresolved, l.MenuItemID)
		}
		count += l.Quantity
	}

	return sessionResponse{
		ID:              s.ID,
		BranchID:        s.BranchID,
		CashierID:       s.CashierID,
		CreatedAt:       s.CreatedAt,
		CheckoutState:   s.Checkout.State(),
		Items:           items,
		ItemCount:       count,
		Subtotal:        snap.Summary.Subtotal.StringFixed(2),
		UnresolvedItems: unresolved,
		LastResult:      s.Checkout.LastResult(),
	}
}

// --- Handlers ---

// Create handles POST /branches/{bid}/sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid branch ID")
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	s := h.store.Create(branchID, claims.UserID)
	if err := s.Menu.EnsureFresh(r.Context()); err != nil {
		log.WithError(err).WithField("branch_id", branchID).Warn("menu refresh failed on session open")
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(s))
}

// Get handles GET /branches/{bid}/sessions/{sid}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

// Delete handles DELETE /branches/{bid}/sessions/{sid}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid branch ID")
		return
	}
	sid, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session ID")
		return
	}

	switch err := h.store.Delete(branchID, sid); {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		log.WithError(err).Error("delete session")
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// AddItem handles POST /branches/{bid}/sessions/{sid}/cart/items.
func (h *SessionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MenuItemID <= 0 {
		writeError(w, http.StatusBadRequest, "menu_item_id is required")
		return
	}

	if err := s.Menu.EnsureFresh(r.Context()); err != nil {
		log.WithError(err).WithField("branch_id", s.BranchID).Warn("menu refresh failed, using cached menu")
	}
	item, found := s.Menu.Lookup(req.MenuItemID)
	if !found {
		writeError(w, http.StatusNotFound, "menu item not found")
		return
	}
	if !item.IsAvailable {
		writeError(w, http.StatusConflict, "menu item is not available")
		return
	}

	editCart(w, s, func(c *cart.Cart) { c.AddItem(item) })
}

// SetQuantity handles PUT /branches/{bid}/sessions/{sid}/cart/items/{mid}.
// A quantity of zero or less removes the line.
func (h *SessionHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}
	mid, err := strconv.ParseInt(chi.URLParam(r, "mid"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid menu item ID")
		return
	}

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity == nil {
		writeError(w, http.StatusBadRequest, "quantity is required")
		return
	}

	q := *req.Quantity
	editCart(w, s, func(c *cart.Cart) { c.SetQuantity(mid, q) })
}

// RemoveItem handles DELETE /branches/{bid}/sessions/{sid}/cart/items/{mid}.
func (h *SessionHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}
	mid, err := strconv.ParseInt(chi.URLParam(r, "mid"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid menu item ID")
		return
	}

	editCart(w, s, func(c *cart.Cart) { c.RemoveItem(mid) })
}

// ClearCart handles DELETE /branches/{bid}/sessions/{sid}/cart.
func (h *SessionHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}
	editCart(w, s, func(c *cart.Cart) { c.Clear() })
}

// editCart applies fn through the session's orchestrator so the cart stays
// frozen while a checkout is in flight.
func editCart(w http.ResponseWriter, s *session.Session, fn func(c *cart.Cart)) {
	if err := s.Checkout.EditCart(fn); err != nil {
		if errors.Is(err, checkout.ErrCheckoutInProgress) {
			writeError(w, http.StatusConflict, "checkout in progress")
			return
		}
		log.WithError(err).Error("edit cart")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

// Pricing handles GET /branches/{bid}/sessions/{sid}/pricing?discount=&tax=.
func (h *SessionHandler) Pricing(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}

	discount, err := parsePercent(r.URL.Query().Get("discount"), decimal.Zero)
	if err != nil {
		writeError(w, http.StatusBadRequest, "discount "+err.Error())
		return
	}
	tax, err := parsePercent(r.URL.Query().Get("tax"), h.defaultTax)
	if err != nil {
		writeError(w, http.StatusBadRequest, "tax "+err.Error())
		return
	}

	summary := s.Cart.PricingSummary(discount, tax)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pricing":          summary,
		"amount_due":       summary.AmountDue().StringFixed(2),
		"unresolved_items": nonNil(s.Cart.UnresolvedItems()),
	})
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
