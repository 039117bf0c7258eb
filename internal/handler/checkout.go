package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/terminal/internal/checkout"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// CheckoutHandler runs checkouts for POS sessions.
type CheckoutHandler struct {
	store      SessionStore
	defaultTax decimal.Decimal
}

func NewCheckoutHandler(store SessionStore, defaultTax decimal.Decimal) *CheckoutHandler {
	return &CheckoutHandler{store: store, defaultTax: defaultTax}
}

// RegisterRoutes registers checkout endpoints on the given Chi router.
// Expected to be mounted at /branches/{bid}/sessions
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/{sid}/checkout", h.Checkout)
}

type checkoutRequest struct {
	PaymentMethod   string `json:"payment_method"`
	DeliveryLabel   string `json:"delivery_label"`
	DiscountPercent string `json:"discount_percent"`
	TaxPercent      string `json:"tax_percent"`
}

// Checkout handles POST /branches/{bid}/sessions/{sid}/checkout.
//
// Remote failures are part of the result, not HTTP errors: a created order
// (paid or partial) answers 201, a failed order creation answers 502 with
// the result body so the terminal can show the message.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(w, r, h.store)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PaymentMethod == "" {
		writeError(w, http.StatusBadRequest, "payment_method is required")
		return
	}
	discount, err := parsePercent(req.DiscountPercent, decimal.Zero)
	if err != nil {
		writeError(w, http.StatusBadRequest, "discount_percent "+err.Error())
		return
	}
	tax, err := parsePercent(req.TaxPercent, h.defaultTax)
	if err != nil {
		writeError(w, http.StatusBadRequest, "tax_percent "+err.Error())
		return
	}

	// A client disconnect must not abort a checkout between order creation
	// and payment.
	ctx := context.WithoutCancel(r.Context())

	if err := s.Menu.EnsureFresh(ctx); err != nil {
		log.WithError(err).WithField("branch_id", s.BranchID).Warn("menu refresh failed, pricing from cached menu")
	}

	result, err := s.Checkout.Checkout(ctx, checkout.Request{
		BranchID:        s.BranchID,
		PaymentMethod:   req.PaymentMethod,
		DeliveryLabel:   req.DeliveryLabel,
		DiscountPercent: discount,
		TaxPercent:      tax,
	})
	switch {
	case errors.Is(err, checkout.ErrInvalidPaymentMethod):
		writeError(w, http.StatusBadRequest, "invalid payment_method")
		return
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusUnprocessableEntity, "cart is empty")
		return
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		writeError(w, http.StatusConflict, "checkout already in progress")
		return
	case err != nil:
		log.WithError(err).Error("checkout")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := http.StatusCreated
	if !result.Succeeded {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]interface{}{
		"result":  result,
		"session": toSessionResponse(s),
	})
}
