package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/terminal/internal/enum"
	"github.com/kiwari-pos/terminal/internal/middleware"
	"github.com/kiwari-pos/terminal/internal/reconcile"
	log "github.com/sirupsen/logrus"
)

// EventPublisher pushes events to a branch's order monitors.
// Satisfied by *ws.Hub.
type EventPublisher interface {
	Publish(branchID int64, eventType string, payload interface{}) error
}

// ReconciliationHandler lists and resolves partial checkouts.
type ReconciliationHandler struct {
	store reconcile.Store
	hub   EventPublisher
}

func NewReconciliationHandler(store reconcile.Store, hub EventPublisher) *ReconciliationHandler {
	return &ReconciliationHandler{store: store, hub: hub}
}

// RegisterRoutes registers reconciliation endpoints on the given Chi router.
// Expected to be mounted at /branches/{bid}/reconciliations
func (h *ReconciliationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/{order_id}/resolve", h.Resolve)
}

// List handles GET /branches/{bid}/reconciliations?all=true.
func (h *ReconciliationHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid branch ID")
		return
	}
	includeResolved := r.URL.Query().Get("all") == "true"

	entries, err := h.store.List(r.Context(), branchID, includeResolved)
	if err != nil {
		log.WithError(err).Error("list reconciliations")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Resolve handles POST /branches/{bid}/reconciliations/{order_id}/resolve.
func (h *ReconciliationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid branch ID")
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "order_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	entry, err := h.store.Resolve(r.Context(), branchID, orderID, claims.UserID)
	switch {
	case errors.Is(err, reconcile.ErrNotFound):
		writeError(w, http.StatusNotFound, "reconciliation entry not found")
		return
	case errors.Is(err, reconcile.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "already resolved")
		return
	case err != nil:
		log.WithError(err).Error("resolve reconciliation")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	log.WithFields(log.Fields{
		"order_id":    orderID,
		"branch_id":   branchID,
		"resolved_by": claims.UserID,
	}).Info("partial checkout reconciled")

	if h.hub != nil {
		if err := h.hub.Publish(branchID, enum.EventReconciled, entry); err != nil {
			log.WithError(err).Warn("reconciliation event not published")
		}
	}
	writeJSON(w, http.StatusOK, entry)
}
