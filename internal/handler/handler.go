// Package handler exposes the POS terminal workflow over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/terminal/internal/cart"
	"github.com/kiwari-pos/terminal/internal/session"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// SessionStore defines the session methods needed by handlers.
// Satisfied by *session.Store.
type SessionStore interface {
	Create(branchID int64, cashierID uuid.UUID) *session.Session
	Get(branchID int64, id uuid.UUID) (*session.Session, error)
	Delete(branchID int64, id uuid.UUID) error
}

var errInvalidPercent = errors.New("must be a number between 0 and 100")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// branchIDParam parses the {bid} URL parameter.
func branchIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "bid"), 10, 64)
}

// loadSession resolves {bid} and {sid}, writing the error response itself
// when either is bad. ok is false when the caller should return.
func loadSession(w http.ResponseWriter, r *http.Request, store SessionStore) (*session.Session, bool) {
	branchID, err := branchIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid branch ID")
		return nil, false
	}
	sid, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session ID")
		return nil, false
	}
	s, err := store.Get(branchID, sid)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	if err != nil {
		log.WithError(err).Error("load session")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	return s, true
}

// parsePercent reads a percentage, falling back when s is empty. Values
// outside [0, 100] are rejected, not clamped.
func parsePercent(s string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errInvalidPercent
	}
	if !cart.ClampPercent(d).Equal(d) {
		return decimal.Zero, errInvalidPercent
	}
	return d, nil
}
