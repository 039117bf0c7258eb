package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/terminal/internal/backend"
	"github.com/kiwari-pos/terminal/internal/receipt"
	log "github.com/sirupsen/logrus"
)

// ReceiptRenderer is the slice of *receipt.Renderer used by handlers.
type ReceiptRenderer interface {
	Render(order *backend.Order, payment *backend.Payment) (*receipt.Receipt, error)
	RenderForPrint(order *backend.Order, payment *backend.Payment) (string, error)
	RenderForEmail(to string, order *backend.Order, payment *backend.Payment) (*receipt.EmailMessage, error)
}

// MailSender delivers receipt emails. Satisfied by mailer.Sender.
type MailSender interface {
	Send(ctx context.Context, msg *receipt.EmailMessage) error
}

// ReceiptHandler renders receipts for a session's last checkout.
type ReceiptHandler struct {
	store    SessionStore
	renderer ReceiptRenderer
	mailer   MailSender
}

func NewReceiptHandler(store SessionStore, renderer ReceiptRenderer, mailer MailSender) *ReceiptHandler {
	return &ReceiptHandler{store: store, renderer: renderer, mailer: mailer}
}

// RegisterRoutes registers receipt endpoints on the given Chi router.
// Expected to be mounted at /branches/{bid}/sessions
func (h *ReceiptHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{sid}/receipt", h.Get)
	r.Post("/{sid}/receipt/email", h.Email)
}

type emailReceiptRequest struct {
	To string `json:"to"`
}

// lastCheckout returns the order and payment of the session's most recent
// checkout, writing the error response itself when there is none.
func (h *ReceiptHandler) lastCheckout(w http.ResponseWriter, r *http.Request) (*backend.Order, *backend.Payment, bool) {
	s, ok := loadSession(w, r, h.store)
	if !ok {
		return nil, nil, false
	}
	res := s.Checkout.LastResult()
	if res == nil {
		writeError(w, http.StatusNotFound, "no finished checkout for this session")
		return nil, nil, false
	}
	if !res.Succeeded {
		writeError(w, http.StatusConflict, "last checkout did not create an order")
		return nil, nil, false
	}
	if res.Partial {
		writeError(w, http.StatusConflict, "order is awaiting manual payment")
		return nil, nil, false
	}
	return res.Order, res.Payment, true
}

// Get handles GET /branches/{bid}/sessions/{sid}/receipt?format=text|print.
func (h *ReceiptHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, payment, ok := h.lastCheckout(w, r)
	if !ok {
		return
	}

	var (
		body string
		err  error
	)
	switch format := r.URL.Query().Get("format"); format {
	case "", "text":
		var rc *receipt.Receipt
		if rc, err = h.renderer.Render(order, payment); err == nil {
			body = rc.Text()
		}
	case "print":
		body, err = h.renderer.RenderForPrint(order, payment)
	default:
		writeError(w, http.StatusBadRequest, "format must be text or print")
		return
	}
	if err != nil {
		writeRenderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// Email handles POST /branches/{bid}/sessions/{sid}/receipt/email.
func (h *ReceiptHandler) Email(w http.ResponseWriter, r *http.Request) {
	var req emailReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" {
		writeError(w, http.StatusBadRequest, "to is required")
		return
	}

	order, payment, ok := h.lastCheckout(w, r)
	if !ok {
		return
	}

	msg, err := h.renderer.RenderForEmail(req.To, order, payment)
	if err != nil {
		writeRenderError(w, err)
		return
	}
	if err := h.mailer.Send(r.Context(), msg); err != nil {
		log.WithError(err).WithField("order_id", order.ID).Error("send receipt email")
		writeError(w, http.StatusBadGateway, "failed to send receipt email")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"to":      msg.To,
		"subject": msg.Subject,
	})
}

func writeRenderError(w http.ResponseWriter, err error) {
	var mde *receipt.MissingDataError
	if errors.As(err, &mde) {
		log.WithError(err).Error("receipt render with incomplete data")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
