package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kiwari-pos/terminal/internal/config"
	"github.com/kiwari-pos/terminal/internal/handler"
	"github.com/kiwari-pos/terminal/internal/metrics"
	mw "github.com/kiwari-pos/terminal/internal/middleware"
	"github.com/kiwari-pos/terminal/internal/reconcile"
	"github.com/kiwari-pos/terminal/internal/ws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Deps are the long-lived components the HTTP layer is built on.
type Deps struct {
	Sessions handler.SessionStore
	Menus    handler.MenuRegistry
	Ledger   reconcile.Store
	Renderer handler.ReceiptRenderer
	Mailer   handler.MailSender
	Hub      *ws.Hub
}

// New creates a Chi router with all terminal routes wired up.
// Applies authentication, branch scoping, and role-based middleware as needed.
func New(cfg *config.Config, deps Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Instrument)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket route (handles auth internally via query param)
	if deps.Hub != nil {
		r.Get("/ws/branches/{bid}/checkouts", func(w http.ResponseWriter, r *http.Request) {
			ws.ServeWS(deps.Hub, cfg.JWTSecret, w, r)
		})
	}

	var publisher handler.EventPublisher
	if deps.Hub != nil {
		publisher = deps.Hub
	}

	sessionHandler := handler.NewSessionHandler(deps.Sessions, cfg.DefaultTaxPercent)
	checkoutHandler := handler.NewCheckoutHandler(deps.Sessions, cfg.DefaultTaxPercent)
	receiptHandler := handler.NewReceiptHandler(deps.Sessions, deps.Renderer, deps.Mailer)
	menuHandler := handler.NewMenuHandler(deps.Menus)
	reconHandler := handler.NewReconciliationHandler(deps.Ledger, publisher)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/branches/{bid}", func(r chi.Router) {
			r.Use(mw.RequireBranch)

			r.Route("/menu", menuHandler.RegisterRoutes)

			r.Route("/sessions", func(r chi.Router) {
				sessionHandler.RegisterRoutes(r)
				checkoutHandler.RegisterRoutes(r)
				receiptHandler.RegisterRoutes(r)
			})

			// Manual payment follow-up is for shift leads only
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole("ADMIN", "MANAGER"))
				r.Route("/reconciliations", reconHandler.RegisterRoutes)
			})
		})
	})

	log.Debug("router initialized")
	return r
}
