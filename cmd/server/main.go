package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiwari-pos/terminal/internal/backend"
	"github.com/kiwari-pos/terminal/internal/catalog"
	"github.com/kiwari-pos/terminal/internal/checkout"
	"github.com/kiwari-pos/terminal/internal/config"
	"github.com/kiwari-pos/terminal/internal/mailer"
	"github.com/kiwari-pos/terminal/internal/receipt"
	"github.com/kiwari-pos/terminal/internal/reconcile"
	"github.com/kiwari-pos/terminal/internal/router"
	"github.com/kiwari-pos/terminal/internal/session"
	"github.com/kiwari-pos/terminal/internal/ws"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := backend.New(backend.Options{
		BaseURL: cfg.BackendURL,
		APIKey:  cfg.BackendAPIKey,
		Timeout: cfg.BackendTimeout,
		Breaker: backend.DefaultBreakerSettings(),
	})
	menus := catalog.NewRegistry(api, cfg.MenuMaxAge)

	ledger, closeLedger, err := openLedger(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open reconciliation ledger: %v", err)
	}
	defer closeLedger()

	hub := ws.NewHub()
	go hub.Run(ctx)

	sessions := session.NewStore(session.Options{
		API:        api,
		Menus:      menus,
		RetryDelay: cfg.PaymentRetryDelay,
		Listeners: []checkout.Listener{
			reconcile.Listener(ledger, 5*time.Second),
			ws.CheckoutListener(hub),
		},
	})
	go sweepSessions(ctx, sessions, cfg.SessionIdleTTL)

	renderer := receipt.NewRenderer(receipt.Options{
		StoreName:      cfg.Settings.StoreName,
		CurrencySymbol: cfg.Settings.CurrencySymbol,
		Footer:         cfg.Settings.ReceiptFooter,
		PrintWidth:     cfg.Settings.PrintWidth,
		Location:       cfg.Settings.Timezone,
	})

	r := router.New(cfg, router.Deps{
		Sessions: sessions,
		Menus:    menus,
		Ledger:   ledger,
		Renderer: renderer,
		Mailer:   mailer.NewLogSender(),
		Hub:      hub,
	})

	// Writes must outlast a checkout: order, payment, retry delay, retry.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 4*cfg.BackendTimeout + cfg.PaymentRetryDelay,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"port":    cfg.Port,
			"backend": cfg.BackendURL,
		}).Info("terminal server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	log.Info("server exited")
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
}

// openLedger picks the Postgres ledger when a database is configured and
// the in-memory one otherwise.
func openLedger(ctx context.Context, dbURL string) (reconcile.Store, func(), error) {
	if dbURL == "" {
		log.Warn("DATABASE_URL not set, partial checkouts are kept in memory only")
		return reconcile.NewMemoryStore(), func() {}, nil
	}
	store, err := reconcile.NewPostgresStore(ctx, dbURL)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func sweepSessions(ctx context.Context, sessions *session.Store, ttl time.Duration) {
	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(ttl); n > 0 {
				log.WithFields(log.Fields{"removed": n, "open": sessions.Len()}).Info("idle sessions swept")
			}
		}
	}
}
