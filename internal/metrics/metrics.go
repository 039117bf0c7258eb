package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckoutsTotal counts finished checkout attempts by outcome
	// (completed, partial, failed, rejected).
	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_checkouts_total",
			Help: "Total number of checkout attempts by outcome",
		},
		[]string{"branch", "outcome"},
	)

	// PaymentAttemptsTotal counts calls to the backend payment endpoint.
	PaymentAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_payment_attempts_total",
			Help: "Total number of payment submissions by attempt and result",
		},
		[]string{"attempt", "result"},
	)

	// CheckoutDuration tracks wall time from trigger to terminal state.
	CheckoutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pos_checkout_duration_seconds",
			Help:    "Checkout duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// CircuitBreakerState tracks backend circuit state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pos_backend_circuit_state",
			Help: "Backend circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"circuit"},
	)

	// OpenReconciliations is the number of partial checkouts awaiting manual payment.
	OpenReconciliations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pos_open_reconciliations",
			Help: "Partial checkouts awaiting manual payment",
		},
	)

	// RequestDuration tracks HTTP request duration by route pattern
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pos_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Instrument records RequestDuration for every request. Must be mounted on
// a chi router so the matched route pattern is available.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}
