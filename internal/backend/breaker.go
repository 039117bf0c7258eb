package backend

import (
	"errors"
	"fmt"
	"time"

	"github.com/kiwari-pos/terminal/internal/metrics"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerSettings tunes the circuit breaker placed in front of each
// backend endpoint group.
type BreakerSettings struct {
	MaxRequests  uint32        // Requests allowed through while half-open
	Interval     time.Duration // Window for counting failures while closed
	Timeout      time.Duration // Time spent open before probing again
	MinRequests  uint32        // Requests needed in a window before tripping
	FailureRatio float64       // Trip when failures/requests reaches this
}

// DefaultBreakerSettings mirrors the thresholds used across our services.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  3,
		Interval:     15 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

func newBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(cbName).Set(stateValue(to))
			log.WithFields(log.Fields{
				"circuit": cbName,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("backend circuit breaker state changed")
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// describeBreakerError turns breaker rejections into readable messages.
func describeBreakerError(circuit string, err error) string {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return fmt.Sprintf("%s service unavailable (circuit open)", circuit)
	}
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Sprintf("%s service recovering, too many requests", circuit)
	}
	return err.Error()
}
