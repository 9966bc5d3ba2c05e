package pipeline

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fedtaxi/hojaruta/internal/apierr"
	"github.com/fedtaxi/hojaruta/pkg/logger"
	"github.com/fedtaxi/hojaruta/pkg/metrics"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig holds configuration for the circuit breaker.
type BreakerConfig struct {
	// Name identifies this breaker (used in metrics and logs).
	Name string
	// MaxRequests allowed in the half-open state.
	MaxRequests uint32
	// Interval is the cyclic period of the closed state for clearing counts.
	Interval time.Duration
	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration
	// FailureRatio trips the breaker once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig returns sensible defaults for the API breaker.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// errServerStatus marks a 5xx as a breaker failure; the response itself is still returned.
var errServerStatus = errors.New("server error status")

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Breaker fails fast with a transport error while the backend keeps failing.
// Transport errors and 5xx count as failures; 4xx (401 included) do not.
func Breaker(cfg BreakerConfig) Middleware {
	log := logger.L("breaker")
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		// a caller giving up says nothing about backend health
		IsExcluded: func(err error) bool { return errors.Is(err, context.Canceled) },
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	}
	cb := gobreaker.NewCircuitBreaker[*http.Response](settings)
	metrics.BreakerState.WithLabelValues(cfg.Name).Set(0)

	return func(req *http.Request, next Handler) (*http.Response, error) {
		resp, err := cb.Execute(func() (*http.Response, error) {
			resp, err := next(req)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= 500 {
				return resp, errServerStatus
			}
			return resp, nil
		})
		if errors.Is(err, errServerStatus) {
			return resp, nil
		}
		if err != nil {
			return nil, apierr.FromTransport(err)
		}
		return resp, nil
	}
}
