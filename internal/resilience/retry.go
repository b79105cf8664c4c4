// Package resilience provides the retry schedule and transient-error
// classification shared by the upstream eBird and boundary clients. The
// circuit-breaking concern lives with the callers (they wrap sony/gobreaker
// around DoVal); this package only decides whether and when one more attempt
// is worth making.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls DoVal's backoff schedule.
type RetryConfig struct {
	// MaxAttempts is the total attempt budget including the first call.
	// Zero or negative means 3.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Default 250ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the grown delay. Default 5s.
	MaxBackoff time.Duration

	// Multiplier grows the delay after each attempt. Default 2.
	Multiplier float64

	// JitterFraction spreads each delay by ± this fraction so coalesced
	// callers do not retry in lockstep. Zero disables jitter.
	JitterFraction float64

	// OnRetry, when set, observes each retry before its sleep.
	OnRetry func(attempt int, err error)
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 250 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	return cfg
}

// backoff returns the delay before retry number attempt (0-based).
func (cfg RetryConfig) backoff(attempt int) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}
	if cfg.JitterFraction > 0 {
		delay += (rand.Float64()*2 - 1) * delay * cfg.JitterFraction
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// DoVal runs fn until it succeeds, returns a non-transient error, or the
// attempt budget is spent. Only errors classified by IsTransient are retried;
// a 403 from a bad API key fails fast while a 429 or 5xx gets the schedule.
// Context cancellation stops the schedule between attempts.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) {
			return zero, lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(cfg.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying upstream call",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
