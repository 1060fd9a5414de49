// Package resilience retries transient failures of remote calls.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls exponential backoff with jitter.
type RetryConfig struct {
	// MaxAttempts counts the first try. 1 disables retries.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	// MaxBackoff caps every delay.
	MaxBackoff time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	// Jitter is the +/- fraction applied to each delay.
	Jitter float64 `yaml:"jitter" mapstructure:"jitter"`

	// Retryable overrides IsTransient when set.
	Retryable func(err error) bool `yaml:"-" mapstructure:"-"`
	// OnRetry runs before each backoff sleep.
	OnRetry func(attempt int, err error) `yaml:"-" mapstructure:"-"`
}

// DefaultRetryConfig suits calls to the GraphQL backend.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Jitter:         0.2,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.Retryable == nil {
		c.Retryable = IsTransient
	}
	return c
}

// DoVal calls fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done. The last error is returned.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var err error
	for attempt := 1; ; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !cfg.Retryable(err) || attempt >= cfg.MaxAttempts {
			return zero, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		timer := time.NewTimer(backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

// backoff returns the delay after the given 1-based attempt.
func backoff(attempt int, cfg RetryConfig) time.Duration {
	d := float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt-1))
	d = math.Min(d, float64(cfg.MaxBackoff))
	if cfg.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * cfg.Jitter
	}
	return time.Duration(math.Max(d, 0))
}

// LogRetry returns an OnRetry hook that logs through zap.
func LogRetry(service, op string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying request",
			zap.String("service", service),
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
