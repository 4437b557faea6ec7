package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// RetryConfig controls Retry. Zero values take the defaults: 3 attempts,
// 100ms first delay doubling up to 10s, 10% jitter, no attempt timeout.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
	// AttemptTimeout bounds each call to fn.
	AttemptTimeout time.Duration
	// Retryable reports whether an error is worth another attempt. Nil
	// retries everything except ErrCircuitOpen.
	Retryable func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2
	}
	if c.Jitter <= 0 {
		c.Jitter = 0.1
	}
	return c
}

func (c RetryConfig) retryable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	return c.Retryable == nil || c.Retryable(err)
}

// delay is the backoff before attempt n+1, capped at MaxDelay.
func (c RetryConfig) delay(n int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 1; i < n && d < float64(c.MaxDelay); i++ {
		d *= c.Multiplier
	}
	d += d * c.Jitter * (2*rand.Float64() - 1)
	return min(time.Duration(d), c.MaxDelay)
}

// Retry calls fn until it succeeds or fails with a non-retryable error, in
// which case that error is returned as is. When attempts run out the last
// error is wrapped.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)

	var err error
	for attempt := 1; ; attempt++ {
		if err = attemptOnce(ctx, cfg.AttemptTimeout, fn); err == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if !cfg.retryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			return fmt.Errorf("%s failed after %d attempts: %w", name, attempt, err)
		}

		wait := cfg.delay(attempt)
		logger.Warn("attempt failed, backing off", "attempt", attempt, "error", err, "wait", wait)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s aborted: %w", name, ctx.Err())
		}
	}
}

func attemptOnce(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// Policy retries calls through a circuit breaker. Once the breaker opens
// the remaining attempts are skipped.
type Policy struct {
	Name    string
	Retry   RetryConfig
	Breaker *CircuitBreaker
}

func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return Retry(ctx, p.Name, p.Retry, func(ctx context.Context) error {
		if p.Breaker == nil {
			return fn(ctx)
		}
		return p.Breaker.Execute(ctx, fn)
	})
}
