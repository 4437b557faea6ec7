package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errPermanent = errors.New("permanent")
	errMissing   = errors.New("missing")
	errBoom      = errors.New("boom")
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		failFirst int
		err       error
		retryable func(error) bool
		wantCalls int
		wantErr   error
		wrapped   bool
	}{
		{"succeeds first time", 0, errBoom, nil, 1, nil, false},
		{"succeeds after transient failures", 2, errBoom, nil, 3, nil, false},
		{"exhausts attempts", 10, errBoom, nil, 3, errBoom, true},
		{"stops on non-retryable", 10, errPermanent, func(err error) bool { return !errors.Is(err, errPermanent) }, 1, errPermanent, false},
		{"never retries an open circuit", 10, ErrCircuitOpen, nil, 1, ErrCircuitOpen, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fastRetry(3)
			cfg.Retryable = tt.retryable
			calls := 0
			err := Retry(context.Background(), "test", cfg, func(context.Context) error {
				calls++
				if calls <= tt.failFirst {
					return tt.err
				}
				return nil
			})
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil) != (err == nil) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil && (err != tt.wantErr) != tt.wrapped {
				t.Errorf("err %v: wrapped = %v, want %v", err, err != tt.wantErr, tt.wrapped)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryAttemptTimeout(t *testing.T) {
	cfg := fastRetry(2)
	cfg.AttemptTimeout = 5 * time.Millisecond
	err := Retry(context.Background(), "slow", cfg, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour}
	calls := 0
	err := Retry(ctx, "cancelled", cfg, func(context.Context) error {
		calls++
		cancel()
		return errBoom
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("err = %v after %d calls, want cancellation after 1", err, calls)
	}
}

func TestDelayIsCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second}.withDefaults()
	for n := 1; n < 10; n++ {
		if d := cfg.delay(n); d > cfg.MaxDelay || d <= 0 {
			t.Errorf("delay(%d) = %v, want in (0, %v]", n, d, cfg.MaxDelay)
		}
	}
}

func TestCircuitBreakerOpensAndReportsState(t *testing.T) {
	var states []State
	cb := NewCircuitBreaker("s3", BreakerConfig{
		FailureThreshold: 2,
		CoolDown:         time.Hour,
		OnStateChange:    func(_ string, to State) { states = append(states, to) },
	})
	fail := func(context.Context) error { return errBoom }
	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)

	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}
	if err := cb.Execute(ctx, func(context.Context) error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if len(states) != 1 || states[0] != StateOpen {
		t.Errorf("state changes = %v, want [open]", states)
	}
}

func TestCircuitBreakerRecoversThroughProbe(t *testing.T) {
	cb := NewCircuitBreaker("s3", BreakerConfig{FailureThreshold: 1, CoolDown: time.Millisecond})
	ctx := context.Background()
	_ = cb.Execute(ctx, func(context.Context) error { return errBoom })
	time.Sleep(5 * time.Millisecond)

	if err := cb.Execute(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %s, want closed after a successful probe", cb.State())
	}
}

func TestCircuitBreakerIgnoredErrors(t *testing.T) {
	cb := NewCircuitBreaker("s3", BreakerConfig{
		FailureThreshold: 1,
		Ignore:           func(err error) bool { return errors.Is(err, errMissing) },
	})
	for i := 0; i < 3; i++ {
		if err := cb.Execute(context.Background(), func(context.Context) error { return errMissing }); !errors.Is(err, errMissing) {
			t.Fatalf("err = %v, want errMissing", err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestPolicyStopsAtOpenCircuit(t *testing.T) {
	p := &Policy{
		Name:    "bodies",
		Retry:   fastRetry(5),
		Breaker: NewCircuitBreaker("bodies", BreakerConfig{FailureThreshold: 2, CoolDown: time.Hour}),
	}
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errBoom
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
