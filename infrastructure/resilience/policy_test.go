package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.BindAttempts != 3 {
		t.Errorf("BindAttempts = %d, want 3", cfg.BindAttempts)
	}
	if cfg.BreakerThreshold != 5 {
		t.Errorf("BreakerThreshold = %d, want 5", cfg.BreakerThreshold)
	}
	if cfg.BreakerTimeout != 30*time.Second {
		t.Errorf("BreakerTimeout = %v, want 30s", cfg.BreakerTimeout)
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	for _, opt := range []Option{
		WithBindAttempts(7),
		WithBindDelay(time.Millisecond),
		WithBreakerThreshold(2),
		WithBreakerTimeout(time.Minute),
	} {
		opt(&cfg)
	}

	if cfg.BindAttempts != 7 || cfg.BindDelay != time.Millisecond {
		t.Errorf("bind config = %d/%v", cfg.BindAttempts, cfg.BindDelay)
	}
	if cfg.BreakerThreshold != 2 || cfg.BreakerTimeout != time.Minute {
		t.Errorf("breaker config = %d/%v", cfg.BreakerThreshold, cfg.BreakerTimeout)
	}
}

func TestPolicy_RetrySucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	p := New(WithBindAttempts(3), WithBindDelay(time.Millisecond))
	calls := 0
	err := p.Retry(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("address in use")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestPolicy_RetryGivesUp(t *testing.T) {
	t.Parallel()

	p := New(WithBindAttempts(2), WithBindDelay(time.Millisecond))
	calls := 0
	err := p.Retry(context.Background(), func(context.Context) error {
		calls++
		return errors.New("address in use")
	})

	if err == nil {
		t.Fatal("Retry() error = nil, want failure")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestPolicy_GuardOpensBreaker(t *testing.T) {
	t.Parallel()

	p := New(WithBreakerThreshold(2), WithBreakerTimeout(time.Minute))
	if got := p.BreakerState().String(); got != "closed" {
		t.Fatalf("initial BreakerState() = %s, want closed", got)
	}

	fail := errors.New("redis down")
	for i := 0; i < 2; i++ {
		if err := p.Guard(context.Background(), func(context.Context) error { return fail }); !errors.Is(err, fail) {
			t.Fatalf("Guard() error = %v, want %v", err, fail)
		}
	}

	called := false
	err := p.Guard(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Error("Guard() on open breaker error = nil")
	}
	if called {
		t.Error("Guard() called fn while breaker open")
	}
	if got := p.BreakerState().String(); got != "open" {
		t.Errorf("BreakerState() = %s, want open", got)
	}
}

func TestNewPolicy_NonPositiveValuesUseDefaults(t *testing.T) {
	t.Parallel()

	p := NewPolicy(Config{BindAttempts: -1, BreakerThreshold: -1})
	if err := p.Guard(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("Guard() error = %v", err)
	}
	if err := p.Retry(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("Retry() error = %v", err)
	}
}
