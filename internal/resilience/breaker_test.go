package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edgard/scribrbot/internal/logger"
)

func TestCircuitBreakerTrips(t *testing.T) {
	t.Parallel()
	b := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: 2, Cooldown: time.Hour, Logger: logger.Discard()})
	boom := errors.New("boom")

	calls := 0
	failing := func(context.Context) error {
		calls++
		return boom
	}

	for i := 0; i < 2; i++ {
		if err := b.Execute(context.Background(), failing); !errors.Is(err, boom) {
			t.Fatalf("Execute() #%d error = %v, want boom", i, err)
		}
	}
	if got := b.State(); got != "open" {
		t.Fatalf("State() = %q, want open", got)
	}

	if err := b.Execute(context.Background(), failing); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() on open breaker error = %v, want ErrCircuitOpen", err)
	}
	if calls != 2 {
		t.Errorf("operation called %d times, want 2", calls)
	}
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	t.Parallel()
	b := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: 1, Logger: logger.Discard()})

	_ = b.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	if got := b.State(); got != "closed" {
		t.Errorf("State() = %q after cancellation, want closed", got)
	}
	if err := b.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("Execute() error = %v", err)
	}
}
