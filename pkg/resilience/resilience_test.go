package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/related-posts/pkg/errors"
)

var errBoom = errors.New("boom")

func TestCircuitBreakerLifecycle(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	now := time.Unix(1000, 0)
	cb.now = func() time.Time { return now }

	fail := func() error { return errBoom }
	ok := func() error { return nil }

	_ = cb.Execute(fail)
	if cb.GetState() != StateClosed {
		t.Fatalf("state after 1 failure = %v", cb.GetState())
	}
	_ = cb.Execute(fail)
	if cb.GetState() != StateOpen {
		t.Fatalf("state after 2 failures = %v", cb.GetState())
	}
	if err := cb.Execute(ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker returned %v", err)
	}

	now = now.Add(time.Minute)
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("half-open probe error = %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("state after successful probe = %v", cb.GetState())
	}

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions = %v, want %v", transitions, want)
			break
		}
	}
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	now := time.Unix(0, 0)
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errBoom })
	now = now.Add(time.Second)
	_ = cb.Execute(func() error { return errBoom })
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}
	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Fatalf("state after Reset = %v", cb.GetState())
	}
}

func TestCircuitBreakerIgnoresNonFailures(t *testing.T) {
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, apperrors.ErrNotFound) },
	})
	for i := 0; i < 5; i++ {
		if err := cb.Execute(func() error { return apperrors.ErrNotFound }); !errors.Is(err, apperrors.ErrNotFound) {
			t.Fatalf("Execute() = %v", err)
		}
	}
	if cb.GetState() != StateClosed {
		t.Errorf("not-found errors tripped the breaker")
	}
}

func TestRetry(t *testing.T) {
	fast := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	tests := []struct {
		name      string
		fails     int
		permanent bool
		wantCalls int
		wantErr   bool
	}{
		{"first try", 0, false, 1, false},
		{"recovers", 2, false, 3, false},
		{"exhausted", 5, false, 3, true},
		{"permanent", 5, true, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), "op", fast, func() error {
				calls++
				if calls <= tt.fails {
					if tt.permanent {
						return Permanent(errBoom)
					}
					return errBoom
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Retry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errBoom) {
				t.Errorf("error %v does not wrap cause", err)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, "op", RetryConfig{MaxAttempts: 10, InitialDelay: time.Hour}, func() error {
		calls++
		cancel()
		return errBoom
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Retry() = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestComputeDelayCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 10}
	if d := computeDelay(4, cfg); d != 3*time.Second {
		t.Errorf("computeDelay = %v, want cap", d)
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Fatalf("WithTimeout() = %v, want ErrTimeout", err)
	}

	if err := WithTimeout(context.Background(), time.Second, "fast", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("fast fn error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = WithTimeout(ctx, time.Second, "cancelled", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err == nil {
		t.Fatal("expected error for cancelled parent")
	}
}
