package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream 503")

func TestCircuitBreaker_BasicTransitions(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker("statsapi", CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 2,
		OpenTimeout:      50 * time.Millisecond,
		HalfOpenMaxReq:   1,
	})

	if err := b.Execute(func() error { return errUpstream }); !errors.Is(err, errUpstream) {
		t.Fatalf("expected upstream error to pass through, got %v", err)
	}
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after first failure, got %s", state)
	}

	_ = b.Execute(func() error { return errUpstream })
	if state := b.State(); state != CircuitStateOpen {
		t.Fatalf("expected open after threshold failures, got %s", state)
	}

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}
	if called {
		t.Fatalf("open breaker must not run the call")
	}

	time.Sleep(80 * time.Millisecond)
	if state := b.State(); state != CircuitStateHalfOpen {
		t.Fatalf("expected half-open after timeout, got %s", state)
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected half-open probe to pass, got %v", err)
	}
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after successful probe, got %s", state)
	}
}

func TestCircuitBreaker_ClassifierIgnoresClientErrors(t *testing.T) {
	t.Parallel()

	errBadRequest := errors.New("status=400")
	b := NewCircuitBreaker("statsapi", CircuitBreakerConfig{Enabled: true, FailureThreshold: 1},
		WithFailureClassifier(func(err error) bool { return !errors.Is(err, errBadRequest) }),
	)

	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return errBadRequest }); !errors.Is(err, errBadRequest) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("client errors must not trip the breaker, got %s", state)
	}
}

func TestCircuitBreaker_StateChangeHook(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var transitions []CircuitState
	b := NewCircuitBreaker("statsapi", CircuitBreakerConfig{Enabled: true, FailureThreshold: 1},
		WithStateChangeHook(func(_ string, _, to CircuitState) {
			mu.Lock()
			transitions = append(transitions, to)
			mu.Unlock()
		}),
	)

	_ = b.Execute(func() error { return errUpstream })

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 1 || transitions[0] != CircuitStateOpen {
		t.Fatalf("unexpected transitions: %v", transitions)
	}
}

func TestCircuitBreaker_Disabled(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreaker("statsapi", CircuitBreakerConfig{Enabled: false, FailureThreshold: 1})
	for i := 0; i < 5; i++ {
		if err := b.Execute(func() error { return errUpstream }); !errors.Is(err, errUpstream) {
			t.Fatalf("disabled breaker should pass errors through, got %v", err)
		}
	}
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("disabled breaker reports closed, got %s", state)
	}
}

func TestNormalizeCircuitBreakerConfig(t *testing.T) {
	t.Parallel()

	got := NormalizeCircuitBreakerConfig(CircuitBreakerConfig{Interval: -time.Second})
	want := DefaultCircuitBreakerConfig()
	if got.FailureThreshold != want.FailureThreshold || got.OpenTimeout != want.OpenTimeout || got.HalfOpenMaxReq != want.HalfOpenMaxReq {
		t.Fatalf("unexpected normalized config: %+v", got)
	}
	if got.Interval != 0 {
		t.Fatalf("negative interval should clamp to zero, got %s", got.Interval)
	}
}
