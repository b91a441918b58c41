package ratelimit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func sleepOrDone(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func TestBudget_QueueWaitIsNotCharged(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(t, Config{MaxPerSecond: 1000, MaxInFlight: 1})

	release := make(chan struct{})
	blockerDone := make(chan error, 1)
	go func() {
		blockerDone <- l.Submit(context.Background(), func(context.Context) error {
			<-release
			return nil
		})
	}()
	waitSubmitted(t, l, 1)

	ctx := WithBudget(context.Background(), 150*time.Millisecond)
	result := make(chan error, 1)
	go func() {
		result <- l.Submit(ctx, func(taskCtx context.Context) error {
			return sleepOrDone(taskCtx, 50*time.Millisecond)
		})
	}()
	waitSubmitted(t, l, 2)

	time.Sleep(300 * time.Millisecond)
	close(release)

	if err := <-blockerDone; err != nil {
		t.Fatalf("blocking task: %v", err)
	}
	if err := <-result; err != nil {
		t.Fatalf("queued task should run within its budget, got %v", err)
	}
	if remaining := BudgetFrom(ctx).Remaining(); remaining <= 0 || remaining > 100*time.Millisecond+10*time.Millisecond {
		t.Fatalf("expected only the dispatched 50ms charged, remaining=%s", remaining)
	}
}

func TestBudget_DispatchedTimeIsCharged(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(t, Config{MaxPerSecond: 1000, MaxInFlight: 1})
	ctx := WithBudget(context.Background(), 120*time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := l.Submit(ctx, func(taskCtx context.Context) error {
			return sleepOrDone(taskCtx, 50*time.Millisecond)
		}); err != nil {
			t.Fatalf("task %d within budget: %v", i, err)
		}
	}

	err := l.Submit(ctx, func(taskCtx context.Context) error {
		return sleepOrDone(taskCtx, time.Second)
	})
	if !errors.Is(err, ErrBudgetExhausted) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected budget exhaustion, got %v", err)
	}

	var ran atomic.Bool
	err = l.Submit(ctx, func(context.Context) error {
		ran.Store(true)
		return nil
	})
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("expected spent budget to reject the next task, got %v", err)
	}
	if ran.Load() {
		t.Fatalf("task must not run once the budget is spent")
	}
}

func TestRun_AppliesBudgetWithoutLimiter(t *testing.T) {
	t.Parallel()

	ctx := WithBudget(context.Background(), 50*time.Millisecond)
	start := time.Now()
	err := Run(ctx, func(taskCtx context.Context) error {
		<-taskCtx.Done()
		return taskCtx.Err()
	})
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("expected budget exhaustion, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("hung task was not cut by the budget, elapsed=%s", elapsed)
	}
}

func TestRun_ParentCancellationIsNotBudgetExhaustion(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithCancel(context.Background())
	ctx := WithBudget(parent, time.Second)
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, func(taskCtx context.Context) error {
		<-taskCtx.Done()
		return taskCtx.Err()
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("expected plain cancellation, got %v", err)
	}
}

func TestWithBudget_NonPositiveIsUnbounded(t *testing.T) {
	t.Parallel()

	if BudgetFrom(WithBudget(context.Background(), 0)) != nil {
		t.Fatalf("zero budget must leave the context unbounded")
	}
	if err := Run(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("run without budget: %v", err)
	}
}
