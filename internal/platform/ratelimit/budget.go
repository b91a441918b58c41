package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBudgetExhausted matches context.DeadlineExceeded.
var ErrBudgetExhausted = fmt.Errorf("task time budget exhausted: %w", context.DeadlineExceeded)

type budgetKey struct{}

// Budget caps how long the tasks submitted under one context may run in total.
// Only dispatched time is charged; time spent waiting in the queue is free.
type Budget struct {
	mu        sync.Mutex
	remaining time.Duration
}

// WithBudget attaches a budget of d to ctx. A non-positive d leaves ctx unbounded.
func WithBudget(ctx context.Context, d time.Duration) context.Context {
	if d <= 0 {
		return ctx
	}
	return context.WithValue(ctx, budgetKey{}, &Budget{remaining: d})
}

func BudgetFrom(ctx context.Context) *Budget {
	b, _ := ctx.Value(budgetKey{}).(*Budget)
	return b
}

func (b *Budget) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

func (b *Budget) charge(d time.Duration) {
	b.mu.Lock()
	b.remaining -= d
	b.mu.Unlock()
}

// Run executes task directly under ctx's budget, if any. The limiter dispatches every task through it.
func Run(ctx context.Context, task Task) error {
	budget := BudgetFrom(ctx)
	if budget == nil {
		return runTask(ctx, task)
	}

	remaining := budget.Remaining()
	if remaining <= 0 {
		return ErrBudgetExhausted
	}

	started := time.Now()
	taskCtx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	err := runTask(taskCtx, task)
	budget.charge(time.Since(started))

	if err != nil && ctx.Err() == nil && errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrBudgetExhausted, time.Since(started).Round(time.Millisecond), err)
	}
	return err
}

func budgetExhausted(ctx context.Context) bool {
	budget := BudgetFrom(ctx)
	return budget != nil && budget.Remaining() <= 0
}
