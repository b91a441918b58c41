package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var ErrLimiterClosed = errors.New("rate limiter is closed")

const defaultQueueSize = 4096

type Config struct {
	// MaxPerSecond is the dispatch ceiling shared by every caller of the limiter.
	MaxPerSecond float64
	// MaxInFlight is how many dispatched tasks may run at once.
	// 1 serializes tasks: the next one is dispatched only after the previous settled.
	MaxInFlight int
	QueueSize   int
}

type Task func(ctx context.Context) error

// DispatchEvent describes one task leaving the queue.
type DispatchEvent struct {
	Seq          uint64
	DispatchedAt time.Time
	QueueWait    time.Duration
}

type Option func(*Limiter)

func WithDispatchHook(fn func(DispatchEvent)) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.hooks = append(l.hooks, fn)
		}
	}
}

// Limiter is a FIFO scheduler drained by one worker that paces dispatches
// to MaxPerSecond and bounds concurrently running tasks to MaxInFlight.
type Limiter struct {
	interval    time.Duration
	maxInFlight int64
	pacer       *rate.Limiter
	slots       *semaphore.Weighted
	queue       chan *job
	hooks       []func(DispatchEvent)

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	running   sync.WaitGroup

	seq          atomic.Uint64
	submitted    atomic.Uint64
	lastDispatch time.Time
}

type job struct {
	ctx      context.Context
	task     Task
	enqueued time.Time
	result   chan error
}

func New(cfg Config, opts ...Option) (*Limiter, error) {
	if cfg.MaxPerSecond <= 0 {
		return nil, fmt.Errorf("max per second must be > 0")
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	interval := time.Duration(float64(time.Second) / cfg.MaxPerSecond)
	l := &Limiter{
		interval:    interval,
		maxInFlight: int64(cfg.MaxInFlight),
		pacer:       rate.NewLimiter(rate.Every(interval), 1),
		slots:       semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		queue:       make(chan *job, cfg.QueueSize),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.loop()
	return l, nil
}

func (l *Limiter) Interval() time.Duration {
	return l.interval
}

func (l *Limiter) MaxInFlight() int {
	return int(l.maxInFlight)
}

// Submit enqueues task and blocks until it settles, ctx ends or the limiter closes.
// A task whose ctx ends before dispatch is never run. A panicking task resolves as an error.
// When ctx carries a Budget, the task runs with a deadline of the remaining budget,
// counted from dispatch.
func (l *Limiter) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return fmt.Errorf("task is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if budgetExhausted(ctx) {
		return ErrBudgetExhausted
	}

	j := &job{
		ctx:      ctx,
		task:     task,
		enqueued: time.Now(),
		result:   make(chan error, 1),
	}

	select {
	case <-l.quit:
		return ErrLimiterClosed
	default:
	}

	select {
	case l.queue <- j:
		l.submitted.Add(1)
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrLimiterClosed
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-j.result:
			return err
		default:
			return ErrLimiterClosed
		}
	}
}

// Do is Submit for tasks that produce a value.
func Do[T any](ctx context.Context, l *Limiter, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := l.Submit(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Close stops dispatching, fails queued tasks with ErrLimiterClosed and waits for running ones.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() {
		close(l.quit)
	})
	<-l.done
}

func (l *Limiter) loop() {
	defer close(l.done)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-l.quit:
			cancel()
		case <-workerCtx.Done():
		}
	}()

	for {
		select {
		case <-l.quit:
			l.drain()
			return
		case j := <-l.queue:
			if !l.dispatch(workerCtx, j) {
				j.result <- ErrLimiterClosed
				l.drain()
				return
			}
		}
	}
}

// dispatch returns false when the limiter is shutting down.
func (l *Limiter) dispatch(workerCtx context.Context, j *job) bool {
	if err := j.ctx.Err(); err != nil {
		j.result <- err
		return true
	}
	if budgetExhausted(j.ctx) {
		j.result <- ErrBudgetExhausted
		return true
	}

	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	stop := context.AfterFunc(workerCtx, cancel)
	defer stop()

	if err := l.slots.Acquire(ctx, 1); err != nil {
		return l.abandon(workerCtx, j, err)
	}
	if err := l.pace(ctx); err != nil {
		l.slots.Release(1)
		return l.abandon(workerCtx, j, err)
	}

	now := time.Now()
	l.lastDispatch = now
	event := DispatchEvent{
		Seq:          l.seq.Add(1),
		DispatchedAt: now,
		QueueWait:    now.Sub(j.enqueued),
	}
	for _, hook := range l.hooks {
		hook(event)
	}

	l.running.Add(1)
	go func() {
		defer l.running.Done()
		defer l.slots.Release(1)
		j.result <- Run(j.ctx, j.task)
	}()
	return true
}

func (l *Limiter) abandon(workerCtx context.Context, j *job, err error) bool {
	if workerCtx.Err() != nil {
		return false
	}
	if jobErr := j.ctx.Err(); jobErr != nil {
		err = jobErr
	}
	j.result <- err
	return true
}

func (l *Limiter) pace(ctx context.Context) error {
	if err := l.pacer.Wait(ctx); err != nil {
		return err
	}

	// Token refill is float based; measured gaps must never undershoot the interval.
	if !l.lastDispatch.IsZero() {
		if gap := time.Since(l.lastDispatch); gap < l.interval {
			timer := time.NewTimer(l.interval - gap)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil
}

func (l *Limiter) drain() {
	for {
		select {
		case j := <-l.queue:
			j.result <- ErrLimiterClosed
		default:
			l.running.Wait()
			return
		}
	}
}

func runTask(ctx context.Context, task Task) (err error) {
	var pc panics.Catcher
	pc.Try(func() {
		err = task(ctx)
	})
	if recovered := pc.Recovered(); recovered != nil {
		return fmt.Errorf("task panicked: %w", recovered.AsError())
	}
	return err
}
