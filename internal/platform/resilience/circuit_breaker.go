package resilience

import (
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"
	CircuitStateOpen     CircuitState = "open"
	CircuitStateHalfOpen CircuitState = "half_open"
)

// CircuitBreaker guards one upstream dependency. A disabled breaker runs every call.
type CircuitBreaker struct {
	cb      *gobreaker.CircuitBreaker[struct{}]
	enabled bool
}

type BreakerOption func(*gobreaker.Settings)

// WithFailureClassifier decides which errors count against the breaker.
// Errors for which countsAsFailure returns false are treated as successful calls.
func WithFailureClassifier(countsAsFailure func(error) bool) BreakerOption {
	return func(s *gobreaker.Settings) {
		s.IsSuccessful = func(err error) bool {
			return err == nil || !countsAsFailure(err)
		}
	}
}

func WithStateChangeHook(fn func(name string, from, to CircuitState)) BreakerOption {
	return func(s *gobreaker.Settings) {
		s.OnStateChange = func(name string, from, to gobreaker.State) {
			fn(name, mapState(from), mapState(to))
		}
	}
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig, opts ...BreakerOption) *CircuitBreaker {
	cfg = NormalizeCircuitBreakerConfig(cfg)
	threshold := uint32(cfg.FailureThreshold)

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.HalfOpenMaxReq),
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}
	for _, opt := range opts {
		opt(&settings)
	}

	return &CircuitBreaker{
		cb:      gobreaker.NewCircuitBreaker[struct{}](settings),
		enabled: cfg.Enabled,
	}
}

// Execute runs fn under the breaker. Rejections are reported as ErrCircuitOpen.
func (b *CircuitBreaker) Execute(fn func() error) error {
	if b == nil || !b.enabled {
		return fn()
	}

	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

func (b *CircuitBreaker) State() CircuitState {
	if b == nil || !b.enabled {
		return CircuitStateClosed
	}
	return mapState(b.cb.State())
}

func mapState(state gobreaker.State) CircuitState {
	switch state {
	case gobreaker.StateOpen:
		return CircuitStateOpen
	case gobreaker.StateHalfOpen:
		return CircuitStateHalfOpen
	default:
		return CircuitStateClosed
	}
}
