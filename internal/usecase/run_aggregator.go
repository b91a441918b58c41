package usecase

import (
	"sync"

	"github.com/riskibarqy/scouting-sync/internal/domain/stats"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

type DomainCounts struct {
	Success int `json:"success"`
	Skipped int `json:"skipped"`
	Error   int `json:"error"`
}

func (c DomainCounts) Total() int {
	return c.Success + c.Skipped + c.Error
}

// CellObserver receives every recorded outcome, e.g. to export metrics.
type CellObserver interface {
	ObserveCell(domain string, outcome string)
}

// RunAggregator counts one outcome per (pair, domain) cell. Safe for concurrent use.
type RunAggregator struct {
	mu       sync.Mutex
	counts   map[stats.Domain]DomainCounts
	observer CellObserver
}

func NewRunAggregator(domains []stats.Domain, observer CellObserver) *RunAggregator {
	counts := make(map[stats.Domain]DomainCounts, len(domains))
	for _, domain := range domains {
		counts[domain] = DomainCounts{}
	}
	return &RunAggregator{counts: counts, observer: observer}
}

func (a *RunAggregator) Record(domain stats.Domain, outcome Outcome) {
	a.mu.Lock()
	current := a.counts[domain]
	switch outcome {
	case OutcomeSuccess:
		current.Success++
	case OutcomeSkipped:
		current.Skipped++
	default:
		outcome = OutcomeError
		current.Error++
	}
	a.counts[domain] = current
	a.mu.Unlock()

	if a.observer != nil {
		a.observer.ObserveCell(string(domain), string(outcome))
	}
}

func (a *RunAggregator) Summary() map[stats.Domain]DomainCounts {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[stats.Domain]DomainCounts, len(a.counts))
	for domain, counts := range a.counts {
		out[domain] = counts
	}
	return out
}
