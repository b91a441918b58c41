package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riskibarqy/scouting-sync/internal/platform/ratelimit"
	"github.com/riskibarqy/scouting-sync/internal/platform/resilience"
)

const metricsNamespace = "scouting_sync"

// SyncMetrics exports pipeline counters. It implements usecase.SyncObserver.
type SyncMetrics struct {
	registry *prometheus.Registry

	cellsTotal        *prometheus.CounterVec
	recordsWritten    *prometheus.CounterVec
	runDuration       prometheus.Histogram
	runsTotal         prometheus.Counter
	dispatchesTotal   prometheus.Counter
	dispatchQueueWait prometheus.Histogram
	breakerState      *prometheus.GaugeVec
}

func NewSyncMetrics() *SyncMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &SyncMetrics{
		registry: registry,
		cellsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cells_total",
			Help:      "Sync cells by domain and outcome",
		}, []string{"domain", "outcome"}),
		recordsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_written_total",
			Help:      "Rows upserted by domain",
		}, []string{"domain"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a sync run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}),
		runsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Completed sync runs",
		}),
		dispatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "limiter_dispatches_total",
			Help:      "Outbound requests released by the rate limiter",
		}),
		dispatchQueueWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "limiter_queue_wait_seconds",
			Help:      "Time a request spent queued before dispatch",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		breakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "circuit_breaker_open",
			Help:      "1 while the named circuit breaker is open or half open",
		}, []string{"name"}),
	}
}

func (m *SyncMetrics) ObserveCell(domain string, outcome string) {
	m.cellsTotal.WithLabelValues(domain, outcome).Inc()
}

func (m *SyncMetrics) ObserveRecords(domain string, written int) {
	m.recordsWritten.WithLabelValues(domain).Add(float64(written))
}

func (m *SyncMetrics) ObserveRun(duration time.Duration) {
	m.runsTotal.Inc()
	m.runDuration.Observe(duration.Seconds())
}

func (m *SyncMetrics) ObserveDispatch(event ratelimit.DispatchEvent) {
	m.dispatchesTotal.Inc()
	m.dispatchQueueWait.Observe(event.QueueWait.Seconds())
}

func (m *SyncMetrics) ObserveBreakerState(name string, _, to resilience.CircuitState) {
	value := 0.0
	if to != resilience.CircuitStateClosed {
		value = 1
	}
	m.breakerState.WithLabelValues(name).Set(value)
}

func (m *SyncMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *SyncMetrics) Registry() *prometheus.Registry {
	return m.registry
}
