package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/scouting-sync/internal/domain/pair"
	"github.com/riskibarqy/scouting-sync/internal/domain/stats"
	"github.com/riskibarqy/scouting-sync/internal/platform/logging"
	"github.com/riskibarqy/scouting-sync/internal/platform/ratelimit"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultSyncMaxWorkers   = 64
	defaultSyncFetchTimeout = 2 * time.Minute
)

// FetchRequest identifies one (pair, domain) fetch. No event ending after Cutoff may be returned.
type FetchRequest struct {
	Domain   stats.Domain
	Endpoint string
	Paged    bool
	Pair     pair.Pair
	Cutoff   time.Time
}

// StatsFetcher pulls every raw row of one domain for one pair, following pagination.
// ctx carries a ratelimit.Budget; requests must run through ratelimit so it applies.
type StatsFetcher interface {
	FetchDomain(ctx context.Context, req FetchRequest) ([]RawRecord, error)
}

type SyncObserver interface {
	CellObserver
	ObserveRecords(domain string, written int)
	ObserveRun(duration time.Duration)
}

type SyncConfig struct {
	MaxWorkers   int
	FetchTimeout time.Duration
	Domains      []DomainSpec
}

type RunInput struct {
	Domains     []string
	Season      string
	Competition string
	// DryRun fetches and transforms without writing; cells still report success/skipped/error.
	DryRun bool
}

type RunSummary struct {
	Domains     map[stats.Domain]DomainCounts `json:"domains"`
	PairCount   int                           `json:"pair_count"`
	CellCount   int                           `json:"cell_count"`
	Season      string                        `json:"season,omitempty"`
	Competition string                        `json:"competition,omitempty"`
	DryRun      bool                          `json:"dry_run"`
	StartedAt   time.Time                     `json:"started_at"`
	Cutoff      time.Time                     `json:"cutoff"`
	DurationMs  int64                         `json:"duration_ms"`
}

func (s RunSummary) Totals() DomainCounts {
	var out DomainCounts
	for _, counts := range s.Domains {
		out.Success += counts.Success
		out.Skipped += counts.Skipped
		out.Error += counts.Error
	}
	return out
}

type SyncService struct {
	enumerator *PairEnumerator
	fetcher    StatsFetcher
	writer     *BatchWriter
	observer   SyncObserver
	cfg        SyncConfig
	logger     *logging.Logger
	now        func() time.Time
}

func NewSyncService(
	enumerator *PairEnumerator,
	fetcher StatsFetcher,
	writer *BatchWriter,
	observer SyncObserver,
	cfg SyncConfig,
	logger *logging.Logger,
) *SyncService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaultSyncMaxWorkers
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultSyncFetchTimeout
	}
	if len(cfg.Domains) == 0 {
		cfg.Domains = DefaultDomainSpecs()
	}

	return &SyncService{
		enumerator: enumerator,
		fetcher:    fetcher,
		writer:     writer,
		observer:   observer,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *SyncService) Domains() []DomainSpec {
	return append([]DomainSpec(nil), s.cfg.Domains...)
}

// RunSync enumerates pairs once and syncs every requested domain for every pair concurrently.
// Only an enumeration failure aborts the run; per-cell failures are counted in the summary.
func (s *SyncService) RunSync(ctx context.Context, input RunInput) (RunSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncService.RunSync")
	defer span.End()

	if s.enumerator == nil || s.fetcher == nil || s.writer == nil {
		return RunSummary{}, fmt.Errorf("%w: sync service is not fully configured", ErrDependencyUnavailable)
	}

	specs, err := ResolveDomains(s.cfg.Domains, input.Domains)
	if err != nil {
		return RunSummary{}, err
	}

	startedAt := s.now().UTC()
	filter := pair.Filter{
		Season:      strings.TrimSpace(input.Season),
		Competition: strings.TrimSpace(input.Competition),
	}

	pairs, err := s.enumerator.Enumerate(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "enumerate sync pairs failed", "season", filter.Season, "competition", filter.Competition, "error", err)
		return RunSummary{}, fmt.Errorf("enumerate sync pairs: %w", err)
	}

	domains := make([]stats.Domain, 0, len(specs))
	for _, spec := range specs {
		domains = append(domains, spec.Name)
	}
	aggregator := NewRunAggregator(domains, s.observer)

	summary := RunSummary{
		PairCount:   len(pairs),
		CellCount:   len(pairs) * len(specs),
		Season:      filter.Season,
		Competition: filter.Competition,
		DryRun:      input.DryRun,
		StartedAt:   startedAt,
		Cutoff:      startedAt,
	}

	s.logger.InfoContext(ctx, "sync run started",
		"pairs", len(pairs),
		"domains", DomainNames(specs),
		"dry_run", input.DryRun,
		"cutoff", startedAt.Format(time.RFC3339),
	)

	if summary.CellCount > 0 {
		if err := s.runCells(ctx, pairs, specs, startedAt, input.DryRun, aggregator); err != nil {
			return RunSummary{}, err
		}
	}

	summary.Domains = aggregator.Summary()
	duration := s.now().Sub(startedAt)
	summary.DurationMs = duration.Milliseconds()
	if s.observer != nil {
		s.observer.ObserveRun(duration)
	}

	totals := summary.Totals()
	s.logger.InfoContext(ctx, "sync run finished",
		"pairs", summary.PairCount,
		"success", totals.Success,
		"skipped", totals.Skipped,
		"error", totals.Error,
		"duration_ms", summary.DurationMs,
	)
	return summary, nil
}

func (s *SyncService) runCells(
	ctx context.Context,
	pairs []pair.Pair,
	specs []DomainSpec,
	cutoff time.Time,
	dryRun bool,
	aggregator *RunAggregator,
) error {
	workerCount := min(s.cfg.MaxWorkers, len(pairs)*len(specs))
	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var workers sync.WaitGroup
	for _, p := range pairs {
		for _, spec := range specs {
			p, spec := p, spec
			workers.Add(1)
			if err := pool.Submit(func() {
				defer workers.Done()
				aggregator.Record(spec.Name, s.runCell(ctx, p, spec, cutoff, dryRun))
			}); err != nil {
				workers.Done()
				aggregator.Record(spec.Name, OutcomeError)
				s.logger.ErrorContext(ctx, "submit sync cell failed",
					"team_id", p.TeamID,
					"competition_edition_id", p.CompetitionEditionID,
					"domain", spec.Name,
					"error", err,
				)
			}
		}
	}
	workers.Wait()
	return nil
}

// runCell is fetch, transform, write for one (pair, domain). It never returns an error; failures become OutcomeError.
func (s *SyncService) runCell(ctx context.Context, p pair.Pair, spec DomainSpec, cutoff time.Time, dryRun bool) Outcome {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncService.runCell")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("sync.team_id", p.TeamID),
		attribute.Int64("sync.competition_edition_id", p.CompetitionEditionID),
		attribute.String("sync.domain", string(spec.Name)),
	)

	logger := s.logger.With(
		"team_id", p.TeamID,
		"competition_edition_id", p.CompetitionEditionID,
		"domain", spec.Name,
	)

	// Queue wait behind other cells is not charged; only dispatched requests spend the budget.
	fetchCtx := ratelimit.WithBudget(ctx, s.cfg.FetchTimeout)
	raw, err := s.fetcher.FetchDomain(fetchCtx, FetchRequest{
		Domain:   spec.Name,
		Endpoint: spec.Endpoint,
		Paged:    spec.Paged,
		Pair:     p,
		Cutoff:   cutoff,
	})
	if err != nil {
		if errors.Is(err, ratelimit.ErrBudgetExhausted) && ctx.Err() == nil {
			err = fmt.Errorf("fetch exceeded %s: %w", s.cfg.FetchTimeout, err)
		}
		logger.WarnContext(ctx, "fetch domain failed", "error", err)
		markSpanError(span, err)
		return OutcomeError
	}
	if len(raw) == 0 {
		logger.DebugContext(ctx, "no records returned, cell skipped")
		return OutcomeSkipped
	}

	records := make([]stats.Record, 0, len(raw))
	for i, item := range raw {
		record, err := Transform(spec, item, p, cutoff)
		if err != nil {
			logger.ErrorContext(ctx, "transform record failed", "index", i, "error", err)
			markSpanError(span, err)
			return OutcomeError
		}
		records = append(records, record)
	}

	if dryRun {
		logger.InfoContext(ctx, "dry run, skipping write", "records", len(records))
		return OutcomeSuccess
	}

	written, err := s.writer.Write(ctx, spec.Target, spec.ChunkSize, records)
	if s.observer != nil && written > 0 {
		s.observer.ObserveRecords(string(spec.Name), written)
	}
	if err != nil {
		logger.WarnContext(ctx, "write records failed", "records", len(records), "written", written, "error", err)
		markSpanError(span, err)
		return OutcomeError
	}

	logger.DebugContext(ctx, "cell synced", "records", len(records), "written", written)
	return OutcomeSuccess
}

func markSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
