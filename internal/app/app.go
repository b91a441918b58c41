package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/riskibarqy/scouting-sync/external/statsapi"
	"github.com/riskibarqy/scouting-sync/internal/config"
	"github.com/riskibarqy/scouting-sync/internal/domain/pair"
	"github.com/riskibarqy/scouting-sync/internal/domain/stats"
	"github.com/riskibarqy/scouting-sync/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/scouting-sync/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/scouting-sync/internal/interfaces/httpapi"
	"github.com/riskibarqy/scouting-sync/internal/observability"
	"github.com/riskibarqy/scouting-sync/internal/platform/logging"
	"github.com/riskibarqy/scouting-sync/internal/platform/ratelimit"
	"github.com/riskibarqy/scouting-sync/internal/platform/resilience"
	"github.com/riskibarqy/scouting-sync/internal/usecase"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
)

const dbConnMaxLifetime = 30 * time.Minute

// Runtime holds the long-lived sync pipeline shared by the HTTP server and the CLI.
type Runtime struct {
	Sync    *usecase.SyncService
	Metrics *observability.SyncMetrics

	limiter *ratelimit.Limiter
	db      *sqlx.DB
}

func NewRuntime(cfg config.Config, logger *logging.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logging.Default()
	}

	if err := ValidateDomains(cfg.SyncDomains); err != nil {
		return nil, fmt.Errorf("SYNC_DOMAINS: %w", err)
	}

	metrics := observability.NewSyncMetrics()

	pairRepo, statsRepo, db, err := newRepositories(cfg, logger)
	if err != nil {
		return nil, err
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		MaxPerSecond: cfg.SyncMaxPerSecond,
		MaxInFlight:  cfg.SyncMaxInFlight,
		QueueSize:    cfg.SyncQueueSize,
	}, ratelimit.WithDispatchHook(metrics.ObserveDispatch))
	if err != nil {
		closeDB(db, logger)
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	client, err := statsapi.NewClient(statsapi.ClientConfig{
		BaseURL:      cfg.StatsAPIBaseURL,
		Username:     cfg.StatsAPIUsername,
		Password:     cfg.StatsAPIPassword,
		Timeout:      cfg.StatsAPIRequestTimeout,
		MaxRetries:   cfg.StatsAPIMaxRetries,
		RetryBackoff: cfg.StatsAPIRetryBackoff,
		PageSize:     cfg.StatsAPIPageSize,
		Scheduler:    limiter,
		Logger:       logger.Named("statsapi"),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.StatsAPICircuitEnabled,
			FailureThreshold: cfg.StatsAPICircuitFailureCount,
			OpenTimeout:      cfg.StatsAPICircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.StatsAPICircuitHalfOpenMaxReq,
		},
		BreakerOptions: []resilience.BreakerOption{
			resilience.WithStateChangeHook(func(name string, from, to resilience.CircuitState) {
				metrics.ObserveBreakerState(name, from, to)
				logger.Warn("circuit breaker state changed", "name", name, "from", from, "to", to)
			}),
		},
	})
	if err != nil {
		limiter.Close()
		closeDB(db, logger)
		return nil, fmt.Errorf("create stats api client: %w", err)
	}

	syncLogger := logger.Named("sync")
	syncService := usecase.NewSyncService(
		usecase.NewPairEnumerator(pairRepo, cfg.SyncReferencePageSize, syncLogger),
		client,
		usecase.NewBatchWriter(statsRepo, syncLogger),
		metrics,
		usecase.SyncConfig{
			MaxWorkers:   cfg.SyncMaxWorkers,
			FetchTimeout: cfg.SyncFetchTimeout,
			Domains:      domainSpecs(cfg.SyncWriteChunkSize),
		},
		syncLogger,
	)

	return &Runtime{
		Sync:    syncService,
		Metrics: metrics,
		limiter: limiter,
		db:      db,
	}, nil
}

// Close stops the limiter, failing queued requests, then closes the database.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	if r.limiter != nil {
		r.limiter.Close()
	}
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func NewHTTPServer(cfg config.Config, runtime *Runtime, logger *logging.Logger) (*http.Server, error) {
	if runtime == nil {
		return nil, errors.New("runtime is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = runtime.Metrics.Handler()
	}

	handler := httpapi.NewHandler(runtime.Sync, cfg.SyncDomains, logger.Named("httpapi"))
	router := httpapi.NewRouter(handler, logger, httpapi.RouterConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		InternalJobToken:   cfg.InternalJobToken,
		MetricsHandler:     metricsHandler,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if server.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return server, nil
}

func newRepositories(cfg config.Config, logger *logging.Logger) (pair.Repository, stats.Repository, *sqlx.DB, error) {
	if cfg.UsesMemoryStore() {
		logger.Warn("DB_URL empty, using seeded in-memory store", "pairs", len(memory.SeedPairs()))
		return memory.NewPairRepository(memory.SeedPairs()), memory.NewStatsRepository(), nil, nil
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return postgres.NewPairRepository(db), postgres.NewStatsRepository(db), db, nil
}

func openDB(cfg config.Config) (*sqlx.DB, error) {
	dsn := NormalizeDBURL(cfg.DBURL, cfg.DBBinaryParameters)
	opts := []otelsql.Option{
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	}
	if name := dbNameFromURL(dsn); name != "" {
		opts = append(opts, otelsql.WithDBName(name))
	}

	db, err := otelsqlx.Open("postgres", dsn, opts...)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxOpenConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	return db, nil
}

func closeDB(db *sqlx.DB, logger *logging.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Warn("close database failed", "error", err)
	}
}

// domainSpecs applies the configured write chunk size to every domain that writes in chunks.
func domainSpecs(writeChunkSize int) []usecase.DomainSpec {
	specs := usecase.DefaultDomainSpecs()
	if writeChunkSize <= 0 {
		return specs
	}
	for i := range specs {
		if specs[i].ChunkSize > 0 {
			specs[i].ChunkSize = writeChunkSize
		}
	}
	return specs
}

// ValidateDomains rejects unknown names early, before a run starts.
func ValidateDomains(names []string) error {
	_, err := usecase.ResolveDomains(usecase.DefaultDomainSpecs(), names)
	if err != nil {
		return fmt.Errorf("domains %s: %w", strings.Join(names, ","), err)
	}
	return nil
}
