package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/scouting-sync/internal/platform/logging"
)

// Config stores runtime configuration for the sync service and CLI.
type Config struct {
	AppEnv                        string
	ServiceName                   string
	ServiceVersion                string
	HTTPAddr                      string
	DBURL                         string
	DBBinaryParameters            bool
	DBMaxOpenConns                int
	CORSAllowedOrigins            []string
	ReadTimeout                   time.Duration
	WriteTimeout                  time.Duration
	PprofEnabled                  bool
	PprofAddr                     string
	MetricsEnabled                bool
	UptraceEnabled                bool
	UptraceDSN                    string
	PyroscopeEnabled              bool
	PyroscopeServerAddress        string
	PyroscopeAppName              string
	PyroscopeAuthToken            string
	PyroscopeBasicAuthUser        string
	PyroscopeBasicAuthPassword    string
	PyroscopeUploadRate           time.Duration
	StatsAPIBaseURL               string
	StatsAPIUsername              string
	StatsAPIPassword              string
	StatsAPIRequestTimeout        time.Duration
	StatsAPIMaxRetries            int
	StatsAPIRetryBackoff          time.Duration
	StatsAPIPageSize              int
	StatsAPICircuitEnabled        bool
	StatsAPICircuitFailureCount   int
	StatsAPICircuitOpenTimeout    time.Duration
	StatsAPICircuitHalfOpenMaxReq int
	SyncMaxPerSecond              float64
	SyncMaxInFlight               int
	SyncQueueSize                 int
	SyncFetchTimeout              time.Duration
	SyncMaxWorkers                int
	SyncReferencePageSize         int
	SyncWriteChunkSize            int
	SyncDomains                   []string
	InternalJobToken              string
	LogLevel                      logging.Level
}

// UsesMemoryStore reports whether the service runs on the seeded in-memory store instead of Postgres.
func (c Config) UsesMemoryStore() bool {
	return strings.TrimSpace(c.DBURL) == ""
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceDSN == "" {
		uptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	metricsEnabled, err := strconv.ParseBool(getEnv("METRICS_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse METRICS_ENABLED: %w", err)
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if pyroscopeUploadRate <= 0 {
		return Config{}, fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	dbURL := strings.TrimSpace(getEnv("DB_URL", ""))
	if dbURL == "" && appEnv != EnvDev {
		return Config{}, fmt.Errorf("DB_URL is required when APP_ENV=%s", appEnv)
	}
	dbBinaryParameters, err := strconv.ParseBool(getEnv("DB_BINARY_PARAMETERS", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_BINARY_PARAMETERS: %w", err)
	}
	dbMaxOpenConns, err := getEnvAsInt("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_MAX_OPEN_CONNS: %w", err)
	}
	if dbMaxOpenConns < 1 {
		return Config{}, fmt.Errorf("DB_MAX_OPEN_CONNS must be >= 1")
	}

	statsAPIBaseURL := strings.TrimSpace(getEnv("STATSAPI_BASE_URL", ""))
	if err := validateHTTPURL(statsAPIBaseURL); err != nil {
		return Config{}, fmt.Errorf("STATSAPI_BASE_URL: %w", err)
	}
	statsAPIRequestTimeout, err := time.ParseDuration(getEnv("STATSAPI_REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse STATSAPI_REQUEST_TIMEOUT: %w", err)
	}
	if statsAPIRequestTimeout <= 0 {
		return Config{}, fmt.Errorf("STATSAPI_REQUEST_TIMEOUT must be > 0")
	}
	statsAPIMaxRetries, err := getEnvAsInt("STATSAPI_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse STATSAPI_MAX_RETRIES: %w", err)
	}
	if statsAPIMaxRetries < 0 {
		return Config{}, fmt.Errorf("STATSAPI_MAX_RETRIES must be >= 0")
	}
	statsAPIRetryBackoff, err := time.ParseDuration(getEnv("STATSAPI_RETRY_BACKOFF", "1s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse STATSAPI_RETRY_BACKOFF: %w", err)
	}
	if statsAPIRetryBackoff <= 0 {
		return Config{}, fmt.Errorf("STATSAPI_RETRY_BACKOFF must be > 0")
	}
	statsAPIPageSize, err := getEnvAsInt("STATSAPI_PAGE_SIZE", 100)
	if err != nil {
		return Config{}, fmt.Errorf("parse STATSAPI_PAGE_SIZE: %w", err)
	}
	if statsAPIPageSize <= 0 {
		return Config{}, fmt.Errorf("STATSAPI_PAGE_SIZE must be > 0")
	}

	statsAPICircuitEnabled, err := strconv.ParseBool(getEnv("STATSAPI_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse STATSAPI_CIRCUIT_ENABLED: %w", err)
	}
	statsAPICircuitFailureCount, err := getEnvAsInt("STATSAPI_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse STATSAPI_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if statsAPICircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("STATSAPI_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	statsAPICircuitOpenTimeout, err := time.ParseDuration(getEnv("STATSAPI_CIRCUIT_OPEN_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse STATSAPI_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if statsAPICircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("STATSAPI_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	statsAPICircuitHalfOpenMaxReq, err := getEnvAsInt("STATSAPI_CIRCUIT_HALF_OPEN_MAX_REQ", 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse STATSAPI_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if statsAPICircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("STATSAPI_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	syncMaxPerSecond, err := strconv.ParseFloat(strings.TrimSpace(getEnv("SYNC_MAX_PER_SECOND", "5")), 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_MAX_PER_SECOND: %w", err)
	}
	if syncMaxPerSecond <= 0 {
		return Config{}, fmt.Errorf("SYNC_MAX_PER_SECOND must be > 0")
	}
	syncMaxInFlight, err := getEnvAsInt("SYNC_MAX_IN_FLIGHT", 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_MAX_IN_FLIGHT: %w", err)
	}
	if syncMaxInFlight < 1 {
		return Config{}, fmt.Errorf("SYNC_MAX_IN_FLIGHT must be >= 1")
	}
	syncQueueSize, err := getEnvAsInt("SYNC_QUEUE_SIZE", 4096)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_QUEUE_SIZE: %w", err)
	}
	if syncQueueSize < 1 {
		return Config{}, fmt.Errorf("SYNC_QUEUE_SIZE must be >= 1")
	}
	syncFetchTimeout, err := time.ParseDuration(getEnv("SYNC_FETCH_TIMEOUT", "2m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_FETCH_TIMEOUT: %w", err)
	}
	if syncFetchTimeout <= 0 {
		return Config{}, fmt.Errorf("SYNC_FETCH_TIMEOUT must be > 0")
	}
	syncMaxWorkers, err := getEnvAsInt("SYNC_MAX_WORKERS", 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_MAX_WORKERS: %w", err)
	}
	if syncMaxWorkers < 1 {
		return Config{}, fmt.Errorf("SYNC_MAX_WORKERS must be >= 1")
	}
	syncReferencePageSize, err := getEnvAsInt("SYNC_REFERENCE_PAGE_SIZE", 1000)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_REFERENCE_PAGE_SIZE: %w", err)
	}
	if syncReferencePageSize <= 0 {
		return Config{}, fmt.Errorf("SYNC_REFERENCE_PAGE_SIZE must be > 0")
	}
	syncWriteChunkSize, err := getEnvAsInt("SYNC_WRITE_CHUNK_SIZE", 100)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_WRITE_CHUNK_SIZE: %w", err)
	}
	if syncWriteChunkSize <= 0 {
		return Config{}, fmt.Errorf("SYNC_WRITE_CHUNK_SIZE must be > 0")
	}

	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "30m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}

	internalJobToken := strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", ""))
	if internalJobToken == "" && appEnv == EnvProd {
		return Config{}, fmt.Errorf("INTERNAL_JOB_TOKEN is required when APP_ENV=%s", EnvProd)
	}

	cfg := Config{
		AppEnv:                        appEnv,
		ServiceName:                   getEnv("APP_SERVICE_NAME", "scouting-sync"),
		ServiceVersion:                getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:                      getEnv("APP_HTTP_ADDR", ":8080"),
		DBURL:                         dbURL,
		DBBinaryParameters:            dbBinaryParameters,
		DBMaxOpenConns:                dbMaxOpenConns,
		CORSAllowedOrigins:            splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ReadTimeout:                   readTimeout,
		WriteTimeout:                  writeTimeout,
		PprofEnabled:                  pprofEnabled,
		PprofAddr:                     pprofAddr,
		MetricsEnabled:                metricsEnabled,
		UptraceEnabled:                uptraceEnabled,
		UptraceDSN:                    uptraceDSN,
		PyroscopeEnabled:              pyroscopeEnabled,
		PyroscopeServerAddress:        pyroscopeServerAddress,
		PyroscopeAuthToken:            strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:        strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword:    strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:           pyroscopeUploadRate,
		StatsAPIBaseURL:               statsAPIBaseURL,
		StatsAPIUsername:              strings.TrimSpace(getEnv("STATSAPI_USERNAME", "")),
		StatsAPIPassword:              getEnv("STATSAPI_PASSWORD", ""),
		StatsAPIRequestTimeout:        statsAPIRequestTimeout,
		StatsAPIMaxRetries:            statsAPIMaxRetries,
		StatsAPIRetryBackoff:          statsAPIRetryBackoff,
		StatsAPIPageSize:              statsAPIPageSize,
		StatsAPICircuitEnabled:        statsAPICircuitEnabled,
		StatsAPICircuitFailureCount:   statsAPICircuitFailureCount,
		StatsAPICircuitOpenTimeout:    statsAPICircuitOpenTimeout,
		StatsAPICircuitHalfOpenMaxReq: statsAPICircuitHalfOpenMaxReq,
		SyncMaxPerSecond:              syncMaxPerSecond,
		SyncMaxInFlight:               syncMaxInFlight,
		SyncQueueSize:                 syncQueueSize,
		SyncFetchTimeout:              syncFetchTimeout,
		SyncMaxWorkers:                syncMaxWorkers,
		SyncReferencePageSize:         syncReferencePageSize,
		SyncWriteChunkSize:            syncWriteChunkSize,
		SyncDomains:                   splitCSV(getEnv("SYNC_DOMAINS", "")),
		InternalJobToken:              internalJobToken,
		LogLevel:                      parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	return cfg, nil
}

func parseLogLevel(v string) logging.Level {
	return logging.ParseLevel(v)
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

// validateHTTPURL requires an absolute http(s) URL with a host.
func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("host is empty")
	}
	return nil
}
