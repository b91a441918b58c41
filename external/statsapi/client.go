package statsapi

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/scouting-sync/internal/platform/logging"
	"github.com/riskibarqy/scouting-sync/internal/platform/ratelimit"
	"github.com/riskibarqy/scouting-sync/internal/platform/resilience"
	"github.com/riskibarqy/scouting-sync/internal/usecase"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultPageSize       = 100
	defaultRetryBackoff   = time.Second
	maxResponseBytes      = 16 << 20
	maxPagesPerFetch      = 5000
	cutoffDateLayout      = "2006-01-02"
)

var errStatsAPITransient = crerr.New("stats api transient failure")

// Scheduler runs every outbound request. The shared rate limiter satisfies it.
type Scheduler interface {
	Submit(ctx context.Context, task ratelimit.Task) error
}

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Username       string
	Password       string
	Timeout        time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	PageSize       int
	Scheduler      Scheduler
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
	BreakerOptions []resilience.BreakerOption
}

// Client fetches domain statistics for one (team, competition edition) pair from the stats API.
type Client struct {
	httpClient   *http.Client
	baseURL      *url.URL
	username     string
	password     string
	timeout      time.Duration
	maxRetries   int
	retryBackoff time.Duration
	pageSize     int
	scheduler    Scheduler
	logger       *logging.Logger
	breaker      *resilience.CircuitBreaker
}

func NewClient(cfg ClientConfig) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	baseURL, err := validateHTTPBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, crerr.Wrap(err, "invalid STATSAPI_BASE_URL")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	opts := append([]resilience.BreakerOption{resilience.WithFailureClassifier(isStatsAPICircuitFailure)}, cfg.BreakerOptions...)

	return &Client{
		httpClient:   httpClient,
		baseURL:      baseURL,
		username:     strings.TrimSpace(cfg.Username),
		password:     cfg.Password,
		timeout:      timeout,
		maxRetries:   max(cfg.MaxRetries, 0),
		retryBackoff: backoff,
		pageSize:     pageSize,
		scheduler:    cfg.Scheduler,
		logger:       logger,
		breaker:      resilience.NewCircuitBreaker("statsapi", cfg.CircuitBreaker, opts...),
	}, nil
}

// FetchDomain returns every row the endpoint holds for the pair up to the cutoff date, following pagination.
func (c *Client) FetchDomain(ctx context.Context, req usecase.FetchRequest) ([]usecase.RawRecord, error) {
	pageURL, err := c.domainURL(req)
	if err != nil {
		return nil, err
	}

	out := make([]usecase.RawRecord, 0, c.pageSize)
	seen := make(map[string]struct{})
	for pages := 0; pageURL != ""; pages++ {
		if pages >= maxPagesPerFetch {
			return nil, fmt.Errorf("fetch %s: exceeded %d pages", req.Domain, maxPagesPerFetch)
		}
		seen[pageURL] = struct{}{}

		raw, err := c.doRequest(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("fetch %s team=%d competition_edition=%d: %w", req.Domain, req.Pair.TeamID, req.Pair.CompetitionEditionID, err)
		}
		decoded, err := decodePage(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s page: %w", req.Domain, err)
		}
		out = append(out, decoded.Results...)

		if !req.Paged || decoded.Next == "" {
			break
		}
		next, err := c.resolveNext(decoded.Next)
		if err != nil {
			return nil, fmt.Errorf("follow %s next page: %w", req.Domain, err)
		}
		if _, loop := seen[next]; loop {
			c.logger.WarnContext(ctx, "stats api pagination loops, stopping", "domain", req.Domain, "next", next)
			break
		}
		pageURL = next
	}

	return out, nil
}

func (c *Client) domainURL(req usecase.FetchRequest) (string, error) {
	endpoint := "/" + strings.TrimLeft(strings.TrimSpace(req.Endpoint), "/")
	if endpoint == "/" {
		return "", fmt.Errorf("%w: endpoint is required for domain %s", usecase.ErrInvalidInput, req.Domain)
	}
	if req.Pair.TeamID <= 0 || req.Pair.CompetitionEditionID <= 0 {
		return "", fmt.Errorf("%w: team and competition edition ids are required", usecase.ErrInvalidInput)
	}

	values := url.Values{}
	values.Set("team", strconv.FormatInt(req.Pair.TeamID, 10))
	values.Set("competition_edition", strconv.FormatInt(req.Pair.CompetitionEditionID, 10))
	values.Set("end_date", cutoffEndDate(req.Cutoff))
	if req.Paged {
		values.Set("limit", strconv.Itoa(c.pageSize))
		values.Set("offset", "0")
	}

	target := *c.baseURL
	target.Path = strings.TrimRight(target.Path, "/") + endpoint
	target.RawQuery = values.Encode()
	return target.String(), nil
}

// cutoffEndDate is the last UTC day that ended before cutoff. end_date is a whole,
// inclusive day upstream, so the run day itself would admit events after cutoff.
func cutoffEndDate(cutoff time.Time) string {
	if cutoff.IsZero() {
		cutoff = time.Now()
	}
	day := cutoff.UTC().Truncate(24 * time.Hour)
	return day.AddDate(0, 0, -1).Format(cutoffDateLayout)
}

// resolveNext accepts absolute or relative next links but never leaves the configured host.
func (c *Client) resolveNext(next string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(next))
	if err != nil {
		return "", crerr.Wrapf(err, "parse next %q", next)
	}
	resolved := c.baseURL.ResolveReference(parsed)
	if resolved.Host != c.baseURL.Host {
		return "", crerr.Newf("next page host %q differs from %q", resolved.Host, c.baseURL.Host)
	}
	resolved.Scheme = c.baseURL.Scheme
	return resolved.String(), nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var raw []byte
	err := c.breaker.Execute(func() error {
		var reqErr error
		raw, reqErr = c.executeRequest(ctx, fullURL)
		return reqErr
	})
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.WarnContext(ctx, "stats api circuit breaker rejected request", "state", c.breaker.State())
		return nil, fmt.Errorf("%w: stats api is temporarily unavailable", usecase.ErrDependencyUnavailable)
	}
	return raw, err
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var raw []byte
		err := c.schedule(ctx, func(taskCtx context.Context) error {
			var sendErr error
			raw, sendErr = c.send(taskCtx, fullURL)
			return sendErr
		})
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !stderrors.Is(err, errStatsAPITransient) {
			break
		}

		if attempt == c.maxRetries {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * c.retryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("stats api request failed")
	}
	c.logger.WarnContext(ctx, "stats api request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func (c *Client) schedule(ctx context.Context, task ratelimit.Task) error {
	if c.scheduler == nil {
		return ratelimit.Run(ctx, task)
	}
	return c.scheduler.Submit(ctx, task)
}

func (c *Client) send(ctx context.Context, fullURL string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, crerr.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: send request: %s", errStatsAPITransient, c.sanitize(err.Error()))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, maxResponseBytes)); err != nil {
		return nil, fmt.Errorf("%w: read response body: %s", errStatsAPITransient, c.sanitize(err.Error()))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return append([]byte(nil), buf.B...), nil
	}
	if isRetryableStatus(resp.StatusCode) {
		return nil, fmt.Errorf("%w: stats api status=%d body=%s", errStatsAPITransient, resp.StatusCode, c.sanitize(abbreviateBody(buf.B)))
	}
	return nil, fmt.Errorf("stats api status=%d body=%s", resp.StatusCode, c.sanitize(abbreviateBody(buf.B)))
}

func (c *Client) sanitize(value string) string {
	return sanitizeSensitiveText(value, c.password)
}

func sanitizeSensitiveText(value, secret string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if strings.TrimSpace(secret) != "" {
		value = strings.ReplaceAll(value, secret, "REDACTED")
	}
	return basicAuthHeaderRegex.ReplaceAllString(value, "Basic REDACTED")
}

func isStatsAPICircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, errStatsAPITransient)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}

func validateHTTPBaseURL(raw string) (*url.URL, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return nil, crerr.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return nil, crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, crerr.Newf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, crerr.New("host is empty")
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed, nil
}
