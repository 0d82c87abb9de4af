package knack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vespa-hub/vespa-results/config"
	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/domain/shared"
	"github.com/vespa-hub/vespa-results/pkg/circuitbreaker"
	"github.com/vespa-hub/vespa-results/pkg/logger"
	"github.com/vespa-hub/vespa-results/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Knack API client.
type ClientConfig struct {
	BaseURL string
	AppID   string
	APIKey  string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	RowsPerPage      int
	MaxPages         int // cap for establishment-bounded queries
	MaxPagesUnscoped int

	MaxRetries int
	// RetryDelay overrides the initial backoff when positive.
	RetryDelay time.Duration

	RateLimiterConfig RateLimiterConfig

	BreakerThreshold int
	BreakerTimeout   time.Duration

	Logger *logger.Logger

	// HTTPClient overrides the default client; tests pass httptest clients.
	HTTPClient *http.Client
}

// DefaultClientConfig returns the production defaults for baseURL.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:           baseURL,
		Timeout:           30 * time.Second,
		RowsPerPage:       1000,
		MaxPages:          20,
		MaxPagesUnscoped:  5,
		MaxRetries:        3,
		RateLimiterConfig: DefaultRateLimiterConfig(),
		BreakerThreshold:  3,
		BreakerTimeout:    60 * time.Second,
	}
}

// ConfigFrom maps application configuration onto the client.
func ConfigFrom(cfg config.KnackConfig) ClientConfig {
	c := DefaultClientConfig(cfg.BaseURL)
	c.AppID = cfg.AppID
	c.APIKey = cfg.APIKey
	if cfg.RequestTimeout > 0 {
		c.Timeout = cfg.RequestTimeout
	}
	if cfg.RowsPerPage > 0 {
		c.RowsPerPage = cfg.RowsPerPage
	}
	if cfg.MaxPages > 0 {
		c.MaxPages = cfg.MaxPages
	}
	if cfg.MaxPagesUnscoped > 0 {
		c.MaxPagesUnscoped = cfg.MaxPagesUnscoped
	}
	if cfg.MaxRetries > 0 {
		c.MaxRetries = cfg.MaxRetries
	}
	if cfg.RateLimit > 0 {
		c.RateLimiterConfig.RequestsPerSecond = float64(cfg.RateLimit)
	}
	if cfg.RateLimitBurst > 0 {
		c.RateLimiterConfig.BurstSize = cfg.RateLimitBurst
	}
	if cfg.CircuitBreakerThreshold > 0 {
		c.BreakerThreshold = cfg.CircuitBreakerThreshold
	}
	if cfg.CircuitBreakerTimeout > 0 {
		c.BreakerTimeout = cfg.CircuitBreakerTimeout
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Knack REST API client. It is safe for concurrent use; every
// request passes the shared rate limiter, the circuit breaker and the retrier.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	logger      *logger.Logger
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.CircuitBreaker
	retrier     *retry.Retrier
}

// NewClient creates a new Knack API client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	log := cfg.Logger.With(logger.Component("knack"))

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		config:      cfg,
		httpClient:  httpClient,
		logger:      log,
		rateLimiter: NewRateLimiter(cfg.RateLimiterConfig),
	}

	c.breaker = circuitbreaker.KnackAPIBreaker(
		func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
		circuitbreaker.WithFailureThreshold(cfg.BreakerThreshold),
		circuitbreaker.WithTimeout(cfg.BreakerTimeout),
		// Client errors are not a sign of an unhealthy API.
		circuitbreaker.WithIsFailure(func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Temporary()
			}
			return !errors.Is(err, context.Canceled)
		}),
	)

	c.retrier = retry.KnackAPIRetrier(cfg.MaxRetries,
		retry.WithInitialDelay(cfg.RetryDelay),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("retrying knack request",
				logger.Attempt(attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)

	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// FetchPage fetches one page of records of object matching filter.
func (c *Client) FetchPage(ctx context.Context, object string, filter results.Predicate, page, rowsPerPage int) (*RecordsPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("rows_per_page", strconv.Itoa(rowsPerPage))
	if !filter.IsEmpty() {
		encoded, err := filter.Encode()
		if err != nil {
			return nil, shared.WrapError("knack", "FetchPage", shared.ErrTransport, shared.ErrTransport.Message, err)
		}
		params.Set("filters", encoded)
	}

	body, err := c.doRequest(ctx, "/objects/"+url.PathEscape(object)+"/records", params)
	if err != nil {
		return nil, shared.WrapError("knack", "FetchPage", shared.ErrTransport, shared.ErrTransport.Message,
			fmt.Errorf("%s page %d: %w", object, page, err))
	}

	parsed, err := parseRecordsPage(body)
	if err != nil {
		return nil, shared.WrapError("knack", "FetchPage", shared.ErrTransport, shared.ErrTransport.Message,
			errors.Join(shared.ErrKnackAPIInvalidResponse, err))
	}
	if parsed.CurrentPage == 0 {
		parsed.CurrentPage = page
	}
	return parsed, nil
}

// FetchAll follows pagination until the last page or the page cap. Any page
// failure fails the whole fetch; partial results are never returned.
func (c *Client) FetchAll(ctx context.Context, q results.RecordQuery) (*results.FetchResult, error) {
	start := time.Now()
	maxPages := c.config.MaxPagesUnscoped
	if q.Establishment {
		maxPages = c.config.MaxPages
	}

	out := &results.FetchResult{}
	for page := 1; ; page++ {
		p, err := c.FetchPage(ctx, q.Object, q.Filter, page, c.config.RowsPerPage)
		if err != nil {
			return nil, err
		}

		out.Records = append(out.Records, p.Records...)
		out.Pages = page
		out.TotalPages = p.TotalPages
		out.TotalRecords = p.TotalRecords

		if p.TotalPages <= page || len(p.Records) == 0 {
			break
		}
		if page >= maxPages {
			out.Truncated = true
			c.logger.Warn("record fetch truncated at page cap",
				logger.Object(q.Object),
				logger.Page(page),
				logger.Int("total_pages", p.TotalPages),
				logger.RecordCount(len(out.Records)),
			)
			break
		}
	}

	out.Duration = time.Since(start)
	c.logger.Debug("records fetched",
		logger.Object(q.Object),
		logger.RecordCount(len(out.Records)),
		logger.Int("pages", out.Pages),
		logger.Truncated(out.Truncated),
		logger.Latency(out.Duration),
	)
	return out, nil
}

// FindFirst returns the first record of object matching filter. The boolean
// is false when nothing matched.
func (c *Client) FindFirst(ctx context.Context, object string, filter results.Predicate) ([]byte, bool, error) {
	p, err := c.FetchPage(ctx, object, filter, 1, 1)
	if err != nil {
		return nil, false, err
	}
	if len(p.Records) == 0 {
		return nil, false, nil
	}
	return p.Records[0], true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs a GET with circuit breaking, retries and rate limiting.
func (c *Client) doRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return circuitbreaker.ExecuteWithResult(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return retry.DoWithData(ctx, c.retrier, func(ctx context.Context) ([]byte, error) {
			if err := c.rateLimiter.Allow(ctx); err != nil {
				return nil, retry.Permanent(fmt.Errorf("rate limiter: %w", err))
			}

			body, err := c.doSingleRequest(ctx, path, params)
			if err == nil {
				return body, nil
			}

			var rateLimitErr *RateLimitError
			if errors.As(err, &rateLimitErr) {
				c.rateLimiter.RecordRateLimitHit(rateLimitErr.RetryAfter)
				return nil, retry.RetryableAfter(err, rateLimitErr.RetryAfter)
			}
			if isRetryable(err) {
				return nil, retry.Retryable(err)
			}
			return nil, err
		})
	})
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	fullURL := c.config.BaseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Knack-Application-Id", c.config.AppID)
	req.Header.Set("X-Knack-REST-API-Key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, &RateLimitError{
			RetryAfter: retryAfter,
			Message:    "knack api: rate limit exceeded",
		}
	}

	if resp.StatusCode >= 400 {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return body, nil
}

// isRetryable reports whether a single-request error may succeed on retry.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// ClientStatus is reported by the readiness endpoint.
type ClientStatus struct {
	RateLimiter    RateLimiterStatus       `json:"rate_limiter"`
	CircuitBreaker circuitbreaker.Snapshot `json:"circuit_breaker"`
}

// Status returns the current status of the client.
func (c *Client) Status() ClientStatus {
	return ClientStatus{
		RateLimiter:    c.rateLimiter.Status(),
		CircuitBreaker: c.breaker.Snapshot(),
	}
}

// Healthy reports whether the circuit breaker lets requests through.
func (c *Client) Healthy() bool {
	return !c.breaker.IsOpen()
}

// Reset resets the rate limiter and circuit breaker.
func (c *Client) Reset() {
	c.rateLimiter.Reset()
	c.breaker.Reset()
}
