package knack

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vespa-hub/vespa-results/config"
	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/domain/shared"
	"github.com/vespa-hub/vespa-results/pkg/circuitbreaker"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*ClientConfig)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig(srv.URL)
	cfg.AppID = "app-1"
	cfg.APIKey = "key-1"
	cfg.RowsPerPage = 2
	cfg.RetryDelay = time.Millisecond
	cfg.RateLimiterConfig = RateLimiterConfig{RequestsPerSecond: 1000, BurstSize: 100, WaitTimeout: time.Second}
	cfg.HTTPClient = srv.Client()
	for _, m := range mutate {
		m(&cfg)
	}
	return NewClient(cfg)
}

func pageBody(page, totalPages int, ids ...string) string {
	records := ""
	for i, id := range ids {
		if i > 0 {
			records += ","
		}
		records += fmt.Sprintf(`{"id":%q}`, id)
	}
	return fmt.Sprintf(`{"total_pages":%d,"current_page":%d,"total_records":%d,"records":[%s]}`,
		totalPages, page, totalPages*2, records)
}

func TestClient_FetchAll_Paginates(t *testing.T) {
	var calls atomic.Int32
	filter := results.Group(results.MatchAnd, results.Leaf("field_133", results.OperatorIs, "est1"))

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/objects/object_10/records", r.URL.Path)
		assert.Equal(t, "app-1", r.Header.Get("X-Knack-Application-Id"))
		assert.Equal(t, "key-1", r.Header.Get("X-Knack-REST-API-Key"))
		assert.Equal(t, "2", r.URL.Query().Get("rows_per_page"))
		assert.JSONEq(t,
			`{"match":"and","rules":[{"field":"field_133","operator":"is","value":"est1"}]}`,
			r.URL.Query().Get("filters"))

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		switch page {
		case 1:
			fmt.Fprint(w, pageBody(1, 2, "a", "b"))
		default:
			fmt.Fprint(w, pageBody(2, 2, "c"))
		}
	})

	res, err := c.FetchAll(context.Background(), results.RecordQuery{
		Object:        "object_10",
		Filter:        filter,
		Establishment: true,
	})
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
	assert.Equal(t, 2, res.Pages)
	assert.False(t, res.Truncated)
	assert.Equal(t, int32(2), calls.Load())
	assert.JSONEq(t, `{"id":"c"}`, string(res.Records[2]))
}

func TestClient_FetchAll_PageCap(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		fmt.Fprint(w, pageBody(page, 10, "x"+strconv.Itoa(page)))
	}
	capped := func(cfg *ClientConfig) {
		cfg.MaxPages = 4
		cfg.MaxPagesUnscoped = 2
	}

	t.Run("without establishment predicate", func(t *testing.T) {
		c := newTestClient(t, handler, capped)
		res, err := c.FetchAll(context.Background(), results.RecordQuery{Object: "object_10"})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Pages)
		assert.Len(t, res.Records, 2)
		assert.True(t, res.Truncated)
	})

	t.Run("with establishment predicate", func(t *testing.T) {
		c := newTestClient(t, handler, capped)
		res, err := c.FetchAll(context.Background(), results.RecordQuery{Object: "object_10", Establishment: true})
		require.NoError(t, err)
		assert.Equal(t, 4, res.Pages)
		assert.True(t, res.Truncated)
	})
}

func TestClient_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, pageBody(1, 1, "a"))
	})

	res, err := c.FetchAll(context.Background(), results.RecordQuery{Object: "object_10"})
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, c.Status().RateLimiter.RateLimitHits)
}

func TestClient_ServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, func(cfg *ClientConfig) { cfg.BreakerThreshold = 10 })

	_, err := c.FetchAll(context.Background(), results.RecordQuery{Object: "object_10"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrTransport)
	assert.True(t, shared.IsExternalService(err))
	assert.Equal(t, int32(3), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errors":[{"message":"Invalid filters"}]}`)
	})

	_, err := c.FetchAll(context.Background(), results.RecordQuery{Object: "object_10"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid filters", apiErr.Message)
	assert.Equal(t, "closed", c.Status().CircuitBreaker.State)
}

func TestClient_InvalidBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_pages":1}`)
	})

	_, err := c.FetchAll(context.Background(), results.RecordQuery{Object: "object_10"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrKnackAPIInvalidResponse)
	assert.ErrorIs(t, err, shared.ErrTransport)
}

func TestClient_FindFirst(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "1", r.URL.Query().Get("rows_per_page"))
			fmt.Fprint(w, pageBody(1, 1, "staff-1"))
		})
		rec, ok, err := c.FindFirst(context.Background(), "object_7",
			results.Group(results.MatchAnd, results.Leaf("field_96", results.OperatorIs, "t@school.org")))
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"id":"staff-1"}`, string(rec))
	})

	t.Run("no match", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"total_pages":0,"records":[]}`)
		})
		_, ok, err := c.FindFirst(context.Background(), "object_7", results.Predicate{})
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestClient_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, func(cfg *ClientConfig) {
		cfg.BreakerThreshold = 1
		cfg.MaxRetries = 1
	})

	_, err := c.FetchAll(context.Background(), results.RecordQuery{Object: "object_10"})
	require.Error(t, err)
	assert.False(t, c.Healthy())

	_, err = c.FetchAll(context.Background(), results.RecordQuery{Object: "object_10"})
	require.Error(t, err)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, int32(1), calls.Load())

	c.Reset()
	assert.True(t, c.Healthy())
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.KnackConfig{
		AppID:            "app",
		APIKey:           "key",
		BaseURL:          "https://api.knack.com/v1",
		RowsPerPage:      500,
		MaxPages:         10,
		MaxPagesUnscoped: 3,
		RateLimit:        5,
	})

	assert.Equal(t, "https://api.knack.com/v1", cfg.BaseURL)
	assert.Equal(t, 500, cfg.RowsPerPage)
	assert.Equal(t, 10, cfg.MaxPages)
	assert.Equal(t, 3, cfg.MaxPagesUnscoped)
	assert.Equal(t, 5.0, cfg.RateLimiterConfig.RequestsPerSecond)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}
