package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookout/internal/batch"
	"github.com/aristath/lookout/internal/cache"
	"github.com/aristath/lookout/internal/domain"
)

type runnerFunc func(ctx context.Context, req batch.Request) (*batch.Result, error)

func (f runnerFunc) Run(ctx context.Context, req batch.Request) (*batch.Result, error) {
	return f(ctx, req)
}

type fakeClock struct{ open bool }

func (f fakeClock) IsOpenNow() bool { return f.open }

type fakeStats struct{ stats cache.Stats }

func (f fakeStats) Stats() cache.Stats { return f.stats }

func successResult(tickers ...string) *batch.Result {
	outcomes := make(map[string]batch.Outcome, len(tickers))
	for _, t := range tickers {
		outcomes[t] = batch.Outcome{
			Ticker:   t,
			Attempts: 1,
			Report:   &domain.Report{Ticker: t, Decision: domain.DecisionHold},
		}
	}
	return &batch.Result{State: batch.RunCompleted, Outcomes: outcomes}
}

func newTestServer(t *testing.T, runner BatchRunner, tickers TickerSource) *Server {
	t.Helper()
	log := zerolog.Nop()
	if tickers == nil {
		tickers = func() ([]string, error) { return []string{"AAPL", "MSFT"}, nil }
	}
	return New(Config{
		Log:    log,
		Port:   0,
		Batch:  NewBatchHandlers(runner, tickers, log),
		System: NewSystemHandlers(log, fakeClock{open: true}, fakeStats{stats: cache.Stats{Entries: 3, ByClass: map[string]int{"historical": 3}}}),
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, runnerFunc(func(context.Context, batch.Request) (*batch.Result, error) {
		return successResult(), nil
	}), nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTriggerBatchUsesPortfolioTickers(t *testing.T) {
	var got atomic.Value
	runner := runnerFunc(func(_ context.Context, req batch.Request) (*batch.Result, error) {
		got.Store(req.Tickers)
		return successResult(req.Tickers...), nil
	})
	srv := newTestServer(t, runner, func() ([]string, error) { return []string{"AAPL", "NVDA"}, nil })

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/batch", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool { return got.Load() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"AAPL", "NVDA"}, got.Load().([]string))
}

func TestTriggerBatchExplicitTickers(t *testing.T) {
	var got atomic.Value
	runner := runnerFunc(func(_ context.Context, req batch.Request) (*batch.Result, error) {
		got.Store(req.Tickers)
		return successResult(req.Tickers...), nil
	})
	srv := newTestServer(t, runner, nil)

	body := strings.NewReader(`{"tickers": ["TSLA"], "as_of": "2025-06-02"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/batch", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool { return got.Load() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"TSLA"}, got.Load().([]string))
}

func TestTriggerBatchRejectsBadDate(t *testing.T) {
	srv := newTestServer(t, runnerFunc(func(context.Context, batch.Request) (*batch.Result, error) {
		return successResult(), nil
	}), nil)

	body := strings.NewReader(`{"as_of": "June 2nd"}`)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/batch", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerBatchRejectsDuplicatesSynchronously(t *testing.T) {
	var started atomic.Bool
	runner := runnerFunc(func(context.Context, batch.Request) (*batch.Result, error) {
		started.Store(true)
		return successResult(), nil
	})
	srv := newTestServer(t, runner, nil)

	body := strings.NewReader(`{"tickers": ["AAPL", "AAPL"]}`)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/batch", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate ticker")
	assert.False(t, started.Load(), "an invalid set must be rejected before a run starts")
}

func TestTriggerBatchRejectsEmptyPortfolio(t *testing.T) {
	srv := newTestServer(t, runnerFunc(func(context.Context, batch.Request) (*batch.Result, error) {
		return successResult(), nil
	}), func() ([]string, error) { return nil, nil })

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/batch", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerBatchConflictWhileRunning(t *testing.T) {
	release := make(chan struct{})
	runner := runnerFunc(func(context.Context, batch.Request) (*batch.Result, error) {
		<-release
		return successResult("AAPL"), nil
	})
	srv := newTestServer(t, runner, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/batch", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/batch", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
}

func TestLatestResultLifecycle(t *testing.T) {
	runner := runnerFunc(func(_ context.Context, req batch.Request) (*batch.Result, error) {
		return successResult(req.Tickers...), nil
	})
	srv := newTestServer(t, runner, nil)

	// Nothing has run yet.
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/batch/latest", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/batch", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/batch/latest", nil))
		return rec.Code == http.StatusOK
	}, 2*time.Second, 5*time.Millisecond)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/batch/latest", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State   string `json:"state"`
		Summary struct {
			Total     int `json:"total"`
			Succeeded int `json:"succeeded"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.State)
	assert.Equal(t, 2, resp.Summary.Total)
	assert.Equal(t, 2, resp.Summary.Succeeded)
}

func TestCacheStatsEndpoint(t *testing.T) {
	srv := newTestServer(t, runnerFunc(func(context.Context, batch.Request) (*batch.Result, error) {
		return successResult(), nil
	}), nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Entries)
}

func TestSystemStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, runnerFunc(func(context.Context, batch.Request) (*batch.Result, error) {
		return successResult(), nil
	}), nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, true, resp["market_open"])
}
