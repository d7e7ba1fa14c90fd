package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookout/internal/batch"
	"github.com/aristath/lookout/internal/domain"
)

type runnerFunc func(ctx context.Context, req batch.Request) (*batch.Result, error)

func (f runnerFunc) Run(ctx context.Context, req batch.Request) (*batch.Result, error) {
	return f(ctx, req)
}

func TestDailyBatchJobRunsPortfolioTickers(t *testing.T) {
	var got []string
	runner := runnerFunc(func(_ context.Context, req batch.Request) (*batch.Result, error) {
		got = req.Tickers
		outcomes := make(map[string]batch.Outcome)
		for _, ticker := range req.Tickers {
			outcomes[ticker] = batch.Outcome{
				Ticker:   ticker,
				Attempts: 1,
				Report:   &domain.Report{Ticker: ticker, Decision: domain.DecisionHold},
			}
		}
		return &batch.Result{State: batch.RunCompleted, Outcomes: outcomes}, nil
	})

	job := NewDailyBatchJob(runner, func() ([]string, error) {
		return []string{"AAPL", "MSFT"}, nil
	}, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)
}

func TestDailyBatchJobSkipsEmptyPortfolio(t *testing.T) {
	called := false
	runner := runnerFunc(func(context.Context, batch.Request) (*batch.Result, error) {
		called = true
		return nil, nil
	})

	job := NewDailyBatchJob(runner, func() ([]string, error) { return nil, nil }, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.False(t, called)
}

func TestDailyBatchJobPropagatesErrors(t *testing.T) {
	loadErr := errors.New("portfolio file missing")
	job := NewDailyBatchJob(nil, func() ([]string, error) { return nil, loadErr }, zerolog.Nop())
	assert.ErrorIs(t, job.Run(), loadErr)

	runErr := errors.New("cancelled")
	runner := runnerFunc(func(context.Context, batch.Request) (*batch.Result, error) {
		return nil, runErr
	})
	job = NewDailyBatchJob(runner, func() ([]string, error) { return []string{"AAPL"}, nil }, zerolog.Nop())
	assert.ErrorIs(t, job.Run(), runErr)
}

type fakeSweeper struct{ removed int }

func (f fakeSweeper) Sweep() int { return f.removed }

func TestCacheSweepJob(t *testing.T) {
	job := NewCacheSweepJob(fakeSweeper{removed: 4}, zerolog.Nop())
	assert.Equal(t, "cache_sweep", job.Name())
	assert.NoError(t, job.Run())
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := New(zerolog.Nop())
	job := NewCacheSweepJob(fakeSweeper{}, zerolog.Nop())
	assert.ErrorContains(t, s.Register("not a cron spec", job), "cache_sweep")
	assert.NoError(t, s.Register("0 30 16 * * MON-FRI", job))
}

type failingJob struct{ err error }

func (f failingJob) Run() error   { return f.err }
func (f failingJob) Name() string { return "failing" }

func TestSchedulerRunJobSwallowsFailures(t *testing.T) {
	s := New(zerolog.Nop())
	// Job failures are logged by the scheduler, never propagated to cron.
	assert.NotPanics(t, func() { s.runJob(failingJob{err: errors.New("boom")}) })
	assert.NotPanics(t, func() { s.runJob(NewCacheSweepJob(fakeSweeper{removed: 1}, zerolog.Nop())) })
}
