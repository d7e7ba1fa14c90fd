package schedule

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/batch"
	"github.com/aristath/lookout/internal/portfolio"
)

// BatchRunner runs one batch and blocks until it resolves.
type BatchRunner interface {
	Run(ctx context.Context, req batch.Request) (*batch.Result, error)
}

// DailyBatchJob runs the full portfolio analysis batch. It is scheduled
// after market close on trading days.
type DailyBatchJob struct {
	runner  BatchRunner
	tickers func() ([]string, error)
	log     zerolog.Logger
}

// NewDailyBatchJob creates the daily batch job.
func NewDailyBatchJob(runner BatchRunner, tickers func() ([]string, error), log zerolog.Logger) *DailyBatchJob {
	return &DailyBatchJob{
		runner:  runner,
		tickers: tickers,
		log:     log.With().Str("job", "daily_batch").Logger(),
	}
}

// Name returns the job name
func (j *DailyBatchJob) Name() string { return "daily_batch" }

// Run loads the portfolio tickers and executes a batch over them.
func (j *DailyBatchJob) Run() error {
	tickers, err := j.tickers()
	if err != nil {
		return err
	}
	if len(tickers) == 0 {
		j.log.Warn().Msg("Portfolio is empty, skipping batch")
		return nil
	}

	result, err := j.runner.Run(context.Background(), batch.Request{Tickers: tickers})
	if err != nil {
		return err
	}

	summary := portfolio.Summarize(result)
	j.log.Info().
		Str("state", result.State.String()).
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("timed_out", summary.TimedOut).
		Interface("decisions", summary.Decisions).
		Msg("Daily batch finished")
	return nil
}

// Sweeper removes expired cache entries.
type Sweeper interface {
	Sweep() int
}

// CacheSweepJob evicts expired cache entries on a timer so stale payloads
// do not accumulate between lookups.
type CacheSweepJob struct {
	cache Sweeper
	log   zerolog.Logger
}

// NewCacheSweepJob creates the cache sweep job.
func NewCacheSweepJob(cache Sweeper, log zerolog.Logger) *CacheSweepJob {
	return &CacheSweepJob{
		cache: cache,
		log:   log.With().Str("job", "cache_sweep").Logger(),
	}
}

// Name returns the job name
func (j *CacheSweepJob) Name() string { return "cache_sweep" }

// Run sweeps expired entries.
func (j *CacheSweepJob) Run() error {
	removed := j.cache.Sweep()
	if removed > 0 {
		j.log.Info().Int("removed", removed).Msg("Swept expired cache entries")
	}
	return nil
}
