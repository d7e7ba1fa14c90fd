package portfolio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookout/internal/batch"
	"github.com/aristath/lookout/internal/domain"
)

func writePortfolio(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portfolio.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTickers(t *testing.T) {
	path := writePortfolio(t, `{
		"positions": [
			{"ticker": "AAPL", "quantity": 10},
			{"ticker": "MSFT", "quantity": 4.5},
			{"ticker": "NVDA"}
		]
	}`)

	tickers, err := LoadTickers(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, tickers)
}

func TestLoadTickersEmptyPositions(t *testing.T) {
	path := writePortfolio(t, `{"positions": []}`)

	tickers, err := LoadTickers(path)
	require.NoError(t, err)
	assert.Empty(t, tickers)
}

func TestLoadTickersMissingFile(t *testing.T) {
	_, err := LoadTickers(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadTickersMalformedJSON(t *testing.T) {
	path := writePortfolio(t, `{"positions": [`)

	_, err := LoadTickers(path)
	assert.Error(t, err)
}

func TestLoadTickersRejectsBlankTicker(t *testing.T) {
	path := writePortfolio(t, `{"positions": [{"ticker": ""}]}`)

	_, err := LoadTickers(path)
	assert.ErrorContains(t, err, "without a ticker")
}

func TestSummarize(t *testing.T) {
	result := &batch.Result{
		Outcomes: map[string]batch.Outcome{
			"AAPL": {Ticker: "AAPL", Report: &domain.Report{Ticker: "AAPL", Decision: domain.DecisionBuy}},
			"MSFT": {Ticker: "MSFT", Report: &domain.Report{Ticker: "MSFT", Decision: domain.DecisionHold}},
			"NVDA": {Ticker: "NVDA", Report: &domain.Report{Ticker: "NVDA", Decision: domain.DecisionBuy}},
			"BAD":  {Ticker: "BAD", Err: &batch.OutcomeError{Kind: domain.KindInvalidTicker, Message: "unknown symbol"}},
			"SLOW": {Ticker: "SLOW", Err: &batch.OutcomeError{Kind: domain.KindTimeout, Message: "batch deadline exceeded"}},
		},
	}

	s := Summarize(result)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 3, s.Succeeded)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.TimedOut)
	assert.InDelta(t, 0.6, s.SuccessRate, 1e-9)
	assert.Equal(t, map[string]int{"BUY": 2, "HOLD": 1}, s.Decisions)
}

func TestSummarizeEmptyResult(t *testing.T) {
	s := Summarize(&batch.Result{Outcomes: map[string]batch.Outcome{}})
	assert.Zero(t, s.Total)
	assert.Zero(t, s.SuccessRate)
}
