// Package portfolio loads the tracked ticker set and aggregates batch
// results into a portfolio-level view.
package portfolio

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aristath/lookout/internal/batch"
	"github.com/aristath/lookout/internal/domain"
)

// Position is one holding in the portfolio file.
type Position struct {
	Ticker   string  `json:"ticker"`
	Quantity float64 `json:"quantity,omitempty"`
}

// File is the on-disk portfolio format.
type File struct {
	Positions []Position `json:"positions"`
}

// LoadTickers reads the ticker list from a portfolio JSON file.
func LoadTickers(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read portfolio file %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse portfolio file %s: %w", path, err)
	}

	tickers := make([]string, 0, len(f.Positions))
	for _, pos := range f.Positions {
		if pos.Ticker == "" {
			return nil, fmt.Errorf("portfolio file %s contains a position without a ticker", path)
		}
		tickers = append(tickers, pos.Ticker)
	}
	return tickers, nil
}

// Summary is the portfolio-level aggregation of one batch result. The
// downstream allocation decision needs every ticker resolved, so the summary
// calls out unresolved-by-timeout tickers separately from data failures.
type Summary struct {
	Total       int            `json:"total"`
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	TimedOut    int            `json:"timed_out"`
	SuccessRate float64        `json:"success_rate"`
	Decisions   map[string]int `json:"decisions"`
}

// Summarize aggregates a batch result.
func Summarize(result *batch.Result) Summary {
	s := Summary{
		Total:     len(result.Outcomes),
		Decisions: make(map[string]int),
	}
	for _, outcome := range result.Outcomes {
		if outcome.Success() {
			s.Succeeded++
			s.Decisions[string(outcome.Report.Decision)]++
			continue
		}
		s.Failed++
		if outcome.Err.Kind == domain.KindTimeout {
			s.TimedOut++
		}
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(s.Total)
	}
	return s
}
