// Package market provides trading-hours checking for the configured exchange
// window. The cache bypass rule and the daily run schedule both depend on it.
package market

import (
	"fmt"
	"time"

	"github.com/aristath/lookout/internal/config"
)

// Hours checks whether a point in time falls inside the trading window.
type Hours struct {
	loc         *time.Location
	openHour    int
	openMinute  int
	closeHour   int
	closeMinute int

	now func() time.Time
}

// NewHours creates a checker for the configured window.
func NewHours(cfg config.MarketConfig) (*Hours, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid market timezone %q: %w", cfg.Timezone, err)
	}
	return &Hours{
		loc:         loc,
		openHour:    cfg.OpenHour,
		openMinute:  cfg.OpenMinute,
		closeHour:   cfg.CloseHour,
		closeMinute: cfg.CloseMinute,
		now:         time.Now,
	}, nil
}

// InTradingWindow reports whether t falls inside the trading window:
// a weekday, between open (inclusive) and close (exclusive) in the market
// timezone. Exchange holidays are not modeled; on a holiday the gate simply
// prefers live fetches, which is the safe direction.
func (h *Hours) InTradingWindow(t time.Time) bool {
	local := t.In(h.loc)

	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}

	openAt := time.Date(local.Year(), local.Month(), local.Day(), h.openHour, h.openMinute, 0, 0, h.loc)
	closeAt := time.Date(local.Year(), local.Month(), local.Day(), h.closeHour, h.closeMinute, 0, 0, h.loc)

	return !local.Before(openAt) && local.Before(closeAt)
}

// IsOpenNow reports whether the market is open at this moment.
func (h *Hours) IsOpenNow() bool {
	return h.InTradingWindow(h.now())
}
