package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookout/internal/config"
)

func nyseHours(t *testing.T) *Hours {
	t.Helper()
	h, err := NewHours(config.MarketConfig{
		Timezone:    "America/New_York",
		OpenHour:    9,
		OpenMinute:  30,
		CloseHour:   16,
		CloseMinute: 0,
	})
	require.NoError(t, err)
	return h
}

func TestHours_InTradingWindow(t *testing.T) {
	h := nyseHours(t)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		// 2025-01-06 is a Monday
		{"midday weekday", time.Date(2025, 1, 6, 12, 0, 0, 0, ny), true},
		{"exact open", time.Date(2025, 1, 6, 9, 30, 0, 0, ny), true},
		{"just before open", time.Date(2025, 1, 6, 9, 29, 59, 0, ny), false},
		{"exact close", time.Date(2025, 1, 6, 16, 0, 0, 0, ny), false},
		{"evening", time.Date(2025, 1, 6, 20, 0, 0, 0, ny), false},
		{"saturday midday", time.Date(2025, 1, 4, 12, 0, 0, 0, ny), false},
		{"sunday midday", time.Date(2025, 1, 5, 12, 0, 0, 0, ny), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.InTradingWindow(tt.at))
		})
	}
}

func TestHours_ConvertsToMarketTimezone(t *testing.T) {
	h := nyseHours(t)

	// 18:00 UTC on a Monday is 13:00 in New York, inside the window.
	assert.True(t, h.InTradingWindow(time.Date(2025, 1, 6, 18, 0, 0, 0, time.UTC)))
	// 03:00 UTC is 22:00 the previous evening in New York.
	assert.False(t, h.InTradingWindow(time.Date(2025, 1, 7, 3, 0, 0, 0, time.UTC)))
}

func TestHours_RejectsUnknownTimezone(t *testing.T) {
	_, err := NewHours(config.MarketConfig{Timezone: "Mars/Olympus_Mons"})
	assert.Error(t, err)
}
