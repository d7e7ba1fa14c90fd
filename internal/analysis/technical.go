package analysis

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/lookout/internal/domain"
)

// minCandles is the history needed for the slowest indicator (SMA50) plus
// MACD warmup.
const minCandles = 60

// tradingDaysPerYear annualizes daily return volatility.
const tradingDaysPerYear = 252

// ComputeIndicators derives the technical values from daily candles.
// Candles must be in ascending date order.
func ComputeIndicators(candles []domain.Candle) (domain.Indicators, error) {
	if len(candles) < minCandles {
		return domain.Indicators{}, fmt.Errorf(
			"need %d daily candles for indicators, got %d: %w",
			minCandles, len(candles), domain.ErrDataUnavailable)
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	sma20 := talib.Sma(closes, 20)
	sma50 := talib.Sma(closes, 50)
	rsi14 := talib.Rsi(closes, 14)
	macd, signal, _ := talib.Macd(closes, 12, 26, 9)

	returns := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		returns[i-1] = closes[i]/closes[i-1] - 1
	}
	meanReturn := stat.Mean(returns, nil)
	dailyVol := math.Sqrt(stat.Variance(returns, nil))

	last := len(closes) - 1
	return domain.Indicators{
		SMA20:           sma20[last],
		SMA50:           sma50[last],
		RSI14:           rsi14[last],
		MACD:            macd[last],
		MACDSignal:      signal[last],
		MeanDailyReturn: meanReturn,
		AnnualizedVol:   dailyVol * math.Sqrt(tradingDaysPerYear),
	}, nil
}

// decideFromIndicators is the rule-based fallback used when no language
// model is configured. Simple trend-following with overbought/oversold
// adjustments; each signal votes and the sum picks the side.
func decideFromIndicators(price float64, ind domain.Indicators) (domain.Decision, string) {
	score := 0

	if price > ind.SMA20 {
		score++
	} else {
		score--
	}
	if ind.SMA20 > ind.SMA50 {
		score++
	} else {
		score--
	}
	if ind.MACD > ind.MACDSignal {
		score++
	} else {
		score--
	}
	if ind.RSI14 < 30 {
		score++
	}
	if ind.RSI14 > 70 {
		score--
	}

	rationale := fmt.Sprintf(
		"rule-based signal score %+d (price %.2f vs SMA20 %.2f / SMA50 %.2f, RSI %.1f, MACD %.3f vs signal %.3f)",
		score, price, ind.SMA20, ind.SMA50, ind.RSI14, ind.MACD, ind.MACDSignal)

	switch {
	case score >= 2:
		return domain.DecisionBuy, rationale
	case score <= -2:
		return domain.DecisionSell, rationale
	default:
		return domain.DecisionHold, rationale
	}
}
