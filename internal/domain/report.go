// Package domain holds the core types shared across the analysis pipeline,
// the batch scheduler and the API layer. It has no infrastructure
// dependencies.
package domain

import "time"

// Decision is the trading recommendation produced for one ticker.
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
	DecisionHold Decision = "HOLD"
)

// Quote is a point-in-time price snapshot for a ticker.
type Quote struct {
	Current       float64   `json:"current"`
	Change        float64   `json:"change"`
	PercentChange float64   `json:"percent_change"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	PreviousClose float64   `json:"previous_close"`
	Timestamp     time.Time `json:"timestamp"`
}

// Candle is one daily OHLCV bar.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// CompanyProfile is slow-moving descriptive data about an instrument.
type CompanyProfile struct {
	Name             string  `json:"name"`
	Exchange         string  `json:"exchange"`
	Industry         string  `json:"industry"`
	Currency         string  `json:"currency"`
	MarketCap        float64 `json:"market_cap"`
	ShareOutstanding float64 `json:"share_outstanding"`
}

// Indicators holds the technical values computed for a ticker.
type Indicators struct {
	SMA20           float64 `json:"sma_20"`
	SMA50           float64 `json:"sma_50"`
	RSI14           float64 `json:"rsi_14"`
	MACD            float64 `json:"macd"`
	MACDSignal      float64 `json:"macd_signal"`
	MeanDailyReturn float64 `json:"mean_daily_return"`
	AnnualizedVol   float64 `json:"annualized_volatility"`
}

// Report is the final analysis output for one ticker.
type Report struct {
	Ticker      string         `json:"ticker"`
	AsOf        time.Time      `json:"as_of"`
	Decision    Decision       `json:"decision"`
	Rationale   string         `json:"rationale"`
	Quote       Quote          `json:"quote"`
	Profile     CompanyProfile `json:"profile"`
	Indicators  Indicators     `json:"indicators"`
	GeneratedAt time.Time      `json:"generated_at"`
}
