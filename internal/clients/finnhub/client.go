// Package finnhub provides client functionality for the Finnhub market data
// API. Every fetch consults the tiered cache first with the freshness class
// that matches the endpoint: quotes are live, candle history is historical,
// company profiles are static.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/cache"
	"github.com/aristath/lookout/internal/domain"
)

const defaultBaseURL = "https://finnhub.io/api/v1"

// Client for the Finnhub API
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cache   *cache.TieredCache // optional - nil disables caching
	log     zerolog.Logger
	now     func() time.Time
}

// NewClient creates a new Finnhub client.
func NewClient(apiKey string, tiered *cache.TieredCache, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		cache:   tiered,
		log:     log.With().Str("client", "finnhub").Logger(),
		now:     time.Now,
	}
}

// quoteResponse matches Finnhub's /quote payload.
type quoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// GetQuote fetches the real-time quote for a ticker. Quotes are live data
// and are never served from cache.
func (c *Client) GetQuote(ctx context.Context, ticker string) (*domain.Quote, error) {
	var raw quoteResponse
	key := cache.Key("finnhub_quote", ticker)
	if c.cache != nil && c.cache.Get(key, cache.Live, &raw) {
		// Unreachable under any policy, kept for uniformity with the
		// other endpoints: the cache is the single policy gate.
		return quoteFromResponse(&raw), nil
	}

	if err := c.get(ctx, "/quote", url.Values{"symbol": {ticker}}, &raw); err != nil {
		return nil, err
	}

	// Finnhub answers unknown symbols with an all-zero quote.
	if raw.Current == 0 && raw.PreviousClose == 0 && raw.Timestamp == 0 {
		return nil, fmt.Errorf("no quote for %s: %w", ticker, domain.ErrInvalidTicker)
	}

	if c.cache != nil {
		c.cache.Put(key, cache.Live, raw)
	}
	return quoteFromResponse(&raw), nil
}

func quoteFromResponse(raw *quoteResponse) *domain.Quote {
	return &domain.Quote{
		Current:       raw.Current,
		Change:        raw.Change,
		PercentChange: raw.PercentChange,
		High:          raw.High,
		Low:           raw.Low,
		Open:          raw.Open,
		PreviousClose: raw.PreviousClose,
		Timestamp:     time.Unix(raw.Timestamp, 0),
	}
}

// candleResponse matches Finnhub's /stock/candle payload.
type candleResponse struct {
	Status     string    `json:"s"`
	Timestamps []int64   `json:"t"`
	Opens      []float64 `json:"o"`
	Highs      []float64 `json:"h"`
	Lows       []float64 `json:"l"`
	Closes     []float64 `json:"c"`
	Volumes    []float64 `json:"v"`
}

// GetDailyCandles fetches daily OHLCV bars for the date range. Ranges that
// end before today cache under the historical class; a range that reaches
// into the current day contains a partial bar, so it is classified live and
// always refetched.
func (c *Client) GetDailyCandles(ctx context.Context, ticker string, from, to time.Time) ([]domain.Candle, error) {
	key := cache.Key("finnhub_candles", ticker, from.Format("2006-01-02"), to.Format("2006-01-02"))
	class := c.candleClass(to)

	var raw candleResponse
	if c.cache == nil || !c.cache.Get(key, class, &raw) {
		params := url.Values{
			"symbol":     {ticker},
			"resolution": {"D"},
			"from":       {fmt.Sprintf("%d", from.Unix())},
			"to":         {fmt.Sprintf("%d", to.Unix())},
		}
		if err := c.get(ctx, "/stock/candle", params, &raw); err != nil {
			return nil, err
		}
		if raw.Status == "no_data" {
			return nil, fmt.Errorf("no candles for %s: %w", ticker, domain.ErrDataUnavailable)
		}
		if raw.Status != "ok" {
			return nil, fmt.Errorf("candle request for %s returned status %q", ticker, raw.Status)
		}
		if err := raw.validate(); err != nil {
			return nil, fmt.Errorf("malformed candle response for %s: %w", ticker, err)
		}
		if c.cache != nil {
			c.cache.Put(key, class, raw)
		}
	}

	candles := make([]domain.Candle, 0, len(raw.Timestamps))
	for i := range raw.Timestamps {
		candles = append(candles, domain.Candle{
			Date:   time.Unix(raw.Timestamps[i], 0),
			Open:   raw.Opens[i],
			High:   raw.Highs[i],
			Low:    raw.Lows[i],
			Close:  raw.Closes[i],
			Volume: raw.Volumes[i],
		})
	}
	return candles, nil
}

// validate rejects responses whose parallel arrays disagree in length. The
// bars are assembled by index, so a mismatch would otherwise panic.
func (r *candleResponse) validate() error {
	n := len(r.Timestamps)
	if len(r.Opens) != n || len(r.Highs) != n || len(r.Lows) != n ||
		len(r.Closes) != n || len(r.Volumes) != n {
		return fmt.Errorf("mismatched candle array lengths: %w", domain.ErrDataUnavailable)
	}
	return nil
}

// candleClass picks the freshness class for a candle range ending at to.
func (c *Client) candleClass(to time.Time) cache.Class {
	now := c.now()
	end := to.In(now.Location())
	if end.Year() < now.Year() || (end.Year() == now.Year() && end.YearDay() < now.YearDay()) {
		return cache.Historical
	}
	return cache.Live
}

// profileResponse matches Finnhub's /stock/profile2 payload.
type profileResponse struct {
	Name             string  `json:"name"`
	Exchange         string  `json:"exchange"`
	Industry         string  `json:"finnhubIndustry"`
	Currency         string  `json:"currency"`
	MarketCap        float64 `json:"marketCapitalization"`
	ShareOutstanding float64 `json:"shareOutstanding"`
}

// GetCompanyProfile fetches descriptive company data. Profiles barely change,
// so they cache under the static class.
func (c *Client) GetCompanyProfile(ctx context.Context, ticker string) (*domain.CompanyProfile, error) {
	key := cache.Key("finnhub_profile", ticker)

	var raw profileResponse
	if c.cache == nil || !c.cache.Get(key, cache.Static, &raw) {
		if err := c.get(ctx, "/stock/profile2", url.Values{"symbol": {ticker}}, &raw); err != nil {
			return nil, err
		}
		// Finnhub answers unknown symbols with an empty object.
		if raw.Name == "" {
			return nil, fmt.Errorf("no profile for %s: %w", ticker, domain.ErrInvalidTicker)
		}
		if c.cache != nil {
			c.cache.Put(key, cache.Static, raw)
		}
	}

	return &domain.CompanyProfile{
		Name:             raw.Name,
		Exchange:         raw.Exchange,
		Industry:         raw.Industry,
		Currency:         raw.Currency,
		MarketCap:        raw.MarketCap,
		ShareOutstanding: raw.ShareOutstanding,
	}, nil
}

// get issues one API request and decodes the JSON response, mapping
// transport and status failures to the domain error taxonomy.
func (c *Client) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	params.Set("token", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	c.log.Debug().Str("path", path).Msg("fetching from Finnhub")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w: %v", path, domain.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("finnhub %s: %w", path, domain.ErrRateLimited)
	case resp.StatusCode >= 500:
		return fmt.Errorf("finnhub %s returned %d: %w", path, resp.StatusCode, domain.ErrTransientNetwork)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("finnhub %s returned %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w: %v", path, domain.ErrTransientNetwork, err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
