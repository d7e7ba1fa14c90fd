// Package analysis implements the per-ticker analysis pipeline: market data
// fetch, technical indicators, and an LLM-assisted (or rule-based) trading
// decision. The batch scheduler treats one Analyze call as one attempt.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/domain"
	"github.com/aristath/lookout/internal/llm"
)

// candleLookbackMonths is how much daily history the indicators see.
const candleLookbackMonths = 6

// MarketData is the data-provider boundary. The finnhub client implements
// it; tests substitute fakes.
type MarketData interface {
	GetQuote(ctx context.Context, ticker string) (*domain.Quote, error)
	GetDailyCandles(ctx context.Context, ticker string, from, to time.Time) ([]domain.Candle, error)
	GetCompanyProfile(ctx context.Context, ticker string) (*domain.CompanyProfile, error)
}

// Pipeline runs the full analysis for one ticker.
type Pipeline struct {
	data  MarketData
	model llm.ChatModel // optional - nil selects the rule-based decision
	log   zerolog.Logger
	now   func() time.Time
}

// NewPipeline creates an analysis pipeline. model may be nil.
func NewPipeline(data MarketData, model llm.ChatModel, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		data:  data,
		model: model,
		log:   log.With().Str("component", "analysis").Logger(),
		now:   time.Now,
	}
}

// Analyze produces a report for the ticker as of the given date. Errors keep
// their classification wrapping all the way up so the scheduler can decide
// on retries.
func (p *Pipeline) Analyze(ctx context.Context, ticker string, asOf time.Time) (*domain.Report, error) {
	quote, err := p.data.GetQuote(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("quote for %s: %w", ticker, err)
	}

	from := asOf.AddDate(0, -candleLookbackMonths, 0)
	candles, err := p.data.GetDailyCandles(ctx, ticker, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("candles for %s: %w", ticker, err)
	}

	profile, err := p.data.GetCompanyProfile(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("profile for %s: %w", ticker, err)
	}

	indicators, err := ComputeIndicators(candles)
	if err != nil {
		return nil, fmt.Errorf("indicators for %s: %w", ticker, err)
	}

	decision, rationale, err := p.decide(ctx, ticker, quote, profile, indicators)
	if err != nil {
		return nil, err
	}

	return &domain.Report{
		Ticker:      ticker,
		AsOf:        asOf,
		Decision:    decision,
		Rationale:   rationale,
		Quote:       *quote,
		Profile:     *profile,
		Indicators:  indicators,
		GeneratedAt: p.now(),
	}, nil
}

const systemPrompt = "You are an equity analyst. Answer with a single line " +
	"starting with BUY, SELL or HOLD, followed by a short justification."

// decide asks the model for a recommendation, falling back to the rule-based
// signal when no model is configured. Model failures propagate: a throttled
// inference call must be retried by the scheduler, not papered over.
func (p *Pipeline) decide(ctx context.Context, ticker string, quote *domain.Quote, profile *domain.CompanyProfile, ind domain.Indicators) (domain.Decision, string, error) {
	if p.model == nil {
		decision, rationale := decideFromIndicators(quote.Current, ind)
		return decision, rationale, nil
	}

	prompt := buildPrompt(ticker, quote, profile, ind)
	answer, err := p.model.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return "", "", fmt.Errorf("inference for %s: %w", ticker, err)
	}

	decision, ok := parseDecision(answer)
	if !ok {
		// The model rambled without committing; keep its text as the
		// rationale and let the indicators pick the side.
		p.log.Warn().Str("ticker", ticker).Msg("model answer carried no decision, using rule-based signal")
		decision, _ = decideFromIndicators(quote.Current, ind)
	}
	return decision, strings.TrimSpace(answer), nil
}

func buildPrompt(ticker string, quote *domain.Quote, profile *domain.CompanyProfile, ind domain.Indicators) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s (%s, %s)\n", ticker, profile.Name, profile.Exchange)
	fmt.Fprintf(&b, "Industry: %s\n", profile.Industry)
	fmt.Fprintf(&b, "Price: %.2f %s (%+.2f%% today, prev close %.2f)\n",
		quote.Current, profile.Currency, quote.PercentChange, quote.PreviousClose)
	fmt.Fprintf(&b, "SMA20: %.2f  SMA50: %.2f\n", ind.SMA20, ind.SMA50)
	fmt.Fprintf(&b, "RSI(14): %.1f\n", ind.RSI14)
	fmt.Fprintf(&b, "MACD: %.3f (signal %.3f)\n", ind.MACD, ind.MACDSignal)
	fmt.Fprintf(&b, "Mean daily return: %.4f%%  Annualized volatility: %.1f%%\n",
		ind.MeanDailyReturn*100, ind.AnnualizedVol*100)
	b.WriteString("Should this position be bought, sold or held?")
	return b.String()
}

// parseDecision extracts the first explicit BUY/SELL/HOLD from the answer.
func parseDecision(answer string) (domain.Decision, bool) {
	upper := strings.ToUpper(answer)
	best := domain.Decision("")
	bestIdx := len(upper) + 1
	for _, d := range []domain.Decision{domain.DecisionBuy, domain.DecisionSell, domain.DecisionHold} {
		if idx := strings.Index(upper, string(d)); idx >= 0 && idx < bestIdx {
			best, bestIdx = d, idx
		}
	}
	return best, best != ""
}
