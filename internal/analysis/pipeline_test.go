package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookout/internal/domain"
)

type fakeMarketData struct {
	quoteErr   error
	candlesErr error
	candles    []domain.Candle
}

func (f *fakeMarketData) GetQuote(ctx context.Context, ticker string) (*domain.Quote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return &domain.Quote{Current: 110, PreviousClose: 109, PercentChange: 0.9}, nil
}

func (f *fakeMarketData) GetDailyCandles(ctx context.Context, ticker string, from, to time.Time) ([]domain.Candle, error) {
	if f.candlesErr != nil {
		return nil, f.candlesErr
	}
	if f.candles != nil {
		return f.candles, nil
	}
	return syntheticCandles(120, func(i int) float64 { return 100 + float64(i)*0.1 }), nil
}

func (f *fakeMarketData) GetCompanyProfile(ctx context.Context, ticker string) (*domain.CompanyProfile, error) {
	return &domain.CompanyProfile{Name: "Test Corp", Exchange: "NASDAQ", Industry: "Technology", Currency: "USD"}, nil
}

type fakeModel struct {
	answer string
	err    error
	calls  int
}

func (f *fakeModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func TestPipeline_RuleBasedWithoutModel(t *testing.T) {
	p := NewPipeline(&fakeMarketData{}, nil, zerolog.Nop())

	report, err := p.Analyze(context.Background(), "AAPL", time.Now())
	require.NoError(t, err)

	assert.Equal(t, "AAPL", report.Ticker)
	assert.Equal(t, "Test Corp", report.Profile.Name)
	assert.Contains(t, []domain.Decision{domain.DecisionBuy, domain.DecisionSell, domain.DecisionHold}, report.Decision)
	assert.NotEmpty(t, report.Rationale)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestPipeline_ModelDecisionParsed(t *testing.T) {
	model := &fakeModel{answer: "BUY - momentum is strong and the trend is intact."}
	p := NewPipeline(&fakeMarketData{}, model, zerolog.Nop())

	report, err := p.Analyze(context.Background(), "AAPL", time.Now())
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionBuy, report.Decision)
	assert.Equal(t, model.answer, report.Rationale)
	assert.Equal(t, 1, model.calls)
}

func TestPipeline_ModelThrottlingPropagates(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("bedrock throttled: %w", domain.ErrRateLimited)}
	p := NewPipeline(&fakeMarketData{}, model, zerolog.Nop())

	_, err := p.Analyze(context.Background(), "AAPL", time.Now())
	require.Error(t, err)
	assert.Equal(t, domain.KindRateLimited, domain.Classify(err),
		"an inference throttle must reach the scheduler as a rate-limit error")
}

func TestPipeline_DataErrorPropagates(t *testing.T) {
	data := &fakeMarketData{quoteErr: fmt.Errorf("lookup: %w", domain.ErrInvalidTicker)}
	p := NewPipeline(data, nil, zerolog.Nop())

	_, err := p.Analyze(context.Background(), "NOPE", time.Now())
	assert.Equal(t, domain.KindInvalidTicker, domain.Classify(err))
}

func TestPipeline_ShortHistoryIsDataUnavailable(t *testing.T) {
	data := &fakeMarketData{candles: syntheticCandles(10, func(i int) float64 { return 100 })}
	p := NewPipeline(data, nil, zerolog.Nop())

	_, err := p.Analyze(context.Background(), "AAPL", time.Now())
	assert.Equal(t, domain.KindDataUnavailable, domain.Classify(err))
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		answer string
		want   domain.Decision
		ok     bool
	}{
		{"BUY - strong setup", domain.DecisionBuy, true},
		{"I would hold this position.", domain.DecisionHold, true},
		{"Sell into strength.", domain.DecisionSell, true},
		{"The outlook is murky.", domain.Decision(""), false},
		{"HOLD, though selling is tempting.", domain.DecisionHold, true},
	}

	for _, tt := range tests {
		decision, ok := parseDecision(tt.answer)
		assert.Equal(t, tt.ok, ok, "answer: %s", tt.answer)
		if tt.ok {
			assert.Equal(t, tt.want, decision, "answer: %s", tt.answer)
		}
	}
}
