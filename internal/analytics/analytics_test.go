package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/shopspring/decimal"
)

func TestCalculateEmptyTradesReturnsZeroReport(t *testing.T) {
	c := NewCalculator()
	report := c.Calculate(decimal.NewFromInt(10000), nil, nil)
	if report.TotalTrades != 0 {
		t.Fatalf("expected zero trades, got %d", report.TotalTrades)
	}
	if report.ConfidencePerformance == nil {
		t.Fatal("expected confidence map to be initialized even when empty")
	}
}

func trade(pnl, entryPrice, qty float64, confidence float64, leverage int, entry, exit time.Time) domain.Trade {
	return domain.Trade{
		Symbol: "BTCUSDT", Side: domain.SideLong,
		EntryTime: entry, ExitTime: exit,
		EntryPrice: decimal.NewFromFloat(entryPrice), ExitPrice: decimal.NewFromFloat(entryPrice),
		Quantity: decimal.NewFromFloat(qty), PnL: decimal.NewFromFloat(pnl),
		Fees: decimal.Zero, SignalConfidence: confidence, Leverage: leverage,
	}
}

func TestCalculatePureProfitGivesInfiniteProfitFactor(t *testing.T) {
	c := NewCalculator()
	base := time.Unix(0, 0)
	trades := []domain.Trade{
		trade(100, 100, 1, 0.9, 1, base, base.Add(time.Hour)),
		trade(50, 100, 1, 0.9, 1, base, base.Add(time.Hour)),
	}
	report := c.Calculate(decimal.NewFromInt(1000), trades, nil)
	if !math.IsInf(report.ProfitFactor, 1) {
		t.Fatalf("expected +Inf profit factor with no losses, got %v", report.ProfitFactor)
	}
	if report.WinRate != 100 {
		t.Fatalf("expected 100%% win rate, got %v", report.WinRate)
	}
}

func TestCalculateWinRateAndExpectancy(t *testing.T) {
	c := NewCalculator()
	base := time.Unix(0, 0)
	trades := []domain.Trade{
		trade(100, 100, 1, 0.9, 1, base, base.Add(time.Hour)),
		trade(-50, 100, 1, 0.9, 1, base, base.Add(time.Hour)),
	}
	report := c.Calculate(decimal.NewFromInt(1000), trades, nil)
	if report.WinRate != 50 {
		t.Fatalf("expected 50%% win rate, got %v", report.WinRate)
	}
	wantExpectancy := decimal.NewFromFloat(25)
	if !report.Expectancy.Equal(wantExpectancy) {
		t.Fatalf("expected expectancy %s, got %s", wantExpectancy, report.Expectancy)
	}
}

func TestCalculateConfidenceBucketing(t *testing.T) {
	c := NewCalculator()
	base := time.Unix(0, 0)
	trades := []domain.Trade{
		trade(10, 100, 1, 0.55, 1, base, base),
		trade(10, 100, 1, 0.95, 1, base, base),
	}
	report := c.Calculate(decimal.NewFromInt(1000), trades, nil)
	if _, ok := report.ConfidencePerformance["0-59%"]; !ok {
		t.Fatal("expected a 0-59% bucket")
	}
	if _, ok := report.ConfidencePerformance["90-100%"]; !ok {
		t.Fatal("expected a 90-100% bucket")
	}
}

func TestCalculateMaxDrawdown(t *testing.T) {
	c := NewCalculator()
	base := time.Unix(0, 0)
	trades := []domain.Trade{trade(10, 100, 1, 0.9, 1, base, base)}
	curve := []domain.EquityPoint{
		{Timestamp: time.Unix(0, 0), Value: decimal.NewFromInt(1000)},
		{Timestamp: time.Unix(60, 0), Value: decimal.NewFromInt(1100)},
		{Timestamp: time.Unix(120, 0), Value: decimal.NewFromInt(900)},
		{Timestamp: time.Unix(180, 0), Value: decimal.NewFromInt(1050)},
	}
	report := c.Calculate(decimal.NewFromInt(1000), trades, curve)
	wantDD := decimal.NewFromInt(200)
	if !report.MaxDrawdownAbsolute.Equal(wantDD) {
		t.Fatalf("expected max drawdown %s, got %s", wantDD, report.MaxDrawdownAbsolute)
	}
}
