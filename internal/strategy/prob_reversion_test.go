package strategy

import (
	"testing"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
)

func TestNewProbReversionRejectsBadPeriods(t *testing.T) {
	_, err := NewProbReversion(ProbReversionSettings{
		BBandPeriod: 0, ADXPeriod: 5, RSIPeriod: 5, RSISmoothing: 3,
		BBandStdDev: 2, ADXRangeThreshold: 25, RSIOversold: 30, Confidence: 0.5,
	})
	if err == nil {
		t.Fatal("expected error for zero bband_period")
	}
}

func TestProbReversionHoldsDuringWarmup(t *testing.T) {
	s, err := NewProbReversion(ProbReversionSettings{
		BBandPeriod: 10, ADXPeriod: 5, RSIPeriod: 5, RSISmoothing: 3,
		BBandStdDev: 2, ADXRangeThreshold: 25, RSIOversold: 30, Confidence: 0.5,
	})
	if err != nil {
		t.Fatal(err)
	}
	history := make([]domain.Kline, 3)
	for i := range history {
		history[i] = kline(100, i)
	}
	sig := s.Assess(history)
	if sig.Kind != domain.SignalHold {
		t.Fatalf("expected Hold before any lookback is satisfied, got %v", sig.Kind)
	}
}

func TestProbReversionTrendingMarketHoldsRegardlessOfLocation(t *testing.T) {
	s, err := NewProbReversion(ProbReversionSettings{
		BBandPeriod: 5, ADXPeriod: 5, RSIPeriod: 5, RSISmoothing: 2,
		BBandStdDev: 2, ADXRangeThreshold: 25, RSIOversold: 70, Confidence: 0.5,
	})
	if err != nil {
		t.Fatal(err)
	}
	// Strong monotonic uptrend: ADX should read high, regime filter holds.
	history := make([]domain.Kline, 25)
	price := 100.0
	for i := range history {
		history[i] = kline(price, i)
		price += 5
	}
	sig := s.Assess(history)
	if sig.Kind != domain.SignalHold {
		t.Fatalf("expected Hold in a strongly trending regime, got %v", sig.Kind)
	}
}
