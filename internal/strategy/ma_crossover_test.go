package strategy

import (
	"testing"
	"time"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/shopspring/decimal"
)

func kline(close float64, t int) domain.Kline {
	d := decimal.NewFromFloat(close)
	return domain.Kline{
		Symbol:   "BTCUSDT",
		OpenTime: time.Unix(int64(t), 0),
		Open:     d,
		High:     d,
		Low:      d,
		Close:    d,
		Volume:   decimal.NewFromInt(1),
	}
}

func TestNewMACrossoverRejectsMisconfiguredPeriods(t *testing.T) {
	_, err := NewMACrossover(MACrossoverSettings{FastPeriod: 20, SlowPeriod: 5, Confidence: 0.5})
	if err == nil {
		t.Fatal("expected error when fast_period >= slow_period")
	}
}

func TestMACrossoverHoldsDuringWarmup(t *testing.T) {
	s, err := NewMACrossover(MACrossoverSettings{FastPeriod: 5, SlowPeriod: 20, Confidence: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	history := make([]domain.Kline, 19)
	for i := range history {
		history[i] = kline(100, i)
	}
	sig := s.Assess(history)
	if sig.Kind != domain.SignalHold {
		t.Fatalf("expected Hold below slow_period, got %v", sig.Kind)
	}
}

func TestMACrossoverFirstWarmCallReturnsHold(t *testing.T) {
	s, err := NewMACrossover(MACrossoverSettings{FastPeriod: 5, SlowPeriod: 20, Confidence: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	history := make([]domain.Kline, 20)
	for i := range history {
		history[i] = kline(100, i)
	}
	sig := s.Assess(history)
	if sig.Kind != domain.SignalHold {
		t.Fatalf("expected Hold on the warm-up call, got %v", sig.Kind)
	}
}

func TestMACrossoverEmitsGoLongOnUpCross(t *testing.T) {
	s, err := NewMACrossover(MACrossoverSettings{FastPeriod: 2, SlowPeriod: 4, Confidence: 0.75})
	if err != nil {
		t.Fatal(err)
	}
	history := []domain.Kline{kline(100, 0), kline(100, 1), kline(100, 2), kline(100, 3)}
	if sig := s.Assess(history); sig.Kind != domain.SignalHold {
		t.Fatalf("expected Hold on warm-up call, got %v", sig.Kind)
	}
	// Feed a sharp rally so the fast EMA pulls above the slow EMA.
	history = append(history, kline(200, 4))
	sig := s.Assess(history)
	if sig.Kind != domain.SignalGoLong {
		t.Fatalf("expected GoLong after bullish cross, got %v", sig.Kind)
	}
	if sig.Confidence != 0.75 {
		t.Fatalf("expected confidence to be forwarded, got %v", sig.Confidence)
	}
}
