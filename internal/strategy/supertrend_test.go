package strategy

import (
	"testing"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
)

func TestNewSuperTrendRejectsBadPeriods(t *testing.T) {
	_, err := NewSuperTrend(SuperTrendSettings{
		Period: 0, ConfirmationBars: 1, EMAConfirmationPeriod: 1,
		Multiplier: 3, ExitMultiplier: 1,
	})
	if err == nil {
		t.Fatal("expected error for zero period")
	}
}

func TestNewSuperTrendRejectsBadMultiplier(t *testing.T) {
	_, err := NewSuperTrend(SuperTrendSettings{
		Period: 10, ConfirmationBars: 1, EMAConfirmationPeriod: 1,
		Multiplier: 0, ExitMultiplier: 1,
	})
	if err == nil {
		t.Fatal("expected error for non-positive multiplier")
	}
}

func TestSuperTrendHoldsDuringWarmup(t *testing.T) {
	s, err := NewSuperTrend(SuperTrendSettings{
		Period: 10, ConfirmationBars: 2, EMAConfirmationPeriod: 5,
		Multiplier: 3, ExitMultiplier: 1, VolumeThreshold: 0, Confidence: 0.6,
	})
	if err != nil {
		t.Fatal(err)
	}
	history := make([]domain.Kline, 5)
	for i := range history {
		history[i] = kline(100, i)
	}
	sig := s.Assess(history)
	if sig.Kind != domain.SignalHold {
		t.Fatalf("expected Hold below period, got %v", sig.Kind)
	}
}

func TestSuperTrendVolumeThresholdVetoesEntry(t *testing.T) {
	s, err := NewSuperTrend(SuperTrendSettings{
		Period: 3, ConfirmationBars: 1, EMAConfirmationPeriod: 2,
		Multiplier: 1, ExitMultiplier: 1, VolumeThreshold: 1_000_000, Confidence: 0.6,
	})
	if err != nil {
		t.Fatal(err)
	}
	history := []domain.Kline{kline(100, 0), kline(101, 1), kline(102, 2), kline(150, 3)}
	sig := s.Assess(history)
	if sig.Kind != domain.SignalHold {
		t.Fatalf("expected Hold when volume is below threshold, got %v", sig.Kind)
	}
}
