package optimization

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/atlas-quant/futures-backtester/internal/execution"
	"github.com/atlas-quant/futures-backtester/internal/risk"
	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/atlas-quant/futures-backtester/pkg/storage"
	"github.com/shopspring/decimal"
)

func seedKlines(t *testing.T, store *storage.Store, n int, base time.Time) {
	t.Helper()
	price := decimal.NewFromInt(100)
	klines := make([]domain.Kline, n)
	for i := range klines {
		open := base.Add(time.Duration(i) * time.Hour)
		klines[i] = domain.Kline{
			Symbol:    "BTCUSDT",
			Interval:  "1h",
			OpenTime:  open,
			CloseTime: open.Add(time.Hour),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    decimal.NewFromInt(1),
		}
	}
	if err := store.InsertKlines(context.Background(), klines); err != nil {
		t.Fatalf("seeding klines: %v", err)
	}
}

func TestDispatcherRunPersistsOneRunPerParameterSet(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "opt.db")
	store, err := storage.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seedKlines(t, store, 120, base)

	job := JobSettings{
		Name:         "grid-smoke",
		Symbol:       "BTCUSDT",
		Interval:     "1h",
		StartDate:    base,
		EndDate:      base.Add(200 * time.Hour),
		StrategyName: "ma_crossover",
		StartingCash: decimal.NewFromInt(10000),
		Risk:         risk.Settings{RiskPerTradePercent: 0.01, StopLossPercent: 0.02, MinimumConfidenceThreshold: 0.5, Leverage: 1},
		Execution:    execution.Settings{TakerFeePercent: 0.0004, SlippagePercent: 0.0005},
	}
	grid := map[string]any{
		"fast_period": map[string]any{"start": 2, "end": 4, "step": 2},
		"slow_period": 10,
		"confidence":  0.9,
	}

	d := NewDispatcher(dbPath, 2, nil)
	jobID, err := d.Run(context.Background(), job, grid)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	reports, err := store.GetReportsForJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetReportsForJob: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected one persisted run per parameter set (2), got %d", len(reports))
	}
	for _, r := range reports {
		// Flat closes never cross, so every run finishes with zero trades
		// but still persists its report row.
		if r.Report.TotalTrades != 0 {
			t.Fatalf("expected zero trades on a flat series, got %d", r.Report.TotalTrades)
		}
	}
}

func TestDispatcherRunSkipsWhenHistoryTooShort(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "opt-short.db")
	store, err := storage.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seedKlines(t, store, 50, base)

	job := JobSettings{
		Name:         "too-short",
		Symbol:       "BTCUSDT",
		Interval:     "1h",
		StartDate:    base,
		EndDate:      base.Add(200 * time.Hour),
		StrategyName: "ma_crossover",
		StartingCash: decimal.NewFromInt(10000),
		Risk:         risk.Settings{RiskPerTradePercent: 0.01, StopLossPercent: 0.02, MinimumConfidenceThreshold: 0.5, Leverage: 1},
	}
	grid := map[string]any{"fast_period": 5, "slow_period": 20, "confidence": 0.9}

	d := NewDispatcher(dbPath, 1, nil)
	jobID, err := d.Run(context.Background(), job, grid)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	reports, err := store.GetReportsForJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetReportsForJob: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("expected no persisted runs below the minimum history, got %d", len(reports))
	}
}
