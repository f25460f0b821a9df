// Package main provides the CLI entry point for running a single backtest
// and printing its performance report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-quant/futures-backtester/internal/analytics"
	"github.com/atlas-quant/futures-backtester/internal/backtest"
	"github.com/atlas-quant/futures-backtester/internal/execution"
	"github.com/atlas-quant/futures-backtester/internal/risk"
	"github.com/atlas-quant/futures-backtester/internal/strategy"
	"github.com/atlas-quant/futures-backtester/pkg/config"
	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/atlas-quant/futures-backtester/pkg/logging"
	"github.com/atlas-quant/futures-backtester/pkg/storage"
)

func main() {
	configDir := flag.String("config", "./config", "Configuration directory")
	startFlag := flag.String("start", "", "Backtest start date, RFC3339 or YYYY-MM-DD (defaults to earliest available kline)")
	endFlag := flag.String("end", "", "Backtest end date, RFC3339 or YYYY-MM-DD (defaults to latest available kline)")
	save := flag.Bool("save", false, "Persist the run, report, trades and equity curve to the database")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "backtester: loading config:", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg.App.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("backtester: opening database", zap.Error(err))
	}
	defer store.Close()

	start, end, err := resolveDateRange(*startFlag, *endFlag)
	if err != nil {
		logger.Fatal("backtester: parsing date range", zap.Error(err))
	}

	ctx := context.Background()
	symbol := domain.Symbol(cfg.Backtest.Symbol)
	klines, err := store.GetKlinesByDateRange(ctx, symbol, cfg.Backtest.Interval, start, end)
	if err != nil {
		logger.Fatal("backtester: loading klines", zap.Error(err))
	}
	if len(klines) <= backtest.WarmupBars {
		logger.Fatal("backtester: not enough history to run a backtest",
			zap.Int("klines", len(klines)), zap.Int("required", backtest.WarmupBars+1))
	}

	strategyParams := cfg.Strategies.ParamsFor(cfg.Backtest.StrategyName)
	if strategyParams == nil {
		logger.Fatal("backtester: no parameter block configured for strategy",
			zap.String("strategy", cfg.Backtest.StrategyName))
	}

	factory := strategy.NewFactory()
	strat, err := factory.Create(cfg.Backtest.StrategyName, strategyParams)
	if err != nil {
		logger.Fatal("backtester: building strategy", zap.Error(err))
	}

	riskEvaluator := risk.NewEvaluator(risk.Settings{
		RiskPerTradePercent:        cfg.SimpleRiskManager.RiskPerTradePercent,
		StopLossPercent:            cfg.SimpleRiskManager.StopLossPercent,
		MinimumConfidenceThreshold: cfg.SimpleRiskManager.MinimumConfidenceThreshold,
		Leverage:                   cfg.SimpleRiskManager.Leverage,
	}, logger)
	simulator := execution.NewSimulator(execution.Settings{
		MakerFeePercent: cfg.Simulation.MakerFee,
		TakerFeePercent: cfg.Simulation.TakerFee,
		SlippagePercent: cfg.Simulation.SlippagePercent,
	}, logger)

	driver := backtest.New(symbol, strat, riskEvaluator, simulator, cfg.Backtest.StartingCash, logger)
	if err := driver.Run(klines); err != nil {
		logger.Fatal("backtester: run failed", zap.Error(err))
	}

	calculator := analytics.NewCalculator()
	report := calculator.Calculate(cfg.Backtest.StartingCash, driver.Trades(), driver.EquityCurve())

	if *save {
		runID, err := store.SaveBacktestResult(ctx, storage.RunRecord{
			StrategyName: cfg.Backtest.StrategyName,
			Symbol:       symbol,
			Interval:     cfg.Backtest.Interval,
			StartDate:    start,
			EndDate:      end,
			Parameters:   strategyParams,
		}, report, driver.Trades(), driver.EquityCurve())
		if err != nil {
			logger.Fatal("backtester: saving result", zap.Error(err))
		}
		logger.Info("backtester: run saved", zap.Int64("run_id", runID))
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		logger.Fatal("backtester: encoding report", zap.Error(err))
	}
}

func resolveDateRange(startFlag, endFlag string) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if endFlag != "" {
		parsed, err := parseDate(endFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing -end: %w", err)
		}
		end = parsed
	}

	start := time.Unix(0, 0).UTC()
	if startFlag != "" {
		parsed, err := parseDate(startFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing -start: %w", err)
		}
		start = parsed
	}
	return start, end, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
