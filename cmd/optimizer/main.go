// Package main provides the CLI entry point for running a grid-search
// optimization job over a strategy's parameter space.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlas-quant/futures-backtester/internal/execution"
	"github.com/atlas-quant/futures-backtester/internal/optimization"
	"github.com/atlas-quant/futures-backtester/internal/risk"
	"github.com/atlas-quant/futures-backtester/pkg/config"
	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/atlas-quant/futures-backtester/pkg/logging"
	"github.com/atlas-quant/futures-backtester/pkg/storage"
)

func main() {
	configDir := flag.String("config", "./config", "Configuration directory")
	gridPath := flag.String("grid", "./config/optimizer.yaml", "Optimizer grid document")
	topN := flag.Int("top", 10, "Number of ranked results to persist and print")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "optimizer: loading config:", err)
		os.Exit(1)
	}
	optCfg, err := config.LoadOptimizerConfig(*gridPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "optimizer: loading grid:", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg.App.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	start, err := parseDate(optCfg.Job.StartDate)
	if err != nil {
		logger.Fatal("optimizer: parsing job start_date", zap.Error(err))
	}
	end, err := parseDate(optCfg.Job.EndDate)
	if err != nil {
		logger.Fatal("optimizer: parsing job end_date", zap.Error(err))
	}

	parameterGrid, err := optCfg.ParamsForJob()
	if err != nil {
		logger.Fatal("optimizer: resolving parameter grid", zap.Error(err))
	}

	jobName := optCfg.Job.Name
	if jobName == "" {
		jobName = fmt.Sprintf("%s-%s", optCfg.Job.StrategyToOptimize, uuid.New().String())
	}

	job := optimization.JobSettings{
		Name:         jobName,
		Symbol:       domain.Symbol(optCfg.Job.Symbol),
		Interval:     optCfg.Job.Interval,
		StartDate:    start,
		EndDate:      end,
		StrategyName: optCfg.Job.StrategyToOptimize,
		StartingCash: cfg.Backtest.StartingCash,
		Risk: risk.Settings{
			RiskPerTradePercent:        cfg.SimpleRiskManager.RiskPerTradePercent,
			StopLossPercent:            cfg.SimpleRiskManager.StopLossPercent,
			MinimumConfidenceThreshold: cfg.SimpleRiskManager.MinimumConfidenceThreshold,
			Leverage:                   cfg.SimpleRiskManager.Leverage,
		},
		Execution: execution.Settings{
			MakerFeePercent: cfg.Simulation.MakerFee,
			TakerFeePercent: cfg.Simulation.TakerFee,
			SlippagePercent: cfg.Simulation.SlippagePercent,
		},
	}

	dispatcher := optimization.NewDispatcher(cfg.Database.Path, cfg.App.OptimizerCores, logger)
	ctx := context.Background()
	jobID, err := dispatcher.Run(ctx, job, parameterGrid)
	if err != nil {
		logger.Fatal("optimizer: job failed", zap.Error(err))
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("optimizer: opening database", zap.Error(err))
	}
	defer store.Close()

	candidates, err := store.GetReportsForJob(ctx, jobID)
	if err != nil {
		logger.Fatal("optimizer: loading job results", zap.Error(err))
	}

	rankedCandidates := make([]optimization.RankedCandidate, len(candidates))
	for i, c := range candidates {
		rankedCandidates[i] = optimization.RankedCandidate{RunID: c.RunID, Parameters: c.Parameters, Report: c.Report}
	}
	ranked := optimization.Rank(rankedCandidates)
	if len(ranked) > *topN {
		ranked = ranked[:*topN]
	}

	if err := store.SaveOptimizationSummary(ctx, jobID, ranked); err != nil {
		logger.Fatal("optimizer: saving summary", zap.Error(err))
	}

	logger.Info("optimizer: job complete",
		zap.Int64("job_id", jobID), zap.Int("total_runs", len(candidates)), zap.Int("ranked_survivors", len(ranked)))

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ranked); err != nil {
		logger.Fatal("optimizer: encoding results", zap.Error(err))
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
