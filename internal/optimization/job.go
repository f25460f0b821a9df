// Package optimization expands a parameter grid into independent backtest
// runs, dispatches them over a fixed-size worker pool, and ranks the
// persisted results. Workers share no in-memory state: each opens its own
// database handle, loads its own kline slice, and persists its run in one
// transaction.
package optimization

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/atlas-quant/futures-backtester/internal/analytics"
	"github.com/atlas-quant/futures-backtester/internal/backtest"
	"github.com/atlas-quant/futures-backtester/internal/execution"
	"github.com/atlas-quant/futures-backtester/internal/risk"
	"github.com/atlas-quant/futures-backtester/internal/strategy"
	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/atlas-quant/futures-backtester/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Metrics registered with Prometheus's default registry in the process that
// runs the Dispatcher. cmd/optimizer does not serve them over HTTP, and
// cmd/server does not import this package, so its /metrics route does not
// include them.
var (
	jobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "optimization_jobs_in_flight",
		Help: "Number of optimization jobs currently dispatching backtests.",
	})
	backtestsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "optimization_backtests_completed_total",
		Help: "Number of backtest runs that completed and persisted successfully.",
	})
	backtestsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "optimization_backtests_failed_total",
		Help: "Number of backtest runs abandoned after a worker-isolated failure.",
	})
	backtestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "optimization_backtest_duration_seconds",
		Help:    "Wall-clock duration of one worker's single backtest run.",
		Buckets: prometheus.DefBuckets,
	})
)

// JobSettings describes one optimization job: the symbol/interval/date
// range to backtest and the strategy whose parameter grid is being swept.
type JobSettings struct {
	Name         string
	Symbol       domain.Symbol
	Interval     string
	StartDate    time.Time
	EndDate      time.Time
	StrategyName string

	StartingCash decimal.Decimal
	Risk         risk.Settings
	Execution    execution.Settings
}

// Dispatcher runs an optimization job's parameter sets over a bounded
// worker pool, with each worker opening its own database handle and
// persisting its run transactionally on completion.
type Dispatcher struct {
	dbPath  string
	cores   int
	logger  *zap.Logger
	factory *strategy.Factory
}

// NewDispatcher builds a Dispatcher. cores bounds concurrent workers;
// dbPath is opened once per worker so connections are never shared.
func NewDispatcher(dbPath string, cores int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cores < 1 {
		cores = 1
	}
	return &Dispatcher{dbPath: dbPath, cores: cores, logger: logger, factory: strategy.NewFactory()}
}

// Run expands the parameter grid, creates the optimization_jobs row, and
// fans the parameter sets out over the worker pool. A single run's
// failure is logged and dropped; it never aborts the rest of the job.
func (d *Dispatcher) Run(ctx context.Context, job JobSettings, parameterGrid map[string]any) (int64, error) {
	indexStore, err := storage.Open(d.dbPath)
	if err != nil {
		return 0, fmt.Errorf("optimization: opening index database: %w", err)
	}
	defer indexStore.Close()

	jobID, err := indexStore.CreateOptimizationJob(ctx, job.Name, time.Now())
	if err != nil {
		return 0, fmt.Errorf("optimization: creating job: %w", err)
	}

	paramSets := ExpandParameterGrid(parameterGrid)
	total := len(paramSets)
	d.logger.Info("optimization: dispatching parameter sets",
		zap.Int("cores", d.cores), zap.Int("total_runs", total), zap.String("strategy", job.StrategyName))

	jobsInFlight.Inc()
	defer jobsInFlight.Dec()

	var completed atomic.Int64
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(d.cores)

	for _, params := range paramSets {
		params := params
		group.Go(func() error {
			start := time.Now()
			err := d.runOne(gctx, jobID, job, params)
			backtestDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				backtestsFailed.Inc()
				d.logger.Error("optimization: a single backtest run failed", zap.Error(err), zap.Any("parameters", params))
			} else {
				backtestsCompleted.Inc()
			}
			n := completed.Add(1)
			if n%10 == 0 || n == int64(total) {
				d.logger.Info("optimization: progress",
					zap.Int64("completed", n), zap.Int("total", total),
					zap.Float64("percent", float64(n)/float64(total)*100))
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return jobID, fmt.Errorf("optimization: job failed: %w", err)
	}
	return jobID, nil
}

// runOne backtests a single parameter set end to end: build strategy,
// load klines, run the driver, persist the result transactionally. Each
// worker gets its own Store so connections are never shared across
// goroutines.
func (d *Dispatcher) runOne(ctx context.Context, jobID int64, job JobSettings, params map[string]any) error {
	store, err := storage.Open(d.dbPath)
	if err != nil {
		return fmt.Errorf("opening worker database handle: %w", err)
	}
	defer store.Close()

	strat, err := d.factory.Create(job.StrategyName, params)
	if err != nil {
		return fmt.Errorf("building strategy: %w", err)
	}

	klines, err := store.GetKlinesByDateRange(ctx, job.Symbol, job.Interval, job.StartDate, job.EndDate)
	if err != nil {
		return fmt.Errorf("loading klines: %w", err)
	}
	if len(klines) < backtest.WarmupBars {
		d.logger.Warn("optimization: insufficient data for backtesting, skipping run",
			zap.Int("klines", len(klines)), zap.Int("required", backtest.WarmupBars))
		return nil
	}

	riskEvaluator := risk.NewEvaluator(job.Risk, d.logger)
	simulator := execution.NewSimulator(job.Execution, d.logger)
	driver := backtest.New(job.Symbol, strat, riskEvaluator, simulator, job.StartingCash, d.logger)

	if err := driver.Run(klines); err != nil {
		return fmt.Errorf("running backtest: %w", err)
	}

	calculator := analytics.NewCalculator()
	report := calculator.Calculate(job.StartingCash, driver.Trades(), driver.EquityCurve())

	jobIDCopy := jobID
	_, err = store.SaveBacktestResult(ctx, storage.RunRecord{
		JobID:        &jobIDCopy,
		StrategyName: job.StrategyName,
		Symbol:       job.Symbol,
		Interval:     job.Interval,
		StartDate:    job.StartDate,
		EndDate:      job.EndDate,
		Parameters:   params,
	}, report, driver.Trades(), driver.EquityCurve())
	if err != nil {
		return fmt.Errorf("saving backtest result: %w", err)
	}
	return nil
}
