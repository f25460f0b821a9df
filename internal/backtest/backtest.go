// Package backtest drives a strategy, risk evaluator and executor
// bar-by-bar over a kline history and produces the trade log and equity
// curve an analytics.Calculator turns into a PerformanceReport.
package backtest

import (
	"github.com/atlas-quant/futures-backtester/internal/execution"
	"github.com/atlas-quant/futures-backtester/internal/portfolio"
	"github.com/atlas-quant/futures-backtester/internal/risk"
	"github.com/atlas-quant/futures-backtester/internal/strategy"
	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WarmupBars is both the history window handed to the strategy on every
// bar and the number of leading bars consumed solely to build state; no
// orders are emitted during warmup.
const WarmupBars = 100

// Driver runs one symbol's historical backtest over one strategy
// instance. The per-bar pipeline is strictly sequential: record equity,
// check the stop-loss, assess the strategy, evaluate risk, execute.
type Driver struct {
	symbol    domain.Symbol
	strategy  strategy.Strategy
	risk      *risk.Evaluator
	executor  *execution.Simulator
	portfolio *portfolio.Portfolio
	logger    *zap.Logger

	trades      []domain.Trade
	equityCurve []domain.EquityPoint
}

// New builds a Driver over a single symbol, strategy instance, risk
// evaluator and execution simulator, seeded with its own portfolio.
func New(
	symbol domain.Symbol,
	strat strategy.Strategy,
	riskEvaluator *risk.Evaluator,
	executor *execution.Simulator,
	startingCash decimal.Decimal,
	logger *zap.Logger,
) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		symbol:    symbol,
		strategy:  strat,
		risk:      riskEvaluator,
		executor:  executor,
		portfolio: portfolio.New(startingCash),
		logger:    logger,
	}
}

// Trades returns the closed trades logged during Run.
func (d *Driver) Trades() []domain.Trade { return d.trades }

// EquityCurve returns the per-bar cash samples logged during Run.
func (d *Driver) EquityCurve() []domain.EquityPoint { return d.equityCurve }

// Portfolio exposes the underlying portfolio for inspection after Run.
func (d *Driver) Portfolio() *portfolio.Portfolio { return d.portfolio }

// Run executes the sequential per-bar pipeline over klines, which must
// already be in ascending open-time order for a single symbol.
func (d *Driver) Run(klines []domain.Kline) error {
	if len(klines) <= WarmupBars {
		d.logger.Warn("backtest: history shorter than warmup, nothing to run",
			zap.Int("klines", len(klines)), zap.Int("warmup", WarmupBars))
		return nil
	}

	for i := WarmupBars; i < len(klines); i++ {
		currentKline := klines[i]
		historySlice := klines[i-WarmupBars : i]

		d.equityCurve = append(d.equityCurve, domain.EquityPoint{
			Timestamp: currentKline.OpenTime,
			Value:     d.portfolio.Cash(),
		})

		if openPosition, open := d.portfolio.Position(d.symbol); open {
			var stopTriggered bool
			if openPosition.Side == domain.SideLong {
				stopTriggered = currentKline.Low.LessThanOrEqual(openPosition.StopLossPrice)
			} else {
				stopTriggered = currentKline.High.GreaterThanOrEqual(openPosition.StopLossPrice)
			}

			if stopTriggered {
				closeOrder := domain.OrderRequest{
					Symbol:            openPosition.Symbol,
					Side:              openPosition.Side.Opposite(),
					Quantity:          openPosition.Quantity,
					Leverage:          openPosition.Leverage,
					StopLossPrice:     decimal.Zero,
					OriginatingSignal: domain.CloseSignal,
				}
				exec, err := d.executor.FillClose(closeOrder, openPosition.StopLossPrice)
				if err != nil {
					d.logger.Error("backtest: stop-loss execution failed", zap.Error(err))
					continue
				}
				trade, err := d.portfolio.ApplyClose(exec, currentKline.OpenTime, 0)
				if err != nil {
					d.logger.Error("backtest: stop-loss close failed to apply", zap.Error(err))
					continue
				}
				d.trades = append(d.trades, trade)
				d.logger.Info("backtest: stop-loss triggered",
					zap.String("symbol", string(d.symbol)), zap.String("sl_price", openPosition.StopLossPrice.String()))
				continue
			}
		}

		signal := d.strategy.Assess(historySlice)
		if signal.Kind == domain.SignalHold {
			continue
		}

		portfolioValue := d.portfolio.Cash()
		var openPositionPtr *domain.Position
		if pos, open := d.portfolio.Position(d.symbol); open {
			openPositionPtr = &pos
		}
		calculationKline := klines[i-1]

		orderRequest, err := d.risk.Evaluate(signal, d.symbol, portfolioValue, calculationKline, openPositionPtr)
		if err != nil {
			if risk.IsVetoed(err) {
				d.logger.Warn("backtest: risk evaluator vetoed signal", zap.Error(err))
			} else {
				d.logger.Error("backtest: risk evaluation failed", zap.Error(err))
			}
			continue
		}
		if orderRequest == nil {
			continue
		}

		if orderRequest.OriginatingSignal.Kind == domain.SignalClose {
			exec, err := d.executor.FillClose(*orderRequest, calculationKline.Close)
			if err != nil {
				d.logger.Error("backtest: close execution failed", zap.Error(err))
				continue
			}
			trade, err := d.portfolio.ApplyClose(exec, calculationKline.OpenTime, signal.Confidence)
			if err != nil {
				d.logger.Error("backtest: close failed to apply", zap.Error(err))
				continue
			}
			d.trades = append(d.trades, trade)
			d.logger.Info("backtest: order executed and trade logged", zap.String("symbol", string(d.symbol)))
			continue
		}

		exec, err := d.executor.FillEntry(*orderRequest, calculationKline.Close, d.portfolio.Cash())
		if err != nil {
			d.logger.Warn("backtest: entry execution vetoed", zap.Error(err))
			continue
		}
		if err := d.portfolio.ApplyEntry(exec, orderRequest.Leverage, orderRequest.StopLossPrice, calculationKline.OpenTime); err != nil {
			d.logger.Error("backtest: entry failed to apply", zap.Error(err))
			continue
		}
		d.logger.Info("backtest: entry order executed", zap.String("symbol", string(d.symbol)), zap.String("side", string(orderRequest.Side)))
	}

	return nil
}
