// Package analytics turns a closed trade log and an equity curve into a
// scalar performance report: P&L, win rate, profit factor, drawdown,
// risk-adjusted ratios and confidence-bucketed sub-reports.
package analytics

import (
	"math"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/shopspring/decimal"
)

// Calculator computes a PerformanceReport from a backtest's trades and
// equity curve. Monetary metrics stay decimal; ratios are float64, and
// division by zero yields 0 rather than NaN except where a +Inf sentinel
// is meaningful (profit factor and Sortino with no losses).
type Calculator struct{}

// NewCalculator builds a Calculator. It carries no state.
func NewCalculator() *Calculator { return &Calculator{} }

// Calculate computes the full report. An empty trade log returns a
// zero-value report (with its confidence map initialized) rather than an
// error.
func (c *Calculator) Calculate(
	initialCapital decimal.Decimal,
	trades []domain.Trade,
	equityCurve []domain.EquityPoint,
) domain.PerformanceReport {
	report := domain.NewPerformanceReport()
	if len(trades) == 0 {
		return report
	}

	report.TotalTrades = len(trades)

	var netPnL decimal.Decimal
	for _, t := range trades {
		netPnL = netPnL.Add(t.PnL)
	}
	report.NetPnLAbsolute = netPnL
	if initialCapital.GreaterThan(decimal.Zero) {
		pct, _ := netPnL.Div(initialCapital).Float64()
		report.NetPnLPercentage = pct * 100
	}

	var winningTrades, losingTrades []domain.Trade
	for _, t := range trades {
		if t.PnL.GreaterThan(decimal.Zero) {
			winningTrades = append(winningTrades, t)
		} else if t.PnL.LessThan(decimal.Zero) {
			losingTrades = append(losingTrades, t)
		}
	}
	report.WinRate = float64(len(winningTrades)) / float64(report.TotalTrades) * 100

	var grossProfit, grossLoss decimal.Decimal
	for _, t := range winningTrades {
		grossProfit = grossProfit.Add(t.PnL)
	}
	for _, t := range losingTrades {
		grossLoss = grossLoss.Add(t.PnL)
	}
	grossLoss = grossLoss.Abs()
	if grossLoss.GreaterThan(decimal.Zero) {
		report.ProfitFactor, _ = grossProfit.Div(grossLoss).Float64()
	} else {
		report.ProfitFactor = math.Inf(1)
	}

	// Max drawdown, absolute and percentage.
	peakEquity := initialCapital
	var maxDrawdown decimal.Decimal
	for _, pt := range equityCurve {
		if pt.Value.GreaterThan(peakEquity) {
			peakEquity = pt.Value
		}
		drawdown := peakEquity.Sub(pt.Value)
		if drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
		}
	}
	report.MaxDrawdownAbsolute = maxDrawdown
	if peakEquity.GreaterThan(decimal.Zero) {
		pct, _ := maxDrawdown.Div(peakEquity).Float64()
		report.MaxDrawdownPercentage = pct * 100
	}

	returns := periodReturns(equityCurve)

	// Sharpe ratio (periodic, not annualized).
	if len(returns) > 0 {
		meanReturn := mean(returns)
		sd := stdDevAroundMean(returns, meanReturn)
		if sd > 0 {
			report.SharpeRatio = meanReturn / sd
		}
	}

	// Sortino ratio: downside deviation measured around zero, not the mean.
	if len(returns) > 0 {
		meanReturn := mean(returns)
		var negative []float64
		for _, r := range returns {
			if r < 0 {
				negative = append(negative, r)
			}
		}
		downsideDeviation := stdDevAroundMean(negative, 0)
		if downsideDeviation > 0 {
			report.SortinoRatio = meanReturn / downsideDeviation
		} else {
			report.SortinoRatio = math.Inf(1)
		}
	}

	// Calmar ratio: net P&L percentage over max drawdown percentage. A
	// proper implementation needs the full backtest duration to annualize;
	// this approximates a one-year backtest.
	if report.MaxDrawdownPercentage > 0 {
		report.CalmarRatio = report.NetPnLPercentage / report.MaxDrawdownPercentage
	}

	var totalDurationSecs float64
	for _, t := range trades {
		totalDurationSecs += t.ExitTime.Sub(t.EntryTime).Seconds()
	}
	report.AvgTradeDurationSecs = totalDurationSecs / float64(len(trades))

	report.Expectancy = netPnL.Div(decimal.NewFromInt(int64(len(trades))))

	report.ConfidencePerformance = confidenceBuckets(trades)

	report.LAROM = larom(trades, netPnL)

	// Funding P&L is a placeholder until funding-rate data is logged
	// alongside trades.
	report.FundingPnL = decimal.Zero

	report.DrawdownDurationSecs = drawdownDuration(equityCurve, initialCapital)

	return report
}

func periodReturns(equityCurve []domain.EquityPoint) []float64 {
	if len(equityCurve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		prev := equityCurve[i-1].Value
		cur := equityCurve[i].Value
		if prev.IsZero() {
			returns = append(returns, 0)
			continue
		}
		r, _ := cur.Div(prev).Sub(decimal.NewFromInt(1)).Float64()
		returns = append(returns, r)
	}
	return returns
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDevAroundMean(xs []float64, center float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var variance float64
	for _, x := range xs {
		d := x - center
		variance += d * d
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance)
}

func confidenceBucket(confidence float64) string {
	pct := int(confidence * 100)
	switch {
	case pct >= 0 && pct <= 59:
		return "0-59%"
	case pct >= 60 && pct <= 69:
		return "60-69%"
	case pct >= 70 && pct <= 79:
		return "70-79%"
	case pct >= 80 && pct <= 89:
		return "80-89%"
	case pct >= 90 && pct <= 100:
		return "90-100%"
	default:
		return "Other"
	}
}

func confidenceBuckets(trades []domain.Trade) map[string]domain.PerformanceReport {
	grouped := make(map[string][]domain.Trade)
	for _, t := range trades {
		bucket := confidenceBucket(t.SignalConfidence)
		grouped[bucket] = append(grouped[bucket], t)
	}

	out := make(map[string]domain.PerformanceReport, len(grouped))
	for bucket, bucketTrades := range grouped {
		sub := domain.NewPerformanceReport()
		sub.TotalTrades = len(bucketTrades)
		var pnl decimal.Decimal
		wins := 0
		for _, t := range bucketTrades {
			pnl = pnl.Add(t.PnL)
			if t.PnL.GreaterThan(decimal.Zero) {
				wins++
			}
		}
		sub.NetPnLAbsolute = pnl
		sub.WinRate = float64(wins) / float64(sub.TotalTrades) * 100
		out[bucket] = sub
	}
	return out
}

// larom approximates a Leverage-Adjusted Return on Margin: margin used per
// trade is entry notional divided by leverage, averaged across trades.
func larom(trades []domain.Trade, netPnL decimal.Decimal) float64 {
	if len(trades) == 0 {
		return 0
	}
	var avgLeverage float64
	var totalMargin decimal.Decimal
	for _, t := range trades {
		leverage := t.Leverage
		if leverage < 1 {
			leverage = 1
		}
		avgLeverage += float64(leverage)
		margin := t.EntryPrice.Mul(t.Quantity).Div(decimal.NewFromInt(int64(leverage)))
		totalMargin = totalMargin.Add(margin)
	}
	avgLeverage /= float64(len(trades))
	avgMargin := totalMargin.Div(decimal.NewFromInt(int64(len(trades))))

	if avgMargin.LessThanOrEqual(decimal.Zero) || avgLeverage <= 0 {
		return 0
	}
	denom := avgMargin.Mul(decimal.NewFromFloat(avgLeverage))
	v, _ := netPnL.Div(denom).Float64()
	return v
}

func drawdownDuration(equityCurve []domain.EquityPoint, initialCapital decimal.Decimal) int64 {
	var inDrawdown bool
	var drawdownStart int64
	var maxDuration int64
	peak := initialCapital

	for _, pt := range equityCurve {
		if pt.Value.GreaterThanOrEqual(peak) {
			if inDrawdown {
				duration := pt.Timestamp.Unix() - drawdownStart
				if duration > maxDuration {
					maxDuration = duration
				}
				inDrawdown = false
			}
			peak = pt.Value
		} else if !inDrawdown {
			inDrawdown = true
			drawdownStart = pt.Timestamp.Unix()
		}
	}
	// A drawdown still open at the last sample counts up to that sample.
	if inDrawdown {
		duration := equityCurve[len(equityCurve)-1].Timestamp.Unix() - drawdownStart
		if duration > maxDuration {
			maxDuration = duration
		}
	}
	return maxDuration
}
