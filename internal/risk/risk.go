// Package risk implements the fractional-risk, fixed-stop-loss evaluator
// that maps a Signal plus portfolio/price context to a sized OrderRequest
// or a veto.
package risk

import (
	"errors"
	"fmt"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// VetoError is returned when the risk layer rejects an otherwise valid
// signal. Callers should log at warn and continue processing the next bar.
type VetoError struct {
	Reason string
}

func (e *VetoError) Error() string { return fmt.Sprintf("risk: vetoed: %s", e.Reason) }

// IsVetoed reports whether err is a VetoError.
func IsVetoed(err error) bool {
	var v *VetoError
	return errors.As(err, &v)
}

// Settings configures the Evaluator.
type Settings struct {
	RiskPerTradePercent       float64
	StopLossPercent           float64
	MinimumConfidenceThreshold float64
	Leverage                  int
}

// Evaluator sizes entries as a fixed fraction of portfolio value scaled
// by signal confidence, with a fixed-percent stop loss.
type Evaluator struct {
	settings Settings
	logger   *zap.Logger
}

// NewEvaluator builds an Evaluator.
func NewEvaluator(settings Settings, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{settings: settings, logger: logger}
}

// Evaluate maps a signal to a sized OrderRequest, nil (no action), or a
// VetoError.
func (e *Evaluator) Evaluate(
	signal domain.Signal,
	symbol domain.Symbol,
	portfolioValue decimal.Decimal,
	currentKline domain.Kline,
	openPosition *domain.Position,
) (*domain.OrderRequest, error) {
	switch signal.Kind {
	case domain.SignalHold:
		return nil, nil

	case domain.SignalClose:
		if openPosition == nil {
			return nil, nil
		}
		return &domain.OrderRequest{
			Symbol:            openPosition.Symbol,
			Side:              openPosition.Side.Opposite(),
			Quantity:          openPosition.Quantity,
			Leverage:          openPosition.Leverage,
			StopLossPrice:     decimal.Zero,
			OriginatingSignal: signal,
		}, nil
	}

	// Entry signal (GoLong or GoShort).
	if openPosition != nil {
		e.logger.Warn("risk: signal vetoed, position already open", zap.String("symbol", string(symbol)))
		return nil, &VetoError{Reason: "a position is already open for this symbol"}
	}

	if signal.Confidence < e.settings.MinimumConfidenceThreshold {
		e.logger.Warn("risk: signal vetoed, confidence below threshold",
			zap.Float64("confidence", signal.Confidence),
			zap.Float64("threshold", e.settings.MinimumConfidenceThreshold),
		)
		return nil, &VetoError{Reason: fmt.Sprintf("signal confidence (%.2f) is below threshold (%.2f)", signal.Confidence, e.settings.MinimumConfidenceThreshold)}
	}

	side := signal.Side()
	entryPrice := currentKline.Close

	stopLossPct := decimal.NewFromFloat(e.settings.StopLossPercent)
	var slPrice decimal.Decimal
	if side == domain.SideLong {
		slPrice = entryPrice.Mul(decimal.NewFromInt(1).Sub(stopLossPct))
	} else {
		slPrice = entryPrice.Mul(decimal.NewFromInt(1).Add(stopLossPct))
	}

	riskPerTrade := decimal.NewFromFloat(e.settings.RiskPerTradePercent)
	amountToRisk := portfolioValue.Mul(riskPerTrade)
	scaledAmountToRisk := amountToRisk.Mul(decimal.NewFromFloat(signal.Confidence))

	if stopLossPct.IsZero() {
		return nil, fmt.Errorf("risk: stop_loss_percent is zero, cannot size position")
	}
	notional := scaledAmountToRisk.Div(stopLossPct)
	quantity := notional.Div(entryPrice)

	return &domain.OrderRequest{
		Symbol:            symbol,
		Side:              side,
		Quantity:          quantity,
		Leverage:          e.settings.Leverage,
		StopLossPrice:     slPrice,
		OriginatingSignal: signal,
	}, nil
}
