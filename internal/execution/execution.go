// Package execution simulates order fills against a single closing price
// per bar: entry fills and close fills each apply side-asymmetric slippage
// plus a flat taker fee, with no order-book or intra-bar path modeling.
package execution

import (
	"fmt"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InsufficientCashError is returned when the portfolio cannot cover the fee
// on an entry fill.
type InsufficientCashError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientCashError) Error() string {
	return fmt.Sprintf("execution: insufficient cash: need %s, have %s", e.Required, e.Available)
}

// Settings configures the Simulator. Every simulated fill crosses the
// spread, so the taker rate is charged on both entries and closes; the
// maker rate is carried for parity with the live fee schedule.
type Settings struct {
	MakerFeePercent float64
	TakerFeePercent float64
	SlippagePercent float64
}

// Simulator fills orders against a reference price: entries pay adverse
// slippage in the direction of the order, closes pay the mirror.
type Simulator struct {
	settings Settings
	logger   *zap.Logger
}

// NewSimulator builds a Simulator.
func NewSimulator(settings Settings, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{settings: settings, logger: logger}
}

// FillEntry opens a new position from an OrderRequest, applying entry-side
// slippage and a taker fee charged against cash.
func (s *Simulator) FillEntry(
	req domain.OrderRequest,
	referencePrice decimal.Decimal,
	cash decimal.Decimal,
) (domain.Execution, error) {
	slippage := decimal.NewFromFloat(s.settings.SlippagePercent)
	var execPrice decimal.Decimal
	if req.Side == domain.SideLong {
		execPrice = referencePrice.Mul(decimal.NewFromInt(1).Add(slippage))
	} else {
		execPrice = referencePrice.Mul(decimal.NewFromInt(1).Sub(slippage))
	}

	positionValue := execPrice.Mul(req.Quantity)
	fee := positionValue.Mul(decimal.NewFromFloat(s.settings.TakerFeePercent))

	if cash.LessThan(fee) {
		s.logger.Warn("execution: entry vetoed, insufficient cash",
			zap.String("symbol", string(req.Symbol)), zap.String("fee", fee.String()), zap.String("cash", cash.String()))
		return domain.Execution{}, &InsufficientCashError{Required: fee, Available: cash}
	}

	return domain.Execution{
		Symbol:   req.Symbol,
		Side:     req.Side,
		Price:    execPrice,
		Quantity: req.Quantity,
		Fee:      fee,
		Request:  req,
	}, nil
}

// FillClose closes an existing position, applying close-side slippage (the
// mirror of entry slippage) and a taker fee.
func (s *Simulator) FillClose(
	req domain.OrderRequest,
	referencePrice decimal.Decimal,
) (domain.Execution, error) {
	slippage := decimal.NewFromFloat(s.settings.SlippagePercent)
	var execPrice decimal.Decimal
	// req.Side is the opposite of the position's side, so a long position's
	// close order carries SideShort and must apply the long-close mirror.
	if req.Side == domain.SideShort {
		execPrice = referencePrice.Mul(decimal.NewFromInt(1).Sub(slippage))
	} else {
		execPrice = referencePrice.Mul(decimal.NewFromInt(1).Add(slippage))
	}

	positionValue := execPrice.Mul(req.Quantity)
	fee := positionValue.Mul(decimal.NewFromFloat(s.settings.TakerFeePercent))

	return domain.Execution{
		Symbol:   req.Symbol,
		Side:     req.Side,
		Price:    execPrice,
		Quantity: req.Quantity,
		Fee:      fee,
		Request:  req,
	}, nil
}
