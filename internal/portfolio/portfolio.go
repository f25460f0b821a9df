// Package portfolio tracks cash and at most one open position per symbol.
// There is no pyramiding and no portfolio margin: an entry fill can only
// happen when the symbol has no open position, and the portfolio is
// mutated only by the executor applying a fill.
package portfolio

import (
	"fmt"
	"time"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/shopspring/decimal"
)

// Portfolio holds cash and the open-position map. Positions are inserted
// whole on entry and removed whole on close; there is no averaging into
// an existing position.
type Portfolio struct {
	cash      decimal.Decimal
	positions map[domain.Symbol]domain.Position
}

// New builds a Portfolio seeded with the given starting cash.
func New(startingCash decimal.Decimal) *Portfolio {
	return &Portfolio{cash: startingCash, positions: make(map[domain.Symbol]domain.Position)}
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() decimal.Decimal { return p.cash }

// Position returns the open position for a symbol, if any.
func (p *Portfolio) Position(symbol domain.Symbol) (domain.Position, bool) {
	pos, ok := p.positions[symbol]
	return pos, ok
}

// ApplyEntry opens a new position from an execution, debiting the fee from
// cash. It errors if a position is already open for the symbol (the
// backtest driver should not reach this path since the risk evaluator
// already vetoes it, but the guard keeps the invariant enforced at the
// single place state actually mutates).
func (p *Portfolio) ApplyEntry(exec domain.Execution, leverage int, stopLossPrice decimal.Decimal, entryTime time.Time) error {
	if _, open := p.positions[exec.Symbol]; open {
		return fmt.Errorf("portfolio: position already open for %s", exec.Symbol)
	}
	p.cash = p.cash.Sub(exec.Fee)
	p.positions[exec.Symbol] = domain.Position{
		Symbol:        exec.Symbol,
		Side:          exec.Side,
		Quantity:      exec.Quantity,
		EntryPrice:    exec.Price,
		EntryFee:      exec.Fee,
		Leverage:      leverage,
		StopLossPrice: stopLossPrice,
		EntryTime:     entryTime,
	}
	return nil
}

// ApplyClose closes the open position for a symbol, crediting the net P&L
// (price delta minus the closing fee) to cash, and returns the Trade the
// closed round-trip produced. Trade.Fees sums the entry fee paid at open
// and the closing execution's fee, matching the trade-logging formula.
// It errors if no position is open.
func (p *Portfolio) ApplyClose(exec domain.Execution, exitTime time.Time, closingConfidence float64) (domain.Trade, error) {
	pos, open := p.positions[exec.Symbol]
	if !open {
		return domain.Trade{}, fmt.Errorf("portfolio: no open position for %s", exec.Symbol)
	}

	var pnl decimal.Decimal
	priceDelta := exec.Price.Sub(pos.EntryPrice)
	if pos.Side == domain.SideLong {
		pnl = priceDelta.Mul(pos.Quantity)
	} else {
		pnl = priceDelta.Mul(pos.Quantity).Neg()
	}
	p.cash = p.cash.Add(pnl).Sub(exec.Fee)
	delete(p.positions, exec.Symbol)

	totalFees := pos.EntryFee.Add(exec.Fee)

	// Trade.PnL is the gross price-delta pnl; fees are tracked separately in
	// Trade.Fees so sum(pnl) - sum(fees) reconciles against the cash delta
	// (the netPnl credited to cash above already nets the closing fee).
	return domain.Trade{
		Symbol:           exec.Symbol,
		Side:             pos.Side,
		EntryTime:        pos.EntryTime,
		ExitTime:         exitTime,
		EntryPrice:       pos.EntryPrice,
		ExitPrice:        exec.Price,
		Quantity:         pos.Quantity,
		PnL:              pnl,
		Fees:             totalFees,
		SignalConfidence: closingConfidence,
		Leverage:         pos.Leverage,
	}, nil
}
