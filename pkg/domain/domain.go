// Package domain holds the core value types shared across the backtesting
// and optimization engine: klines, signals, orders, positions, executions,
// trades, equity points and performance reports.
package domain

import (
	"encoding/json"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Symbol identifies a tradable instrument, e.g. "BTCUSDT".
type Symbol string

// Side is the direction of a position or order.
type Side string

const (
	SideLong  Side = "Long"
	SideShort Side = "Short"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Kline is a single OHLCV bar for a symbol/interval.
type Kline struct {
	Symbol    Symbol
	Interval  string
	OpenTime  time.Time
	CloseTime time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// SignalKind tags the variant held by a Signal.
type SignalKind int

const (
	SignalHold SignalKind = iota
	SignalClose
	SignalGoLong
	SignalGoShort
)

func (k SignalKind) String() string {
	switch k {
	case SignalHold:
		return "hold"
	case SignalClose:
		return "close"
	case SignalGoLong:
		return "go_long"
	case SignalGoShort:
		return "go_short"
	default:
		return "unknown"
	}
}

// Signal is the tagged union a Strategy emits on every bar. Confidence is
// only meaningful for SignalGoLong/SignalGoShort.
type Signal struct {
	Kind       SignalKind
	Confidence float64
}

// HoldSignal is the zero-value Hold signal, returned whenever a strategy
// has nothing to say about the current bar.
var HoldSignal = Signal{Kind: SignalHold}

// CloseSignal requests the open position (if any) be closed.
var CloseSignal = Signal{Kind: SignalClose}

// GoLong builds an entry signal for the long side with the given confidence.
func GoLong(confidence float64) Signal {
	return Signal{Kind: SignalGoLong, Confidence: confidence}
}

// GoShort builds an entry signal for the short side with the given confidence.
func GoShort(confidence float64) Signal {
	return Signal{Kind: SignalGoShort, Confidence: confidence}
}

// Side maps an entry signal to the position side it would open. Only valid
// for SignalGoLong/SignalGoShort.
func (s Signal) Side() Side {
	if s.Kind == SignalGoShort {
		return SideShort
	}
	return SideLong
}

// OrderRequest is what the risk evaluator produces for the executor to fill.
// A close order carries the side opposite the closing position and a zero
// StopLossPrice.
type OrderRequest struct {
	Symbol            Symbol
	Side              Side
	Quantity          decimal.Decimal
	Leverage          int
	StopLossPrice     decimal.Decimal
	OriginatingSignal Signal
}

// Position is a single open position for a symbol. At most one may be open
// per symbol at any time; there is no pyramiding.
type Position struct {
	Symbol        Symbol
	Side          Side
	Quantity      decimal.Decimal
	EntryPrice    decimal.Decimal
	EntryFee      decimal.Decimal
	Leverage      int
	StopLossPrice decimal.Decimal
	EntryTime     time.Time
}

// Execution is the result of the executor filling an OrderRequest.
type Execution struct {
	Symbol   Symbol
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Fee      decimal.Decimal
	Request  OrderRequest
}

// Trade is a closed round-trip position, logged once a position is closed
// (by signal, or by a stop-loss trigger). SignalConfidence is the closing
// signal's confidence, not the opening signal's; stop-outs record 0.
type Trade struct {
	Symbol           Symbol
	Side             Side
	EntryTime        time.Time
	ExitTime         time.Time
	EntryPrice       decimal.Decimal
	ExitPrice        decimal.Decimal
	Quantity         decimal.Decimal
	PnL              decimal.Decimal
	Fees             decimal.Decimal
	SignalConfidence float64
	Leverage         int
}

// EquityPoint is one sample of the equity curve, recorded once per bar as
// pure cash (not mark-to-market) at the top of the backtest loop.
type EquityPoint struct {
	Timestamp time.Time
	Value     decimal.Decimal
}

// PerformanceReport is the full set of scalar performance metrics computed
// from a backtest's trades and equity curve.
type PerformanceReport struct {
	TotalTrades            int
	NetPnLAbsolute         decimal.Decimal
	NetPnLPercentage       float64
	WinRate                float64
	ProfitFactor           float64
	MaxDrawdownAbsolute    decimal.Decimal
	MaxDrawdownPercentage  float64
	SharpeRatio            float64
	SortinoRatio           float64
	CalmarRatio            float64
	AvgTradeDurationSecs   float64
	Expectancy             decimal.Decimal
	DrawdownDurationSecs   int64
	LAROM                  float64
	FundingPnL             decimal.Decimal
	ConfidencePerformance  map[string]PerformanceReport
}

// NewPerformanceReport returns a zero-value report with its map initialized.
func NewPerformanceReport() PerformanceReport {
	return PerformanceReport{ConfidencePerformance: make(map[string]PerformanceReport)}
}

// MarshalJSON renders non-finite ratios as null. ProfitFactor and
// SortinoRatio are +Inf when a run has no losing trades, and JSON has no
// encoding for infinity.
func (r PerformanceReport) MarshalJSON() ([]byte, error) {
	type plain PerformanceReport
	out := struct {
		plain
		ProfitFactor *float64
		SortinoRatio *float64
	}{plain: plain(r)}
	if !math.IsInf(r.ProfitFactor, 0) && !math.IsNaN(r.ProfitFactor) {
		out.ProfitFactor = &r.ProfitFactor
	}
	if !math.IsInf(r.SortinoRatio, 0) && !math.IsNaN(r.SortinoRatio) {
		out.SortinoRatio = &r.SortinoRatio
	}
	return json.Marshal(out)
}
