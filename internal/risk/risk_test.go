package risk

import (
	"testing"
	"time"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/shopspring/decimal"
)

func kline(close float64) domain.Kline {
	d := decimal.NewFromFloat(close)
	return domain.Kline{Symbol: "BTCUSDT", OpenTime: time.Unix(0, 0), Open: d, High: d, Low: d, Close: d, Volume: decimal.NewFromInt(1)}
}

func TestEvaluateHoldSignalIsNoop(t *testing.T) {
	e := NewEvaluator(Settings{RiskPerTradePercent: 0.01, StopLossPercent: 0.05, MinimumConfidenceThreshold: 0.5, Leverage: 1}, nil)

	order, err := e.Evaluate(domain.HoldSignal, "BTCUSDT", decimal.NewFromInt(10000), kline(100), nil)
	if err != nil {
		t.Fatalf("expected no error for a hold signal, got %v", err)
	}
	if order != nil {
		t.Fatalf("expected no order for a hold signal, got %+v", order)
	}
}

func TestEvaluateCloseSignalWithNoOpenPositionIsNoop(t *testing.T) {
	e := NewEvaluator(Settings{RiskPerTradePercent: 0.01, StopLossPercent: 0.05, MinimumConfidenceThreshold: 0.5, Leverage: 1}, nil)

	order, err := e.Evaluate(domain.CloseSignal, "BTCUSDT", decimal.NewFromInt(10000), kline(100), nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if order != nil {
		t.Fatalf("expected no order when there is nothing open to close, got %+v", order)
	}
}

func TestEvaluateCloseSignalBuildsOppositeSideOrder(t *testing.T) {
	e := NewEvaluator(Settings{RiskPerTradePercent: 0.01, StopLossPercent: 0.05, MinimumConfidenceThreshold: 0.5, Leverage: 1}, nil)
	open := &domain.Position{Symbol: "BTCUSDT", Side: domain.SideLong, Quantity: decimal.NewFromInt(20)}

	order, err := e.Evaluate(domain.CloseSignal, "BTCUSDT", decimal.NewFromInt(10000), kline(100), open)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order == nil {
		t.Fatal("expected a close order")
	}
	if order.Side != domain.SideShort {
		t.Fatalf("expected closing a long to carry side Short, got %s", order.Side)
	}
	if !order.Quantity.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected the close order to mirror the open position's quantity, got %s", order.Quantity)
	}
}

func TestEvaluateVetoesEntryWhenPositionAlreadyOpen(t *testing.T) {
	e := NewEvaluator(Settings{RiskPerTradePercent: 0.01, StopLossPercent: 0.05, MinimumConfidenceThreshold: 0.5, Leverage: 1}, nil)
	open := &domain.Position{Symbol: "BTCUSDT", Side: domain.SideLong, Quantity: decimal.NewFromInt(20)}

	_, err := e.Evaluate(domain.GoLong(0.9), "BTCUSDT", decimal.NewFromInt(10000), kline(100), open)
	if !IsVetoed(err) {
		t.Fatalf("expected a veto when a position is already open, got %v", err)
	}
}

func TestEvaluateVetoesEntryBelowConfidenceThreshold(t *testing.T) {
	e := NewEvaluator(Settings{RiskPerTradePercent: 0.01, StopLossPercent: 0.05, MinimumConfidenceThreshold: 0.5, Leverage: 1}, nil)

	_, err := e.Evaluate(domain.GoLong(0.3), "BTCUSDT", decimal.NewFromInt(10000), kline(100), nil)
	if !IsVetoed(err) {
		t.Fatalf("expected a veto below the confidence threshold, got %v", err)
	}
}

func TestEvaluateSizesLongEntryFromRiskFraction(t *testing.T) {
	e := NewEvaluator(Settings{RiskPerTradePercent: 0.01, StopLossPercent: 0.05, MinimumConfidenceThreshold: 0.5, Leverage: 1}, nil)

	order, err := e.Evaluate(domain.GoLong(1.0), "BTCUSDT", decimal.NewFromInt(10000), kline(100), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order == nil {
		t.Fatal("expected a sized entry order")
	}
	if !order.Quantity.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected quantity 20, got %s", order.Quantity)
	}
	if !order.StopLossPrice.Equal(decimal.NewFromInt(95)) {
		t.Fatalf("expected stop-loss price 95, got %s", order.StopLossPrice)
	}
	if order.Side != domain.SideLong {
		t.Fatalf("expected side Long, got %s", order.Side)
	}
}

func TestEvaluateSizesShortEntryWithMirroredStop(t *testing.T) {
	e := NewEvaluator(Settings{RiskPerTradePercent: 0.01, StopLossPercent: 0.05, MinimumConfidenceThreshold: 0.5, Leverage: 1}, nil)

	order, err := e.Evaluate(domain.GoShort(1.0), "BTCUSDT", decimal.NewFromInt(10000), kline(100), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Side != domain.SideShort {
		t.Fatalf("expected side Short, got %s", order.Side)
	}
	if !order.StopLossPrice.Equal(decimal.NewFromInt(105)) {
		t.Fatalf("expected stop-loss price 105 for a short, got %s", order.StopLossPrice)
	}
}

func TestEvaluateScalesSizeByConfidence(t *testing.T) {
	e := NewEvaluator(Settings{RiskPerTradePercent: 0.01, StopLossPercent: 0.05, MinimumConfidenceThreshold: 0.5, Leverage: 1}, nil)

	order, err := e.Evaluate(domain.GoLong(0.5), "BTCUSDT", decimal.NewFromInt(10000), kline(100), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !order.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected quantity 10 at half confidence, got %s", order.Quantity)
	}
}
