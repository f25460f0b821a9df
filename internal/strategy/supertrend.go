package strategy

import (
	"fmt"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/atlas-quant/futures-backtester/pkg/indicators"
)

// SuperTrendSettings configures the SuperTrend strategy.
type SuperTrendSettings struct {
	Period                int
	Multiplier            float64
	ExitMultiplier        float64
	VolumeThreshold       float64
	ConfirmationBars      int
	EMAConfirmationPeriod int
	Confidence            float64
}

type trendDirection int

const (
	trendSideways trendDirection = iota
	trendUp
	trendDown
)

type superTrendState struct {
	atr               float64
	finalUpperBand    float64
	finalLowerBand    float64
	trend             trendDirection
	confirmedTrend    trendDirection
	confirmationCount int
}

// SuperTrend emits entries on a confirmed trend flip (gated by a volume
// floor and an EMA confirmation filter) and emits Close on a tighter
// ATR-based exit band breach.
type SuperTrend struct {
	settings       SuperTrendSettings
	lastSignalSide *domain.Side
}

// NewSuperTrend builds a SuperTrend strategy.
func NewSuperTrend(settings SuperTrendSettings) (*SuperTrend, error) {
	if settings.Period < 1 || settings.ConfirmationBars < 1 || settings.EMAConfirmationPeriod < 1 {
		return nil, fmt.Errorf("strategy: supertrend misconfigured: periods must be greater than 0")
	}
	if settings.Multiplier <= 0 || settings.ExitMultiplier <= 0 {
		return nil, fmt.Errorf("strategy: supertrend misconfigured: multipliers must be positive")
	}
	return &SuperTrend{settings: settings}, nil
}

func (s *SuperTrend) Name() string { return "EnhancedSuperTrend" }

// Assess recomputes the full band/trend state from the provided klines on
// every call, which keeps the strategy stateless between calls aside from
// the last open-position side tracked for exit signals.
func (s *SuperTrend) Assess(history []domain.Kline) domain.Signal {
	required := s.settings.Period
	if s.settings.EMAConfirmationPeriod > required {
		required = s.settings.EMAConfirmationPeriod
	}
	if len(history) < required {
		return domain.HoldSignal
	}

	atr := indicators.NewATR(s.settings.Period)
	states := make([]superTrendState, 0, len(history))
	var last superTrendState
	var prevClose float64

	for i, k := range history {
		close, _ := k.Close.Float64()
		high, _ := k.High.Float64()
		low, _ := k.Low.Float64()
		if i == 0 {
			prevClose = close
		} else {
			prevClose, _ = history[i-1].Close.Float64()
		}

		currentATR := atr.Next(high, low, close)
		hl2 := (high + low) / 2
		basicUpper := hl2 + s.settings.Multiplier*currentATR
		basicLower := hl2 - s.settings.Multiplier*currentATR

		current := last
		current.atr = currentATR

		if basicUpper < last.finalUpperBand || prevClose > last.finalUpperBand {
			current.finalUpperBand = basicUpper
		} else {
			current.finalUpperBand = last.finalUpperBand
		}
		if basicLower > last.finalLowerBand || prevClose < last.finalLowerBand {
			current.finalLowerBand = basicLower
		} else {
			current.finalLowerBand = last.finalLowerBand
		}

		switch {
		case close > current.finalUpperBand:
			current.trend = trendUp
		case close < current.finalLowerBand:
			current.trend = trendDown
		default:
			current.trend = last.trend
		}

		if current.trend == last.trend {
			current.confirmationCount = last.confirmationCount + 1
		} else {
			current.confirmationCount = 1
		}
		// A trend becomes the confirmed trend only once it has held for
		// ConfirmationBars consecutive bars.
		if current.confirmationCount >= s.settings.ConfirmationBars {
			current.confirmedTrend = current.trend
		}

		states = append(states, current)
		last = current
	}

	if len(states) < 2 {
		return domain.HoldSignal
	}

	current := states[len(states)-1]
	prev := states[len(states)-2]
	currentKline := history[len(history)-1]

	volume, _ := currentKline.Volume.Float64()
	if volume < s.settings.VolumeThreshold {
		return domain.HoldSignal
	}

	if current.confirmationCount < s.settings.ConfirmationBars {
		return domain.HoldSignal
	}

	closes := make([]float64, len(history))
	for i, k := range history {
		closes[i], _ = k.Close.Float64()
	}
	currentClose, _ := currentKline.Close.Float64()

	if prev.confirmedTrend != trendUp && current.confirmedTrend == trendUp {
		emaVal := emaOf(closes, s.settings.EMAConfirmationPeriod)
		if currentClose > emaVal {
			long := domain.SideLong
			s.lastSignalSide = &long
			return domain.GoLong(s.settings.Confidence)
		}
	}

	if prev.confirmedTrend != trendDown && current.confirmedTrend == trendDown {
		emaVal := emaOf(closes, s.settings.EMAConfirmationPeriod)
		if currentClose < emaVal {
			short := domain.SideShort
			s.lastSignalSide = &short
			return domain.GoShort(s.settings.Confidence)
		}
	}

	high, _ := currentKline.High.Float64()
	low, _ := currentKline.Low.Float64()
	hl2 := (high + low) / 2
	exitUpper := hl2 + s.settings.ExitMultiplier*current.atr
	exitLower := hl2 - s.settings.ExitMultiplier*current.atr

	if s.lastSignalSide != nil && *s.lastSignalSide == domain.SideLong && currentClose < exitLower {
		s.lastSignalSide = nil
		return domain.CloseSignal
	}
	if s.lastSignalSide != nil && *s.lastSignalSide == domain.SideShort && currentClose > exitUpper {
		s.lastSignalSide = nil
		return domain.CloseSignal
	}

	return domain.HoldSignal
}

// emaOf computes a fresh EMA over an entire close series, used for the
// confirmation filter value on each call.
func emaOf(closes []float64, period int) float64 {
	if len(closes) < period {
		return 0
	}
	e := indicators.NewEMA(period)
	var last float64
	for _, c := range closes {
		last = e.Next(c)
	}
	return last
}

// SuperTrendSettingsFromMap decodes raw optimizer/config parameters.
func SuperTrendSettingsFromMap(params map[string]any) (SuperTrendSettings, error) {
	period, err := intParam(params, "period")
	if err != nil {
		return SuperTrendSettings{}, err
	}
	multiplier, err := floatParam(params, "multiplier")
	if err != nil {
		return SuperTrendSettings{}, err
	}
	exitMultiplier, err := floatParam(params, "exit_multiplier")
	if err != nil {
		return SuperTrendSettings{}, err
	}
	volumeThreshold, err := floatParam(params, "volume_threshold")
	if err != nil {
		return SuperTrendSettings{}, err
	}
	confirmationBars, err := intParam(params, "confirmation_bars")
	if err != nil {
		return SuperTrendSettings{}, err
	}
	emaConfirmationPeriod, err := intParam(params, "ema_confirmation_period")
	if err != nil {
		return SuperTrendSettings{}, err
	}
	confidence, err := floatParam(params, "confidence")
	if err != nil {
		return SuperTrendSettings{}, err
	}
	return SuperTrendSettings{
		Period:                period,
		Multiplier:            multiplier,
		ExitMultiplier:        exitMultiplier,
		VolumeThreshold:       volumeThreshold,
		ConfirmationBars:      confirmationBars,
		EMAConfirmationPeriod: emaConfirmationPeriod,
		Confidence:            confidence,
	}, nil
}
