package strategy

import (
	"fmt"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/atlas-quant/futures-backtester/pkg/indicators"
)

// ProbReversionSettings configures the Probabilistic-Reversion strategy.
type ProbReversionSettings struct {
	BBandPeriod       int
	BBandStdDev       float64
	ADXPeriod         int
	ADXRangeThreshold float64
	RSIPeriod         int
	RSIOversold       float64
	RSISmoothing      int
	Confidence        float64
}

// ProbReversion enters long on a regime+location+momentum confirmation
// sequence spanning two bars, and closes when price reverts to the
// Bollinger middle band.
type ProbReversion struct {
	settings ProbReversionSettings

	prevRSISMA            float64
	pendingBuySignalClose *float64
	inPosition            bool
}

// NewProbReversion builds a ProbReversion strategy.
func NewProbReversion(settings ProbReversionSettings) (*ProbReversion, error) {
	if settings.BBandPeriod < 1 || settings.ADXPeriod < 1 || settings.RSIPeriod < 1 || settings.RSISmoothing < 1 {
		return nil, fmt.Errorf("strategy: prob_reversion misconfigured: periods must be greater than 0")
	}
	return &ProbReversion{settings: settings}, nil
}

func (s *ProbReversion) Name() string { return "ProbabilisticReversion" }

func (s *ProbReversion) Assess(history []domain.Kline) domain.Signal {
	longestLookback := s.settings.ADXPeriod * 2
	if s.settings.BBandPeriod > longestLookback {
		longestLookback = s.settings.BBandPeriod
	}
	if rsiLookback := s.settings.RSIPeriod + s.settings.RSISmoothing; rsiLookback > longestLookback {
		longestLookback = rsiLookback
	}
	if len(history) < longestLookback {
		return domain.HoldSignal
	}

	closes := make([]float64, len(history))
	highs := make([]float64, len(history))
	lows := make([]float64, len(history))
	for i, k := range history {
		closes[i], _ = k.Close.Float64()
		highs[i], _ = k.High.Float64()
		lows[i], _ = k.Low.Float64()
	}

	adxValues := indicators.ADXSeries(highs, lows, closes, s.settings.ADXPeriod)
	currentADX := adxValues[len(adxValues)-1]

	bbands := indicators.NewBollingerBands(s.settings.BBandPeriod, s.settings.BBandStdDev)
	var currentBBands indicators.BollingerOutput
	for _, c := range closes {
		currentBBands = bbands.Next(c)
	}

	rsi := indicators.NewRSI(s.settings.RSIPeriod)
	rsiValues := make([]float64, len(closes))
	for i, c := range closes {
		rsiValues[i] = rsi.Next(c)
	}

	rsiSMA := indicators.NewSMA(s.settings.RSISmoothing)
	var currentRSISMA float64
	for _, v := range rsiValues {
		currentRSISMA = rsiSMA.Next(v)
	}

	currentClose := closes[len(closes)-1]
	currentLow := lows[len(lows)-1]
	currentRSI := rsiValues[len(rsiValues)-1]

	// 1. Exit if in a position and price reverted to the mean.
	if s.inPosition && currentClose >= currentBBands.Middle {
		s.inPosition = false
		s.pendingBuySignalClose = nil
		return domain.CloseSignal
	}

	// 2. Entry confirmation armed on the previous bar.
	if s.pendingBuySignalClose != nil {
		setupClose := *s.pendingBuySignalClose
		s.pendingBuySignalClose = nil
		if currentClose > setupClose {
			s.inPosition = true
			return domain.GoLong(s.settings.Confidence)
		}
	}

	// 3. Look for a new setup on the current bar.

	// Regime filter: is the market ranging?
	if currentADX >= s.settings.ADXRangeThreshold {
		s.prevRSISMA = currentRSISMA
		return domain.HoldSignal
	}

	// Location filter: is price at an extreme low?
	isLocationMet := currentLow <= currentBBands.Lower

	// Momentum filter: is selling pressure exhausted?
	isMomentumMet := currentRSI < s.settings.RSIOversold && currentRSISMA > s.prevRSISMA

	if isLocationMet && isMomentumMet {
		v := currentClose
		s.pendingBuySignalClose = &v
	} else {
		s.pendingBuySignalClose = nil
	}

	s.prevRSISMA = currentRSISMA

	return domain.HoldSignal
}

// ProbReversionSettingsFromMap decodes raw optimizer/config parameters.
func ProbReversionSettingsFromMap(params map[string]any) (ProbReversionSettings, error) {
	bbandPeriod, err := intParam(params, "bband_period")
	if err != nil {
		return ProbReversionSettings{}, err
	}
	bbandStdDev, err := floatParam(params, "bband_stddev")
	if err != nil {
		return ProbReversionSettings{}, err
	}
	adxPeriod, err := intParam(params, "adx_period")
	if err != nil {
		return ProbReversionSettings{}, err
	}
	adxRangeThreshold, err := floatParam(params, "adx_range_threshold")
	if err != nil {
		return ProbReversionSettings{}, err
	}
	rsiPeriod, err := intParam(params, "rsi_period")
	if err != nil {
		return ProbReversionSettings{}, err
	}
	rsiOversold, err := floatParam(params, "rsi_oversold")
	if err != nil {
		return ProbReversionSettings{}, err
	}
	rsiSmoothing, err := intParam(params, "rsi_smoothing")
	if err != nil {
		return ProbReversionSettings{}, err
	}
	confidence, err := floatParam(params, "confidence")
	if err != nil {
		return ProbReversionSettings{}, err
	}
	return ProbReversionSettings{
		BBandPeriod:       bbandPeriod,
		BBandStdDev:       bbandStdDev,
		ADXPeriod:         adxPeriod,
		ADXRangeThreshold: adxRangeThreshold,
		RSIPeriod:         rsiPeriod,
		RSIOversold:       rsiOversold,
		RSISmoothing:      rsiSmoothing,
		Confidence:        confidence,
	}, nil
}
