package strategy

import (
	"fmt"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
	"github.com/atlas-quant/futures-backtester/pkg/indicators"
)

// MACrossoverSettings configures the MA-Crossover strategy.
type MACrossoverSettings struct {
	FastPeriod int
	SlowPeriod int
	Confidence float64
}

// regime classifies the higher-timeframe trend for the H1 filter. It is
// computed nowhere and read nowhere in Assess yet; see the TODO below for
// the follow-up that would activate it.
type regime int

const (
	regimeSideways regime = iota
	regimeBullish
	regimeBearish
)

// MACrossover emits GoLong/GoShort when a fast EMA crosses a slow EMA.
type MACrossover struct {
	settings MACrossoverSettings

	fastEMA *indicators.EMA
	slowEMA *indicators.EMA
	warmed  bool

	lastFast float64
	lastSlow float64

	// regime is never set past its zero value; it exists only so the
	// dormant H1 filter below has somewhere to read from once implemented.
	regime regime
}

// NewMACrossover builds a MACrossover strategy. It returns an error rather
// than panicking when fast_period >= slow_period, which would make the
// crossover condition never true.
func NewMACrossover(settings MACrossoverSettings) (*MACrossover, error) {
	if settings.FastPeriod >= settings.SlowPeriod {
		return nil, fmt.Errorf("strategy: ma_crossover misconfigured: fast_period (%d) >= slow_period (%d)", settings.FastPeriod, settings.SlowPeriod)
	}
	return &MACrossover{settings: settings}, nil
}

func (s *MACrossover) Name() string { return "MACrossover" }

// Assess lazily warms up on the first call with enough history: it builds
// fresh EMAs, feeds them the entire slice, and returns Hold without
// generating a cross signal for that call. Every subsequent call advances
// both EMAs by one close and compares against the previous values.
func (s *MACrossover) Assess(history []domain.Kline) domain.Signal {
	if len(history) < s.settings.SlowPeriod {
		return domain.HoldSignal
	}

	if !s.warmed {
		s.fastEMA = indicators.NewEMA(s.settings.FastPeriod)
		s.slowEMA = indicators.NewEMA(s.settings.SlowPeriod)
		for _, k := range history {
			c, _ := k.Close.Float64()
			s.fastEMA.Next(c)
			s.slowEMA.Next(c)
		}
		s.lastFast = s.fastEMA.Value()
		s.lastSlow = s.slowEMA.Value()
		s.warmed = true
		return domain.HoldSignal
	}

	last, _ := history[len(history)-1].Close.Float64()
	currentFast := s.fastEMA.Next(last)
	currentSlow := s.slowEMA.Next(last)

	var signal domain.Signal
	switch {
	case currentFast > currentSlow && s.lastFast <= s.lastSlow:
		signal = domain.GoLong(s.settings.Confidence)
	case currentFast < currentSlow && s.lastFast >= s.lastSlow:
		signal = domain.GoShort(s.settings.Confidence)
	default:
		signal = domain.HoldSignal
	}

	s.lastFast = currentFast
	s.lastSlow = currentSlow

	// TODO: wire in the H1 regime filter once an H1-aggregated kline feed
	// is available to the backtest driver; today s.regime is never
	// assigned, so this stays dormant rather than silently vetoing Go*
	// signals on a filter that can never activate.
	return signal
}

// MACrossoverSettingsFromMap decodes raw optimizer/config parameters.
func MACrossoverSettingsFromMap(params map[string]any) (MACrossoverSettings, error) {
	fast, err := intParam(params, "fast_period")
	if err != nil {
		return MACrossoverSettings{}, err
	}
	slow, err := intParam(params, "slow_period")
	if err != nil {
		return MACrossoverSettings{}, err
	}
	confidence, err := floatParam(params, "confidence")
	if err != nil {
		return MACrossoverSettings{}, err
	}
	return MACrossoverSettings{FastPeriod: fast, SlowPeriod: slow, Confidence: confidence}, nil
}
