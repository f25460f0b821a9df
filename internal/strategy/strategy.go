// Package strategy implements the stateful bar-consumer strategies the
// backtest driver assesses on every bar, plus a factory keyed by name.
package strategy

import (
	"fmt"

	"github.com/atlas-quant/futures-backtester/pkg/domain"
)

// Strategy is the uniform contract every strategy implements: given the
// ordered history ending with the most recently closed bar, produce a
// Signal. Implementations maintain internal state across calls but must be
// implementable statelessly given full history (the driver may warm them by
// feeding historical bars one by one).
type Strategy interface {
	Name() string
	Assess(history []domain.Kline) domain.Signal
}

// Factory builds a Strategy from a named configuration, so the config
// loader, the single-run CLI and the optimizer all construct strategies
// through the same registry.
type Factory struct {
	builders map[string]func(params map[string]any) (Strategy, error)
}

// NewFactory returns a Factory pre-registered with the three required
// strategies.
func NewFactory() *Factory {
	f := &Factory{builders: make(map[string]func(params map[string]any) (Strategy, error))}
	f.Register("ma_crossover", func(params map[string]any) (Strategy, error) {
		settings, err := MACrossoverSettingsFromMap(params)
		if err != nil {
			return nil, err
		}
		return NewMACrossover(settings)
	})
	f.Register("supertrend", func(params map[string]any) (Strategy, error) {
		settings, err := SuperTrendSettingsFromMap(params)
		if err != nil {
			return nil, err
		}
		return NewSuperTrend(settings)
	})
	f.Register("prob_reversion", func(params map[string]any) (Strategy, error) {
		settings, err := ProbReversionSettingsFromMap(params)
		if err != nil {
			return nil, err
		}
		return NewProbReversion(settings)
	})
	return f
}

// Register adds (or replaces) the builder for a strategy name.
func (f *Factory) Register(name string, builder func(params map[string]any) (Strategy, error)) {
	f.builders[name] = builder
}

// Create builds a strategy by name from a raw parameter map (as decoded
// from the optimizer grid or the config file).
func (f *Factory) Create(name string, params map[string]any) (Strategy, error) {
	builder, ok := f.builders[name]
	if !ok {
		return nil, fmt.Errorf("strategy: unknown strategy %q", name)
	}
	return builder(params)
}

// Names lists every registered strategy name.
func (f *Factory) Names() []string {
	names := make([]string, 0, len(f.builders))
	for name := range f.builders {
		names = append(names, name)
	}
	return names
}
