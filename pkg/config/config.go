// Package config loads the engine's configuration from a base YAML file,
// an environment-named overlay, and APP_-prefixed environment variable
// overrides with __ as the nested-key delimiter. The optimizer's grid is
// a separate document loaded with LoadOptimizerConfig.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// decimalDecodeHook teaches mapstructure how to decode a YAML/env string
// (or a bare int/float) into a decimal.Decimal field, since mapstructure
// has no built-in notion of shopspring/decimal's struct representation.
func decimalDecodeHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(decimal.Decimal{}) {
		return data, nil
	}
	switch from.Kind() {
	case reflect.String:
		return decimal.NewFromString(data.(string))
	case reflect.Int, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(reflect.ValueOf(data).Int()), nil
	case reflect.Float32, reflect.Float64:
		return decimal.NewFromFloat(reflect.ValueOf(data).Float()), nil
	default:
		return data, nil
	}
}

// AppSettings holds the application's general settings.
type AppSettings struct {
	Environment    string `mapstructure:"environment"`
	LogLevel       string `mapstructure:"log_level"`
	OptimizerCores int    `mapstructure:"optimizer_cores"`
}

// BacktestSettings selects the data and strategy for a single backtest run.
type BacktestSettings struct {
	Symbol       string          `mapstructure:"symbol"`
	Interval     string          `mapstructure:"interval"`
	StartingCash decimal.Decimal `mapstructure:"starting_cash"`
	StrategyName string          `mapstructure:"strategy_name"`
}

// SimpleRiskSettings configures the fractional-risk evaluator.
type SimpleRiskSettings struct {
	RiskPerTradePercent        float64 `mapstructure:"risk_per_trade_percent"`
	StopLossPercent            float64 `mapstructure:"stop_loss_percent"`
	MinimumConfidenceThreshold float64 `mapstructure:"minimum_confidence_threshold"`
	Leverage                   int     `mapstructure:"leverage"`
}

// SimulationSettings configures the simulated fill engine.
type SimulationSettings struct {
	MakerFee        float64 `mapstructure:"maker_fee"`
	TakerFee        float64 `mapstructure:"taker_fee"`
	SlippagePercent float64 `mapstructure:"slippage_percent"`
}

// StrategySettings carries the optional per-strategy parameter blocks.
// Each block is kept as a raw map so the strategy factory can decode it
// with the same path the optimizer's expanded parameter sets take.
type StrategySettings struct {
	MACrossover   map[string]any `mapstructure:"ma_crossover"`
	SuperTrend    map[string]any `mapstructure:"supertrend"`
	ProbReversion map[string]any `mapstructure:"prob_reversion"`
}

// ParamsFor returns the parameter block for a strategy name, nil when the
// block is absent.
func (s StrategySettings) ParamsFor(name string) map[string]any {
	switch name {
	case "ma_crossover":
		return s.MACrossover
	case "supertrend":
		return s.SuperTrend
	case "prob_reversion":
		return s.ProbReversion
	default:
		return nil
	}
}

// DatabaseSettings configures the sqlite-backed persistence layer.
type DatabaseSettings struct {
	Path string `mapstructure:"path"`
}

// ServerSettings configures the read-only API server.
type ServerSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Config is the top-level configuration tree.
type Config struct {
	App               AppSettings        `mapstructure:"app"`
	Backtest          BacktestSettings   `mapstructure:"backtest"`
	SimpleRiskManager SimpleRiskSettings `mapstructure:"simple_risk_manager"`
	Simulation        SimulationSettings `mapstructure:"simulation"`
	Strategies        StrategySettings   `mapstructure:"strategies"`
	Database          DatabaseSettings   `mapstructure:"database"`
	Server            ServerSettings     `mapstructure:"server"`
}

// Load reads config/base.yaml, overlays config/{env}.yaml (env defaults to
// "development" and is itself read from APP_ENVIRONMENT), then applies
// APP_-prefixed, double-underscore-delimited environment variable
// overrides (e.g. APP_DATABASE__PATH or
// APP_SIMPLE_RISK_MANAGER__STOP_LOSS_PERCENT).
func Load(configDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("base")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading base config: %w", err)
	}

	// APP_ENVIRONMENT selects the overlay file itself, so it is read
	// directly from the process environment rather than through viper's
	// APP_-prefixed, __-delimited key lookup.
	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	overlay := viper.New()
	overlay.SetConfigName(env)
	overlay.SetConfigType("yaml")
	overlay.AddConfigPath(configDir)
	if err := overlay.ReadInConfig(); err == nil {
		if mergeErr := v.MergeConfigMap(overlay.AllSettings()); mergeErr != nil {
			return nil, fmt.Errorf("config: merging %s overlay: %w", env, mergeErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		decimalDecodeHook,
	))); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.optimizer_cores", 4)
	v.SetDefault("backtest.starting_cash", "10000")
	v.SetDefault("simple_risk_manager.risk_per_trade_percent", 0.01)
	v.SetDefault("simple_risk_manager.stop_loss_percent", 0.02)
	v.SetDefault("simple_risk_manager.minimum_confidence_threshold", 0.5)
	v.SetDefault("simple_risk_manager.leverage", 1)
	v.SetDefault("simulation.maker_fee", 0.0002)
	v.SetDefault("simulation.taker_fee", 0.0004)
	v.SetDefault("simulation.slippage_percent", 0.0005)
	v.SetDefault("database.path", "./data/backtester.db")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
}

// OptimizerJob is the job block of the optimizer-grid document.
type OptimizerJob struct {
	Name               string `mapstructure:"name"`
	Symbol             string `mapstructure:"symbol"`
	Interval           string `mapstructure:"interval"`
	StartDate          string `mapstructure:"start_date"`
	EndDate            string `mapstructure:"end_date"`
	StrategyToOptimize string `mapstructure:"strategy_to_optimize"`
}

// OptimizerConfig is the optimizer-grid document: one job block plus one
// or more {strategy}_params tables whose fields are either fixed scalars
// or {start, end, step} range tables.
type OptimizerConfig struct {
	Job            OptimizerJob
	StrategyParams map[string]map[string]any
}

// ParamsForJob returns the parameter table the job names
// ("{strategy_to_optimize}_params"). Its absence is a configuration
// error: an optimization without a grid has nothing to sweep.
func (c *OptimizerConfig) ParamsForJob() (map[string]any, error) {
	key := c.Job.StrategyToOptimize + "_params"
	params, ok := c.StrategyParams[key]
	if !ok {
		available := make([]string, 0, len(c.StrategyParams))
		for k := range c.StrategyParams {
			available = append(available, k)
		}
		return nil, fmt.Errorf("config: parameter table %q not found in optimizer config, available tables: %v", key, available)
	}
	return params, nil
}

// LoadOptimizerConfig reads the optimizer-grid document (by default
// config/optimizer.yaml). Every top-level table other than "job" is
// collected as a strategy parameter table.
func LoadOptimizerConfig(path string) (*OptimizerConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading optimizer config: %w", err)
	}

	var cfg OptimizerConfig
	if err := v.UnmarshalKey("job", &cfg.Job); err != nil {
		return nil, fmt.Errorf("config: unmarshaling optimizer job block: %w", err)
	}
	if cfg.Job.StrategyToOptimize == "" {
		return nil, fmt.Errorf("config: optimizer job block is missing strategy_to_optimize")
	}

	cfg.StrategyParams = make(map[string]map[string]any)
	for key, value := range v.AllSettings() {
		if key == "job" {
			continue
		}
		table, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("config: optimizer table %q must be a map", key)
		}
		cfg.StrategyParams[key] = table
	}
	return &cfg, nil
}
