// Package config provides configuration loading and validation for
// gcodeslots.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidSlotsPerUnit     = errors.New("slots per unit must be positive")
	ErrInvalidUnitCount        = errors.New("unit count must be positive")
	ErrInvalidSystemType       = errors.New("system type must be \"magazine\" or \"toolhead\"")
	ErrInvalidParserAlgorithm  = errors.New("unknown parser algorithm")
	ErrInvalidOptimizerAlgorithm = errors.New("unknown optimization algorithm")
	ErrInvalidSecondsPerSwap   = errors.New("seconds per swap must be non-negative")
	ErrInvalidMaxHistorySize   = errors.New("max history size must be positive")
	ErrInvalidSaveDebounce     = errors.New("save debounce must be non-negative")
)

// Default configuration values.
const (
	defaultSlotsPerUnit    = 4
	defaultUnitCount       = 1
	defaultSystemType      = "magazine"
	defaultParserAlgorithm = "optimized"
	defaultOptimizerAlgo   = "greedy"
	defaultSecondsPerSwap  = 68
	defaultMaxHistorySize  = 50
	defaultSaveDebounceMs  = 500
)

var validParserAlgorithms = map[string]bool{
	"optimized": true, "buffer": true, "stream": true,
	"regex": true, "fsm": true, "worker": true, "lazy": true,
}

var validOptimizerAlgorithms = map[string]bool{
	"greedy": true,
}

// Config holds all configuration for gcodeslots.
type Config struct {
	System    SystemConfig    `mapstructure:"system"`
	Parser    ParserConfig    `mapstructure:"parser"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	History   HistoryConfig   `mapstructure:"history"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

// SystemConfig describes the physical hardware the optimizer targets.
type SystemConfig struct {
	Type           string `mapstructure:"type"`
	UnitCount      int    `mapstructure:"unit_count"`
	SlotsPerUnit   int    `mapstructure:"slots_per_unit"`
	SecondsPerSwap int    `mapstructure:"seconds_per_swap"`
}

// ParserConfig selects and tunes the G-code scanning strategy.
type ParserConfig struct {
	Algorithm string `mapstructure:"algorithm"`
}

// OptimizerConfig selects the slot-assignment strategy.
type OptimizerConfig struct {
	Algorithm string `mapstructure:"algorithm"`
}

// HistoryConfig tunes the merge timeline's persistence behavior.
type HistoryConfig struct {
	MaxSize         int `mapstructure:"max_size"`
	SaveDebounceMs  int `mapstructure:"save_debounce_ms"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// CacheConfig tunes the parsed-stats result cache.
type CacheConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Capacity int  `mapstructure:"capacity"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("gcodeslots")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/gcodeslots")
	}

	v.SetEnvPrefix("GCODESLOTS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("system.type", defaultSystemType)
	v.SetDefault("system.unit_count", defaultUnitCount)
	v.SetDefault("system.slots_per_unit", defaultSlotsPerUnit)
	v.SetDefault("system.seconds_per_swap", defaultSecondsPerSwap)

	v.SetDefault("parser.algorithm", defaultParserAlgorithm)

	v.SetDefault("optimizer.algorithm", defaultOptimizerAlgo)

	v.SetDefault("history.max_size", defaultMaxHistorySize)
	v.SetDefault("history.save_debounce_ms", defaultSaveDebounceMs)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.capacity", 128)
}

// Validate checks every knob against the invariants the rest of the system
// assumes.
func (c *Config) Validate() error {
	if c.System.SlotsPerUnit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSlotsPerUnit, c.System.SlotsPerUnit)
	}

	if c.System.UnitCount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidUnitCount, c.System.UnitCount)
	}

	if c.System.Type != "magazine" && c.System.Type != "toolhead" {
		return fmt.Errorf("%w: %q", ErrInvalidSystemType, c.System.Type)
	}

	if c.System.SecondsPerSwap < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSecondsPerSwap, c.System.SecondsPerSwap)
	}

	if !validParserAlgorithms[c.Parser.Algorithm] {
		return fmt.Errorf("%w: %q", ErrInvalidParserAlgorithm, c.Parser.Algorithm)
	}

	if !validOptimizerAlgorithms[c.Optimizer.Algorithm] {
		return fmt.Errorf("%w: %q", ErrInvalidOptimizerAlgorithm, c.Optimizer.Algorithm)
	}

	if c.History.MaxSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxHistorySize, c.History.MaxSize)
	}

	if c.History.SaveDebounceMs < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSaveDebounce, c.History.SaveDebounceMs)
	}

	return nil
}
