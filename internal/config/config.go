// Package config provides Viper-based configuration loading for the
// Hour-Glass encounter runtime.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TimingConfig holds the precision-timer settings that drive sand regeneration.
type TimingConfig struct {
	// RegenerationRate is the regeneration rate in grains per second.
	RegenerationRate float64 `mapstructure:"regeneration_rate"`
	// MaxDeltaClamp is the upper bound on any single frame delta. Raw deltas
	// beyond it are clamped so a stall never awards bulk sand at once.
	MaxDeltaClamp time.Duration `mapstructure:"max_delta_clamp"`
	// TimingPrecision is the diagnostic threshold below which a frame delta
	// is counted as a micro-frame. It has no effect on regeneration.
	TimingPrecision time.Duration `mapstructure:"timing_precision"`
	// DebugTimeScale multiplies every clamped delta, for accelerated testing.
	DebugTimeScale float64 `mapstructure:"debug_time_scale"`
}

// HourglassConfig holds sand capacity settings.
type HourglassConfig struct {
	// MaxSand is the starting sand capacity, 1..8.
	MaxSand int `mapstructure:"max_sand"`
	// StartingSand is the sand available at encounter start, 0..MaxSand.
	StartingSand int `mapstructure:"starting_sand"`
	// DynamicRegen enables the strategic-depth regeneration modifiers
	// (desperation, near-capacity damping, blessing, divine favor).
	DynamicRegen bool `mapstructure:"dynamic_regen"`
}

// EncounterConfig holds the host frame-loop settings.
type EncounterConfig struct {
	// FrameInterval is the period between Update calls in the host loop.
	FrameInterval time.Duration `mapstructure:"frame_interval"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Timing    TimingConfig    `mapstructure:"timing"`
	Hourglass HourglassConfig `mapstructure:"hourglass"`
	Encounter EncounterConfig `mapstructure:"encounter"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateTiming(c.Timing); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateHourglass(c.Hourglass); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateEncounter(c.Encounter); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTiming(t TimingConfig) error {
	var errs []string
	if t.RegenerationRate <= 0 {
		errs = append(errs, fmt.Sprintf("timing.regeneration_rate must be > 0, got %v", t.RegenerationRate))
	}
	if t.MaxDeltaClamp <= 0 {
		errs = append(errs, fmt.Sprintf("timing.max_delta_clamp must be > 0, got %v", t.MaxDeltaClamp))
	}
	if t.TimingPrecision < 0 {
		errs = append(errs, fmt.Sprintf("timing.timing_precision must be >= 0, got %v", t.TimingPrecision))
	}
	if t.DebugTimeScale <= 0 {
		errs = append(errs, fmt.Sprintf("timing.debug_time_scale must be > 0, got %v", t.DebugTimeScale))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHourglass(h HourglassConfig) error {
	var errs []string
	if h.MaxSand < 1 || h.MaxSand > 8 {
		errs = append(errs, fmt.Sprintf("hourglass.max_sand must be 1-8, got %d", h.MaxSand))
	}
	if h.StartingSand < 0 {
		errs = append(errs, fmt.Sprintf("hourglass.starting_sand must be >= 0, got %d", h.StartingSand))
	}
	if h.StartingSand > h.MaxSand {
		errs = append(errs, "hourglass.starting_sand must not exceed hourglass.max_sand")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateEncounter(e EncounterConfig) error {
	if e.FrameInterval <= 0 {
		return fmt.Errorf("encounter.frame_interval must be > 0, got %v", e.FrameInterval)
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Default returns the built-in configuration used when no file is provided.
//
// Postcondition: Default().Validate() returns nil.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Unmarshalling pure defaults can only fail on a programming error.
		panic("config: unmarshalling defaults: " + err.Error())
	}
	return cfg
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// A missing file is not an error: every recognized option falls back to its
// default independently, so hosts can run with no configuration at all. A
// file that exists but cannot be parsed, or that validates badly, is an error.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with DUAT_ prefix
	v.SetEnvPrefix("DUAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("reading config file: %w", err)
			}
			// Absent file: defaults stand.
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timing.regeneration_rate", 1.0)
	v.SetDefault("timing.max_delta_clamp", "50ms")
	v.SetDefault("timing.timing_precision", "1ms")
	v.SetDefault("timing.debug_time_scale", 1.0)

	v.SetDefault("hourglass.max_sand", 6)
	v.SetDefault("hourglass.starting_sand", 0)
	v.SetDefault("hourglass.dynamic_regen", false)

	v.SetDefault("encounter.frame_interval", "16ms")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
