package config

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Calculator holds the configuration of the key calculator.
type Calculator struct {
	// Search strategy: "stream" (single pass) or "batch" (whole image in memory)
	Strategy string `yaml:"strategy"`

	// Selector tuples searched in parallel by the batch strategy
	Workers int `yaml:"workers"`

	// debug, info, warn or error
	LogLevel string `yaml:"log_level"`
}

// DefaultCalculator returns Calculator config with sensible defaults.
func DefaultCalculator() Calculator {
	return Calculator{
		Strategy: "stream",
		Workers:  runtime.GOMAXPROCS(0),
		LogLevel: "info",
	}
}

// LoadCalculator loads calculator config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadCalculator(path string) (Calculator, error) {
	cfg := DefaultCalculator()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Workers < 1 {
		return cfg, fmt.Errorf("config %s: workers must be positive, got %d", path, cfg.Workers)
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// SlogLevel converts LogLevel to a slog.Level.
func (c Calculator) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}
