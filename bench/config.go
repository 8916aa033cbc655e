package bench

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full set of knobs a benchcounter run accepts, loadable
// from a YAML file and then overridden by individual flags or env vars
// at the call site.
type Config struct {
	ThreadCount      int     `yaml:"thread_count"`
	RunMilliseconds  int     `yaml:"run_milliseconds"`
	ReadPercent      int     `yaml:"read_percent"`
	IncrementPercent int     `yaml:"increment_percent"`
	AdditionalWork   int     `yaml:"additional_work"`
	DiffRange        int64   `yaml:"diff_range"`
	Variant          string  `yaml:"variant"`  // "plain", "stump", or "funnel"
	Fanout           int     `yaml:"fanout"`   // stump: fixed fan-out node count
	Direct           int     `yaml:"direct"`   // stump: low tids bypassing nodes entirely
	Policy           string  `yaml:"policy"`   // stump: "fixed", "sqrt", or "rendezvous"
	MetricsAddr      string  `yaml:"metrics_addr"`
	HistoryDB        string  `yaml:"history_db"`
}

// DefaultConfig mirrors the original benchmark.cpp's defaults: 50/50
// read/increment split, additional_work 32, diff_range 100.
func DefaultConfig() Config {
	return Config{
		ThreadCount:      4,
		RunMilliseconds:  1000,
		ReadPercent:      50,
		IncrementPercent: 50,
		AdditionalWork:   32,
		DiffRange:        100,
		Variant:          "plain",
		Fanout:           4,
		Direct:           0,
		Policy:           "fixed",
	}
}

// LoadConfig reads a YAML config file over the defaults, then applies
// any SCOUNT_-prefixed environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCOUNT_VARIANT"); v != "" {
		cfg.Variant = v
	}
	if v := os.Getenv("SCOUNT_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("SCOUNT_HISTORY_DB"); v != "" {
		cfg.HistoryDB = v
	}
}

// Validate rejects configurations that can't drive a run at all. It
// does not second-guess ratios that sum past 100: the operation
// generator only reads read_percent (a draw below it is a read, anything
// else an increment), so increment_percent never changes the mix and an
// overshoot is not an error.
func (c Config) Validate() error {
	if c.ThreadCount <= 0 {
		return fmt.Errorf("thread_count must be positive, got %d", c.ThreadCount)
	}
	if c.RunMilliseconds <= 0 {
		return fmt.Errorf("run_milliseconds must be positive, got %d", c.RunMilliseconds)
	}
	if c.DiffRange <= 0 {
		return fmt.Errorf("diff_range must be positive, got %d", c.DiffRange)
	}
	switch c.Variant {
	case "plain", "stump", "funnel":
	default:
		return fmt.Errorf("unknown variant %q", c.Variant)
	}
	return nil
}
