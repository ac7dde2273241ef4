// Package config loads and validates pipeline reporter configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/pipeline-reporter/internal/reporter"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Reporter ReporterConfig `mapstructure:"reporter"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Demo     DemoConfig     `mapstructure:"demo"`
}

// ReporterConfig controls the rendered progress report.
type ReporterConfig struct {
	IntervalMs    int64 `mapstructure:"interval_ms"`
	TruncateLimit int   `mapstructure:"truncate_limit"`
	Color         bool  `mapstructure:"color"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig toggles the Prometheus progress sink.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DemoConfig shapes the synthetic job run by the demo binary.
type DemoConfig struct {
	Streams       int  `mapstructure:"streams"`
	RowsPerStream int  `mapstructure:"rows_per_stream"`
	Destinations  int  `mapstructure:"destinations"`
	RowDelayMs    int  `mapstructure:"row_delay_ms"`
	BatchSize     int  `mapstructure:"batch_size"`
	FailLoads     bool `mapstructure:"fail_loads"`
	LoadRetries   int  `mapstructure:"load_retries"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PIPEREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("reporter.interval_ms", reporter.DefaultInterval.Milliseconds())
	v.SetDefault("reporter.truncate_limit", 200)
	v.SetDefault("reporter.color", true)
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("demo.streams", 2)
	v.SetDefault("demo.rows_per_stream", 25)
	v.SetDefault("demo.destinations", 2)
	v.SetDefault("demo.row_delay_ms", 40)
	v.SetDefault("demo.batch_size", 10)
	v.SetDefault("demo.fail_loads", false)
	v.SetDefault("demo.load_retries", 1)
}

// Validate enforces reasonable limits. Reporter settings are never rejected;
// out-of-range values fall back to defaults in ReporterConfig.
func (c Config) Validate() error {
	if c.Demo.Streams < 0 {
		return fmt.Errorf("demo.streams must be >= 0")
	}
	if c.Demo.RowsPerStream < 0 {
		return fmt.Errorf("demo.rows_per_stream must be >= 0")
	}
	if c.Demo.Destinations <= 0 {
		return fmt.Errorf("demo.destinations must be > 0")
	}
	if c.Demo.RowDelayMs < 0 {
		return fmt.Errorf("demo.row_delay_ms must be >= 0")
	}
	if c.Demo.LoadRetries < 0 {
		return fmt.Errorf("demo.load_retries must be >= 0")
	}
	return nil
}

// ReporterConfig converts the loaded settings into a reporter.Config.
func (c Config) ReporterConfig() reporter.Config {
	return reporter.Config{
		Interval:      reporter.IntervalFromMillis(c.Reporter.IntervalMs),
		TruncateLimit: c.Reporter.TruncateLimit,
		Color:         c.Reporter.Color,
	}
}

// RowDelay is the pause between synthetic demo rows.
func (c Config) RowDelay() time.Duration {
	return time.Duration(c.Demo.RowDelayMs) * time.Millisecond
}
