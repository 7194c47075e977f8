// Package config loads txreplay settings from flags, environment, an
// optional YAML file and defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. TXREPLAY_REPLAY_WORKERS
const EnvPrefix = "TXREPLAY"

// Config is the complete runtime configuration
type Config struct {
	LogLevel    string `mapstructure:"log_level" yaml:"log_level" validate:"required,oneof=debug info warn error"`
	LogEncoding string `mapstructure:"log_encoding" yaml:"log_encoding" validate:"required,oneof=json console"`

	Replay  ReplayConfig  `mapstructure:"replay" yaml:"replay"`
	Ingest  IngestConfig  `mapstructure:"ingest" yaml:"ingest"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ReplayConfig controls the engine
type ReplayConfig struct {
	// Workers > 1 shards accounts across that many goroutines
	Workers      int  `mapstructure:"workers" yaml:"workers" validate:"min=1,max=256"`
	QueueSize    int  `mapstructure:"queue_size" yaml:"queue_size" validate:"min=1"`
	FreezeLocked bool `mapstructure:"freeze_locked" yaml:"freeze_locked"`
}

// IngestConfig controls input decoding
type IngestConfig struct {
	SkipMalformed bool `mapstructure:"skip_malformed" yaml:"skip_malformed"`
}

// ReportConfig controls the final report
type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=csv json"`
}

// MetricsConfig controls metrics export
type MetricsConfig struct {
	// Textfile, when set, receives the run's metrics in Prometheus text format
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

var defaults = map[string]interface{}{
	"log_level":             "info",
	"log_encoding":          "json",
	"replay.workers":        1,
	"replay.queue_size":     1024,
	"replay.freeze_locked":  false,
	"ingest.skip_malformed": false,
	"report.format":         "csv",
	"metrics.textfile":      "",
}

// flag name -> config key
var flagKeys = map[string]string{
	"log-level":        "log_level",
	"log-encoding":     "log_encoding",
	"workers":          "replay.workers",
	"queue-size":       "replay.queue_size",
	"freeze-locked":    "replay.freeze_locked",
	"skip-malformed":   "ingest.skip_malformed",
	"format":           "report.format",
	"metrics-textfile": "metrics.textfile",
}

// RegisterFlags adds the command line flags understood by Load
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("log-encoding", "json", "log encoding: json or console")
	fs.Int("workers", 1, "number of account shards replayed in parallel")
	fs.Int("queue-size", 1024, "events buffered per shard")
	fs.Bool("freeze-locked", false, "reject every event for accounts locked by a chargeback")
	fs.Bool("skip-malformed", false, "skip undecodable rows instead of failing")
	fs.String("format", "csv", "report format: csv or json")
	fs.String("metrics-textfile", "", "write run metrics to this file in Prometheus text format")
}

// Load resolves the configuration. fs may be nil when no flags apply.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// LOG_LEVEL is honoured for parity with the rest of our services
	if err := v.BindEnv("log_level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	var configFile string
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
	}

	if err := readConfigFile(v, configFile); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its validation tags
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// readConfigFile merges an explicit file, or txreplay.yaml from the working
// directory or /etc/txreplay when present
func readConfigFile(v *viper.Viper, path string) error {
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("txreplay")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/txreplay")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to load config file: %w", err)
	}
	return nil
}
