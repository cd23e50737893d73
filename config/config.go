// Package config loads dispatcher settings from a YAML file, the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Swind/go-dispatcher/core"
)

// EnvPrefix prefixes every environment override, e.g. DISPATCHER_LOGGING_LEVEL.
const EnvPrefix = "DISPATCHER"

// Config is the root configuration structure.
type Config struct {
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Demo       DemoConfig       `mapstructure:"demo"`
	Cron       []CronConfig     `mapstructure:"cron"`
}

// DispatcherConfig maps onto core.Config.
type DispatcherConfig struct {
	Name             string        `mapstructure:"name"`
	PanicPolicy      string        `mapstructure:"panic_policy"`
	PumpInitialDelay time.Duration `mapstructure:"pump_initial_delay"`
	PumpMaxDelay     time.Duration `mapstructure:"pump_max_delay"`
	PumpBackoffRatio float64       `mapstructure:"pump_backoff_ratio"`
	HistoryCapacity  int           `mapstructure:"history_capacity"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Address      string        `mapstructure:"address"`
	Namespace    string        `mapstructure:"namespace"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// DemoConfig drives the dispatcher-demo workload.
type DemoConfig struct {
	Producers      int           `mapstructure:"producers"`
	PostInterval   time.Duration `mapstructure:"post_interval"`
	TimerInterval  time.Duration `mapstructure:"timer_interval"`
	TimerPriority  string        `mapstructure:"timer_priority"`
	RunDuration    time.Duration `mapstructure:"run_duration"`
	StatsInterval  time.Duration `mapstructure:"stats_interval"`
	BlockingInvoke bool          `mapstructure:"blocking_invoke"`
}

// CronConfig describes one cron-driven job.
type CronConfig struct {
	Name       string `mapstructure:"name"`
	Expression string `mapstructure:"expression"`
	Priority   string `mapstructure:"priority"`
}

// PriorityValue returns the job's priority, PriorityNormal when unset.
func (c CronConfig) PriorityValue() core.Priority {
	if c.Priority == "" {
		return core.PriorityNormal
	}
	p, err := core.ParsePriority(c.Priority)
	if err != nil {
		return core.PriorityNormal
	}
	return p
}

// Default returns a Config with default values.
func Default() *Config {
	backoff := core.DefaultPumpBackoff()
	return &Config{
		Dispatcher: DispatcherConfig{
			Name:             "dispatcher",
			PanicPolicy:      core.PanicPolicyRecover.String(),
			PumpInitialDelay: backoff.InitialDelay,
			PumpMaxDelay:     backoff.MaxDelay,
			PumpBackoffRatio: backoff.BackoffRatio,
			HistoryCapacity:  100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled:      false,
			Address:      ":9090",
			Namespace:    "dispatcher",
			PollInterval: 5 * time.Second,
		},
		Demo: DemoConfig{
			Producers:      3,
			PostInterval:   100 * time.Millisecond,
			TimerInterval:  500 * time.Millisecond,
			TimerPriority:  core.PriorityRender.String(),
			RunDuration:    5 * time.Second,
			StatsInterval:  time.Second,
			BlockingInvoke: true,
		},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	// Dispatcher defaults
	v.SetDefault("dispatcher.name", defaults.Dispatcher.Name)
	v.SetDefault("dispatcher.panic_policy", defaults.Dispatcher.PanicPolicy)
	v.SetDefault("dispatcher.pump_initial_delay", defaults.Dispatcher.PumpInitialDelay)
	v.SetDefault("dispatcher.pump_max_delay", defaults.Dispatcher.PumpMaxDelay)
	v.SetDefault("dispatcher.pump_backoff_ratio", defaults.Dispatcher.PumpBackoffRatio)
	v.SetDefault("dispatcher.history_capacity", defaults.Dispatcher.HistoryCapacity)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.file", defaults.Logging.File)

	// Metrics defaults
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.address", defaults.Metrics.Address)
	v.SetDefault("metrics.namespace", defaults.Metrics.Namespace)
	v.SetDefault("metrics.poll_interval", defaults.Metrics.PollInterval)

	// Demo defaults
	v.SetDefault("demo.producers", defaults.Demo.Producers)
	v.SetDefault("demo.post_interval", defaults.Demo.PostInterval)
	v.SetDefault("demo.timer_interval", defaults.Demo.TimerInterval)
	v.SetDefault("demo.timer_priority", defaults.Demo.TimerPriority)
	v.SetDefault("demo.run_duration", defaults.Demo.RunDuration)
	v.SetDefault("demo.stats_interval", defaults.Demo.StatsInterval)
	v.SetDefault("demo.blocking_invoke", defaults.Demo.BlockingInvoke)
}

// NewViper returns a viper instance with defaults and environment overrides wired.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (or ./dispatcher.yaml when path is empty and the file exists),
// applies environment overrides and validates the result. envFiles are loaded into
// the process environment first; a missing .env file is not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("dispatcher")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

func loadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// Policy returns the configured panic policy. Validate guarantees the value is known.
func (c *DispatcherConfig) Policy() core.PanicPolicy {
	if strings.EqualFold(c.PanicPolicy, core.PanicPolicyPropagate.String()) {
		return core.PanicPolicyPropagate
	}
	return core.PanicPolicyRecover
}

// CoreConfig converts the dispatcher section into a core.Config. Logger, Metrics and
// handlers are left for the caller to attach.
func (c *Config) CoreConfig() *core.Config {
	return &core.Config{
		Name:        c.Dispatcher.Name,
		PanicPolicy: c.Dispatcher.Policy(),
		PumpBackoff: core.PumpBackoff{
			InitialDelay: c.Dispatcher.PumpInitialDelay,
			MaxDelay:     c.Dispatcher.PumpMaxDelay,
			BackoffRatio: c.Dispatcher.PumpBackoffRatio,
		},
		HistoryCapacity: c.Dispatcher.HistoryCapacity,
	}
}
