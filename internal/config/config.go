package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cryptodata/internal/request"
)

// Config is the application configuration. Everything the pipeline tunes —
// request defaults, detector thresholds, repair policies, provider budgets —
// is supplied here, never recomputed in the core.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Defaults  request.Defaults `yaml:"request_defaults"`
	Extract   ExtractConfig   `yaml:"extract"`
	Quality   QualityConfig   `yaml:"quality"`
	Repair    RepairConfig    `yaml:"repair"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// AppConfig identifies the deployment
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	Filename   string `yaml:"filename"`
	MaxSize    int    `yaml:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
	Compress   bool   `yaml:"compress"`
}

// RedisConfig configures the shared cache; disabled falls back to memory
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ProviderBudget is one provider's rate and concurrency budget
type ProviderBudget struct {
	RequestsPerSec float64 `yaml:"requests_per_sec"`
	Burst          int     `yaml:"burst"`
	MaxConcurrent  int     `yaml:"max_concurrent"`
}

// RetryConfig shapes retry of transient provider failures
type RetryConfig struct {
	MaxRetries  int           `yaml:"max_retries"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Factor      float64       `yaml:"factor"`
	Jitter      float64       `yaml:"jitter"`
}

// ExtractConfig configures the extraction orchestrator
type ExtractConfig struct {
	Timeout   time.Duration             `yaml:"timeout"`
	Retry     RetryConfig               `yaml:"retry"`
	Providers map[string]ProviderBudget `yaml:"providers"`
	// DefaultBudget applies to providers without an explicit entry
	DefaultBudget ProviderBudget `yaml:"default_budget"`
	CacheTTL      time.Duration  `yaml:"cache_ttl"`
}

// QualityConfig holds the detector thresholds
type QualityConfig struct {
	OutlierWindow        int     `yaml:"outlier_window"`
	OutlierThreshold     float64 `yaml:"outlier_threshold"`
	OutlierMinObs        int     `yaml:"outlier_min_obs"`
	StaleRunLength       int     `yaml:"stale_run_length"`
	MaxInterpolatableGap int     `yaml:"max_interpolatable_gap"`
}

// RepairConfig holds the per-defect-kind policy table and repair parameters
type RepairConfig struct {
	// Policies maps a defect kind to a repair policy name; kinds not listed
	// use the built-in default table.
	Policies   map[string]string `yaml:"policies"`
	ClipWindow int               `yaml:"clip_window"`
	MinObs     int               `yaml:"min_obs"`
}

// SchedulerJob is one recurring extraction
type SchedulerJob struct {
	Name    string         `yaml:"name"`
	Cron    string         `yaml:"cron"`
	Request request.Params `yaml:"request"`
}

// SchedulerConfig configures recurring extractions
type SchedulerConfig struct {
	Enabled bool           `yaml:"enabled"`
	Jobs    []SchedulerJob `yaml:"jobs"`
}

var envPattern = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// expandEnv substitutes ${VAR} and ${VAR:default} references in the raw
// yaml before parsing
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		groups := envPattern.FindSubmatch(match)
		if v, ok := os.LookupEnv(string(groups[1])); ok {
			return []byte(v)
		}
		return groups[2]
	})
}

// Load reads a YAML configuration file, expanding ${VAR} references from
// the environment. A .env file alongside the process, if present, is
// loaded first.
func Load(filename string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when a section is absent
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "cryptodata", Env: "development"},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics:  MetricsConfig{Enabled: true, Path: "/metrics"},
		Defaults: request.StandardDefaults(),
		Extract: ExtractConfig{
			Timeout: 2 * time.Minute,
			Retry: RetryConfig{
				MaxRetries:  3,
				InitialWait: 100 * time.Millisecond,
				MaxWait:     5 * time.Second,
				Factor:      2.0,
				Jitter:      0.1,
			},
			DefaultBudget: ProviderBudget{RequestsPerSec: 5, Burst: 10, MaxConcurrent: 4},
			CacheTTL:      time.Minute,
		},
		Quality: QualityConfig{
			OutlierWindow:        7,
			OutlierThreshold:     3.0,
			OutlierMinObs:        4,
			StaleRunLength:       5,
			MaxInterpolatableGap: 3,
		},
		Repair: RepairConfig{
			ClipWindow: 7,
		},
	}
}

// Validate checks cross-field consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Quality.OutlierWindow < 2 {
		return fmt.Errorf("outlier_window must be at least 2, got %d", c.Quality.OutlierWindow)
	}
	if c.Quality.OutlierThreshold <= 0 {
		return fmt.Errorf("outlier_threshold must be positive, got %v", c.Quality.OutlierThreshold)
	}
	if c.Quality.StaleRunLength < 2 {
		return fmt.Errorf("stale_run_length must be at least 2, got %d", c.Quality.StaleRunLength)
	}
	if c.Quality.MaxInterpolatableGap < 0 {
		return fmt.Errorf("max_interpolatable_gap must not be negative")
	}
	if c.Extract.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry max_retries must not be negative")
	}
	for name, budget := range c.Extract.Providers {
		if budget.RequestsPerSec <= 0 {
			return fmt.Errorf("provider %q: requests_per_sec must be positive", name)
		}
	}
	return nil
}
