// Package config handles configuration loading for captrades.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"   yaml:"store"`
	EFD     EFDConfig     `mapstructure:"efd"     yaml:"efd"`
	Enrich  EnrichConfig  `mapstructure:"enrich"  yaml:"enrich"`
	Roster  RosterConfig  `mapstructure:"roster"  yaml:"roster"`
	Summary SummaryConfig `mapstructure:"summary" yaml:"summary"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// StoreConfig selects and configures the trade store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // "postgres" or "memory"
	DSN    string `mapstructure:"dsn"    yaml:"dsn"`
}

// EFDConfig holds Senate eFD portal settings.
type EFDConfig struct {
	BaseURL       string `mapstructure:"base_url"        yaml:"base_url"`
	StartDate     string `mapstructure:"start_date"      yaml:"start_date"`      // MM/DD/YYYY lower bound for update runs
	RecordDelayMS int    `mapstructure:"record_delay_ms" yaml:"record_delay_ms"` // pause between per-filing fetches
}

// RecordDelay returns the per-filing pause as a duration.
func (c EFDConfig) RecordDelay() time.Duration {
	return time.Duration(c.RecordDelayMS) * time.Millisecond
}

// EnrichConfig holds market-data enrichment settings.
type EnrichConfig struct {
	BaseURL     string `mapstructure:"base_url"     yaml:"base_url"`
	CacheTTLSec int    `mapstructure:"cache_ttl"    yaml:"cache_ttl"`
	RatePerSec  int    `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`
}

// RosterConfig holds legislator-directory loader settings.
type RosterConfig struct {
	CurrentURL    string `mapstructure:"current_url"    yaml:"current_url"`
	HistoricalURL string `mapstructure:"historical_url" yaml:"historical_url"`
	ImageBaseURL  string `mapstructure:"image_base_url" yaml:"image_base_url"`
	VerifyImages  bool   `mapstructure:"verify_images"  yaml:"verify_images"`
}

// SummaryConfig holds the rolling summary windows, in days.
type SummaryConfig struct {
	Windows []int `mapstructure:"windows" yaml:"windows"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "console" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.captrades/config.yaml (home directory)
//  3. /etc/captrades/config.yaml (system)
//
// Environment variables override config file values.
// Format: CAPTRADES_<SECTION>_<KEY>, e.g., CAPTRADES_STORE_DSN
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".captrades"))
	v.AddConfigPath("/etc/captrades")

	v.SetEnvPrefix("CAPTRADES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// Default returns the built-in configuration without consulting files or
// the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("CAPTRADES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Store defaults
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")

	// eFD portal defaults
	v.SetDefault("efd.base_url", "https://efdsearch.senate.gov")
	v.SetDefault("efd.start_date", "01/01/2012")
	v.SetDefault("efd.record_delay_ms", 2000)

	// Enrichment defaults
	v.SetDefault("enrich.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("enrich.cache_ttl", 3600)
	v.SetDefault("enrich.rate_per_sec", 5)

	// Roster defaults
	v.SetDefault("roster.current_url", "https://theunitedstates.io/congress-legislators/legislators-current.json")
	v.SetDefault("roster.historical_url", "https://theunitedstates.io/congress-legislators/legislators-historical.json")
	v.SetDefault("roster.image_base_url", "https://theunitedstates.io/images/congress/225x275")
	v.SetDefault("roster.verify_images", false)

	// Summary windows (days)
	v.SetDefault("summary.windows", []int{30, 60, 90, 120})

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if dsn := os.Getenv("CAPTRADES_STORE_DSN"); dsn != "" {
		cfg.Store.DSN = dsn
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
