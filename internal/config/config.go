// Package config provides configuration management for the application.
// It handles loading, validation, and access to configuration values from
// YAML files and environment variables using viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/storesync/internal/logger"
)

// Scheduler defaults.
const (
	defaultTickSeconds    = 60
	defaultMaxConcurrent  = 3
	defaultRequestTimeout = 30 * time.Second
)

// Server defaults.
const (
	defaultServerAddress = ":8080"
)

// Crawler defaults.
const (
	defaultUserAgent = "storesync/1.0 (+https://github.com/jonesrussell/storesync)"
)

// Config represents the application configuration.
type Config struct {
	// Log holds logger configuration.
	Log logger.Config `yaml:"log" mapstructure:"log"`
	// Database holds the postgres connection settings.
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Scheduler holds tick cadence and concurrency settings.
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	// Crawler holds crawl defaults applied when a source does not override them.
	Crawler CrawlerConfig `yaml:"crawler" mapstructure:"crawler"`
	// Server holds the HTTP trigger surface settings.
	Server ServerConfig `yaml:"server" mapstructure:"server"`
}

// DatabaseConfig holds postgres connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     string `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	DBName   string `yaml:"dbname" mapstructure:"dbname"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
}

// SchedulerConfig holds scheduler settings.
type SchedulerConfig struct {
	// TickSeconds is how often due sources are re-evaluated.
	TickSeconds int `yaml:"tick_seconds" mapstructure:"tick_seconds"`
	// MaxConcurrent caps simultaneously running crawl jobs.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// Tick returns the tick interval.
func (c *SchedulerConfig) Tick() time.Duration {
	secs := c.TickSeconds
	if secs <= 0 {
		secs = defaultTickSeconds
	}
	return time.Duration(secs) * time.Second
}

// CrawlerConfig holds crawl defaults.
type CrawlerConfig struct {
	UserAgent      string        `yaml:"user_agent" mapstructure:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address" mapstructure:"address"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database: %w", ErrMissingHost)
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database: %w", ErrMissingDBName)
	}
	if c.Scheduler.MaxConcurrent < 0 {
		return fmt.Errorf("scheduler: %w", ErrInvalidConcurrency)
	}
	return nil
}

// Load loads configuration from the given path (optional) plus environment
// variables prefixed with STORESYNC_.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("STORESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/storesync")
	}

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults plus env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers default values for every configurable key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", string(logger.DefaultLevel))
	v.SetDefault("log.encoding", logger.DefaultEncoding)
	v.SetDefault("log.development", false)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "storesync")
	v.SetDefault("database.dbname", "storesync")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("scheduler.tick_seconds", defaultTickSeconds)
	v.SetDefault("scheduler.max_concurrent", defaultMaxConcurrent)

	v.SetDefault("crawler.user_agent", defaultUserAgent)
	v.SetDefault("crawler.request_timeout", defaultRequestTimeout)

	v.SetDefault("server.address", defaultServerAddress)
}
