package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Codeforces CodeforcesConfig `mapstructure:"codeforces"`
	Dataset    DatasetConfig    `mapstructure:"dataset"`
	Sampling   SamplingConfig   `mapstructure:"sampling"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CodeforcesConfig holds Codeforces API client configuration
type CodeforcesConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	SleepInterval    time.Duration `mapstructure:"sleep_interval"` // fixed delay between API calls
	Timeout          time.Duration `mapstructure:"timeout"`
	StandingsTimeout time.Duration `mapstructure:"standings_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelayBase   time.Duration `mapstructure:"retry_delay_base"`
}

// DatasetConfig holds dataset assembly configuration
type DatasetConfig struct {
	OutputDir          string `mapstructure:"output_dir"`
	ChunkCount         int    `mapstructure:"chunk_count"`
	Normalize          bool   `mapstructure:"normalize"`
	Seed               int64  `mapstructure:"seed"`
	RatingPivot        int    `mapstructure:"rating_pivot"`
	ProblemRatingPivot int    `mapstructure:"problem_rating_pivot"`
	DeltaWindow        int    `mapstructure:"delta_window"`
}

// SamplingConfig holds handle sampling configuration
type SamplingConfig struct {
	MinDate     string `mapstructure:"min_date"` // contest range lower bound, YYYY-MM-DD
	MaxDate     string `mapstructure:"max_date"`
	TotalTarget int    `mapstructure:"total_target"`
	Seed        int64  `mapstructure:"seed"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("CFDATASET")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("codeforces.base_url", "https://codeforces.com/api")
	v.SetDefault("codeforces.sleep_interval", "2100ms")
	v.SetDefault("codeforces.timeout", "10s")
	v.SetDefault("codeforces.standings_timeout", "30s")
	v.SetDefault("codeforces.max_retries", 5)
	v.SetDefault("codeforces.retry_delay_base", "1s")

	v.SetDefault("dataset.output_dir", "./data/dataset")
	v.SetDefault("dataset.chunk_count", 30)
	v.SetDefault("dataset.normalize", true)
	v.SetDefault("dataset.seed", 42)
	v.SetDefault("dataset.rating_pivot", 4500)
	v.SetDefault("dataset.problem_rating_pivot", 3500)
	v.SetDefault("dataset.delta_window", 5)

	v.SetDefault("sampling.min_date", "2020-01-01")
	v.SetDefault("sampling.max_date", "2025-03-01")
	v.SetDefault("sampling.total_target", 80000)
	v.SetDefault("sampling.seed", 981)

	v.SetDefault("storage.db_path", "./data/cfdataset.db")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9190")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Codeforces.BaseURL == "" {
		return fmt.Errorf("codeforces.base_url is required")
	}
	if c.Codeforces.SleepInterval < 500*time.Millisecond {
		return fmt.Errorf("codeforces.sleep_interval must be at least 500ms")
	}
	if c.Codeforces.Timeout < time.Second {
		return fmt.Errorf("codeforces.timeout must be at least 1 second")
	}
	if c.Codeforces.StandingsTimeout < c.Codeforces.Timeout {
		return fmt.Errorf("codeforces.standings_timeout must not be shorter than codeforces.timeout")
	}
	if c.Codeforces.MaxRetries < 1 || c.Codeforces.MaxRetries > 10 {
		return fmt.Errorf("codeforces.max_retries must be between 1 and 10")
	}

	if c.Dataset.OutputDir == "" {
		return fmt.Errorf("dataset.output_dir is required")
	}
	if c.Dataset.ChunkCount < 1 {
		return fmt.Errorf("dataset.chunk_count must be at least 1")
	}
	if c.Dataset.RatingPivot < 1 {
		return fmt.Errorf("dataset.rating_pivot must be positive")
	}
	if c.Dataset.ProblemRatingPivot < 1 {
		return fmt.Errorf("dataset.problem_rating_pivot must be positive")
	}
	if c.Dataset.DeltaWindow < 1 {
		return fmt.Errorf("dataset.delta_window must be at least 1")
	}

	if _, err := time.Parse("2006-01-02", c.Sampling.MinDate); err != nil {
		return fmt.Errorf("sampling.min_date must be YYYY-MM-DD: %w", err)
	}
	if _, err := time.Parse("2006-01-02", c.Sampling.MaxDate); err != nil {
		return fmt.Errorf("sampling.max_date must be YYYY-MM-DD: %w", err)
	}
	if c.Sampling.TotalTarget < 1 {
		return fmt.Errorf("sampling.total_target must be at least 1")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		return fmt.Errorf("metrics.listen_addr is required when metrics are enabled")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
