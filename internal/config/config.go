package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogMode     string            `yaml:"log_mode"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Quiz        QuizConfig        `yaml:"quiz"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type TelegramConfig struct {
	// Token is only read from the environment.
	Token                string `yaml:"-"`
	Debug                bool   `yaml:"debug"`
	UpdateTimeout        int    `yaml:"update_timeout"`
	MaxConcurrentUpdates int64  `yaml:"max_concurrent_updates"`
}

type QuizConfig struct {
	DownloadTimeout        time.Duration `yaml:"download_timeout"`
	MaxFileSize            int64         `yaml:"max_file_size"`
	MaxConcurrentDownloads int64         `yaml:"max_concurrent_downloads"`
	ShuffleQuestions       bool          `yaml:"shuffle_questions"`
}

type LeaderboardConfig struct {
	Size        int           `yaml:"size"`
	GistID      string        `yaml:"-"`
	GitHubToken string        `yaml:"-"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

var ErrMissingToken = errors.New("TELEGRAM_BOT_TOKEN environment variable is required")

func Default() *Config {
	return &Config{
		LogMode: "development",
		Telegram: TelegramConfig{
			UpdateTimeout:        60,
			MaxConcurrentUpdates: 64,
		},
		Quiz: QuizConfig{
			DownloadTimeout:        30 * time.Second,
			MaxFileSize:            20 << 20,
			MaxConcurrentDownloads: 4,
		},
		Leaderboard: LeaderboardConfig{
			Size:        10,
			HTTPTimeout: 10 * time.Second,
		},
	}
}

// Load reads the optional YAML file at path and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogMode = getEnv("LOG_MODE", c.LogMode)

	c.Telegram.Token = getEnv("TELEGRAM_BOT_TOKEN", c.Telegram.Token)
	c.Telegram.Debug = getEnvAsBool("TELEGRAM_DEBUG", c.Telegram.Debug)
	c.Telegram.UpdateTimeout = getEnvAsInt("TELEGRAM_UPDATE_TIMEOUT", c.Telegram.UpdateTimeout)
	c.Telegram.MaxConcurrentUpdates = getEnvAsInt64("MAX_CONCURRENT_UPDATES", c.Telegram.MaxConcurrentUpdates)

	c.Quiz.DownloadTimeout = getEnvAsDuration("DOWNLOAD_TIMEOUT", c.Quiz.DownloadTimeout)
	c.Quiz.MaxFileSize = getEnvAsInt64("MAX_FILE_SIZE", c.Quiz.MaxFileSize)
	c.Quiz.MaxConcurrentDownloads = getEnvAsInt64("MAX_CONCURRENT_DOWNLOADS", c.Quiz.MaxConcurrentDownloads)
	c.Quiz.ShuffleQuestions = getEnvAsBool("SHUFFLE_QUESTIONS", c.Quiz.ShuffleQuestions)

	c.Leaderboard.Size = getEnvAsInt("LEADERBOARD_SIZE", c.Leaderboard.Size)
	c.Leaderboard.GistID = getEnv("GITHUB_GIST_ID", c.Leaderboard.GistID)
	c.Leaderboard.GitHubToken = getEnv("GITHUB_TOKEN", c.Leaderboard.GitHubToken)
	c.Leaderboard.HTTPTimeout = getEnvAsDuration("LEADERBOARD_HTTP_TIMEOUT", c.Leaderboard.HTTPTimeout)

	c.Metrics.Addr = getEnv("METRICS_ADDR", c.Metrics.Addr)
}

func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return ErrMissingToken
	}
	if c.Telegram.MaxConcurrentUpdates <= 0 {
		return fmt.Errorf("max_concurrent_updates must be positive")
	}
	if c.Quiz.DownloadTimeout <= 0 {
		return fmt.Errorf("download_timeout must be positive")
	}
	if c.Quiz.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive")
	}
	if c.Quiz.MaxConcurrentDownloads <= 0 {
		return fmt.Errorf("max_concurrent_downloads must be positive")
	}
	if c.Leaderboard.Size <= 0 {
		return fmt.Errorf("leaderboard size must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
