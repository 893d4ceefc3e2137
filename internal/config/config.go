package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// LLM providers
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	Timezone string         `toml:"timezone"`
	Store    StoreConfig    `toml:"store"`
	Threads  ThreadsConfig  `toml:"threads"`
	Analysis AnalysisConfig `toml:"analysis"`
	LLM      LLMConfig      `toml:"llm"`
	Schedule ScheduleConfig `toml:"schedule"`
	Server   ServerConfig   `toml:"server"`
	Lock     LockConfig     `toml:"lock"`
	Email    EmailConfig    `toml:"email"`
	Logging  LoggingConfig  `toml:"logging"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type ThreadsConfig struct {
	BaseURL             string `toml:"base_url"`
	PageLimit           int    `toml:"page_limit"`
	PageSize            int    `toml:"page_size"`
	PageDelayMS         int    `toml:"page_delay_ms"`
	InsightBatchSize    int    `toml:"insight_batch_size"`
	InsightBatchDelayMS int    `toml:"insight_batch_delay_ms"`
	RetryDelayMS        int    `toml:"retry_delay_ms"`
	MaxUpdateExisting   int    `toml:"max_update_existing"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

type AnalysisConfig struct {
	BuzzLookbackDays     int `toml:"buzz_lookback_days"`
	TimeSlotLookbackDays int `toml:"time_slot_lookback_days"`
}

type LLMConfig struct {
	Provider    string  `toml:"provider"`
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	BaseURL     string  `toml:"base_url"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
}

type ScheduleConfig struct {
	Enabled              bool   `toml:"enabled"`
	RefreshIntervalHours int    `toml:"refresh_interval_hours"`
	FollowersTime        string `toml:"followers_time"`
	GrowthScoreTime      string `toml:"growth_score_time"`
	WeeklyReport         string `toml:"weekly_report"`
}

type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type LockConfig struct {
	RedisAddr  string `toml:"redis_addr"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

type EmailConfig struct {
	Provider string `toml:"provider"`
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	SMTPUser string `toml:"smtp_user"`
	SMTPPass string `toml:"smtp_pass"`
	FromAddr string `toml:"from_address"`
	ToAddr   string `toml:"to_address"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version:  1,
		Timezone: "Asia/Tokyo",
		Threads: ThreadsConfig{
			BaseURL:             "https://graph.threads.net/v1.0",
			PageLimit:           5,
			PageSize:            50,
			PageDelayMS:         200,
			InsightBatchSize:    5,
			InsightBatchDelayMS: 1000,
			RetryDelayMS:        45000,
			MaxUpdateExisting:   50,
			TimeoutSeconds:      30,
		},
		Analysis: AnalysisConfig{
			BuzzLookbackDays: 30,
		},
		LLM: LLMConfig{
			Provider:    ProviderGemini,
			Model:       "gemini-2.0-flash",
			MaxTokens:   2048,
			Temperature: 0.8,
		},
		Schedule: ScheduleConfig{
			Enabled:              true,
			RefreshIntervalHours: 6,
			FollowersTime:        "23:00",
			GrowthScoreTime:      "23:30",
			WeeklyReport:         "0 8 * * 1",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Lock: LockConfig{
			TTLSeconds: 600,
		},
		Email: EmailConfig{
			Provider: "smtp",
			SMTPPort: 587,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", c.Timezone, err)
	}
	return loc, nil
}

// PageDelay is the pause before following a next-page cursor
func (t ThreadsConfig) PageDelay() time.Duration {
	return time.Duration(t.PageDelayMS) * time.Millisecond
}

// InsightBatchDelay is the pause between insight batches
func (t ThreadsConfig) InsightBatchDelay() time.Duration {
	return time.Duration(t.InsightBatchDelayMS) * time.Millisecond
}

// RetryDelay is the wait before retrying a rate-limited request
func (t ThreadsConfig) RetryDelay() time.Duration {
	return time.Duration(t.RetryDelayMS) * time.Millisecond
}

// Timeout is the per-request HTTP timeout
func (t ThreadsConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// TTL is the lease duration of account locks
func (l LockConfig) TTL() time.Duration {
	return time.Duration(l.TTLSeconds) * time.Second
}

// EmailEnabled reports whether enough is configured to send mail
func (e EmailConfig) EmailEnabled() bool {
	if e.Provider == "log" {
		return e.ToAddr != ""
	}
	return e.SMTPHost != "" && e.ToAddr != ""
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "threadpulse"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultStorePath returns the database location used when none is configured
func DefaultStorePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "threadpulse.db"), nil
}

// Load reads config from path, filling unset fields from Default
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads the config file (if any) and applies environment overrides.
// A missing file is not an error; defaults are used instead.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	if v := os.Getenv("THREADPULSE_CONFIG"); v != "" {
		path = v
	}

	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Store.Path == "" {
		p, err := DefaultStorePath()
		if err != nil {
			return nil, err
		}
		cfg.Store.Path = p
	}

	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("THREADPULSE_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("THREADPULSE_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("THREADPULSE_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("THREADPULSE_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("THREADPULSE_REDIS_ADDR"); v != "" {
		cfg.Lock.RedisAddr = v
	}
	if v := os.Getenv("THREADPULSE_SMTP_PASS"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("THREADPULSE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("THREADPULSE_RETRY_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Threads.RetryDelayMS = n
		}
	}
	if v := os.Getenv("THREADPULSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate rejects configurations the engine cannot run with
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Threads.BaseURL == "" {
		return fmt.Errorf("threads.base_url is required")
	}
	if c.Threads.PageLimit < 1 {
		return fmt.Errorf("threads.page_limit must be at least 1")
	}
	if c.Threads.InsightBatchSize < 1 {
		return fmt.Errorf("threads.insight_batch_size must be at least 1")
	}
	if c.Threads.MaxUpdateExisting < 0 {
		return fmt.Errorf("threads.max_update_existing must not be negative")
	}
	switch c.LLM.Provider {
	case ProviderGemini, ProviderAnthropic, "":
	default:
		return fmt.Errorf("unknown LLM provider: %s", c.LLM.Provider)
	}
	return nil
}

// Save writes config to path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
