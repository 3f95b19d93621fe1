// Package config provides configuration management for the price alert monitor.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	apperrors "pricewatch/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Monitor       MonitorConfig      `mapstructure:"monitor"`
	Store         StoreConfig        `mapstructure:"store"`
	Oracle        OracleConfig       `mapstructure:"oracle"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Server        ServerConfig       `mapstructure:"server"`
	Logging       LoggingConfig      `mapstructure:"logging"`

	// Dir is the configuration directory the values were loaded from.
	Dir string `mapstructure:"-"`
}

// MonitorConfig holds scheduling configuration. All values are seconds.
type MonitorConfig struct {
	CheckInterval int `mapstructure:"check_interval"`
	CacheTTL      int `mapstructure:"cache_ttl"`
	StopTimeout   int `mapstructure:"stop_timeout"`
}

// CheckIntervalDuration returns the check interval as a duration.
func (m MonitorConfig) CheckIntervalDuration() time.Duration {
	return time.Duration(m.CheckInterval) * time.Second
}

// CacheTTLDuration returns the price cache TTL as a duration.
func (m MonitorConfig) CacheTTLDuration() time.Duration {
	return time.Duration(m.CacheTTL) * time.Second
}

// StopTimeoutDuration returns the stop wait as a duration.
func (m MonitorConfig) StopTimeoutDuration() time.Duration {
	return time.Duration(m.StopTimeout) * time.Second
}

// StoreConfig holds alert store configuration.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // json, sqlite
	Path    string `mapstructure:"path"`
}

// OracleConfig holds price source configuration.
type OracleConfig struct {
	Provider string             `mapstructure:"provider"` // yahoo, http, static
	Timeout  int                `mapstructure:"timeout"`
	HTTP     HTTPOracleConfig   `mapstructure:"http"`
	Static   StaticOracleConfig `mapstructure:"static"`
}

// TimeoutDuration returns the per-lookup timeout as a duration.
func (o OracleConfig) TimeoutDuration() time.Duration {
	return time.Duration(o.Timeout) * time.Second
}

// HTTPOracleConfig holds configuration for a generic JSON price endpoint.
type HTTPOracleConfig struct {
	URL       string            `mapstructure:"url"`
	PricePath string            `mapstructure:"price_path"`
	Headers   map[string]string `mapstructure:"headers"`
}

// StaticOracleConfig holds a fixed price table.
type StaticOracleConfig struct {
	Prices map[string]float64 `mapstructure:"prices"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Recipient string           `mapstructure:"recipient"`
	Timeout   int              `mapstructure:"timeout"`
	Twilio    TwilioConfig     `mapstructure:"twilio"`
	Telegram  TelegramConfig   `mapstructure:"telegram"`
	Webhook   WebhookConfig    `mapstructure:"webhook"`
	Log       LogChannelConfig `mapstructure:"log"`
}

// TimeoutDuration returns the dispatch timeout as a duration.
func (n NotificationConfig) TimeoutDuration() time.Duration {
	return time.Duration(n.Timeout) * time.Second
}

// TwilioConfig holds Twilio WhatsApp configuration.
type TwilioConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
	ContentSID string `mapstructure:"content_sid"`
	BaseURL    string `mapstructure:"base_url"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// LogChannelConfig enables writing notifications to the log.
type LogChannelConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// credentials mirrors credentials.toml.
type credentials struct {
	Twilio struct {
		AccountSID string `mapstructure:"account_sid"`
		AuthToken  string `mapstructure:"auth_token"`
	} `mapstructure:"twilio"`
	Telegram struct {
		BotToken string `mapstructure:"bot_token"`
	} `mapstructure:"telegram"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/pricewatch"
	}
	return filepath.Join(home, ".config", "pricewatch")
}

// Loader reads config.toml from one directory and can watch it for changes.
type Loader struct {
	dir string
	v   *viper.Viper
	mu  sync.Mutex
}

// NewLoader creates a loader for configDir. Empty means DefaultConfigDir.
func NewLoader(configDir string) *Loader {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	return &Loader{dir: configDir, v: v}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	return NewLoader(configDir).Load()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("monitor.check_interval", 300)
	v.SetDefault("monitor.cache_ttl", 60)
	v.SetDefault("monitor.stop_timeout", 2)
	v.SetDefault("store.backend", "json")
	v.SetDefault("store.path", "")
	v.SetDefault("oracle.provider", "yahoo")
	v.SetDefault("oracle.timeout", 10)
	v.SetDefault("oracle.http.price_path", "price")
	v.SetDefault("notifications.timeout", 10)
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)
}

// Dir returns the configuration directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Load reads config.toml (writing a template first if it is missing),
// credentials.toml and .env files, then applies environment overrides.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Optional .env files; a missing file is not an error.
	_ = godotenv.Load(filepath.Join(l.dir, ".env"))
	_ = godotenv.Load()

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if _, err := createTemplateConfig(l.dir); err != nil {
			return nil, err
		}
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	}

	return l.decode()
}

// decode builds a Config from the current viper state. Caller holds l.mu.
func (l *Loader) decode() (*Config, error) {
	cfg := &Config{Dir: l.dir}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config.toml: %w", err)
	}

	if err := loadCredentials(l.dir, cfg); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Watch reloads the configuration whenever config.toml changes and calls fn
// with the new value. Invalid edits are logged and ignored.
func (l *Loader) Watch(logger zerolog.Logger, fn func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()

		if err != nil {
			logger.Warn().Err(err).Str("file", e.Name).Msg("Ignoring invalid configuration change")
			return
		}
		logger.Info().Str("file", e.Name).Msg("Configuration reloaded")
		fn(cfg)
	})
	l.v.WatchConfig()
}

func loadCredentials(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			_, err := createTemplateCredentials(configDir)
			return err
		}
		return err
	}

	var creds credentials
	if err := v.Unmarshal(&creds); err != nil {
		return err
	}

	if creds.Twilio.AccountSID != "" {
		cfg.Notifications.Twilio.AccountSID = creds.Twilio.AccountSID
	}
	if creds.Twilio.AuthToken != "" {
		cfg.Notifications.Twilio.AuthToken = creds.Twilio.AuthToken
	}
	if creds.Telegram.BotToken != "" {
		cfg.Notifications.Telegram.BotToken = creds.Telegram.BotToken
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	// Twilio credentials
	if v := os.Getenv("TWILIO_ACCOUNT_SID"); v != "" {
		cfg.Notifications.Twilio.AccountSID = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		cfg.Notifications.Twilio.AuthToken = v
	}
	if v := os.Getenv("TWILIO_WHATSAPP_NUMBER"); v != "" {
		cfg.Notifications.Twilio.From = v
	}
	if v := os.Getenv("TO_WHATSAPP_NUMBER"); v != "" {
		cfg.Notifications.Recipient = v
	}

	// Telegram credentials
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notifications.Telegram.ChatID = v
	}

	// Store and oracle selection
	if v := os.Getenv("PRICEWATCH_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("PRICEWATCH_ORACLE"); v != "" {
		cfg.Oracle.Provider = v
	}
}

// applyDerivedDefaults fills values that depend on the config directory.
func (c *Config) applyDerivedDefaults() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Oracle.Provider = strings.ToLower(strings.TrimSpace(c.Oracle.Provider))

	if c.Store.Path == "" {
		name := "alerts.json"
		if c.Store.Backend == "sqlite" {
			name = "alerts.db"
		}
		c.Store.Path = filepath.Join(c.Dir, name)
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(c.Dir, "logs", "pricewatch.log")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Monitor.CheckInterval <= 0 {
		return invalid("monitor.check_interval must be positive")
	}
	if c.Monitor.CacheTTL <= 0 {
		return invalid("monitor.cache_ttl must be positive")
	}
	if c.Monitor.StopTimeout <= 0 {
		return invalid("monitor.stop_timeout must be positive")
	}

	switch c.Store.Backend {
	case "json", "sqlite":
	default:
		return invalid("invalid store backend: %s (must be 'json' or 'sqlite')", c.Store.Backend)
	}

	switch c.Oracle.Provider {
	case "yahoo", "static":
	case "http":
		if c.Oracle.HTTP.URL == "" {
			return invalid("oracle.http.url is required for the http provider")
		}
		if !strings.Contains(c.Oracle.HTTP.URL, "{symbol}") {
			return invalid("oracle.http.url must contain the {symbol} placeholder")
		}
	default:
		return invalid("invalid oracle provider: %s (must be 'yahoo', 'http' or 'static')", c.Oracle.Provider)
	}
	if c.Oracle.Timeout <= 0 {
		return invalid("oracle.timeout must be positive")
	}

	n := c.Notifications
	if n.Timeout <= 0 {
		return invalid("notifications.timeout must be positive")
	}
	if n.Twilio.Enabled && (n.Twilio.AccountSID == "" || n.Twilio.AuthToken == "" || n.Twilio.From == "") {
		return invalid("twilio requires account_sid, auth_token and from")
	}
	if n.Telegram.Enabled && (n.Telegram.BotToken == "" || n.Telegram.ChatID == "") {
		return invalid("telegram requires bot_token and chat_id")
	}
	if n.Webhook.Enabled && n.Webhook.URL == "" {
		return invalid("webhook requires url")
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return apperrors.Wrapf(apperrors.ErrConfigInvalid, format, args...)
}
