// Package config loads application configuration from defaults, an optional
// YAML file and SERVICEDESK_ environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "SERVICEDESK_"
	defaultConfigPath = "configs/config.yaml"
)

// Config is the root configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	JWT           JWTConfig           `koanf:"jwt"`
	CORS          CORSConfig          `koanf:"cors"`
	Live          LiveConfig          `koanf:"live"`
	Crypto        CryptoConfig        `koanf:"crypto"`
	SMS           SMSConfig           `koanf:"sms"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Auth          AuthConfig          `koanf:"auth"`
	Invoice       InvoiceConfig       `koanf:"invoice"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	MigrateOnStart  bool          `koanf:"migrate_on_start"`
	MigrationsDir   string        `koanf:"migrations_dir"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// JWTConfig contains token settings.
type JWTConfig struct {
	SecretKey     string        `koanf:"secret_key"`
	TokenDuration time.Duration `koanf:"token_duration"`
}

// CORSConfig contains allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// LiveConfig contains websocket settings.
type LiveConfig struct {
	// OriginPatterns are host patterns accepted for cross-origin websocket
	// upgrades, e.g. "panel.example.com" or "*.example.com".
	OriginPatterns []string `koanf:"origin_patterns"`
}

// CryptoConfig contains encryption keys.
type CryptoConfig struct {
	// PhoneKey is a base64 encoded 32-byte key.
	PhoneKey string `koanf:"phone_key"`
}

// SMSConfig contains gateway settings.
type SMSConfig struct {
	URL                string        `koanf:"url"`
	Username           string        `koanf:"username"`
	Password           string        `koanf:"password"`
	Sender             string        `koanf:"sender"`
	Title              string        `koanf:"title"`
	Timeout            time.Duration `koanf:"timeout"`
	InsecureSkipVerify bool          `koanf:"insecure_skip_verify"`
	RateLimit          float64       `koanf:"rate_limit"`
}

// NotificationsConfig contains customer notification settings.
type NotificationsConfig struct {
	Enabled     bool          `koanf:"enabled"`
	PublicURL   string        `koanf:"public_url"`
	StatusDelay time.Duration `koanf:"status_delay"`
	Worker      WorkerConfig  `koanf:"worker"`
}

// WorkerConfig contains queue worker settings.
type WorkerConfig struct {
	BatchSize    int           `koanf:"batch_size"`
	PollInterval time.Duration `koanf:"poll_interval"`
	RetryDelay   time.Duration `koanf:"retry_delay"`
	ClaimTTL     time.Duration `koanf:"claim_ttl"`
}

// AuthConfig contains account bootstrap settings.
type AuthConfig struct {
	// BootstrapAdminPassword creates user "admin" when no accounts exist.
	BootstrapAdminPassword string `koanf:"bootstrap_admin_password"`
}

// InvoiceConfig contains public invoice upload settings.
type InvoiceConfig struct {
	// TurnstileSecret enables captcha checks on uploads when set.
	TurnstileSecret string  `koanf:"turnstile_secret"`
	TurnstileURL    string  `koanf:"turnstile_url"`
	MaxBytes        int     `koanf:"max_bytes"`
	RateLimit       float64 `koanf:"rate_limit"`
	Burst           int     `koanf:"burst"`
}

// Default returns configuration with every optional value filled in.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			RequestTimeout:    60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectAttempts: 5,
			ConnectTimeout:  60 * time.Second,
			MigrationsDir:   "migrations",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		JWT: JWTConfig{
			TokenDuration: 24 * time.Hour,
		},
		SMS: SMSConfig{
			URL:       "https://smsvt.voicetelekom.com:9588/sms/create",
			Title:     "SIS Teknik SMS",
			Timeout:   30 * time.Second,
			RateLimit: 5,
		},
		Notifications: NotificationsConfig{
			Enabled:     true,
			StatusDelay: time.Hour,
			Worker: WorkerConfig{
				BatchSize:    25,
				PollInterval: 30 * time.Second,
				RetryDelay:   5 * time.Minute,
				ClaimTTL:     15 * time.Minute,
			},
		},
		Invoice: InvoiceConfig{
			MaxBytes:  8 << 20,
			RateLimit: 1,
			Burst:     10,
		},
	}
}

// Load reads configuration. The file path comes from CONFIG_PATH; a missing
// file at the default path is not an error.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	k := koanf.New(".")

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envKey maps SERVICEDESK_SMS__PASSWORD to sms.password.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

// Validate checks required values and known enums.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if len(c.JWT.SecretKey) < 32 {
		errs = append(errs, errors.New("jwt.secret_key must be at least 32 characters"))
	}
	if c.Crypto.PhoneKey == "" {
		errs = append(errs, errors.New("crypto.phone_key is required"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}

	if c.Notifications.Enabled {
		if c.SMS.Username == "" || c.SMS.Password == "" {
			errs = append(errs, errors.New("sms.username and sms.password are required when notifications are enabled"))
		}
		if c.SMS.Sender == "" {
			errs = append(errs, errors.New("sms.sender is required when notifications are enabled"))
		}
		if c.Notifications.PublicURL == "" {
			errs = append(errs, errors.New("notifications.public_url is required when notifications are enabled"))
		}
	}

	if c.Invoice.MaxBytes <= 0 {
		errs = append(errs, errors.New("invoice.max_bytes must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
