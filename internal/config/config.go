// Package config loads server and CLI settings from defaults, an optional
// TOML file, a .env file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/mmynk/tithe/internal/imaging"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "tithe.toml"

type Config struct {
	// HTTP server
	Port           string `toml:"port"`
	MetricsEnabled bool   `toml:"metrics_enabled"`

	// Database
	DBPath string `toml:"db_path"`

	// Auth
	JWTSecret     string   `toml:"jwt_secret"`
	TokenDuration Duration `toml:"token_duration"`

	LogLevel string `toml:"log_level"`

	// AMQP; events are disabled when URL is empty.
	AMQP AMQPConfig `toml:"amqp"`

	Receipts ReceiptConfig `toml:"receipts"`

	DefaultPercent float64 `toml:"default_percent"`
}

type AMQPConfig struct {
	URL        string `toml:"url"`
	Exchange   string `toml:"exchange"`
	RoutingKey string `toml:"routing_key"`
}

type ReceiptConfig struct {
	TargetBytes int     `toml:"target_bytes"`
	MaxDim      int     `toml:"max_dim"`
	MinQuality  float64 `toml:"min_quality"`
}

// Duration is a time.Duration written as "24h" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in settings.
func Default() *Config {
	img := imaging.DefaultOptions()
	return &Config{
		Port:           "8080",
		MetricsEnabled: true,
		DBPath:         "./data/tithe.db",
		JWTSecret:      "dev-secret-change-in-production",
		TokenDuration:  Duration{24 * time.Hour},
		LogLevel:       "info",
		AMQP: AMQPConfig{
			Exchange:   "tithe",
			RoutingKey: "tithe.sessions",
		},
		Receipts: ReceiptConfig{
			TargetBytes: img.TargetMaxBytes,
			MaxDim:      img.MaxDim,
			MinQuality:  img.MinQuality,
		},
		DefaultPercent: 10,
	}
}

// Load reads path (DefaultPath when empty) on top of the defaults, then
// applies .env and environment overrides. A missing default file is not an
// error; a missing explicit file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.TokenDuration.Duration = getEnvDuration("TOKEN_DURATION", c.TokenDuration.Duration)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)

	c.AMQP.URL = getEnv("AMQP_URL", c.AMQP.URL)
	c.AMQP.Exchange = getEnv("AMQP_EXCHANGE", c.AMQP.Exchange)
	c.AMQP.RoutingKey = getEnv("AMQP_ROUTING_KEY", c.AMQP.RoutingKey)

	c.Receipts.TargetBytes = getEnvInt("RECEIPT_TARGET_BYTES", c.Receipts.TargetBytes)
	c.Receipts.MaxDim = getEnvInt("RECEIPT_MAX_DIM", c.Receipts.MaxDim)
	c.Receipts.MinQuality = getEnvFloat("RECEIPT_MIN_QUALITY", c.Receipts.MinQuality)

	c.DefaultPercent = getEnvFloat("DEFAULT_PERCENT", c.DefaultPercent)
}

// ImagingOptions converts the receipt settings for the compressor.
func (c *Config) ImagingOptions() imaging.Options {
	return imaging.Options{
		TargetMaxBytes: c.Receipts.TargetBytes,
		MaxDim:         c.Receipts.MaxDim,
		MinQuality:     c.Receipts.MinQuality,
	}
}

// EventsEnabled reports whether session events should be published.
func (c *Config) EventsEnabled() bool {
	return c.AMQP.URL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errs = append(errs, "database path cannot be empty")
	}
	if c.JWTSecret == "" {
		errs = append(errs, "JWT secret cannot be empty")
	}
	if c.TokenDuration.Duration < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid token duration %v: must be at least 1 minute", c.TokenDuration.Duration))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.AMQP.URL != "" {
		if u, err := url.Parse(c.AMQP.URL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQP.URL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQP.Exchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQP.RoutingKey == "" {
			errs = append(errs, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if c.Receipts.TargetBytes < 1024 {
		errs = append(errs, fmt.Sprintf("invalid receipt target %d bytes: must be at least 1024", c.Receipts.TargetBytes))
	}
	if c.Receipts.MaxDim < 1 {
		errs = append(errs, fmt.Sprintf("invalid receipt max dimension %d: must be positive", c.Receipts.MaxDim))
	}
	if c.Receipts.MinQuality <= 0 || c.Receipts.MinQuality > 1 {
		errs = append(errs, fmt.Sprintf("invalid receipt min quality %v: must be in (0, 1]", c.Receipts.MinQuality))
	}

	if c.DefaultPercent < 0 {
		errs = append(errs, fmt.Sprintf("invalid default percent %v: must not be negative", c.DefaultPercent))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
