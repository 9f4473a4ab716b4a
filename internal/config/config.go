package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every externally tunable setting of the inventory service.
type Config struct {
	AppEnv   string
	HTTPAddr string
	LogLevel string

	// Storage
	DBDriver         string
	DBDSN            string
	DBBusyTimeout    time.Duration
	EnforceUniqueSKU bool

	// Business rules
	LowStockThreshold  int
	RecommendThreshold float64

	// Auth gate
	AuthUsername     string
	AuthPasswordHash string
	JWTSecret        string
	SessionTTL       time.Duration
	RedisAddr        string

	CORSOrigin string
}

// LoadEnv loads a .env file into the process environment if one exists.
// A missing file is not an error; system environment variables are used instead.
func LoadEnv(logger *slog.Logger, files ...string) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := godotenv.Load(files...); err != nil {
		logger.Debug("no .env file loaded, relying on system environment variables", slog.String("error", err.Error()))
	}
}

// Load reads the configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:     getString("APP_ENV", "development"),
		HTTPAddr:   getString("HTTP_ADDR", ":8080"),
		LogLevel:   getString("LOG_LEVEL", "info"),
		DBDriver:   strings.ToLower(getString("DB_DRIVER", "sqlite")),
		DBDSN:      getString("DB_DSN", "inventory.db"),
		CORSOrigin: getString("CORS_ORIGIN", "http://localhost:5173"),

		AuthUsername:     getString("AUTH_USERNAME", "admin"),
		AuthPasswordHash: os.Getenv("AUTH_PASSWORD_HASH"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
	}

	var err error
	if cfg.DBBusyTimeout, err = getDuration("DB_BUSY_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 12*time.Hour); err != nil {
		return nil, err
	}
	if cfg.EnforceUniqueSKU, err = getBool("ENFORCE_UNIQUE_SKU", true); err != nil {
		return nil, err
	}
	if cfg.LowStockThreshold, err = getInt("LOW_STOCK_THRESHOLD", 5); err != nil {
		return nil, err
	}
	if cfg.RecommendThreshold, err = getFloat("RECOMMEND_THRESHOLD", 50); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q (want sqlite or mysql)", c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("config: DB_DSN must not be empty")
	}
	if c.LowStockThreshold < 0 {
		return errors.New("config: LOW_STOCK_THRESHOLD must not be negative")
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	return nil
}

// ValidateServe checks the additional settings required to run the HTTP server.
func (c *Config) ValidateServe() error {
	if c.AuthUsername == "" {
		return errors.New("config: AUTH_USERNAME must not be empty")
	}
	if c.AuthPasswordHash == "" {
		return errors.New("config: AUTH_PASSWORD_HASH is not set (generate one with `inventory hash-password`)")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
