package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Supported values for DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	// Server
	AppEnv         string `mapstructure:"APP_ENV"`
	AppPort        string `mapstructure:"APP_PORT"`
	ClientURL      string `mapstructure:"CLIENT_URL"`
	BackendBaseURL string `mapstructure:"BACKEND_BASE_URL"`

	// Sessions
	SessionSecret     string        `mapstructure:"SESSION_SECRET"`
	SessionCookieName string        `mapstructure:"SESSION_COOKIE_NAME"`
	SessionTTL        time.Duration `mapstructure:"-"`
	CookieSecure      bool          `mapstructure:"COOKIE_SECURE"`

	// Cron spec for purging expired sessions; empty disables the job.
	SessionCleanupSchedule string `mapstructure:"SESSION_CLEANUP_SCHEDULE"`

	// Database
	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseDSN string `mapstructure:"DATABASE_DSN"`

	// Credentials
	BcryptCost         int    `mapstructure:"BCRYPT_COST"`
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`

	// Catalog
	OpenLibraryURL     string        `mapstructure:"OPENLIBRARY_URL"`
	OpenLibraryTimeout time.Duration `mapstructure:"-"`
	SeedMasterQuery    string        `mapstructure:"SEED_MASTER_QUERY"`

	// Messaging
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// GoogleEnabled reports whether Google sign-in has credentials configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// IsProduction reports whether the app runs outside development and test.
func (c *Config) IsProduction() bool {
	return c.AppEnv != "development" && c.AppEnv != "test"
}

// GoogleCallbackURL is the redirect URI registered with Google.
func (c *Config) GoogleCallbackURL() string {
	return strings.TrimRight(c.BackendBaseURL, "/") + "/auth/google/callback"
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", ":4000")
	v.SetDefault("CLIENT_URL", "http://localhost:5173")
	v.SetDefault("BACKEND_BASE_URL", "http://localhost:4000")

	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_COOKIE_NAME", "sid")
	v.SetDefault("SESSION_TTL_HOURS", 168)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("SESSION_CLEANUP_SCHEDULE", "@every 15m")

	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_DSN", "bookshelf.sqlite")

	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")

	v.SetDefault("OPENLIBRARY_URL", "https://openlibrary.org")
	v.SetDefault("OPENLIBRARY_TIMEOUT_SECONDS", 10)
	v.SetDefault("SEED_MASTER_QUERY", "")

	v.SetDefault("RABBITMQ_URL", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	cfg.SessionTTL = time.Duration(v.GetInt("SESSION_TTL_HOURS")) * time.Hour
	cfg.OpenLibraryTimeout = time.Duration(v.GetInt("OPENLIBRARY_TIMEOUT_SECONDS")) * time.Second

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive")
	}
	if strings.TrimSpace(c.SessionSecret) == "" {
		if c.IsProduction() {
			return fmt.Errorf("SESSION_SECRET is required when APP_ENV=%s", c.AppEnv)
		}
		c.SessionSecret = "dev-session-secret"
	}
	return nil
}
