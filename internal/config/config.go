package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Env  string `env:"ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"8080"`

	// Database
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"geumjjoki"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"geumjjoki"`
	DBName     string `env:"DB_NAME" envDefault:"geumjjoki"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// JWT tokens are issued by the auth service; this API only verifies them.
	JWTSecret string `env:"JWT_SECRET" envDefault:"fallback-secret-key-for-dev-only"`

	// AdminAPIKey guards catalog administration endpoints. Empty disables them.
	AdminAPIKey string `env:"ADMIN_API_KEY"`

	// Timezone is the location civil dates (expense dates, challenge days) are computed in.
	Timezone string `env:"TIMEZONE" envDefault:"UTC"`

	// Messaging
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"geumjjoki.events"`

	// Tracing
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// MaintenanceConcurrency bounds how many users a reattribution pass works on at once.
	MaintenanceConcurrency int `env:"MAINTENANCE_CONCURRENCY" envDefault:"4"`

	location *time.Location
}

var appConfig *Config

// Load loads configuration from the environment, reading a .env file first if present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	appConfig = cfg
	return cfg, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// Location returns the civil-date location. Defaults to UTC.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// DatabaseURL returns the postgres URL used by golang-migrate.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}
