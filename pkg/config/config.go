package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. Every environment
// variable is read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Forecast
	Forecast ForecastConfig

	// Model artifacts
	Model ModelConfig

	// Reconciliation
	Reconcile ReconcileConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ForecastConfig tunes the prediction batch.
type ForecastConfig struct {
	HistoricalDays int
	MaxWorkers     int
	Strategy       string // by-date or by-item
	MinHistory     int
}

// ModelConfig locates the trained model artifacts.
type ModelConfig struct {
	ArtifactPath string
}

// ReconcileConfig tunes the actuals backfill.
type ReconcileConfig struct {
	LagDays          int
	SweepDays        int
	ActualsPerSecond float64
}

// SchedulerConfig holds the daily run schedule.
type SchedulerConfig struct {
	ForecastCron string
}

// Load reads configuration from environment variables. Only this function
// calls os.Getenv.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8087"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Forecast: ForecastConfig{
			HistoricalDays: getEnvAsInt("FORECAST_HISTORICAL_DAYS", 180),
			MaxWorkers:     getEnvAsInt("FORECAST_MAX_WORKERS", 10),
			Strategy:       getEnv("FORECAST_STRATEGY", "by-date"),
			MinHistory:     getEnvAsInt("FORECAST_MIN_HISTORY", 20),
		},

		Model: ModelConfig{
			ArtifactPath: getEnv("MODEL_ARTIFACT_PATH", "models/price_models.json"),
		},

		Reconcile: ReconcileConfig{
			LagDays:          getEnvAsInt("RECONCILE_LAG_DAYS", 3),
			SweepDays:        getEnvAsInt("RECONCILE_SWEEP_DAYS", 7),
			ActualsPerSecond: getEnvAsFloat("RECONCILE_ACTUALS_PER_SECOND", 20),
		},

		Scheduler: SchedulerConfig{
			ForecastCron: getEnv("SCHEDULER_FORECAST_CRON", "15 6 * * *"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks required configuration values.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Forecast.MaxWorkers < 1 {
		return fmt.Errorf("FORECAST_MAX_WORKERS must be at least 1")
	}
	if c.Forecast.HistoricalDays < 1 {
		return fmt.Errorf("FORECAST_HISTORICAL_DAYS must be at least 1")
	}
	if c.Forecast.Strategy != "by-date" && c.Forecast.Strategy != "by-item" {
		return fmt.Errorf("FORECAST_STRATEGY must be by-date or by-item")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
