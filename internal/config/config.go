package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Socrata  SocrataConfig
	Sync     SyncConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server configuration for serve mode.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// SocrataConfig holds Chicago Data Portal API configuration.
type SocrataConfig struct {
	Domain       string
	CrimeDataset string
	AppToken     string
	Username     string
	Password     string
	Timeout      time.Duration
}

// SyncConfig holds fetch limits and the historical start boundary.
type SyncConfig struct {
	BackfillStart  time.Time
	BackfillLimit  int
	DailyLimit     int
	DimensionLimit int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "chicago_crime")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("SOCRATA_DOMAIN", "data.cityofchicago.org")
	v.SetDefault("SOCRATA_CRIME_DATASET", "ijzp-q8t2")
	v.SetDefault("SOCRATA_TIMEOUT_SECONDS", 900)
	v.SetDefault("BACKFILL_START", "2001-01-01")
	v.SetDefault("BACKFILL_LIMIT", 2000000)
	v.SetDefault("DAILY_LIMIT", 500000)
	v.SetDefault("DIMENSION_LIMIT", 5000)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind environment variables
	v.AutomaticEnv()

	backfillStart, err := time.Parse("2006-01-02", v.GetString("BACKFILL_START"))
	if err != nil {
		return nil, fmt.Errorf("invalid BACKFILL_START: %w", err)
	}

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		Socrata: SocrataConfig{
			Domain:       v.GetString("SOCRATA_DOMAIN"),
			CrimeDataset: v.GetString("SOCRATA_CRIME_DATASET"),
			AppToken:     v.GetString("SOCRATA_APP_TOKEN"),
			Username:     v.GetString("SOCRATA_USERNAME"),
			Password:     v.GetString("SOCRATA_PASSWORD"),
			Timeout:      time.Duration(v.GetInt("SOCRATA_TIMEOUT_SECONDS")) * time.Second,
		},
		Sync: SyncConfig{
			BackfillStart:  backfillStart,
			BackfillLimit:  v.GetInt("BACKFILL_LIMIT"),
			DailyLimit:     v.GetInt("DAILY_LIMIT"),
			DimensionLimit: v.GetInt("DIMENSION_LIMIT"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	// Validate Socrata config
	if c.Socrata.Domain == "" {
		return fmt.Errorf("SOCRATA_DOMAIN is required")
	}
	if c.Socrata.CrimeDataset == "" {
		return fmt.Errorf("SOCRATA_CRIME_DATASET is required")
	}
	if c.Socrata.AppToken == "" {
		return fmt.Errorf("SOCRATA_APP_TOKEN is required")
	}

	// Validate sync config
	if c.Sync.BackfillLimit < 1 {
		return fmt.Errorf("BACKFILL_LIMIT must be at least 1")
	}
	if c.Sync.DailyLimit < 1 {
		return fmt.Errorf("DAILY_LIMIT must be at least 1")
	}
	if c.Sync.DimensionLimit < 1 {
		return fmt.Errorf("DIMENSION_LIMIT must be at least 1")
	}

	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
