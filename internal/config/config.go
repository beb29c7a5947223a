package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"adamstat/domain/stats"
	"adamstat/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
	Analysis AnalysisConfig
	Output   OutputConfig
}

// DatabaseConfig holds the optional run store connection.
// An empty URL disables persistence.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // console, json
	Output string // stdout, stderr or a file path
}

// AnalysisConfig holds defaults applied when a request leaves a field empty
type AnalysisConfig struct {
	Alpha     float64
	Sidedness stats.Sidedness
	SubjectID string
	Workers   int
}

// OutputConfig controls which artifacts a run writes
type OutputConfig struct {
	Dir    string
	XLSX   bool
	Report bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	sidedness, _, err := stats.ParseSidedness(getEnvOrDefault("DEFAULT_SIDEDNESS", "two"))
	if err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}

	config := &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "console"),
			Output: getEnvOrDefault("LOG_OUTPUT", "stderr"),
		},
		Analysis: AnalysisConfig{
			Alpha:     getEnvFloatOrDefault("DEFAULT_ALPHA", 0.05),
			Sidedness: sidedness,
			SubjectID: getEnvOrDefault("SUBJECT_ID", "CAMIS-PT-001"),
			Workers:   getEnvIntOrDefault("BATCH_WORKERS", 4),
		},
		Output: OutputConfig{
			Dir:    getEnvOrDefault("OUTPUT_DIR", "."),
			XLSX:   getEnvBoolOrDefault("OUTPUT_XLSX", false),
			Report: getEnvBoolOrDefault("OUTPUT_REPORT", false),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// Validate checks field ranges
func (c *Config) Validate() error {
	if !(c.Analysis.Alpha > 0 && c.Analysis.Alpha < 1) {
		return errors.ConfigInvalid(fmt.Sprintf("DEFAULT_ALPHA must lie in (0,1), got %g", c.Analysis.Alpha))
	}
	if c.Analysis.Workers < 1 {
		return errors.ConfigInvalid("BATCH_WORKERS must be at least 1")
	}
	if strings.TrimSpace(c.Analysis.SubjectID) == "" {
		return errors.ConfigInvalid("SUBJECT_ID cannot be empty")
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return errors.ConfigInvalid(fmt.Sprintf("invalid PORT %q", c.Server.Port))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("LOG_FORMAT must be console or json, got %q", c.Logging.Format))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
