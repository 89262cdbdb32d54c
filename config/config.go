// Package config has the configuration file for the app
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	Port             string
	Address          string
	Env              string
	LogLevel         string
	LogDir           string
	LogRetentionDays int
	DataDir          string  // Directory holding the bbolt database file
	SnapshotBaseURL  string  // Base URL serving the catalog snapshot JSON files
	SyncAt           string  // Daily sync times, "HH:MM" or "HH:MM;HH:MM"
	MaxRequestBody   int64   // Maximum request body size in bytes
	MaxHeaderSize    int64   // Maximum header size in bytes
	RateLimitRate    float64 // Token bucket refill rate per second
	RateLimitBurst   int64   // Token bucket capacity
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnvWithDefault("PORT", "8000"),
		Address:          getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:              getEnvWithDefault("ENV", "dev"),
		LogLevel:         getEnvWithDefault("LOG_LEVEL", "info"),
		LogDir:           getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionDays: getIntEnvWithDefault("LOG_RETENTION_DAYS", 28),
		DataDir:          getEnvWithDefault("DATA_DIR", "data"),
		SnapshotBaseURL:  getEnvWithDefault("SNAPSHOT_BASE_URL", "https://catalog.medikit.dev/snapshots"),
		SyncAt:           getEnvWithDefault("SYNC_AT", "03:00"),
		MaxRequestBody:   getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576), // 1MB default
		MaxHeaderSize:    getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),  // 1MB default
		RateLimitRate:    getFloatEnvWithDefault("RATE_LIMIT_RATE", 3),
		RateLimitBurst:   getInt64EnvWithDefault("RATE_LIMIT_BURST", 1000),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateOneOf(cfg.Env, "ENV", []string{"dev", "staging", "prod", "test"}); err != nil {
		return err
	}

	if err := validateOneOf(cfg.LogLevel, "LOG_LEVEL", []string{"debug", "info", "warn", "error"}); err != nil {
		return err
	}

	if err := validateSnapshotBaseURL(cfg.SnapshotBaseURL); err != nil {
		return fmt.Errorf("invalid SNAPSHOT_BASE_URL: %w", err)
	}

	if err := validateSyncAt(cfg.SyncAt); err != nil {
		return fmt.Errorf("invalid SYNC_AT: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if cfg.LogRetentionDays <= 0 || cfg.LogRetentionDays > 366 {
		return fmt.Errorf("invalid LOG_RETENTION_DAYS: must be between 1 and 366, got %d", cfg.LogRetentionDays)
	}

	if cfg.RateLimitRate <= 0 {
		return fmt.Errorf("invalid RATE_LIMIT_RATE: must be positive, got %v", cfg.RateLimitRate)
	}

	if cfg.RateLimitBurst <= 0 {
		return fmt.Errorf("invalid RATE_LIMIT_BURST: must be positive, got %d", cfg.RateLimitBurst)
	}

	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("invalid DATA_DIR: cannot be empty")
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	if ip := net.ParseIP(address); ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	return nil
}

// validateOneOf checks a value against an allowed set, case-insensitively
func validateOneOf(value, name string, allowed []string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}

	value = strings.ToLower(value)
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}

	return fmt.Errorf("%s must be one of: %v, got: %s", name, allowed, value)
}

// validateSnapshotBaseURL requires an absolute http(s) URL
func validateSnapshotBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http or https URL, got: %s", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in URL: %s", raw)
	}
	return nil
}

// validateSyncAt validates the semicolon-separated HH:MM daily sync times
func validateSyncAt(value string) error {
	if value == "" {
		return fmt.Errorf("SYNC_AT cannot be empty")
	}

	for _, at := range strings.Split(value, ";") {
		parts := strings.Split(at, ":")
		if len(parts) != 2 {
			return fmt.Errorf("time %q must be in HH:MM format", at)
		}
		hour, err := strconv.Atoi(parts[0])
		if err != nil || hour < 0 || hour > 23 {
			return fmt.Errorf("invalid hour in %q", at)
		}
		minute, err := strconv.Atoi(parts[1])
		if err != nil || minute < 0 || minute > 59 {
			return fmt.Errorf("invalid minute in %q", at)
		}
	}

	return nil
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnvWithDefault gets an environment variable as float64 with a default value
func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
