// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Data   DataConfig
	Server ServerConfig
	Auth   AuthConfig
	Sync   SyncConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds storage configuration.
type DataConfig struct {
	// BasePath is the directory holding the badger database and key material.
	BasePath string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Name         string
	PublicURL    string        // Optional, used in federation-facing responses
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key for access tokens (32 bytes)
	AccessTokenKey []byte
	// Session durations
	AccessTokenDuration  time.Duration // e.g., 15m
	RefreshTokenDuration time.Duration // e.g., 720h (30 days)
}

// SyncConfig holds bookmark index sync configuration.
type SyncConfig struct {
	// SnapshotPageSize is the page size for full index snapshots (default: 100)
	SnapshotPageSize int
	// DiffPageSize is the default page size for diff responses (default: 500)
	DiffPageSize int
	// DiffMaxPageSize caps the client-requested diff page size (default: 100)
	DiffMaxPageSize int
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for data storage")
	serverName := flag.String("server-name", "", "Name for the server")
	serverPublicURL := flag.String("public-url", "", "Public server url")

	// Auth flags
	accessTokenDuration := flag.String("access-token-duration", "", "Access token lifetime (e.g., 15m)")
	refreshTokenDuration := flag.String("refresh-token-duration", "", "Refresh token lifetime (e.g., 720h)")

	// Server flags
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	// Sync flags
	snapshotPageSize := flag.String("snapshot-page-size", "", "Index snapshot page size (default: 100)")
	diffPageSize := flag.String("diff-page-size", "", "Default diff page size (default: 500)")
	diffMaxPageSize := flag.String("diff-max-page-size", "", "Maximum diff page size (default: 1000)")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	// godotenv never overrides variables already set in the environment.
	_ = godotenv.Load(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},

		Server: ServerConfig{
			Name:      getConfigValue(*serverName, "SERVER_NAME", "HiveCache Server"),
			PublicURL: getConfigValue(*serverPublicURL, "SERVER_PUBLIC_URL", ""),
			Port:      getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},

		Auth: AuthConfig{
			AccessTokenKey: nil, // Will be set by auth.LoadOrGenerateKey in main
		},

		Sync: SyncConfig{
			SnapshotPageSize: getIntConfigValue(*snapshotPageSize, "SYNC_SNAPSHOT_PAGE_SIZE", 100),
			DiffPageSize:     getIntConfigValue(*diffPageSize, "SYNC_DIFF_PAGE_SIZE", 500),
			DiffMaxPageSize:  getIntConfigValue(*diffMaxPageSize, "SYNC_DIFF_MAX_PAGE_SIZE", 1000),
		},
	}

	// Parse auth durations.
	accessDurationStr := getConfigValue(*accessTokenDuration, "ACCESS_TOKEN_DURATION", "15m")
	accessDuration, err := time.ParseDuration(accessDurationStr)
	if err != nil {
		return nil, fmt.Errorf("invalid access token duration %q: %w", accessDurationStr, err)
	}
	cfg.Auth.AccessTokenDuration = accessDuration

	refreshDurationStr := getConfigValue(*refreshTokenDuration, "REFRESH_TOKEN_DURATION", "720h")
	refreshDuration, err := time.ParseDuration(refreshDurationStr)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token duration %q: %w", refreshDurationStr, err)
	}
	cfg.Auth.RefreshTokenDuration = refreshDuration

	// Parse server timeouts.
	readTimeoutStr := getConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s")
	readTimeoutDuration, err := time.ParseDuration(readTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout %q: %w", readTimeoutStr, err)
	}
	cfg.Server.ReadTimeout = readTimeoutDuration

	writeTimeoutStr := getConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s")
	writeTimeoutDuration, err := time.ParseDuration(writeTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout %q: %w", writeTimeoutStr, err)
	}
	cfg.Server.WriteTimeout = writeTimeoutDuration

	idleTimeoutStr := getConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s")
	idleTimeoutDuration, err := time.ParseDuration(idleTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout %q: %w", idleTimeoutStr, err)
	}
	cfg.Server.IdleTimeout = idleTimeoutDuration

	// Expand and validate data path.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Sync.SnapshotPageSize < 1 {
		return fmt.Errorf("snapshot page size must be positive, got %d", c.Sync.SnapshotPageSize)
	}
	if c.Sync.DiffPageSize < 1 || c.Sync.DiffMaxPageSize < c.Sync.DiffPageSize {
		return fmt.Errorf("diff page sizes out of range: default %d, max %d", c.Sync.DiffPageSize, c.Sync.DiffMaxPageSize)
	}

	// Auth durations are validated during LoadConfig parsing.
	// Auth key is set by auth.LoadOrGenerateKey in main.

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "HiveCache", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}
