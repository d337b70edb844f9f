// Package config loads and persists the sync client configuration.
//
// The config lives in a single YAML file (default
// ~/.config/hivecache/config.yaml). Credentials written back after login
// are stored in the same file, so Save always writes with mode 0600.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that round-trips through YAML in Go
// syntax ("1h30m") instead of raw nanoseconds.
type Duration time.Duration

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the client configuration file.
type Config struct {
	// ServerURL is the base URL of the HiveCache server, without a
	// trailing slash (e.g. https://hive.example.com).
	ServerURL string `yaml:"server_url"`

	// DataDir holds the local cache database and the search index.
	DataDir string `yaml:"data_dir"`

	// SyncInterval is the background sync period for `client sync -watch`.
	SyncInterval Duration `yaml:"sync_interval"`

	// PageLimit overrides the server page size for snapshot and diff
	// requests. Zero means use the server defaults.
	PageLimit int `yaml:"page_limit,omitempty"`

	Device Device      `yaml:"device"`
	Auth   Credentials `yaml:"auth,omitempty"`

	// path the config was loaded from, used by Save.
	path string
}

// Device identifies this installation to the server. Sent with login and
// refresh so sessions are attributable in the session list.
type Device struct {
	Name          string `yaml:"name"`
	Platform      string `yaml:"platform"`
	ClientName    string `yaml:"client_name"`
	ClientVersion string `yaml:"client_version"`
}

// Credentials are the persisted session tokens. The access token is
// short-lived and never stored; the refresh token is exchanged for a new
// pair on each run.
type Credentials struct {
	Email        string `yaml:"email,omitempty"`
	RefreshToken string `yaml:"refresh_token,omitempty"`
	SessionID    string `yaml:"session_id,omitempty"`
}

// ClientVersion is stamped into the device info on login.
const ClientVersion = "0.3.0"

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "hivecache", "config.yaml"), nil
}

// defaultDataDir returns the default cache location.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hivecache"
	}
	return filepath.Join(home, ".local", "share", "hivecache")
}

// defaultDevice builds a device identity from the local environment.
func defaultDevice() Device {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "unknown-host"
	}
	return Device{
		Name:          name,
		Platform:      platformName(),
		ClientName:    "HiveCache CLI",
		ClientVersion: ClientVersion,
	}
}

func platformName() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS"
	case "windows":
		return "Windows"
	case "linux":
		return "Linux"
	default:
		return runtime.GOOS
	}
}

// Load reads the config file at path. A missing file is not an error: the
// returned config carries defaults and can be filled in and saved.
func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:      defaultDataDir(),
		SyncInterval: Duration(time.Hour),
		Device:       defaultDevice(),
		path:         path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = Duration(time.Hour)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if cfg.Device.Name == "" {
		cfg.Device = defaultDevice()
	}

	return cfg, nil
}

// Save writes the config back to the file it was loaded from,
// creating parent directories as needed. Mode 0600 because the file
// carries the refresh token.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config has no file path")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks that the config is complete enough to talk to a server.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is not set; run login first or edit %s", c.path)
	}
	return nil
}
