// Package config provides configuration types, defaults, and persistence for wacrm.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/maniya81/whatsapp-crm-extension/internal/log"
)

// Config holds all configuration options for wacrm.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Refresh RefreshConfig `mapstructure:"refresh"`
	Cache   CacheConfig   `mapstructure:"cache"`
	UI      UIConfig      `mapstructure:"ui"`
	Debug   bool          `mapstructure:"debug"`
}

// APIConfig holds CRM backend connection options.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	OrgID   string `mapstructure:"org_id"`

	// WindowDays limits lead fetches to recent activity. 0 uses the
	// built-in window.
	WindowDays int `mapstructure:"window_days"`
}

// BridgeConfig holds the websocket listener the browser extension dials.
type BridgeConfig struct {
	ListenAddr string `mapstructure:"listen_addr"` // loopback only
	Token      string `mapstructure:"token"`       // shared secret, empty disables auth
}

// RefreshConfig holds the two-speed refresh cadence.
type RefreshConfig struct {
	FastSeconds int `mapstructure:"fast_seconds"` // in-memory rebuild tick
	SlowMinutes int `mapstructure:"slow_minutes"` // CRM refetch tick
}

// CacheConfig holds the warm snapshot cache location.
type CacheConfig struct {
	// Path to the sqlite file. Empty derives ~/.wacrm/cache.db.
	Path string `mapstructure:"path"`
}

// UIConfig holds user interface configuration options.
type UIConfig struct {
	ShowStatusBar bool `mapstructure:"show_status_bar"`
}

// FastInterval returns the fast tick cadence as a duration.
func (c Config) FastInterval() time.Duration {
	return time.Duration(c.Refresh.FastSeconds) * time.Second
}

// SlowInterval returns the CRM refetch cadence as a duration.
func (c Config) SlowInterval() time.Duration {
	return time.Duration(c.Refresh.SlowMinutes) * time.Minute
}

// CachePath resolves the sqlite cache location, deriving the default
// under the user's home directory when unset.
func (c Config) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".wacrm", "cache.db"), nil
}

// Validate checks the configuration for values the app cannot run with.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.OrgID == "" {
		return fmt.Errorf("api.org_id is required")
	}
	if c.API.WindowDays < 0 {
		return fmt.Errorf("api.window_days must be >= 0, got %d", c.API.WindowDays)
	}
	if c.Refresh.FastSeconds <= 0 {
		return fmt.Errorf("refresh.fast_seconds must be > 0, got %d", c.Refresh.FastSeconds)
	}
	if c.Refresh.SlowMinutes <= 0 {
		return fmt.Errorf("refresh.slow_minutes must be > 0, got %d", c.Refresh.SlowMinutes)
	}
	if c.Bridge.ListenAddr != "" {
		host, _, err := net.SplitHostPort(c.Bridge.ListenAddr)
		if err != nil {
			return fmt.Errorf("bridge.listen_addr: %w", err)
		}
		if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
			return fmt.Errorf("bridge.listen_addr must bind to loopback, got %q", c.Bridge.ListenAddr)
		}
	}
	return nil
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		API: APIConfig{
			WindowDays: 60,
		},
		Bridge: BridgeConfig{
			ListenAddr: "127.0.0.1:17455",
		},
		Refresh: RefreshConfig{
			FastSeconds: 5,
			SlowMinutes: 3,
		},
		UI: UIConfig{
			ShowStatusBar: true,
		},
	}
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# wacrm Configuration

# CRM backend connection
api:
  # base_url: https://crm.example.com
  # org_id: my-org

  # Only fetch leads with activity in the last N days
  window_days: 60

# Websocket bridge the browser extension connects to.
# Must bind to loopback.
bridge:
  listen_addr: 127.0.0.1:17455
  # Shared secret the extension must present. Empty disables auth.
  # token: ""

# Refresh cadence
refresh:
  fast_seconds: 5   # in-memory bucket rebuild
  slow_minutes: 3   # CRM lead refetch

# Warm snapshot cache
# cache:
#   path: ~/.wacrm/cache.db

# UI settings
ui:
  show_status_bar: true

# Verbose logging and debug counters in the status bar
debug: false
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
