package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vburojevic/nginv/internal/domain"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format" json:"format"`
	Quiet   bool   `mapstructure:"quiet" json:"quiet"`
	Verbose bool   `mapstructure:"verbose" json:"verbose"`

	// Monitoring
	RefreshInterval time.Duration `mapstructure:"refresh_interval" json:"refresh_interval"`
	PollInterval    time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
	SitesDir        string        `mapstructure:"sites_dir" json:"sites_dir"`
	Sites           []domain.Site `mapstructure:"sites" json:"sites,omitempty"`

	// Status endpoint, empty disables it
	Listen string `mapstructure:"listen" json:"listen,omitempty"`

	// Diagnostics
	LogFile  string `mapstructure:"log_file" json:"log_file,omitempty"`
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format:          "auto",
		RefreshInterval: 10 * time.Second,
		PollInterval:    250 * time.Millisecond,
		SitesDir:        "/etc/nginx/sites-enabled",
		LogLevel:        "info",
	}
}

// Validate checks value ranges that viper cannot
func (c *Config) Validate() error {
	switch c.Format {
	case "auto", "tui", "text", "ndjson":
	default:
		return fmt.Errorf("invalid format %q (want auto, tui, text or ndjson)", c.Format)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (want debug, info, warn or error)", c.LogLevel)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive, got %s", c.RefreshInterval)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	for i, s := range c.Sites {
		if s.Label == "" {
			return fmt.Errorf("sites[%d]: label is required", i)
		}
		if s.AccessPath == "" && s.ErrorPath == "" {
			return fmt.Errorf("sites[%d] (%s): access or error path is required", i, s.Label)
		}
	}
	return nil
}

// Load loads configuration from files and environment
// Config file search order (highest precedence first):
// 1. ./.nginv.yaml or ./.nginv.yml
// 2. ~/.nginv.yaml or ~/.nginv.yml
// 3. $XDG_CONFIG_HOME/nginv/config.yaml (or ~/.config/nginv/config.yaml)
// 4. /etc/nginv/config.yaml
func Load() (*Config, error) {
	cfg := Default()

	if configFile := findConfigFile(); configFile != "" {
		loaded, err := LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return cfg, nil
}

// ConfigFile returns the path to the config file that would be loaded
func ConfigFile() string {
	return findConfigFile()
}

// SearchPaths returns the candidate config files, highest precedence first
func SearchPaths() []string {
	var paths []string
	names := []string{".nginv.yaml", ".nginv.yml"}
	if cwd, err := os.Getwd(); err == nil {
		for _, name := range names {
			paths = append(paths, filepath.Join(cwd, name))
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		for _, name := range names {
			paths = append(paths, filepath.Join(home, name))
		}
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "nginv", "config.yaml"))
	}
	return append(paths, "/etc/nginv/config.yaml")
}

func findConfigFile() string {
	for _, path := range SearchPaths() {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// applyEnvOverrides applies NGINV_* environment variable overrides
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("NGINV_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("NGINV_QUIET"); v == "true" || v == "1" {
		cfg.Quiet = true
	}
	if v := os.Getenv("NGINV_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("NGINV_SITES_DIR"); v != "" {
		cfg.SitesDir = v
	}
	if v := os.Getenv("NGINV_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("NGINV_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("NGINV_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("NGINV_REFRESH_INTERVAL"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("NGINV_REFRESH_INTERVAL: %w", err)
		}
		cfg.RefreshInterval = d
	}
	if v := os.Getenv("NGINV_POLL_INTERVAL"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("NGINV_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}
	return nil
}

// parseDuration accepts Go durations and bare seconds ("10")
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Sample is the annotated config written by `nginv config generate`
const Sample = `# nginv configuration
# Output format: auto, tui, text or ndjson
format: auto

# How often the dashboard or report refreshes
refresh_interval: 10s

# How often each log file is checked for new lines
poll_interval: 250ms

# nginx virtual host configs scanned for access_log/error_log directives
sites_dir: /etc/nginx/sites-enabled

# Explicit sites, used instead of discovery when set
# sites:
#   - label: shop
#     access: /var/log/nginx/shop_access.log
#     error: /var/log/nginx/shop_error.log

# Serve /api/v1/snapshot, /metrics and /healthz on this address
# listen: 127.0.0.1:9113

# Diagnostics log (JSON lines); debug, info, warn or error
# log_file: /tmp/nginv.log
log_level: info
`
