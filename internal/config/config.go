package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"calnorm/internal/fileutil"
)

// NOTE: The config file is separate from the rule store. Config is edited
// by hand; the rule store is written by calnorm after every successful run.

const (
	UITerminal = "tui"
	UIWeb      = "web"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the prompt server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// LabelsConfig overrides the placeholders shown in prompt forms.
type LabelsConfig struct {
	TitleName        string `yaml:"title_name" json:"title_name"`
	TitleDescription string `yaml:"title_description" json:"title_description"`
	LocationAddress  string `yaml:"location_address" json:"location_address"`
	LocationGeo      string `yaml:"location_geo" json:"location_geo"`
}

// FeedConfig describes the calendar subscription normalized by `sync`.
type FeedConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// Output is where the normalized calendar is written.
	Output string `yaml:"output" json:"output"`
	// Schedule is a cron expression (e.g. "*/30 * * * *").
	Schedule string `yaml:"schedule" json:"schedule"`
	// CacheDir holds the HTTP cache for the feed.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	// RulesPath is the rule store file. Relative paths are resolved against
	// the directory of the config file.
	RulesPath string `yaml:"rules_path" json:"rules_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// UI selects the prompt front-end for `run`: "tui" or "web".
	UI string `yaml:"ui" json:"ui"`

	// Listen is the HTTP listen address of the web prompt front-end.
	Listen string `yaml:"listen" json:"listen"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Labels LabelsConfig `yaml:"labels" json:"labels"`

	Feed FeedConfig `yaml:"feed" json:"feed"`
}

// DefaultPath returns $XDG_CONFIG_HOME/calnorm/config.yaml (or the platform
// equivalent), falling back to ./calnorm.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "calnorm.yaml"
	}
	return filepath.Join(dir, "calnorm", "config.yaml")
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		RulesPath: "rules.yaml",
		LogLevel:  "info",
		UI:        UITerminal,
		Listen:    "127.0.0.1:8080",
		Labels: LabelsConfig{
			TitleName:        "Name des Events",
			TitleDescription: "Beschreibung des Events",
			LocationAddress:  "Adresse des Ortes",
			LocationGeo:      "Geo-Koordinaten",
		},
		Feed: FeedConfig{
			Schedule: "*/30 * * * *",
			CacheDir: "ics-cache",
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.RulesPath == "" {
		c.RulesPath = def.RulesPath
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	switch c.UI {
	case UITerminal, UIWeb:
		// ok
	default:
		c.UI = def.UI
	}
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Labels.TitleName == "" {
		c.Labels.TitleName = def.Labels.TitleName
	}
	if c.Labels.TitleDescription == "" {
		c.Labels.TitleDescription = def.Labels.TitleDescription
	}
	if c.Labels.LocationAddress == "" {
		c.Labels.LocationAddress = def.Labels.LocationAddress
	}
	if c.Labels.LocationGeo == "" {
		c.Labels.LocationGeo = def.Labels.LocationGeo
	}
	if c.Feed.Schedule == "" {
		c.Feed.Schedule = def.Feed.Schedule
	}
	if c.Feed.CacheDir == "" {
		c.Feed.CacheDir = def.Feed.CacheDir
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		// Half-configured credentials disable auth rather than lock users out.
		c.BasicAuth = nil
	}
}

// Resolve makes relative paths in c absolute against the directory of the
// config file at path.
func (c *Config) Resolve(path string) {
	base := filepath.Dir(path)
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.RulesPath = abs(c.RulesPath)
	c.Feed.CacheDir = abs(c.Feed.CacheDir)
	c.Feed.Output = abs(c.Feed.Output)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: write a default config with 0600 perms
//     and return it.
//   - If the file exists: unmarshal, normalize defaults.
//
// In both cases relative paths are resolved against the config directory.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				cfg.Resolve(path)
				return cfg, err
			}
			cfg.Resolve(path)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	cfg.Resolve(path)

	return &cfg, nil
}

// Save normalizes cfg and writes it atomically to path with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data, 0o600)
}
