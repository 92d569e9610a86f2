package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"raceline/internal/db"
)

// FileName is the workspace config file.
const FileName = "raceline.yml"

// Config models raceline.yml.
type Config struct {
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`
	Cache struct {
		LookupSize int `yaml:"lookup_size"`
	} `yaml:"cache"`
	Broadcast struct {
		Listen string `yaml:"listen"`
		Path   string `yaml:"path"`
	} `yaml:"broadcast"`
	Import struct {
		NormalizeNames bool `yaml:"normalize_names"`
	} `yaml:"import"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig is one endpoint the server posts events to. An empty Events
// list subscribes to everything.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Active reports whether the hook should receive deliveries.
func (w WebhookConfig) Active() bool {
	return strings.TrimSpace(w.URL) != "" && (w.Enabled == nil || *w.Enabled)
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with rl init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	cfg, err := Load(workspace)
	if err != nil {
		if _, statErr := os.Stat(Path(workspace)); os.IsNotExist(statErr) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	dialect, err := db.ParseDialect(c.Database.Driver)
	if err != nil {
		return fmt.Errorf("config.database.driver: %w", err)
	}
	if dialect == db.Postgres && strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config.database.dsn is required for postgres")
	}
	if !logLevels[c.Log.Level] {
		return fmt.Errorf("config.log.level must be one of debug, info, warn, error")
	}
	if c.Cache.LookupSize < 0 {
		return fmt.Errorf("config.cache.lookup_size must not be negative")
	}
	if c.Broadcast.Path != "" && !strings.HasPrefix(c.Broadcast.Path, "/") {
		return fmt.Errorf("config.broadcast.path must start with /")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
		u, err := url.Parse(hook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook %d url %q must be an http(s) url", i, hook.URL)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %d timeout_seconds must not be negative", i)
		}
		for _, evt := range hook.Events {
			if strings.TrimSpace(evt) == "" {
				return fmt.Errorf("webhook %d has empty event type", i)
			}
		}
	}
	return nil
}

// DB returns the database settings for workspace.
func (c *Config) DB(workspace string) db.Config {
	return db.Config{Workspace: workspace, Driver: c.Database.Driver, DSN: c.Database.DSN}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing sections
// keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `database:
  driver: sqlite
  dsn: ""

log:
  level: info
  json: false

cache:
  lookup_size: 64

broadcast:
  listen: 127.0.0.1:8088
  path: /live

import:
  normalize_names: true

webhooks: []
`
