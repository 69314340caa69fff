// Package config resolves the anmar home directory and loads the engine
// configuration file. Everything has a working default: a missing config file
// is not an error.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultAddr is where the engine listens when the config names nothing.
	DefaultAddr = "127.0.0.1:3647"
	// FileName is the config file looked up under the anmar home.
	FileName = "config.yaml"
)

// defaultEngineers is the assignment pool used when none is configured.
var defaultEngineers = []string{"Maria P.", "Juan"}

// Config is the engine configuration, read from <home>/config.yaml.
type Config struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"api_key"` // protects mutating API routes when set

	DB struct {
		Driver string `yaml:"driver"` // "sqlite" (default) or "postgres"
		DSN    string `yaml:"dsn"`
	} `yaml:"db"`

	Engineers []string `yaml:"engineers"`

	Quota struct {
		MaxActiveTickets int `yaml:"max_active_tickets"` // 0 disables the gate
	} `yaml:"quota"`

	Advisor struct {
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"advisor"`

	SlackWebhookURL string `yaml:"slack_webhook_url"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{Addr: DefaultAddr}
	cfg.DB.Driver = "sqlite"
	cfg.Engineers = append([]string(nil), defaultEngineers...)
	return cfg
}

// Load reads <home>/config.yaml, fills defaults, and applies environment
// overrides (ANMAR_API_KEY for the advisor credential, DATABASE_URL for the
// postgres DSN). A missing file yields Default().
func Load(home string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Join(home, FileName))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = DefaultAddr
	}
	if strings.TrimSpace(c.DB.Driver) == "" {
		c.DB.Driver = "sqlite"
	}
	var pool []string
	for _, e := range c.Engineers {
		if e = strings.TrimSpace(e); e != "" {
			pool = append(pool, e)
		}
	}
	if len(pool) == 0 {
		pool = append([]string(nil), defaultEngineers...)
	}
	c.Engineers = pool

	if c.Advisor.APIKey == "" {
		c.Advisor.APIKey = os.Getenv("ANMAR_API_KEY")
	}
	if c.DB.Driver == "postgres" && c.DB.DSN == "" {
		c.DB.DSN = os.Getenv("DATABASE_URL")
	}
}
