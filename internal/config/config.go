// Package config loads the server configuration from YAML with coded
// defaults for every field.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// DefaultPath is consulted when no --config flag is given. A missing
// file there is not an error; defaults apply.
const DefaultPath = "worklogd.yaml"

type Config struct {
	Listen   string         `mapstructure:"listen"`
	DBPath   string         `mapstructure:"db_path"`
	Timezone string         `mapstructure:"timezone"`
	AutoSave AutoSaveConfig `mapstructure:"autosave"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

type AutoSaveConfig struct {
	Window      time.Duration `mapstructure:"window"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

type NotifyConfig struct {
	// WebhookURL switches delivery from the process log to an HTTP POST
	// sink when set.
	WebhookURL string `mapstructure:"webhook_url"`
}

func Default() *Config {
	return &Config{
		Listen:   ":8080",
		DBPath:   "worklogd.db",
		Timezone: "Local",
		AutoSave: AutoSaveConfig{
			Window:      600 * time.Millisecond,
			MaxAttempts: 3,
			Backoff:     250 * time.Millisecond,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// falls back to DefaultPath and tolerates the file being absent; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Location resolves the configured timezone name.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
