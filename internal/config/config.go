// Package config loads settings from defaults, a YAML file, a .env file and
// the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type ArchiveConfig struct {
	Bucket   string `yaml:"bucket"`
	Endpoint string `yaml:"endpoint"`
}

// PolicyConfig decides which analysed games are kept.
type PolicyConfig struct {
	// RequireModifiers must equal the game's modifier list exactly. Empty accepts any game.
	RequireModifiers []string `yaml:"require_modifiers"`
	RejectNeutrals   bool     `yaml:"reject_neutrals"`
}

type Config struct {
	Database string        `yaml:"database"`
	Listen   string        `yaml:"listen"`
	Log      LogConfig     `yaml:"log"`
	Archive  ArchiveConfig `yaml:"archive"`
	Policy   PolicyConfig  `yaml:"policy"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Database: "gamelogs.db",
		Listen:   "127.0.0.1:8080",
		Log:      LogConfig{Level: "info"},
		Policy: PolicyConfig{
			RequireModifiers: []string{"Town Traitor"},
			RejectNeutrals:   true,
		},
	}
}

var envVars = []struct {
	name string
	set  func(*Config, string)
}{
	{"GAMELOGS_DB", func(c *Config, v string) { c.Database = v }},
	{"GAMELOGS_LISTEN", func(c *Config, v string) { c.Listen = v }},
	{"GAMELOGS_LOG_LEVEL", func(c *Config, v string) { c.Log.Level = v }},
	{"GAMELOGS_LOG_FILE", func(c *Config, v string) { c.Log.File = v }},
	{"GAMELOGS_ARCHIVE_BUCKET", func(c *Config, v string) { c.Archive.Bucket = v }},
	{"GAMELOGS_ARCHIVE_ENDPOINT", func(c *Config, v string) { c.Archive.Endpoint = v }},
}

// Load reads path (optional, may be "") and dotenv (optional, a missing
// file is ignored), then applies the environment.
func Load(path, dotenv string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if dotenv != "" {
		// godotenv.Load never overrides variables already in the environment.
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load %s: %w", dotenv, err)
		}
	}

	for _, ev := range envVars {
		if v, ok := os.LookupEnv(ev.name); ok && strings.TrimSpace(v) != "" {
			ev.set(&cfg, strings.TrimSpace(v))
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks values that cannot be caught by the YAML decoder.
func (c Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if c.Database == "" {
		return errors.New("database path is empty")
	}
	return nil
}
