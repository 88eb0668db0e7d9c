// Package config provides YAML-based configuration loading for Kisaragi.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPersona is the system instruction sent ahead of every model call.
const DefaultPersona = "You are Kisaragi, a playful fox-girl maid who loves helping Master with tasks. Stay polite, charming, and maintain your personality."

// Config is the top-level Kisaragi configuration, loaded from kisaragi.yaml.
type Config struct {
	Platform  string          `yaml:"platform"` // "discord" or "slack"
	Discord   DiscordConfig   `yaml:"discord"`
	Slack     SlackConfig     `yaml:"slack"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Stores    StoresConfig    `yaml:"stores"`
	Persona   string          `yaml:"persona"`
	Session   SessionConfig   `yaml:"session"`
	Workers   int             `yaml:"workers"`
	Digest    DigestConfig    `yaml:"digest"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// DiscordConfig holds Discord Gateway credentials.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"` // default channel for unsolicited posts
}

// SlackConfig holds Slack Socket Mode credentials.
type SlackConfig struct {
	AppToken string `yaml:"app_token"`
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// OllamaConfig holds connection settings for the model backend.
type OllamaConfig struct {
	Host       string `yaml:"host"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// StoresConfig holds the two storage targets. With the sqlite driver the
// targets are file paths; with mysql they are DSNs.
type StoresConfig struct {
	Driver        string `yaml:"driver"` // "sqlite" or "mysql"
	Conversations string `yaml:"conversations"`
	Ranks         string `yaml:"ranks"`
}

// SessionConfig controls talk-session lifecycle.
type SessionConfig struct {
	SweepIntervalSec int `yaml:"sweep_interval_sec"`
	IdleTimeoutSec   int `yaml:"idle_timeout_sec"`
}

// DigestConfig controls the scheduled leaderboard post.
type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"` // 5-field cron expression
	Chat    string `yaml:"chat"` // channel to post the digest to
}

// DashboardConfig controls the read-only HTTP dashboard.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Ollama.Host == "" {
		c.Ollama.Host = "http://127.0.0.1:11434"
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = "smallthinker:3b"
	}
	if c.Ollama.TimeoutSec == 0 {
		c.Ollama.TimeoutSec = 60
	}
	if c.Stores.Driver == "" {
		c.Stores.Driver = "sqlite"
	}
	if c.Stores.Conversations == "" {
		c.Stores.Conversations = "conversations.sqlite3"
	}
	if c.Stores.Ranks == "" {
		c.Stores.Ranks = "ranks.sqlite3"
	}
	if c.Persona == "" {
		c.Persona = DefaultPersona
	}
	if c.Session.SweepIntervalSec == 0 {
		c.Session.SweepIntervalSec = 60
	}
	if c.Session.IdleTimeoutSec == 0 {
		c.Session.IdleTimeoutSec = 300
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Platform {
	case "", "discord", "slack":
	default:
		errs = append(errs, fmt.Sprintf("unsupported platform %q", c.Platform))
	}
	switch c.Stores.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("unsupported stores.driver %q", c.Stores.Driver))
	}
	if c.Platform == "discord" && c.Discord.BotToken == "" {
		errs = append(errs, "discord.bot_token is required for platform discord")
	}
	if c.Platform == "slack" {
		if c.Slack.BotToken == "" {
			errs = append(errs, "slack.bot_token is required for platform slack")
		}
		if c.Slack.AppToken == "" {
			errs = append(errs, "slack.app_token is required for platform slack")
		}
	}
	if c.Digest.Enabled {
		if c.Digest.Cron == "" {
			errs = append(errs, "digest.cron is required when digest is enabled")
		}
		if c.Digest.Chat == "" {
			errs = append(errs, "digest.chat is required when digest is enabled")
		}
	}
	if c.Workers < 0 {
		errs = append(errs, "workers must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SweepInterval returns the idle-sweep period as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Session.SweepIntervalSec) * time.Second
}

// IdleTimeout returns the session idle threshold as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutSec) * time.Second
}

// OllamaTimeout returns the model backend request timeout as a duration.
func (c *Config) OllamaTimeout() time.Duration {
	return time.Duration(c.Ollama.TimeoutSec) * time.Second
}
