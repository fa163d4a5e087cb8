// Package config provides YAML-based configuration loading for Switchboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Switchboard configuration, loaded from
// switchboard.yaml.
type Config struct {
	Operator string         `yaml:"operator"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Events   EventsConfig   `yaml:"events"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// DatabaseConfig holds connection settings for the MySQL server.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// ServerConfig holds settings for the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// SweepConfig controls the resolved-conversation expiry daemon. The grace
// period is deliberately configuration, not state-machine behavior: resolved
// conversations older than GracePeriod are closed on each sweep.
type SweepConfig struct {
	Schedule    string `yaml:"schedule"`     // 5-field cron expression
	GracePeriod string `yaml:"grace_period"` // Go duration, e.g. "72h"
}

// EventsConfig holds RabbitMQ settings for routing-event publication.
// An empty URL disables publishing.
type EventsConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// NotifyConfig holds chat-platform settings for escalation notifications.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack API settings. An empty token disables Slack.
type SlackConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord bot settings. An empty token disables Discord.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// GraceDuration returns the parsed grace period. Call only after Load/Parse
// has validated the config.
func (s SweepConfig) GraceDuration() time.Duration {
	d, err := time.ParseDuration(s.GracePeriod)
	if err != nil {
		return 72 * time.Hour
	}
	return d
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
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Database == "" {
		c.Database.Database = "switchboard"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Sweep.Schedule == "" {
		c.Sweep.Schedule = "*/5 * * * *"
	}
	if c.Sweep.GracePeriod == "" {
		c.Sweep.GracePeriod = "72h"
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "switchboard.events"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Operator == "" {
		errs = append(errs, "operator is required")
	}
	if _, err := time.ParseDuration(c.Sweep.GracePeriod); err != nil {
		errs = append(errs, fmt.Sprintf("sweep.grace_period %q is not a valid duration", c.Sweep.GracePeriod))
	}
	if c.Notify.Slack.Token != "" && c.Notify.Slack.ChannelID == "" {
		errs = append(errs, "notify.slack.channel_id is required when a token is set")
	}
	if c.Notify.Discord.Token != "" && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required when a token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
