// Package config provides YAML-based configuration loading for meshbot.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level meshbot configuration, loaded from config.yaml.
type Config struct {
	Workspace string         `yaml:"workspace"`
	Model     ModelConfig    `yaml:"model"`
	Agent     AgentConfig    `yaml:"agent"`
	Memory    MemoryConfig   `yaml:"memory"`
	Channels  ChannelsConfig `yaml:"channels"`
	Heartbeat []HeartbeatJob `yaml:"heartbeat"`
	Logging   LoggingConfig  `yaml:"logging"`
	Tools     ToolsConfig    `yaml:"tools"`
}

// ModelConfig selects the provider and model used for completion calls.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // "anthropic", "openai"
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"` // falls back to the provider env var
	MaxTokens   int64   `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// AgentConfig bounds the iteration loop.
type AgentConfig struct {
	MaxIterations int    `yaml:"max_iterations"`
	MaxRetries    int    `yaml:"max_retries"`
	Workers       int    `yaml:"workers"`
	SystemPrompt  string `yaml:"system_prompt"`
	HistoryWindow int    `yaml:"history_window"`
}

// MemoryConfig tunes consolidation.
type MemoryConfig struct {
	Window int `yaml:"window"` // unconsolidated messages before a pass
	Retain int `yaml:"retain"` // messages kept verbatim after a pass
}

// ChannelsConfig enables chat platform adapters.
type ChannelsConfig struct {
	Discord DiscordConfig `yaml:"discord"`
	Slack   SlackConfig   `yaml:"slack"`
}

// DiscordConfig configures the Discord adapter.
type DiscordConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
}

// SlackConfig configures the Slack Socket Mode adapter.
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	AppToken string `yaml:"app_token"`
	BotToken string `yaml:"bot_token"`
}

// HeartbeatJob is one scheduled prompt.
type HeartbeatJob struct {
	Name   string `yaml:"name"`
	Cron   string `yaml:"cron"`
	Prompt string `yaml:"prompt"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ToolsConfig tunes tool execution.
type ToolsConfig struct {
	ExecTimeoutSeconds int  `yaml:"exec_timeout_seconds"`
	RestrictToWorkdir  bool `yaml:"restrict_to_workdir"`
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

// applyDefaults fills in derived and default values. Tokens left empty fall
// back to environment variables so secrets can stay out of the file.
func (c *Config) applyDefaults() {
	if c.Workspace == "" {
		c.Workspace = "./workspace"
	}
	if c.Model.Provider == "" {
		c.Model.Provider = "anthropic"
	}
	if c.Model.APIKey == "" {
		switch c.Model.Provider {
		case "anthropic":
			c.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			c.Model.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = 4096
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = 20
	}
	if c.Agent.MaxRetries == 0 {
		c.Agent.MaxRetries = 3
	}
	if c.Agent.Workers == 0 {
		c.Agent.Workers = 4
	}
	if c.Agent.HistoryWindow == 0 {
		c.Agent.HistoryWindow = 100
	}
	if c.Memory.Window == 0 {
		c.Memory.Window = 50
	}
	if c.Memory.Retain == 0 {
		c.Memory.Retain = 4
	}
	if c.Channels.Discord.BotToken == "" {
		c.Channels.Discord.BotToken = os.Getenv("DISCORD_BOT_TOKEN")
	}
	if c.Channels.Slack.AppToken == "" {
		c.Channels.Slack.AppToken = os.Getenv("SLACK_APP_TOKEN")
	}
	if c.Channels.Slack.BotToken == "" {
		c.Channels.Slack.BotToken = os.Getenv("SLACK_BOT_TOKEN")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Tools.ExecTimeoutSeconds == 0 {
		c.Tools.ExecTimeoutSeconds = 60
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Model.Provider {
	case "anthropic", "openai", "mock":
	default:
		errs = append(errs, fmt.Sprintf("model.provider %q is not supported", c.Model.Provider))
	}
	if c.Model.Name == "" && c.Model.Provider != "mock" {
		errs = append(errs, "model.name is required")
	}
	if c.Agent.MaxIterations < 1 {
		errs = append(errs, "agent.max_iterations must be at least 1")
	}
	if c.Memory.Retain < 1 {
		errs = append(errs, "memory.retain must be at least 1")
	}
	if c.Channels.Discord.Enabled && c.Channels.Discord.BotToken == "" {
		errs = append(errs, "channels.discord.bot_token is required when discord is enabled")
	}
	if c.Channels.Slack.Enabled && (c.Channels.Slack.AppToken == "" || c.Channels.Slack.BotToken == "") {
		errs = append(errs, "channels.slack.app_token and bot_token are required when slack is enabled")
	}
	for i, job := range c.Heartbeat {
		if job.Name == "" {
			errs = append(errs, fmt.Sprintf("heartbeat[%d].name is required", i))
		}
		if job.Cron == "" {
			errs = append(errs, fmt.Sprintf("heartbeat[%d].cron is required", i))
		}
		if job.Prompt == "" {
			errs = append(errs, fmt.Sprintf("heartbeat[%d].prompt is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
