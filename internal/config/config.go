// Package config defines the process configuration and its viper-backed
// loader. Values come from a JSON config file overridden by FERROCLAW_*
// environment variables.
package config

import (
	"fmt"

	"github.com/ferroclaw/ferroclaw/internal/logger"
)

// ProviderConfig describes one backend in the fallback chain, in order.
type ProviderConfig struct {
	// Name selects the driver: "anthropic" or "openai".
	Name    string `mapstructure:"name" json:"name"`
	APIKey  string `mapstructure:"api_key" json:"api_key"`
	Model   string `mapstructure:"model" json:"model"`
	BaseURL string `mapstructure:"base_url" json:"base_url,omitempty"`
}

// AgentConfig describes one routed sub-agent.
type AgentConfig struct {
	Name          string   `mapstructure:"name" json:"name"`
	Description   string   `mapstructure:"description" json:"description,omitempty"`
	SystemPrompt  string   `mapstructure:"system_prompt" json:"system_prompt,omitempty"`
	Model         string   `mapstructure:"model" json:"model,omitempty"`
	Keywords      []string `mapstructure:"keywords" json:"keywords,omitempty"`
	Skills        []string `mapstructure:"skills" json:"skills,omitempty"`
	Default       bool     `mapstructure:"default" json:"default,omitempty"`
	MaxIterations int      `mapstructure:"max_iterations" json:"max_iterations,omitempty"`
}

// Limits holds the run budgets shared by all agents.
type Limits struct {
	MaxIterations      int     `mapstructure:"max_iterations" json:"max_iterations"`
	ToolTimeoutSeconds int     `mapstructure:"tool_timeout_seconds" json:"tool_timeout_seconds"`
	HistoryBudget      int     `mapstructure:"history_budget" json:"history_budget"`
	MaxTokens          int     `mapstructure:"max_tokens" json:"max_tokens"`
	Temperature        float64 `mapstructure:"temperature" json:"temperature"`
	RetryAttempts      int     `mapstructure:"retry_attempts" json:"retry_attempts"`
}

// Config is the full process configuration.
type Config struct {
	DataDir       string           `mapstructure:"data_dir" json:"data_dir"`
	WorkspacePath string           `mapstructure:"workspace_path" json:"workspace_path"`
	SkillsDir     string           `mapstructure:"skills_dir" json:"skills_dir"`
	Providers     []ProviderConfig `mapstructure:"providers" json:"providers"`
	Agents        []AgentConfig    `mapstructure:"agents" json:"agents"`
	Limits        Limits           `mapstructure:"limits" json:"limits"`
	Logging       logger.Config    `mapstructure:"logging" json:"logging"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Providers: []ProviderConfig{
			{Name: "anthropic", Model: "claude-sonnet-4-20250514"},
		},
		Agents: []AgentConfig{
			{
				Name:         "general",
				Description:  "General-purpose assistant",
				SystemPrompt: "You are a helpful assistant with access to tools. Use them when they help answer the request.",
				Default:      true,
			},
		},
		Limits: Limits{
			MaxIterations:      20,
			ToolTimeoutSeconds: 60,
			HistoryBudget:      6000,
			MaxTokens:          4096,
			Temperature:        0.7,
			RetryAttempts:      3,
		},
		Logging: logger.Config{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
	}
}

// Validate checks the configuration for startup-blocking mistakes.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}
	for i, p := range c.Providers {
		switch p.Name {
		case "anthropic", "openai":
		default:
			return fmt.Errorf("provider %d: unknown name %q (want anthropic or openai)", i, p.Name)
		}
		if p.APIKey == "" {
			return fmt.Errorf("provider %s: api key is required", p.Name)
		}
		if p.Model == "" {
			return fmt.Errorf("provider %s: model is required", p.Name)
		}
	}

	if len(c.Agents) == 0 {
		return fmt.Errorf("at least one agent is required")
	}
	defaults := 0
	seen := make(map[string]struct{}, len(c.Agents))
	for i, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent %d: name is required", i)
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("agent %s: duplicate name", a.Name)
		}
		seen[a.Name] = struct{}{}
		if a.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("at most one agent may be the default")
	}

	return nil
}
