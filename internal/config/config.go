// Package config loads agent settings from an optional YAML file.
// API keys are never read from the file; they come from the environment.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when RLOOP_CONFIG is unset.
const DefaultPath = "reasonloop.yaml"

type Config struct {
	// Provider selects the completion service: "openai" or "anthropic".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// ReasoningEffort is low, medium, or high.
	ReasoningEffort string `yaml:"reasoning_effort"`
	// MaxToolRounds bounds the tool-call loop per user message.
	MaxToolRounds int `yaml:"max_tool_rounds"`
	// BaseURL overrides the service endpoint (openai provider only).
	BaseURL        string `yaml:"base_url"`
	TranscriptPath string `yaml:"transcript_path"`
}

func Default() *Config {
	return &Config{
		Provider:        "openai",
		Model:           "o4-mini",
		ReasoningEffort: "medium",
		MaxToolRounds:   16,
		TranscriptPath:  "conversation.json",
	}
}

// Load reads path and merges it over defaults. A missing file yields the
// defaults; present keys override them, so explicit zero values win.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("provider must be openai or anthropic, got %q", c.Provider)
	}
	switch c.ReasoningEffort {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("reasoning_effort must be low, medium, or high, got %q", c.ReasoningEffort)
	}
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.MaxToolRounds <= 0 {
		return fmt.Errorf("max_tool_rounds must be positive, got %d", c.MaxToolRounds)
	}
	if c.TranscriptPath == "" {
		return fmt.Errorf("transcript_path must not be empty")
	}
	return nil
}
