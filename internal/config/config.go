// Package config loads the runtime's YAML configuration: provider
// credentials, sandbox defaults, delegation defaults, and bus/ring-buffer
// sizing (E.1).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig is one configured LM backend.
type ProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// SandboxConfig carries the defaults applied to every Sandbox constructed
// from this configuration, unless a caller overrides them explicitly.
type SandboxConfig struct {
	RootDir           string        `yaml:"root_dir"`
	AllowedCommands   []string      `yaml:"allowed_commands"`
	BannedCommands    []string      `yaml:"banned_commands"`
	Network           string        `yaml:"network"`
	PermissionTimeout time.Duration `yaml:"permission_timeout"`
}

// DelegationConfig holds delegation defaults loaded from the config file.
// Nothing outside this package reads it; the workflow command takes its
// delegation settings from the workflow document.
type DelegationConfig struct {
	MaxConcurrent    int      `yaml:"max_concurrent"`
	MaxTurnsPerAgent int      `yaml:"max_turns_per_agent"`
	AllowedModels    []string `yaml:"allowed_models"`
}

// BusConfig holds a bus buffer size loaded from the config file. The
// Event Bus is synchronous and unbuffered, and nothing reads this value.
type BusConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// Config is the root configuration document.
type Config struct {
	DefaultProvider string                    `yaml:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
	Sandbox         SandboxConfig             `yaml:"sandbox"`
	Delegation      DelegationConfig          `yaml:"delegation"`
	Bus             BusConfig                 `yaml:"bus"`

	// RingBufferCapacity defaults to 200 when unset or non-positive.
	// Nothing reads it: WorkflowRunInfo.RecentEvents is bounded by the
	// constant models.RingBufferCapacity.
	RingBufferCapacity int `yaml:"ring_buffer_capacity"`
}

func (c *Config) applyDefaults() {
	if c.Delegation.MaxConcurrent <= 0 {
		c.Delegation.MaxConcurrent = 4
	}
	if c.Delegation.MaxTurnsPerAgent <= 0 {
		c.Delegation.MaxTurnsPerAgent = 20
	}
	if c.Bus.BufferSize <= 0 {
		c.Bus.BufferSize = 64
	}
	if c.RingBufferCapacity <= 0 {
		c.RingBufferCapacity = 200
	}
	if c.Sandbox.PermissionTimeout <= 0 {
		c.Sandbox.PermissionTimeout = 5 * time.Minute
	}
}

// Load reads path, expands ${VAR}/$VAR environment references (the same
// os.ExpandEnv-before-parse idiom the reference config loader uses), then
// unmarshals as YAML and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyProviderEnvOverrides()
	return &cfg, nil
}

// applyProviderEnvOverrides fills in api_key from the provider's
// conventional environment variable (ANTHROPIC_API_KEY, OPENAI_API_KEY)
// when the document left it blank, so secrets never have to live in the
// YAML file itself.
func (c *Config) applyProviderEnvOverrides() {
	envVarByProvider := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	for name, envVar := range envVarByProvider {
		pc, ok := c.Providers[name]
		if ok && pc.APIKey != "" {
			continue
		}
		if v := os.Getenv(envVar); v != "" {
			pc.APIKey = v
			c.Providers[name] = pc
		}
	}
}
