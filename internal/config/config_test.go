package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agentcore.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
default_provider: anthropic
providers:
  anthropic:
    default_model: claude-sonnet
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Delegation.MaxConcurrent != 4 {
		t.Errorf("expected default max_concurrent 4, got %d", cfg.Delegation.MaxConcurrent)
	}
	if cfg.Delegation.MaxTurnsPerAgent != 20 {
		t.Errorf("expected default max_turns_per_agent 20, got %d", cfg.Delegation.MaxTurnsPerAgent)
	}
	if cfg.Bus.BufferSize != 64 {
		t.Errorf("expected default bus buffer size 64, got %d", cfg.Bus.BufferSize)
	}
	if cfg.RingBufferCapacity != 200 {
		t.Errorf("expected default ring buffer capacity 200, got %d", cfg.RingBufferCapacity)
	}
	if cfg.Sandbox.PermissionTimeout != 5*time.Minute {
		t.Errorf("expected default permission timeout 5m, got %v", cfg.Sandbox.PermissionTimeout)
	}
}

func TestLoad_ExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_SANDBOX_ROOT", "/tmp/agentcore-sandbox")
	path := writeTempConfig(t, `
default_provider: anthropic
sandbox:
  root_dir: ${TEST_SANDBOX_ROOT}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sandbox.RootDir != "/tmp/agentcore-sandbox" {
		t.Errorf("expected expanded root dir, got %q", cfg.Sandbox.RootDir)
	}
}

func TestLoad_FillsAPIKeyFromEnvironmentWhenBlank(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-123")
	path := writeTempConfig(t, `
default_provider: anthropic
providers:
  anthropic:
    default_model: claude-sonnet
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers["anthropic"].APIKey != "sk-test-123" {
		t.Errorf("expected api key filled from env, got %q", cfg.Providers["anthropic"].APIKey)
	}
}

func TestLoad_DoesNotOverrideExplicitAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")
	path := writeTempConfig(t, `
default_provider: anthropic
providers:
  anthropic:
    api_key: sk-from-yaml
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers["anthropic"].APIKey != "sk-from-yaml" {
		t.Errorf("expected yaml-provided key to win, got %q", cfg.Providers["anthropic"].APIKey)
	}
}

func TestLoad_MissingFile_ReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
