package mcp

import (
	"encoding/json"
	"testing"
)

func TestRequiredFields_ParsesSchema(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","required":["a","b"]}`)
	got := requiredFields(schema)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("unexpected required fields: %v", got)
	}
}

func TestRequiredFields_NoRequiredKey_ReturnsNil(t *testing.T) {
	schema := json.RawMessage(`{"type":"object"}`)
	if got := requiredFields(schema); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestRequiredFields_InvalidJSON_ReturnsNil(t *testing.T) {
	if got := requiredFields(json.RawMessage(`not json`)); got != nil {
		t.Errorf("expected nil for invalid schema, got %v", got)
	}
}

func TestEnvSlice_FormatsKeyValuePairs(t *testing.T) {
	out := envSlice(map[string]string{"FOO": "bar"})
	if len(out) != 1 || out[0] != "FOO=bar" {
		t.Errorf("unexpected env slice: %v", out)
	}
}

func TestEnvSlice_EmptyMap_ReturnsNil(t *testing.T) {
	if out := envSlice(nil); out != nil {
		t.Errorf("expected nil, got %v", out)
	}
}

func TestConnect_RequiresCommand(t *testing.T) {
	if _, err := Connect(nil, Config{}); err == nil {
		t.Fatal("expected an error when Command is empty")
	}
}
