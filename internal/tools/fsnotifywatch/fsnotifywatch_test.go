package fsnotifywatch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentcore/runtime/internal/agent"
)

func waitForModified(t *testing.T, w *Watcher, path string, since time.Time) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.ModifiedSince(path, since) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s to be observed as modified", path)
}

func TestWatcher_ModifiedSince_ObservesExternalWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	before := time.Now()
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	waitForModified(t, w, path, before)
}

func TestWatcher_ModifiedSince_UnobservedPathReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if w.ModifiedSince(filepath.Join(dir, "never-touched.txt"), time.Now()) {
		t.Fatal("expected false for a path with no observed modification")
	}
}

func TestTool_Execute_ReportsStaleness(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	before := time.Now()
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	waitForModified(t, w, path, before)

	tool := NewTool(w)
	input, _ := json.Marshal(map[string]string{"path": path, "since": before.Format(time.RFC3339)})
	result, err := tool.Execute(agent.ToolContext{}, input)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if stale, _ := result.Metadata["stale"].(bool); !stale {
		t.Errorf("expected stale=true, got %+v", result.Metadata)
	}
}

func TestTool_Execute_InvalidSince_ReturnsErrorResult(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	tool := NewTool(w)
	input, _ := json.Marshal(map[string]string{"path": "/tmp/x", "since": "not-a-timestamp"})
	result, err := tool.Execute(agent.ToolContext{}, input)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for an invalid since timestamp")
	}
}
