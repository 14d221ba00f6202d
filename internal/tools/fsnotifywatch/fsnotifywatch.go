// Package fsnotifywatch is the explicit service named by the
// stale-write-detection redesign: rather than a module-level map of file
// modification times consulted implicitly by every write-capable tool,
// a Watcher is constructed once, watches a root directory via fsnotify,
// and is handed to whichever tools need to know whether a file changed
// underneath them since they last read it.
package fsnotifywatch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/agentcore/runtime/internal/agent"
)

// Watcher tracks the last external-modification time observed for every
// path directly inside a watched root directory, via fsnotify events
// rather than polling. Subdirectories of the root are not watched.
type Watcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	modified map[string]time.Time

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New constructs a Watcher rooted at rootDir and starts its event loop in
// a background goroutine. Call Close to release the underlying fsnotify
// watcher.
func New(rootDir string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotifywatch: create watcher: %w", err)
	}
	if err := fsw.Add(rootDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("fsnotifywatch: watch %q: %w", rootDir, err)
	}

	w := &Watcher{
		logger:   logger,
		modified: make(map[string]time.Time),
		watcher:  fsw,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.mu.Lock()
				w.modified[event.Name] = time.Now()
				w.mu.Unlock()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify watch error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watch loop and releases the fsnotify handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

// ModifiedSince reports whether path has an observed write or create
// event after since. A path never observed as modified returns false.
func (w *Watcher) ModifiedSince(path string, since time.Time) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	last, ok := w.modified[path]
	return ok && last.After(since)
}

// schema describes the stale_write_check tool's input.
const schema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "absolute path to check"},
		"since": {"type": "string", "description": "RFC3339 timestamp of the last known read/write"}
	},
	"required": ["path", "since"]
}`

// Tool exposes a Watcher as a stale_write_check Tool: given a path and
// the timestamp of a prior read, it reports whether the file was
// modified externally since then, so a caller can re-read before
// overwriting.
type Tool struct {
	watcher *Watcher
}

// NewTool wraps watcher as a Tool.
func NewTool(watcher *Watcher) *Tool { return &Tool{watcher: watcher} }

func (t *Tool) Name() string        { return "stale_write_check" }
func (t *Tool) Description() string {
	return "Reports whether a file has been modified externally since a given timestamp, to detect stale writes before overwriting it."
}
func (t *Tool) ParametersSchema() json.RawMessage { return json.RawMessage(schema) }
func (t *Tool) RequiredFields() []string          { return []string{"path", "since"} }

type input struct {
	Path  string `json:"path"`
	Since string `json:"since"`
}

func (t *Tool) Execute(_ agent.ToolContext, raw json.RawMessage) (agent.ToolResult, error) {
	var in input
	if err := json.Unmarshal(raw, &in); err != nil {
		return agent.ToolResult{Content: fmt.Sprintf("invalid input: %v", err), IsError: true}, nil
	}
	since, err := time.Parse(time.RFC3339, in.Since)
	if err != nil {
		return agent.ToolResult{Content: fmt.Sprintf("invalid since timestamp: %v", err), IsError: true}, nil
	}
	stale := t.watcher.ModifiedSince(in.Path, since)
	return agent.ToolResult{
		Content:  fmt.Sprintf("stale=%t", stale),
		Metadata: map[string]any{"stale": stale},
	}, nil
}

var _ agent.Tool = (*Tool)(nil)
