// Package sandbox implements the Sandbox component (§4.3): a synchronous
// policy oracle over paths, commands, file extensions, and network
// destinations, plus an asynchronous permission-request rendezvous.
//
// The sandbox is advisory: it is a policy oracle that external tool
// implementations opt into consulting. It does not itself intercept or
// sandbox process execution (§1 Non-goals).
package sandbox

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/agentcore/runtime/internal/metrics"
	"github.com/agentcore/runtime/pkg/models"
)

// NetworkPolicy selects how Sandbox.ValidateNetwork behaves.
type NetworkPolicy string

const (
	NetworkBlocked    NetworkPolicy = "blocked"
	NetworkAllowed    NetworkPolicy = "allowed"
	NetworkRestricted NetworkPolicy = "restricted"
)

// defaultBannedCommands mirrors the reference stack's built-in deny list
// for destructive or sandbox-escaping shell invocations.
var defaultBannedCommands = []string{
	"rm -rf /", "rm -rf /*", "mkfs", "dd if=", ":(){ :|:& };:",
	"chmod -r 777 /", "chown -r", "> /dev/sda",
}

// defaultSafeReadOnlyCommands mirrors the reference stack's built-in
// allowlist of inspection commands that bypass the permission rendezvous.
var defaultSafeReadOnlyCommands = []string{
	"ls", "cat", "pwd", "echo", "grep", "find", "head", "tail", "wc", "git status", "git log", "git diff",
}

// Config is the Sandbox configuration (§4.3 table), after defaults are
// applied by New.
type Config struct {
	RootDir                 string
	AllowedCommands         []string // ["*"] means all
	BannedCommands          []string
	SafeReadOnlyCommands    []string
	AllowedWriteExtensions  []string // empty/unset means unrestricted
	MaxOutputLength         int
	CommandTimeout          time.Duration
	AutoApprove             bool
	Network                 NetworkPolicy
	AllowedHosts            []string
	PermissionTimeout       time.Duration // default 5 minutes

	// Metrics receives SandboxDenial calls for every policy rejection. A
	// nil Metrics degrades to metrics.NoopRecorder.
	Metrics metrics.Recorder
}

func (c *Config) applyDefaults() {
	if c.Metrics == nil {
		c.Metrics = metrics.NoopRecorder{}
	}
	if len(c.AllowedCommands) == 0 {
		c.AllowedCommands = []string{"*"}
	}
	if len(c.BannedCommands) == 0 {
		c.BannedCommands = defaultBannedCommands
	}
	if len(c.SafeReadOnlyCommands) == 0 {
		c.SafeReadOnlyCommands = defaultSafeReadOnlyCommands
	}
	if c.MaxOutputLength == 0 {
		c.MaxOutputLength = 30000
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 120 * time.Second
	}
	if c.Network == "" {
		c.Network = NetworkBlocked
	}
	if c.PermissionTimeout == 0 {
		c.PermissionTimeout = 5 * time.Minute
	}
}

// ErrorCode is the sandbox's single typed-error discriminant (§4.3, §7).
type ErrorCode string

const (
	ErrPathViolation      ErrorCode = "path_violation"
	ErrCommandBanned      ErrorCode = "command_banned"
	ErrCommandNotAllowed  ErrorCode = "command_not_allowed"
	ErrPermissionDenied   ErrorCode = "permission_denied"
	ErrNetworkBlocked     ErrorCode = "network_blocked"
)

// Error is the sandbox's single typed error.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func newErr(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CommandValidation is the result of ValidateCommand.
type CommandValidation struct {
	Allowed        bool
	Reason         string
	NeedsPermission bool
}

// PermissionHandler is invoked for a request requiring a human decision. It
// should call Grant or Deny on the returned request's id, typically after
// surfacing the request through an external UI. Returning before the
// rendezvous resolves is expected: WaitForDecision blocks independently.
type PermissionHandler func(ctx context.Context, req models.PermissionRequest)

type pendingRequest struct {
	req    models.PermissionRequest
	result chan models.PermissionDecision
	once   sync.Once
}

// Sandbox is the policy oracle and permission rendezvous described by §4.3.
type Sandbox struct {
	cfg Config

	mu          sync.Mutex
	pending     map[string]*pendingRequest
	decisions   []models.PermissionRecord // append-only, most recent last
	grants      []grantKey

	handler PermissionHandler

	totalRequests    atomic.Int64
	granted          atomic.Int64
	denied           atomic.Int64
	pathViolations   atomic.Int64
	commandViolations atomic.Int64
}

type grantKey struct {
	tool   string
	action string
	path   string
}

// New constructs a Sandbox with defaults applied to zero-valued fields.
// RootDir is absolutized.
func New(cfg Config) (*Sandbox, error) {
	cfg.applyDefaults()
	if cfg.RootDir == "" {
		return nil, fmt.Errorf("sandbox: rootDir is required")
	}
	abs, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve rootDir: %w", err)
	}
	cfg.RootDir = abs
	return &Sandbox{
		cfg:     cfg,
		pending: make(map[string]*pendingRequest),
	}, nil
}

// SetPermissionHandler binds the external handler invoked on each new
// permission request that is not auto-approved or pre-granted.
func (s *Sandbox) SetPermissionHandler(h PermissionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// RootDir returns the absolutized root directory.
func (s *Sandbox) RootDir() string { return s.cfg.RootDir }

// ResolvePath returns the absolute path for input, raising path_violation if
// the resolved path does not stay strictly inside RootDir.
func (s *Sandbox) ResolvePath(input string) (string, error) {
	candidate := input
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(s.cfg.RootDir, candidate)
	}
	resolved := filepath.Clean(candidate)

	root := filepath.Clean(s.cfg.RootDir)
	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		s.pathViolations.Add(1)
		s.cfg.Metrics.SandboxDenial(string(ErrPathViolation))
		return "", newErr(ErrPathViolation, "path %q escapes root %q", input, root)
	}
	return resolved, nil
}

// IsPathAllowed reports whether p resolves strictly inside RootDir, without
// raising.
func (s *Sandbox) IsPathAllowed(p string) bool {
	_, err := s.ResolvePath(p)
	return err == nil
}

// ValidateCommand classifies cmd: banned beats allowed beats safe-readonly
// beats default (§4.3).
func (s *Sandbox) ValidateCommand(cmd string) CommandValidation {
	trimmed := strings.TrimSpace(cmd)
	lower := strings.ToLower(trimmed)
	firstToken := firstWhitespaceToken(lower)

	for _, banned := range s.cfg.BannedCommands {
		b := strings.ToLower(strings.TrimSpace(banned))
		if b != "" && strings.HasPrefix(lower, b) {
			s.commandViolations.Add(1)
			s.cfg.Metrics.SandboxDenial(string(ErrCommandBanned))
			return CommandValidation{Allowed: false, Reason: fmt.Sprintf("command is banned: %s", banned)}
		}
	}

	allowed := false
	for _, a := range s.cfg.AllowedCommands {
		if a == "*" {
			allowed = true
			break
		}
		al := strings.ToLower(strings.TrimSpace(a))
		if al == firstToken || strings.HasPrefix(lower, al) {
			allowed = true
			break
		}
	}
	if !allowed {
		s.commandViolations.Add(1)
		s.cfg.Metrics.SandboxDenial(string(ErrCommandNotAllowed))
		return CommandValidation{Allowed: false, Reason: "command is not in the allowed list"}
	}

	for _, safe := range s.cfg.SafeReadOnlyCommands {
		sf := strings.ToLower(strings.TrimSpace(safe))
		if sf == "" {
			continue
		}
		if lower == sf || strings.HasPrefix(lower, sf+" ") || strings.HasPrefix(lower, sf+"-") {
			return CommandValidation{Allowed: true, NeedsPermission: false}
		}
	}

	return CommandValidation{Allowed: true, NeedsPermission: !s.cfg.AutoApprove}
}

func firstWhitespaceToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ValidateWrite resolves path (raising path_violation on escape) then, if
// AllowedWriteExtensions is set, checks the trailing extension.
func (s *Sandbox) ValidateWrite(path string) (string, error) {
	resolved, err := s.ResolvePath(path)
	if err != nil {
		return "", err
	}
	if len(s.cfg.AllowedWriteExtensions) == 0 {
		return resolved, nil
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(resolved), "."))
	for _, allowed := range s.cfg.AllowedWriteExtensions {
		a := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(allowed), "."))
		if a == ext {
			return resolved, nil
		}
	}
	s.cfg.Metrics.SandboxDenial(string(ErrCommandNotAllowed))
	return "", newErr(ErrCommandNotAllowed, "write extension %q not permitted", ext)
}

// ValidateNetwork short-circuits by policy (§4.3).
func (s *Sandbox) ValidateNetwork(host string) error {
	switch s.cfg.Network {
	case NetworkAllowed:
		return nil
	case NetworkBlocked:
		s.cfg.Metrics.SandboxDenial(string(ErrNetworkBlocked))
		return newErr(ErrNetworkBlocked, "network access is blocked")
	case NetworkRestricted:
		for _, allowed := range s.cfg.AllowedHosts {
			if host == allowed || strings.HasSuffix(host, "."+allowed) {
				return nil
			}
		}
		s.cfg.Metrics.SandboxDenial(string(ErrNetworkBlocked))
		return newErr(ErrNetworkBlocked, "host %q is not in the allowed list", host)
	default:
		s.cfg.Metrics.SandboxDenial(string(ErrNetworkBlocked))
		return newErr(ErrNetworkBlocked, "network access is blocked")
	}
}

// RequestPermission implements the rendezvous in §4.3: auto-approve,
// persistent-grant match, or a new request awaiting grant/deny with a
// 5-minute auto-deny timeout.
func (s *Sandbox) RequestPermission(ctx context.Context, tool, action, description string, path, command string) (bool, error) {
	s.totalRequests.Add(1)

	if s.cfg.AutoApprove {
		s.granted.Add(1)
		return true, nil
	}

	s.mu.Lock()
	for _, g := range s.grants {
		if g.tool == tool && g.action == action && g.path == path {
			s.mu.Unlock()
			s.granted.Add(1)
			return true, nil
		}
	}

	req := models.PermissionRequest{
		ID:          uuid.NewString(),
		Tool:        tool,
		Action:      action,
		Description: description,
		Path:        path,
		Command:     command,
		CreatedAt:   time.Now(),
	}
	pending := &pendingRequest{req: req, result: make(chan models.PermissionDecision, 1)}
	s.pending[req.ID] = pending
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		handler(ctx, req)
	}

	timer := time.NewTimer(s.cfg.PermissionTimeout)
	defer timer.Stop()

	select {
	case decision := <-pending.result:
		granted := decision == models.PermissionGranted
		if granted {
			s.granted.Add(1)
		} else {
			s.denied.Add(1)
		}
		return granted, nil
	case <-timer.C:
		s.resolve(req.ID, models.PermissionDenied, false)
		s.denied.Add(1)
		s.cfg.Metrics.SandboxDenial(string(ErrPermissionDenied))
		return false, newErr(ErrPermissionDenied, "permission request %s timed out after %s", req.ID, s.cfg.PermissionTimeout)
	case <-ctx.Done():
		s.resolve(req.ID, models.PermissionDenied, false)
		s.denied.Add(1)
		s.cfg.Metrics.SandboxDenial(string(ErrPermissionDenied))
		return false, ctx.Err()
	}
}

// GrantPermission resolves a pending request as granted. If persistent, the
// (tool, action, path) tuple is added to the grant matcher so future
// requests with the same tuple are granted without invoking the handler.
func (s *Sandbox) GrantPermission(id string, persistent bool) {
	s.resolve(id, models.PermissionGranted, persistent)
}

// DenyPermission resolves a pending request as denied.
func (s *Sandbox) DenyPermission(id string) {
	s.resolve(id, models.PermissionDenied, false)
}

func (s *Sandbox) resolve(id string, decision models.PermissionDecision, persistent bool) {
	s.mu.Lock()
	pending, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return // double-resolution is a no-op
	}
	delete(s.pending, id)
	req := pending.req
	if persistent && decision == models.PermissionGranted {
		s.grants = append(s.grants, grantKey{tool: req.Tool, action: req.Action, path: req.Path})
	}
	record := models.PermissionRecord{
		PermissionRequest: req,
		Decision:          decision,
		DecidedAt:         time.Now(),
		Persistent:        persistent,
	}
	s.decisions = append(s.decisions, record)
	s.mu.Unlock()

	pending.once.Do(func() {
		pending.result <- decision
	})
}

// Status (§6: "SandboxStatus exposes configuration snapshot plus pending
// requests, last 50 decisions, and counters").
type Status struct {
	Config            Config
	Pending           []models.PermissionRequest
	RecentDecisions   []models.PermissionRecord
	TotalRequests     int64
	Granted           int64
	Denied            int64
	PathViolations    int64
	CommandViolations int64
}

// StatusSnapshot returns the current sandbox status (SPEC_FULL E.3).
func (s *Sandbox) StatusSnapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]models.PermissionRequest, 0, len(s.pending))
	for _, p := range s.pending {
		pending = append(pending, p.req)
	}

	recent := s.decisions
	if len(recent) > 50 {
		recent = recent[len(recent)-50:]
	}
	recentCopy := make([]models.PermissionRecord, len(recent))
	copy(recentCopy, recent)

	return Status{
		Config:            s.cfg,
		Pending:           pending,
		RecentDecisions:   recentCopy,
		TotalRequests:     s.totalRequests.Load(),
		Granted:           s.granted.Load(),
		Denied:            s.denied.Load(),
		PathViolations:    s.pathViolations.Load(),
		CommandViolations: s.commandViolations.Load(),
	}
}
