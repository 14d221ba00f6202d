// Package manager implements the Agent Manager and Workflow Manager
// (§4.8, §4.9): snapshot-queryable run registries sitting above the turn
// loop and the workflow runner.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/bus"
	"github.com/agentcore/runtime/internal/sandbox"
	"github.com/agentcore/runtime/internal/session"
	"github.com/agentcore/runtime/pkg/models"
)

// AgentStatus mirrors an agent's current activity, distinct from a run's
// RunStatus: an agent is idle between runs even after completing one.
type AgentStatus string

const (
	AgentIdle    AgentStatus = "idle"
	AgentRunning AgentStatus = "running"
)

// AgentInfo is the registered configuration and live status of one agent.
type AgentInfo struct {
	ID            string
	Config        agent.Config
	Status        AgentStatus
	CurrentRunID  string
	CurrentSessID string
	TotalTokens   models.TokenUsage
	LastActiveAt  time.Time
}

type registeredAgent struct {
	info    AgentInfo
	runtime *agent.Agent
	sandbox *sandbox.Sandbox
}

// AgentManager holds the registry of agents, their runs, and their
// sessions, emitting lifecycle events onto a shared bus.
type AgentManager struct {
	mu     sync.RWMutex
	bus    *bus.Bus
	store  session.Store
	agents map[string]*registeredAgent
	runs   map[string]*models.RunInfo
	nextID int
}

// NewAgentManager constructs an AgentManager. A nil bus gets its own
// private bus; a nil store gets a fresh in-memory session store.
func NewAgentManager(b *bus.Bus, store session.Store) *AgentManager {
	if b == nil {
		b = bus.New(nil)
	}
	if store == nil {
		store = session.NewInMemory()
	}
	return &AgentManager{
		bus:    b,
		store:  store,
		agents: make(map[string]*registeredAgent),
		runs:   make(map[string]*models.RunInfo),
	}
}

// RegisterOptions customizes a registered agent's sandbox binding.
type RegisterOptions struct {
	Sandbox *sandbox.Sandbox
}

// Register adds a new agent built from cfg and returns its id.
func (m *AgentManager) Register(cfg agent.Config, opts RegisterOptions) string {
	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("agent-%d", m.nextID)
	m.agents[id] = &registeredAgent{
		info:    AgentInfo{ID: id, Config: cfg, Status: AgentIdle},
		runtime: agent.New(cfg, m.store),
		sandbox: opts.Sandbox,
	}
	m.mu.Unlock()

	m.bus.Emit("agent:registered", id)
	return id
}

// Remove unregisters an agent.
func (m *AgentManager) Remove(agentID string) {
	m.mu.Lock()
	delete(m.agents, agentID)
	m.mu.Unlock()
	m.bus.Emit("agent:removed", agentID)
}

// StartOptions customizes a single run.
type StartOptions struct {
	SessionID string
}

// StartRun launches agentID's turn loop asynchronously over prompt and
// returns the new run's id immediately.
func (m *AgentManager) StartRun(agentID, prompt string, opts StartOptions) (string, error) {
	m.mu.Lock()
	ra, ok := m.agents[agentID]
	if !ok {
		m.mu.Unlock()
		return "", fmt.Errorf("manager: unknown agent %q", agentID)
	}
	m.nextID++
	runID := fmt.Sprintf("run-%d", m.nextID)
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = session.NewID()
	}

	run := &models.RunInfo{
		ID:        runID,
		AgentID:   agentID,
		Status:    models.RunStatusRunning,
		Prompt:    prompt,
		StartedAt: time.Now(),
	}
	m.runs[runID] = run
	ra.info.Status = AgentRunning
	ra.info.CurrentRunID = runID
	ra.info.CurrentSessID = sessionID
	m.mu.Unlock()

	events, err := ra.runtime.Run(context.Background(), agent.RunOptions{Content: prompt, SessionID: sessionID})
	if err != nil {
		m.mu.Lock()
		run.Status = models.RunStatusError
		run.FinishedAt = time.Now()
		ra.info.Status = AgentIdle
		ra.info.CurrentRunID = ""
		m.mu.Unlock()
		return "", err
	}

	go m.pump(agentID, runID, events)
	return runID, nil
}

func (m *AgentManager) pump(agentID, runID string, events <-chan models.AgentEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.finishRun(agentID, runID, models.RunStatusError, models.TokenUsage{})
			m.mu.Lock()
			run := m.runs[runID]
			m.mu.Unlock()
			if run != nil {
				run.Events = append(run.Events, errorEvent(fmt.Sprintf("panic: %v", r)))
			}
		}
	}()

	var usage models.TokenUsage
	status := models.RunStatusCompleted

	for ev := range events {
		m.mu.Lock()
		if run, ok := m.runs[runID]; ok {
			run.Events = append(run.Events, ev)
		}
		m.mu.Unlock()
		m.bus.Emit("run:event", ev)

		if ev.Type == models.AgentEventDone && ev.Done != nil {
			usage = ev.Done.Usage
			switch ev.Done.Reason {
			case models.FinishCanceled:
				status = models.RunStatusCanceled
			case models.FinishError:
				status = models.RunStatusError
			default:
				status = models.RunStatusCompleted
			}
		}
	}

	m.finishRun(agentID, runID, status, usage)
}

func (m *AgentManager) finishRun(agentID, runID string, status models.RunStatus, usage models.TokenUsage) {
	m.mu.Lock()
	if run, ok := m.runs[runID]; ok {
		run.Status = status
		run.FinishedAt = time.Now()
		run.Usage = usage
	}
	if ra, ok := m.agents[agentID]; ok {
		ra.info.Status = AgentIdle
		ra.info.CurrentRunID = ""
		ra.info.LastActiveAt = time.Now()
		ra.info.TotalTokens = ra.info.TotalTokens.Add(usage)
	}
	m.mu.Unlock()

	m.bus.Emit("run:completed", runID)
	m.bus.Emit("agent:status", agentStatusEvent{AgentID: agentID, Status: AgentIdle})
}

type agentStatusEvent struct {
	AgentID string
	Status  AgentStatus
}

// CancelRun signals the agent's internal cancellation token for its
// current session, if it has one running.
func (m *AgentManager) CancelRun(agentID string) {
	m.mu.RLock()
	ra, ok := m.agents[agentID]
	sessionID := ""
	if ok {
		sessionID = ra.info.CurrentSessID
	}
	m.mu.RUnlock()
	if ok && sessionID != "" {
		ra.runtime.Cancel(sessionID)
	}
}

// GetAgent returns the registered info for agentID.
func (m *AgentManager) GetAgent(agentID string) (AgentInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ra, ok := m.agents[agentID]
	if !ok {
		return AgentInfo{}, false
	}
	return ra.info, true
}

// ListAgents returns a snapshot of every registered agent's info.
func (m *AgentManager) ListAgents() []AgentInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AgentInfo, 0, len(m.agents))
	for _, ra := range m.agents {
		out = append(out, ra.info)
	}
	return out
}

// GetRun returns a copy of a run's current RunInfo.
func (m *AgentManager) GetRun(runID string) (models.RunInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return models.RunInfo{}, false
	}
	return *run, true
}

// RunStats reduces a run's accumulated event list into a RunStats summary
// (SPEC_FULL E.3 stats collector), usable while the run is still in
// flight or after it has finished.
func (m *AgentManager) RunStats(runID string) (models.RunStats, bool) {
	m.mu.RLock()
	run, ok := m.runs[runID]
	if !ok {
		m.mu.RUnlock()
		return models.RunStats{}, false
	}
	events := append([]models.AgentEvent(nil), run.Events...)
	m.mu.RUnlock()
	return agent.CollectStats(events), true
}

// ListRuns returns every run, optionally filtered to one agent.
func (m *AgentManager) ListRuns(agentID string) []models.RunInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.RunInfo, 0, len(m.runs))
	for _, run := range m.runs {
		if agentID == "" || run.AgentID == agentID {
			out = append(out, *run)
		}
	}
	return out
}

// GetSandbox returns the sandbox bound to agentID, if any.
func (m *AgentManager) GetSandbox(agentID string) (*sandbox.Sandbox, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ra, ok := m.agents[agentID]
	if !ok || ra.sandbox == nil {
		return nil, false
	}
	return ra.sandbox, true
}

func errorEvent(msg string) models.AgentEvent {
	return models.AgentEvent{Type: models.AgentEventError, Error: &models.ErrorEventPayload{Message: msg}}
}
