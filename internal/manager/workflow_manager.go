package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/bus"
	"github.com/agentcore/runtime/internal/workflow"
	"github.com/agentcore/runtime/pkg/models"
)

type registeredWorkflow struct {
	info   models.WorkflowRunInfo
	schema workflow.Schema
	mu     sync.Mutex
}

// WorkflowManager is the snapshot-queryable registry of workflow runs
// (§4.9), materializing WorkflowRunInfo from the WorkflowEvent stream as
// each run progresses.
type WorkflowManager struct {
	mu   sync.RWMutex
	bus  *bus.Bus
	runs map[string]*registeredWorkflow
}

// NewWorkflowManager constructs a WorkflowManager. A nil bus gets its own
// private bus, used to forward every observed WorkflowEvent by type.
func NewWorkflowManager(b *bus.Bus) *WorkflowManager {
	if b == nil {
		b = bus.New(nil)
	}
	return &WorkflowManager{bus: b, runs: make(map[string]*registeredWorkflow)}
}

// Bus returns the manager's forwarding bus, so callers can subscribe to
// the same event types the schema's workflow emits.
func (m *WorkflowManager) Bus() *bus.Bus { return m.bus }

// StartRun constructs a Workflow from schema, runs it over prompt, and
// returns its run id as soon as the first event carrying one arrives.
func (m *WorkflowManager) StartRun(ctx context.Context, schema workflow.Schema, prompt string) (string, error) {
	wf := workflow.New(schema, nil)
	events := wf.Run(ctx, prompt)

	first, ok := <-events
	if !ok {
		return "", fmt.Errorf("manager: workflow %q produced no events", schema.Name)
	}

	runID := first.RunID
	rw := &registeredWorkflow{
		info: models.WorkflowRunInfo{
			ID:        runID,
			Name:      schema.Name,
			Status:    models.RunStatusRunning,
			Prompt:    prompt,
			StartedAt: time.Now(),
			MainAgent: snapshotFromSchema(schema),
		},
		schema: schema,
	}

	m.mu.Lock()
	m.runs[runID] = rw
	m.mu.Unlock()

	m.process(rw, first)
	go func() {
		for ev := range events {
			m.process(rw, ev)
		}
	}()

	return runID, nil
}

func snapshotFromSchema(schema workflow.Schema) models.AgentSnapshot {
	toolNames := make([]string, 0, len(schema.SharedTools))
	for _, t := range schema.SharedTools {
		toolNames = append(toolNames, t.Name())
	}
	delegationEnabled := schema.Delegation == nil || !schema.Delegation.Disabled
	rootDir := ""
	if schema.Sandbox != nil {
		rootDir = schema.Sandbox.RootDir
	}
	return models.AgentSnapshot{
		Model:             schema.MainAgent.Model,
		Provider:          schema.DefaultProvider,
		Tools:             toolNames,
		DelegationEnabled: delegationEnabled,
		SandboxRootDir:    rootDir,
	}
}

func (m *WorkflowManager) process(rw *registeredWorkflow, ev models.WorkflowEvent) {
	rw.mu.Lock()

	rw.info.RecentEvents = append(rw.info.RecentEvents, ev)
	if len(rw.info.RecentEvents) > models.RingBufferCapacity {
		rw.info.RecentEvents = rw.info.RecentEvents[len(rw.info.RecentEvents)-models.RingBufferCapacity:]
	}

	switch ev.Type {
	case models.WorkflowEventAgentSpawned:
		task := ""
		model := ""
		if ev.Spawned != nil {
			task = ev.Spawned.Task
			model = ev.Spawned.Model
		}
		rw.info.Agents = append(rw.info.Agents, models.SubAgentInfo{
			Name:      ev.Name,
			Model:     model,
			Status:    models.RunStatusRunning,
			SpawnedAt: ev.Time,
			Task:      task,
		})

	case models.WorkflowEventAgentCompleted:
		for i := len(rw.info.Agents) - 1; i >= 0; i-- {
			if rw.info.Agents[i].Name == ev.Name && rw.info.Agents[i].Status == models.RunStatusRunning {
				rw.info.Agents[i].Status = models.RunStatusCompleted
				rw.info.Agents[i].CompletedAt = ev.Time
				if ev.Completed != nil {
					rw.info.Agents[i].Output = ev.Completed.Output
				}
				break
			}
		}

	case models.WorkflowEventAgentEvent:
		for i := len(rw.info.Agents) - 1; i >= 0; i-- {
			if rw.info.Agents[i].Name == ev.Name {
				rw.info.Agents[i].EventCount++
				if ev.Agent != nil && ev.Agent.Done != nil {
					rw.info.Usage = rw.info.Usage.Add(ev.Agent.Done.Usage)
				}
				break
			}
		}
	}

	if ev.Result != nil {
		rw.info.Status = ev.Result.Status
		rw.info.Output = ev.Result.Output
		rw.info.Usage = rw.info.Usage.Add(ev.Result.Usage)
		rw.info.Error = ev.Result.Error
		rw.info.FinishedAt = time.Now()
	}

	rw.mu.Unlock()

	m.bus.Emit(string(ev.Type), ev)
}

// GetRun returns a snapshot of one workflow run's info.
func (m *WorkflowManager) GetRun(runID string) (models.WorkflowRunInfo, bool) {
	m.mu.RLock()
	rw, ok := m.runs[runID]
	m.mu.RUnlock()
	if !ok {
		return models.WorkflowRunInfo{}, false
	}
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.info, true
}

// ListRuns returns every workflow run, optionally filtered by status.
func (m *WorkflowManager) ListRuns(status models.RunStatus) []models.WorkflowRunInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.WorkflowRunInfo, 0, len(m.runs))
	for _, rw := range m.runs {
		rw.mu.Lock()
		info := rw.info
		rw.mu.Unlock()
		if status == "" || info.Status == status {
			out = append(out, info)
		}
	}
	return out
}

// RunStats reduces runID's buffered agent:event entries (the main
// agent's and every sub-agent's forwarded events alike) into a RunStats
// summary (SPEC_FULL E.3 stats collector), with the same helper the
// Agent Manager's RunStats uses. Only events still held in the RecentEvents ring buffer are
// considered, so Turns/ToolCalls may undercount a long-running workflow
// that has scrolled events out of the buffer; Usage on WorkflowRunInfo
// itself remains the authoritative running total.
func (m *WorkflowManager) RunStats(runID string) (models.RunStats, bool) {
	m.mu.RLock()
	rw, ok := m.runs[runID]
	m.mu.RUnlock()
	if !ok {
		return models.RunStats{}, false
	}
	rw.mu.Lock()
	var agentEvents []models.AgentEvent
	for _, ev := range rw.info.RecentEvents {
		if ev.Type == models.WorkflowEventAgentEvent && ev.Agent != nil {
			agentEvents = append(agentEvents, *ev.Agent)
		}
	}
	rw.mu.Unlock()
	return agent.CollectStats(agentEvents), true
}

// GetAgents returns the sub-agents observed for runID.
func (m *WorkflowManager) GetAgents(runID string) ([]models.SubAgentInfo, bool) {
	m.mu.RLock()
	rw, ok := m.runs[runID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return append([]models.SubAgentInfo(nil), rw.info.Agents...), true
}

// GetEvents returns up to limit of runID's most recent buffered events
// (limit <= 0 means all buffered events, capped at RingBufferCapacity).
func (m *WorkflowManager) GetEvents(runID string, limit int) ([]models.WorkflowEvent, bool) {
	m.mu.RLock()
	rw, ok := m.runs[runID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	rw.mu.Lock()
	defer rw.mu.Unlock()
	events := rw.info.RecentEvents
	if limit > 0 && limit < len(events) {
		events = events[len(events)-limit:]
	}
	return append([]models.WorkflowEvent(nil), events...), true
}
