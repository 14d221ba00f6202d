package manager

import (
	"context"
	"testing"
	"time"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/provider"
	"github.com/agentcore/runtime/pkg/models"
)

type fakeProvider struct{ reply string }

func (p *fakeProvider) Name() string             { return "fake" }
func (p *fakeProvider) SupportsTools() bool      { return false }
func (p *fakeProvider) Models() []provider.Model { return nil }

func (p *fakeProvider) Complete(ctx context.Context, req provider.CompletionRequest) (<-chan provider.Event, error) {
	ch := make(chan provider.Event, 2)
	ch <- provider.Event{Kind: provider.EventContentDelta, Text: p.reply}
	ch <- provider.Event{Kind: provider.EventComplete, Finish: models.FinishEndTurn}
	close(ch)
	return ch, nil
}

func waitForStatus(t *testing.T, m *AgentManager, agentID string, want AgentStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if info, ok := m.GetAgent(agentID); ok && info.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for agent %s to reach status %s", agentID, want)
}

func TestAgentManager_RegisterAndStartRun_CompletesAndReturnsToIdle(t *testing.T) {
	m := NewAgentManager(nil, nil)
	agentID := m.Register(agent.Config{
		Provider: &fakeProvider{reply: "hi there"},
		Model:    "m1",
	}, RegisterOptions{})

	info, ok := m.GetAgent(agentID)
	if !ok || info.Status != AgentIdle {
		t.Fatalf("expected freshly registered agent to be idle, got %+v (ok=%v)", info, ok)
	}

	runID, err := m.StartRun(agentID, "hello", StartOptions{})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	waitForStatus(t, m, agentID, AgentIdle)

	run, ok := m.GetRun(runID)
	if !ok {
		t.Fatalf("expected run %s to be registered", runID)
	}
	if run.Status != models.RunStatusCompleted {
		t.Fatalf("expected completed run, got %+v", run)
	}
	if len(run.Events) == 0 {
		t.Fatal("expected recorded events on the run")
	}
}

func TestAgentManager_StartRun_UnknownAgent_ReturnsError(t *testing.T) {
	m := NewAgentManager(nil, nil)
	if _, err := m.StartRun("does-not-exist", "hi", StartOptions{}); err == nil {
		t.Fatal("expected error for unknown agent")
	}
}

func TestAgentManager_Remove_DropsAgentFromListing(t *testing.T) {
	m := NewAgentManager(nil, nil)
	agentID := m.Register(agent.Config{Provider: &fakeProvider{}, Model: "m1"}, RegisterOptions{})
	m.Remove(agentID)

	if _, ok := m.GetAgent(agentID); ok {
		t.Fatal("expected agent to be removed")
	}
	for _, a := range m.ListAgents() {
		if a.ID == agentID {
			t.Fatal("removed agent still present in ListAgents")
		}
	}
}

func TestAgentManager_ListRuns_FiltersByAgent(t *testing.T) {
	m := NewAgentManager(nil, nil)
	a1 := m.Register(agent.Config{Provider: &fakeProvider{reply: "a"}, Model: "m1"}, RegisterOptions{})
	a2 := m.Register(agent.Config{Provider: &fakeProvider{reply: "b"}, Model: "m1"}, RegisterOptions{})

	r1, err := m.StartRun(a1, "go", StartOptions{})
	if err != nil {
		t.Fatalf("StartRun a1: %v", err)
	}
	if _, err := m.StartRun(a2, "go", StartOptions{}); err != nil {
		t.Fatalf("StartRun a2: %v", err)
	}

	waitForStatus(t, m, a1, AgentIdle)
	waitForStatus(t, m, a2, AgentIdle)

	runs := m.ListRuns(a1)
	if len(runs) != 1 || runs[0].ID != r1 {
		t.Fatalf("expected exactly run %s for agent %s, got %+v", r1, a1, runs)
	}
}
