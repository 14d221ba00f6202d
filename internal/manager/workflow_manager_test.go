package manager

import (
	"context"
	"testing"
	"time"

	"github.com/agentcore/runtime/internal/provider"
	"github.com/agentcore/runtime/internal/workflow"
	"github.com/agentcore/runtime/pkg/models"
)

func waitForWorkflowStatus(t *testing.T, m *WorkflowManager, runID string, want models.RunStatus) models.WorkflowRunInfo {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if info, ok := m.GetRun(runID); ok && info.Status == want {
			return info
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for run %s to reach status %s", runID, want)
	return models.WorkflowRunInfo{}
}

func TestWorkflowManager_StartRun_MaterializesCompletedInfo(t *testing.T) {
	m := NewWorkflowManager(nil)
	schema := workflow.Schema{
		Name:            "greeter",
		MainAgent:       workflow.MainAgentConfig{Model: "m1", MaxTurns: 5},
		Providers:       map[string]provider.Provider{"fake": &fakeProvider{reply: "hello"}},
		DefaultProvider: "fake",
		Delegation:      &workflow.DelegationConfig{Disabled: true},
	}

	runID, err := m.StartRun(context.Background(), schema, "say hi")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	info := waitForWorkflowStatus(t, m, runID, models.RunStatusCompleted)
	if info.Output != "hello" {
		t.Fatalf("expected output %q, got %q", "hello", info.Output)
	}
	if info.MainAgent.Model != "m1" {
		t.Fatalf("expected snapshot model m1, got %q", info.MainAgent.Model)
	}
	if len(info.RecentEvents) == 0 {
		t.Fatal("expected recorded recent events")
	}
}

func TestWorkflowManager_UnknownProvider_YieldsErrorStatus(t *testing.T) {
	m := NewWorkflowManager(nil)
	schema := workflow.Schema{
		Name:            "broken",
		Providers:       map[string]provider.Provider{"fake": &fakeProvider{}},
		DefaultProvider: "missing",
	}

	runID, err := m.StartRun(context.Background(), schema, "go")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	info := waitForWorkflowStatus(t, m, runID, models.RunStatusError)
	if info.Error == "" {
		t.Fatal("expected a recorded error message")
	}
}

func TestWorkflowManager_ListRuns_FiltersByStatus(t *testing.T) {
	m := NewWorkflowManager(nil)
	schema := workflow.Schema{
		Name:            "greeter",
		MainAgent:       workflow.MainAgentConfig{Model: "m1", MaxTurns: 5},
		Providers:       map[string]provider.Provider{"fake": &fakeProvider{reply: "hi"}},
		DefaultProvider: "fake",
		Delegation:      &workflow.DelegationConfig{Disabled: true},
	}
	runID, err := m.StartRun(context.Background(), schema, "go")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	waitForWorkflowStatus(t, m, runID, models.RunStatusCompleted)

	completed := m.ListRuns(models.RunStatusCompleted)
	found := false
	for _, r := range completed {
		if r.ID == runID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected run %s in completed listing, got %+v", runID, completed)
	}

	if errored := m.ListRuns(models.RunStatusError); len(errored) != 0 {
		t.Fatalf("expected no errored runs, got %+v", errored)
	}
}

func TestWorkflowManager_GetEvents_RespectsLimit(t *testing.T) {
	m := NewWorkflowManager(nil)
	schema := workflow.Schema{
		Name:            "greeter",
		MainAgent:       workflow.MainAgentConfig{Model: "m1", MaxTurns: 5},
		Providers:       map[string]provider.Provider{"fake": &fakeProvider{reply: "hi"}},
		DefaultProvider: "fake",
		Delegation:      &workflow.DelegationConfig{Disabled: true},
	}
	runID, err := m.StartRun(context.Background(), schema, "go")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	waitForWorkflowStatus(t, m, runID, models.RunStatusCompleted)

	all, ok := m.GetEvents(runID, 0)
	if !ok || len(all) == 0 {
		t.Fatalf("expected buffered events, got %v (ok=%v)", all, ok)
	}
	limited, ok := m.GetEvents(runID, 1)
	if !ok || len(limited) != 1 {
		t.Fatalf("expected exactly 1 event with limit=1, got %d", len(limited))
	}
}
