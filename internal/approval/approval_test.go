package approval

import (
	"path/filepath"
	"testing"

	"github.com/mao-project/mao/internal/queue"
	"github.com/mao-project/mao/internal/store"
)

type fakeAgents struct {
	released []string
}

func (f *fakeAgents) Release(agentID string) {
	f.released = append(f.released, agentID)
}

type fakeWorktrees struct {
	removed []string
	err     error
}

func (f *fakeWorktrees) RemoveWorktree(path string) error {
	f.removed = append(f.removed, path)
	return f.err
}

type fakePanes struct {
	killed []string
	err    error
}

func (f *fakePanes) KillPane(paneID string) error {
	f.killed = append(f.killed, paneID)
	return f.err
}

func newTestGate(t *testing.T) (*Gate, *queue.ApprovalQueue, *fakeAgents, *fakeWorktrees, *fakePanes) {
	t.Helper()
	st := store.New(filepath.Join(t.TempDir(), ".mao"))
	approvals := queue.NewApprovalQueue(st)
	agents := &fakeAgents{}
	worktrees := &fakeWorktrees{}
	panes := &fakePanes{}
	gate := New(approvals, agents, worktrees, panes)
	return gate, approvals, agents, worktrees, panes
}

func TestApproveRunsOrderedCleanupAndRemovesItem(t *testing.T) {
	gate, approvals, agents, worktrees, panes := newTestGate(t)

	item, err := approvals.Add(queue.ApprovalItem{
		AgentID:      "agent1",
		PaneID:       "%3",
		WorktreePath: "/tmp/fake-worktree",
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	decision, err := gate.Approve(item.ID, "looks good")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if decision.Kind != DecisionApproved {
		t.Errorf("Kind = %q, want approved", decision.Kind)
	}
	if decision.Item.ReviewerFeedback != "looks good" {
		t.Errorf("ReviewerFeedback = %q", decision.Item.ReviewerFeedback)
	}

	if len(agents.released) != 1 || agents.released[0] != "agent1" {
		t.Errorf("agents.released = %v", agents.released)
	}
	if len(worktrees.removed) != 1 || worktrees.removed[0] != "/tmp/fake-worktree" {
		t.Errorf("worktrees.removed = %v", worktrees.removed)
	}
	if len(panes.killed) != 1 || panes.killed[0] != "%3" {
		t.Errorf("panes.killed = %v", panes.killed)
	}

	all, err := approvals.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected the approval item to be removed, found %d remaining", len(all))
	}
}

func TestRejectRunsCleanupAndReturnsFeedbackDecision(t *testing.T) {
	gate, approvals, agents, _, _ := newTestGate(t)

	item, err := approvals.Add(queue.ApprovalItem{AgentID: "agent2", PaneID: "%4"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	decision, err := gate.Reject(item.ID, "needs more tests")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if decision.Kind != DecisionRejectedWithFeedback {
		t.Errorf("Kind = %q, want rejected_with_feedback", decision.Kind)
	}
	if decision.Feedback != "needs more tests" {
		t.Errorf("Feedback = %q", decision.Feedback)
	}
	if len(agents.released) != 1 {
		t.Errorf("expected agent released")
	}
}

func TestApproveSkipsWorktreeRemovalWhenUnset(t *testing.T) {
	gate, approvals, _, worktrees, _ := newTestGate(t)

	item, err := approvals.Add(queue.ApprovalItem{AgentID: "agent3", PaneID: "%5"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := gate.Approve(item.ID, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if len(worktrees.removed) != 0 {
		t.Errorf("expected no worktree removal, got %v", worktrees.removed)
	}
}

func TestApproveUnknownIDErrors(t *testing.T) {
	gate, _, _, _, _ := newTestGate(t)
	if _, err := gate.Approve("deadbeef", ""); err == nil {
		t.Fatal("expected an error for an unknown id")
	}
}

func TestDiffRequiresWorktree(t *testing.T) {
	gate, approvals, _, _, _ := newTestGate(t)
	item, err := approvals.Add(queue.ApprovalItem{AgentID: "agent4", PaneID: "%6"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := gate.Diff(item.ID); err == nil {
		t.Fatal("expected an error for an item with no worktree")
	}
}
