// Package approval implements the approval gate: the
// approve/reject/diff state machine sitting between the agent supervisor
// and the task pipeline. Cleanup after a decision is best-effort but
// strictly ordered: StateManager record first, then
// worktree, then the ApprovalItem's index entry, then the pane.
package approval

import (
	"fmt"

	"github.com/mao-project/mao/internal/queue"
	"github.com/mao-project/mao/internal/vcs"
)

// AgentReleaser clears an agent's in-memory supervisor record (the first
// cleanup step).
type AgentReleaser interface {
	Release(agentID string)
}

// WorktreeRemover removes a worktree from disk (the second cleanup step).
type WorktreeRemover interface {
	RemoveWorktree(path string) error
}

// PaneReleaser frees a pane for reuse (the fourth and last cleanup step).
type PaneReleaser interface {
	KillPane(paneID string) error
}

// DecisionKind is what the pipeline should do next after a Gate decision.
type DecisionKind string

const (
	DecisionApproved DecisionKind = "approved"
	DecisionRejectedWithFeedback DecisionKind = "rejected_with_feedback"
)

// Decision is the outcome of Approve/Reject, handed to the task pipeline.
type Decision struct {
	Kind DecisionKind
	Item queue.ApprovalItem
	Feedback string
}

// Gate is the approval gate.
type Gate struct {
	approvals *queue.ApprovalQueue
	agents AgentReleaser
	worktrees WorktreeRemover
	panes PaneReleaser
}

// New returns a Gate wired to its collaborators.
func New(approvals *queue.ApprovalQueue, agents AgentReleaser, worktrees WorktreeRemover, panes PaneReleaser) *Gate {
	return &Gate{approvals: approvals, agents: agents, worktrees: worktrees, panes: panes}
}

// Approve marks the item approved and runs ordered cleanup, then returns a
// Decision for the pipeline to advance on.
func (g *Gate) Approve(idPrefix, feedback string) (Decision, error) {
	item, err := g.approvals.Update(idPrefix, func(it *queue.ApprovalItem) {
		it.Status = queue.ApprovalApproved
		it.ReviewerFeedback = feedback
	})
	if err != nil {
		return Decision{}, fmt.Errorf("marking approved: %w", err)
	}

	if err := g.cleanup(item); err != nil {
		return Decision{}, err
	}

	return Decision{Kind: DecisionApproved, Item: item, Feedback: feedback}, nil
}

// Reject marks the item rejected and runs the same ordered cleanup, then
// returns a Decision carrying the feedback for the pipeline's Retry step.
func (g *Gate) Reject(idPrefix, feedback string) (Decision, error) {
	item, err := g.approvals.Update(idPrefix, func(it *queue.ApprovalItem) {
		it.Status = queue.ApprovalRejected
		it.ReviewerFeedback = feedback
	})
	if err != nil {
		return Decision{}, fmt.Errorf("marking rejected: %w", err)
	}

	if err := g.cleanup(item); err != nil {
		return Decision{}, err
	}

	return Decision{Kind: DecisionRejectedWithFeedback, Item: item, Feedback: feedback}, nil
}

// cleanup performs the ordered, best-effort teardown: clear the agent's
// in-memory record, remove the worktree, delete the index entry,
// release the pane. Every step but the index delete swallows its own
// error and lets later steps still proceed; the index delete's failure
// is surfaced since a lingering index entry would leave a ghost
// approval behind.
func (g *Gate) cleanup(item queue.ApprovalItem) (err error) {
	g.agents.Release(item.AgentID)

	if item.WorktreePath != "" {
		_ = g.worktrees.RemoveWorktree(item.WorktreePath)
	}

	if removeErr := g.approvals.Remove(item.ID); removeErr != nil {
		err = fmt.Errorf("removing approval item from index: %w", removeErr)
	}

	_ = g.panes.KillPane(item.PaneID)

	return err
}

// Diff runs `git diff HEAD` in the item's worktree and returns the output
// for display. Side-effect-free.
func (g *Gate) Diff(idPrefix string) (string, error) {
	item, err := g.approvals.Resolve(idPrefix)
	if err != nil {
		return "", err
	}
	if item.WorktreePath == "" {
		return "", fmt.Errorf("approval item %s has no worktree", item.ID)
	}
	g2 := vcs.New(item.WorktreePath)
	return g2.DiffHEAD()
}
