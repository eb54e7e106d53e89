// Package worktree implements the worktree manager: per-agent and
// per-feedback isolated git working copies rooted under
// .mao/worktrees/<kind>-<id>-<ts>, each bound to exactly one branch.
package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mao-project/mao/internal/vcs"
)

// Kind is the worktree's purpose: feedback, worker, or mao-work.
type Kind string

const (
	KindFeedback Kind = "feedback"
	KindWorker Kind = "worker"
	KindMaoWork Kind = "mao-work"
)

// Worktree is one created working copy.
type Worktree struct {
	Path string
	Branch string
	Kind Kind
}

// Manager creates and destroys worktrees under <project>/.mao/worktrees.
type Manager struct {
	git *vcs.Git
	gh PRCreator
	root string // project root (where the primary checkout lives)
	wtDir string // <project>/.mao/worktrees
}

// PRCreator abstracts `gh pr create` (internal/ghclient), so Manager can
// be tested without a real gh binary.
type PRCreator interface {
	CreatePR(dir string, title, body, base string) (string, error)
}

// New returns a Manager rooted at projectRoot, whose worktrees live under
// <projectRoot>/.mao/worktrees.
func New(projectRoot string, git *vcs.Git, gh PRCreator) *Manager {
	return &Manager{
		git: git,
		gh: gh,
		root: projectRoot,
		wtDir: filepath.Join(projectRoot, ".mao", "worktrees"),
	}
}

// IsRepo reports whether the project root is a git working tree.
func (m *Manager) IsRepo() bool {
	return m.git.IsRepo()
}

// newWorktreePath builds .mao/worktrees/<kind>-<id>-<ts>.
func (m *Manager) newWorktreePath(kind Kind, id string, now time.Time) string {
	return filepath.Join(m.wtDir, fmt.Sprintf("%s-%s-%d", kind, id, now.Unix()))
}

// CreateWorktree creates `git worktree add -b <branch> <path>` rooted
// under .mao/worktrees. Returns the created Worktree.
func (m *Manager) CreateWorktree(kind Kind, id, branch string) (Worktree, error) {
	path := m.newWorktreePath(kind, id, time.Now())
	if err := m.git.WorktreeAdd(path, branch, ""); err != nil {
		return Worktree{}, fmt.Errorf("creating %s worktree: %w", kind, err)
	}
	return Worktree{Path: path, Branch: branch, Kind: kind}, nil
}

// CreateFeedbackWorktree is a convenience wrapper naming the branch after
// the feedback id.
func (m *Manager) CreateFeedbackWorktree(feedbackID string) (Worktree, error) {
	branch := fmt.Sprintf("feedback-%s", feedbackID)
	return m.CreateWorktree(KindFeedback, feedbackID, branch)
}

// CreateWorkerWorktree branches off parentBranch with name
// "<parentBranch>-<agentID>".
func (m *Manager) CreateWorkerWorktree(parentBranch, agentID string) (Worktree, error) {
	branch := fmt.Sprintf("%s-%s", parentBranch, agentID)
	path := m.newWorktreePath(KindWorker, agentID, time.Now())
	if err := m.git.WorktreeAdd(path, branch, parentBranch); err != nil {
		return Worktree{}, fmt.Errorf("creating worker worktree: %w", err)
	}
	return Worktree{Path: path, Branch: branch, Kind: KindWorker}, nil
}

// RemoveWorktree force-removes the worktree, then removes the directory
// if it's still present on disk.
func (m *Manager) RemoveWorktree(path string) error {
	if err := m.git.WorktreeRemove(path); err != nil {
		// The worktree may already be gone (e.g. its directory was
		// deleted out from under git); fall through to the directory
		// removal either way so cleanup is idempotent.
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return nil
		}
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing worktree directory %s: %w", path, err)
	}
	return nil
}

// CleanupWorktrees removes every directory under .mao/worktrees and
// returns how many were removed.
func (m *Manager) CleanupWorktrees() (int, error) {
	entries, err := os.ReadDir(m.wtDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("listing worktrees dir: %w", err)
	}

	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(m.wtDir, e.Name())
		if err := m.RemoveWorktree(path); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// CommitAndPush stages everything, commits with message, and pushes
// branch upstream from the worktree at path. A no-op (not an error) if
// there are no changes to commit.
func (m *Manager) CommitAndPush(path, branch, message string) error {
	g := vcs.New(path)
	has, err := g.HasUncommittedChanges()
	if err != nil {
		return fmt.Errorf("checking worktree status: %w", err)
	}
	if !has {
		return nil
	}
	if err := g.Add("."); err != nil {
		return fmt.Errorf("staging changes: %w", err)
	}
	if err := g.Commit(message); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	if err := g.Push(branch); err != nil {
		return fmt.Errorf("pushing branch %s: %w", branch, err)
	}
	return nil
}

// CreatePR shells out to `gh pr create` for the worktree at path,
// returning the PR URL. Returns an empty string and no error if gh
// reports nothing to create a PR for.
func (m *Manager) CreatePR(path, title, body, base string) (string, error) {
	if m.gh == nil {
		return "", fmt.Errorf("no PR creator configured")
	}
	return m.gh.CreatePR(path, title, body, base)
}
