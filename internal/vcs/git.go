// Package vcs wraps the git subcommands the orchestrator needs to manage
// worktrees and inspect a worker agent's changes: is_repo, worktree
// add/remove/list, diff HEAD, diff --name-only HEAD, commit, push -u
// origin <branch>, rev-parse --abbrev-ref HEAD. Every failure surfaces
// git's own stderr rather than a generic wrapped error, so a caller (the
// supervisor, the CLI) can show the operator something actionable.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Per-command deadlines so a stalled git process (a credential prompt, a
// stuck network connection) fails the operation instead of hanging the
// agent supervisor or pipeline indefinitely.
const (
	shortTimeout = 5 * time.Second
	gitTimeout = 30 * time.Second
	pushTimeout = 60 * time.Second
)

// timeoutFor picks the deadline for a git subcommand.
func timeoutFor(args []string) time.Duration {
	if len(args) == 0 {
		return shortTimeout
	}
	switch args[0] {
	case "push":
		return pushTimeout
	case "rev-parse":
		return shortTimeout
	default:
		return gitTimeout
	}
}

// GitError carries the raw stderr from a failed git invocation.
type GitError struct {
	Args []string
	Stderr string
	Err error
}

func (e *GitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *GitError) Unwrap() error { return e.Err }

// Git wraps git operations rooted at one working directory.
type Git struct {
	dir string
}

// New returns a Git wrapper rooted at dir.
func New(dir string) *Git {
	return &Git{dir: dir}
}

func (g *Git) run(args ...string) (string, error) {
	timeout := timeoutFor(args)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", &GitError{Args: args, Stderr: fmt.Sprintf("timed out after %s", timeout), Err: ctx.Err()}
		}
		return "", &GitError{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsRepo reports whether dir is inside a git working tree.
func (g *Git) IsRepo() bool {
	out, err := g.run("rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch() (string, error) {
	return g.run("rev-parse", "--abbrev-ref", "HEAD")
}

// Rev resolves ref to a commit hash.
func (g *Git) Rev(ref string) (string, error) {
	return g.run("rev-parse", ref)
}

// Status summarizes the working tree.
type Status struct {
	Clean bool
	Untracked []string
	Modified []string
}

// Status runs `git status --porcelain` and classifies each entry.
func (g *Git) Status() (Status, error) {
	out, err := g.run("status", "--porcelain")
	if err != nil {
		return Status{}, err
	}
	if out == "" {
		return Status{Clean: true}, nil
	}
	st := Status{}
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 3 {
			continue
		}
		code, path := line[:2], strings.TrimSpace(line[3:])
		if code == "??" {
			st.Untracked = append(st.Untracked, path)
		} else {
			st.Modified = append(st.Modified, path)
		}
	}
	return st, nil
}

// HasUncommittedChanges reports whether the working tree has any
// staged, unstaged, or untracked changes.
func (g *Git) HasUncommittedChanges() (bool, error) {
	st, err := g.Status()
	if err != nil {
		return false, err
	}
	return !st.Clean, nil
}

// DiffHEAD returns the full unified diff against HEAD, used to populate
// an ApprovalItem's captured diff.
func (g *Git) DiffHEAD() (string, error) {
	return g.run("diff", "HEAD")
}

// DiffNameOnlyHEAD returns the list of files changed relative to HEAD.
func (g *Git) DiffNameOnlyHEAD() ([]string, error) {
	out, err := g.run("diff", "--name-only", "HEAD")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Add stages path(s).
func (g *Git) Add(paths ...string) error {
	_, err := g.run(append([]string{"add"}, paths...)...)
	return err
}

// Commit records a commit with the given message.
func (g *Git) Commit(message string) error {
	_, err := g.run("commit", "-m", message)
	return err
}

// CreateBranch creates a new branch at the current HEAD without
// switching to it.
func (g *Git) CreateBranch(name string) error {
	_, err := g.run("branch", name)
	return err
}

// Checkout switches to an existing branch.
func (g *Git) Checkout(branch string) error {
	_, err := g.run("checkout", branch)
	return err
}

// Push pushes branch to origin, setting upstream.
func (g *Git) Push(branch string) error {
	_, err := g.run("push", "-u", "origin", branch)
	return err
}

// WorktreeAdd creates a new worktree at path on a new branch.
func (g *Git) WorktreeAdd(path, branch, startPoint string) error {
	args := []string{"worktree", "add", "-b", branch, path}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	_, err := g.run(args...)
	return err
}

// WorktreeRemove force-removes a worktree.
func (g *Git) WorktreeRemove(path string) error {
	_, err := g.run("worktree", "remove", "--force", path)
	return err
}

// WorktreeList returns the raw `git worktree list --porcelain` output,
// used to reconcile on-disk worktrees against the worktree manager's own
// records.
func (g *Git) WorktreeList() (string, error) {
	return g.run("worktree", "list", "--porcelain")
}

// WorktreePaths parses WorktreeList's porcelain output into a set of
// absolute worktree paths.
func (g *Git) WorktreePaths() ([]string, error) {
	out, err := g.WorktreeList()
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(line, "worktree "); ok {
			paths = append(paths, rest)
		}
	}
	return paths, nil
}
