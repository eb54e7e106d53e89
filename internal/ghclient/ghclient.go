// Package ghclient wraps the GitHub CLI (`gh`) for the one operation the
// orchestrator needs from an issue tracker: opening a pull request after
// an agent's worktree branch has been pushed.
package ghclient

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// createPRTimeout bounds `gh pr create`, a network call against GitHub's
// API, so a stalled gh process fails the operation instead of hanging the
// caller indefinitely.
const createPRTimeout = 60 * time.Second

// Client shells out to the gh CLI.
type Client struct{}

// New returns a Client.
func New() *Client {
	return &Client{}
}

// CreatePR runs `gh pr create` in dir and returns the created PR's URL.
// If gh reports there is nothing to create a PR for (e.g. no commits
// ahead of base), it returns an empty string and no error.
func (c *Client) CreatePR(dir, title, body, base string) (string, error) {
	args := []string{"pr", "create", "--title", title, "--body", body}
	if base != "" {
		args = append(args, "--base", base)
	}

	ctx, cancel := context.WithTimeout(context.Background(), createPRTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("gh pr create: timed out after %s", createPRTimeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "No commits between") {
			return "", nil
		}
		if msg != "" {
			return "", fmt.Errorf("gh pr create: %s", msg)
		}
		return "", fmt.Errorf("gh pr create: %w", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
