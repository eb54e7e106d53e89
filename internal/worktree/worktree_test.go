package worktree

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/mao-project/mao/internal/vcs"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if err := cmd.Run(); err != nil {
			t.Fatalf("git %v: %v", args, err)
		}
	}
	run("init")
	run("config", "user.email", "test@test.com")
	run("config", "user.name", "Test User")

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Test\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	run("add", ".")
	run("commit", "-m", "initial")

	return dir
}

type fakePRCreator struct {
	url   string
	err   error
	dir   string
	title string
	body  string
	base  string
	calls int
}

func (f *fakePRCreator) CreatePR(dir, title, body, base string) (string, error) {
	f.calls++
	f.dir, f.title, f.body, f.base = dir, title, body, base
	return f.url, f.err
}

func TestCreateFeedbackWorktree(t *testing.T) {
	t.Parallel()
	dir := initTestRepo(t)
	g := vcs.New(dir)
	m := New(dir, g, nil)

	wt, err := m.CreateFeedbackWorktree("fb1")
	if err != nil {
		t.Fatalf("CreateFeedbackWorktree: %v", err)
	}
	if wt.Kind != KindFeedback {
		t.Errorf("Kind = %q, want feedback", wt.Kind)
	}
	if wt.Branch != "feedback-fb1" {
		t.Errorf("Branch = %q, want feedback-fb1", wt.Branch)
	}
	if _, err := os.Stat(wt.Path); err != nil {
		t.Errorf("worktree path does not exist: %v", err)
	}
}

func TestCreateWorkerWorktree(t *testing.T) {
	t.Parallel()
	dir := initTestRepo(t)
	g := vcs.New(dir)
	m := New(dir, g, nil)

	parentBranch, err := g.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}

	wt, err := m.CreateWorkerWorktree(parentBranch, "agent1")
	if err != nil {
		t.Fatalf("CreateWorkerWorktree: %v", err)
	}
	if wt.Kind != KindWorker {
		t.Errorf("Kind = %q, want worker", wt.Kind)
	}
	want := parentBranch + "-agent1"
	if wt.Branch != want {
		t.Errorf("Branch = %q, want %q", wt.Branch, want)
	}
}

func TestRemoveWorktree(t *testing.T) {
	t.Parallel()
	dir := initTestRepo(t)
	g := vcs.New(dir)
	m := New(dir, g, nil)

	wt, err := m.CreateFeedbackWorktree("fb2")
	if err != nil {
		t.Fatalf("CreateFeedbackWorktree: %v", err)
	}
	if err := m.RemoveWorktree(wt.Path); err != nil {
		t.Fatalf("RemoveWorktree: %v", err)
	}
	if _, err := os.Stat(wt.Path); !os.IsNotExist(err) {
		t.Errorf("expected worktree path to be removed, stat err = %v", err)
	}
}

func TestRemoveWorktreeIdempotent(t *testing.T) {
	t.Parallel()
	dir := initTestRepo(t)
	g := vcs.New(dir)
	m := New(dir, g, nil)

	wt, err := m.CreateFeedbackWorktree("fb3")
	if err != nil {
		t.Fatalf("CreateFeedbackWorktree: %v", err)
	}
	if err := m.RemoveWorktree(wt.Path); err != nil {
		t.Fatalf("first RemoveWorktree: %v", err)
	}
	if err := m.RemoveWorktree(wt.Path); err != nil {
		t.Fatalf("second RemoveWorktree should be idempotent: %v", err)
	}
}

func TestCleanupWorktrees(t *testing.T) {
	t.Parallel()
	dir := initTestRepo(t)
	g := vcs.New(dir)
	m := New(dir, g, nil)

	if _, err := m.CreateFeedbackWorktree("fb4"); err != nil {
		t.Fatalf("CreateFeedbackWorktree: %v", err)
	}
	if _, err := m.CreateFeedbackWorktree("fb5"); err != nil {
		t.Fatalf("CreateFeedbackWorktree: %v", err)
	}

	count, err := m.CleanupWorktrees()
	if err != nil {
		t.Fatalf("CleanupWorktrees: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	entries, err := os.ReadDir(m.wtDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected wtDir to be empty, found %d entries", len(entries))
	}
}

func TestCleanupWorktreesMissingDir(t *testing.T) {
	t.Parallel()
	dir := initTestRepo(t)
	g := vcs.New(dir)
	m := New(dir, g, nil)

	count, err := m.CleanupWorktrees()
	if err != nil {
		t.Fatalf("CleanupWorktrees: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestCommitAndPushNoOpWhenClean(t *testing.T) {
	t.Parallel()
	dir := initTestRepo(t)
	g := vcs.New(dir)
	m := New(dir, g, nil)

	wt, err := m.CreateFeedbackWorktree("fb6")
	if err != nil {
		t.Fatalf("CreateFeedbackWorktree: %v", err)
	}
	if err := m.CommitAndPush(wt.Path, wt.Branch, "no changes"); err != nil {
		t.Fatalf("CommitAndPush should be a no-op on a clean worktree: %v", err)
	}
}

func TestCommitAndPushCommitsChanges(t *testing.T) {
	t.Parallel()
	dir := initTestRepo(t)
	g := vcs.New(dir)
	m := New(dir, g, nil)

	wt, err := m.CreateFeedbackWorktree("fb7")
	if err != nil {
		t.Fatalf("CreateFeedbackWorktree: %v", err)
	}
	if err := os.WriteFile(filepath.Join(wt.Path, "new.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	// CommitAndPush will fail on Push since there is no remote "origin",
	// but the commit itself must have succeeded first.
	_ = m.CommitAndPush(wt.Path, wt.Branch, "add new file")

	wg := vcs.New(wt.Path)
	has, err := wg.HasUncommittedChanges()
	if err != nil {
		t.Fatalf("HasUncommittedChanges: %v", err)
	}
	if has {
		t.Error("expected changes to be committed despite push failure")
	}
}

func TestCreatePRDelegatesToPRCreator(t *testing.T) {
	t.Parallel()
	dir := initTestRepo(t)
	g := vcs.New(dir)
	fake := &fakePRCreator{url: "https://example.com/pr/1"}
	m := New(dir, g, fake)

	url, err := m.CreatePR("/some/path", "title", "body", "main")
	if err != nil {
		t.Fatalf("CreatePR: %v", err)
	}
	if url != "https://example.com/pr/1" {
		t.Errorf("url = %q, want the fake's url", url)
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1", fake.calls)
	}
	if fake.dir != "/some/path" || fake.title != "title" || fake.body != "body" || fake.base != "main" {
		t.Errorf("fake received unexpected args: %+v", fake)
	}
}

func TestCreatePRNoGHConfigured(t *testing.T) {
	t.Parallel()
	dir := initTestRepo(t)
	g := vcs.New(dir)
	m := New(dir, g, nil)

	if _, err := m.CreatePR("/some/path", "title", "body", "main"); err == nil {
		t.Fatal("expected an error when no PRCreator is configured")
	}
}
