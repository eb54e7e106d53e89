package queue

import (
	"testing"
	"time"

	"github.com/mao-project/mao/internal/store"
)

func newTestTaskQueue(t *testing.T) *TaskQueue {
	t.Helper()
	return NewTaskQueue(store.New(t.TempDir()))
}

func TestAssignThenClaim(t *testing.T) {
	t.Parallel()
	q := newTestTaskQueue(t)

	task := QueuedTask{TaskID: "t1", Role: "coder_backend", Prompt: "implement X"}
	if err := q.Assign(task); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	claimed, found, err := q.Claim("coder_backend")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if !found {
		t.Fatal("Claim: expected to find assigned task")
	}
	if claimed.TaskID != "t1" {
		t.Errorf("TaskID = %q, want t1", claimed.TaskID)
	}
	if claimed.Status != TaskPending {
		t.Errorf("Status = %q, want %q", claimed.Status, TaskPending)
	}
}

func TestClaimTwiceOnlyFindsOnce(t *testing.T) {
	t.Parallel()
	q := newTestTaskQueue(t)

	if err := q.Assign(QueuedTask{TaskID: "t1", Role: "tester"}); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, found, err := q.Claim("tester"); err != nil || !found {
		t.Fatalf("first Claim: found=%v err=%v", found, err)
	}
	_, found, err := q.Claim("tester")
	if err != nil {
		t.Fatalf("second Claim: %v", err)
	}
	if found {
		t.Error("second Claim should not find the already-claimed task")
	}
}

func TestSubmitResultThenFetch(t *testing.T) {
	t.Parallel()
	q := newTestTaskQueue(t)

	now := time.Now().UTC()
	result := QueuedTask{
		TaskID:      "t2",
		Role:        "reviewer",
		Status:      TaskCompleted,
		CompletedAt: &now,
		Result:      "looks good",
	}
	if err := q.SubmitResult(result); err != nil {
		t.Fatalf("SubmitResult: %v", err)
	}

	fetched, found, err := q.FetchResult("reviewer")
	if err != nil {
		t.Fatalf("FetchResult: %v", err)
	}
	if !found {
		t.Fatal("expected to find result")
	}
	if fetched.Result != "looks good" {
		t.Errorf("Result = %q, want %q", fetched.Result, "looks good")
	}

	_, found, err = q.FetchResult("reviewer")
	if err != nil {
		t.Fatalf("second FetchResult: %v", err)
	}
	if found {
		t.Error("second FetchResult should find nothing")
	}
}

func TestClaimMissingRoleNotFound(t *testing.T) {
	t.Parallel()
	q := newTestTaskQueue(t)
	_, found, err := q.Claim("nonexistent")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if found {
		t.Error("expected found=false for a role with no assigned task")
	}
}

func TestAssignOverwritesUnclaimedTask(t *testing.T) {
	t.Parallel()
	q := newTestTaskQueue(t)

	if err := q.Assign(QueuedTask{TaskID: "first", Role: "docs"}); err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	if err := q.Assign(QueuedTask{TaskID: "second", Role: "docs"}); err != nil {
		t.Fatalf("second Assign: %v", err)
	}

	claimed, found, err := q.Claim("docs")
	if err != nil || !found {
		t.Fatalf("Claim: found=%v err=%v", found, err)
	}
	if claimed.TaskID != "second" {
		t.Errorf("TaskID = %q, want %q (overwrite should win)", claimed.TaskID, "second")
	}
}
