package pipeline

import (
	"strings"
	"testing"

	"github.com/mao-project/mao/internal/parser"
	"github.com/mao-project/mao/internal/queue"
)

func TestIngestSpawnAppendsQueuedTask(t *testing.T) {
	p := New(true)
	st := p.IngestSpawn("parent1", parser.SpawnDirective{Task: "do x", Role: "general", Priority: "high"})
	if st.Status != queue.TaskQueued {
		t.Errorf("Status = %q, want queued", st.Status)
	}
	if len(p.Tasks()) != 1 {
		t.Fatalf("Tasks() = %d, want 1", len(p.Tasks()))
	}
}

func TestIngestFallbackUsesGeneralRole(t *testing.T) {
	p := New(true)
	st := p.IngestFallback("parent1", "do the whole thing")
	if st.Role != "general" {
		t.Errorf("Role = %q, want general", st.Role)
	}
	if st.Description != "do the whole thing" {
		t.Errorf("Description = %q", st.Description)
	}
}

func TestAdvanceMarksCompletedAndReturnsNext(t *testing.T) {
	p := New(true)
	p.IngestSpawn("p", parser.SpawnDirective{Task: "a", Role: "general"})
	p.IngestSpawn("p", parser.SpawnDirective{Task: "b", Role: "general"})

	next, hasNext := p.Advance("result a")
	if !hasNext {
		t.Fatal("expected a next task")
	}
	if next.Description != "b" {
		t.Errorf("next.Description = %q, want b", next.Description)
	}

	tasks := p.Tasks()
	if tasks[0].Status != queue.TaskCompleted || tasks[0].Result != "result a" {
		t.Errorf("tasks[0] = %+v", tasks[0])
	}
}

func TestAdvanceAnnouncesCompletionWhenNoTasksRemain(t *testing.T) {
	p := New(true)
	p.IngestSpawn("p", parser.SpawnDirective{Task: "only", Role: "general"})

	_, hasNext := p.Advance("done")
	if hasNext {
		t.Fatal("expected hasNext=false once all tasks are advanced")
	}
	if !p.Done() {
		t.Error("expected Done() true")
	}
}

func TestAdvanceNonSequentialNeverReturnsNext(t *testing.T) {
	p := New(false)
	p.IngestSpawn("p", parser.SpawnDirective{Task: "a", Role: "general"})
	p.IngestSpawn("p", parser.SpawnDirective{Task: "b", Role: "general"})

	_, hasNext := p.Advance("result a")
	if hasNext {
		t.Error("expected hasNext=false in non-sequential mode")
	}
}

func TestRetrySynthesizesFeedbackPrompt(t *testing.T) {
	p := New(true)
	st := p.IngestSpawn("p", parser.SpawnDirective{Task: "original description", Role: "general"})

	updated, ok, err := p.Retry(st.SubtaskID, "needs more tests")
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true within retry ceiling")
	}
	if !strings.Contains(updated.Description, "original description") {
		t.Errorf("Description lost original text: %q", updated.Description)
	}
	if !strings.Contains(updated.Description, "needs more tests") {
		t.Errorf("Description missing feedback: %q", updated.Description)
	}
	if !strings.Contains(updated.Description, feedbackMarker) {
		t.Errorf("Description missing feedback marker: %q", updated.Description)
	}
	if updated.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", updated.RetryCount)
	}
	if updated.Status != queue.TaskQueued {
		t.Errorf("Status = %q, want queued", updated.Status)
	}
}

func TestRetryReplacesPreviousFeedbackOnRepeatedRetries(t *testing.T) {
	p := New(true)
	st := p.IngestSpawn("p", parser.SpawnDirective{Task: "original", Role: "general"})

	updated, _, _ := p.Retry(st.SubtaskID, "first round of feedback")
	if strings.Count(updated.Description, feedbackMarker) != 1 {
		t.Fatalf("expected exactly one marker after first retry: %q", updated.Description)
	}

	updated, _, _ = p.Retry(st.SubtaskID, "second round of feedback")
	if strings.Count(updated.Description, feedbackMarker) != 1 {
		t.Errorf("expected exactly one marker after second retry, got description: %q", updated.Description)
	}
	if strings.Contains(updated.Description, "first round") {
		t.Errorf("expected first round feedback to be replaced: %q", updated.Description)
	}
}

func TestRetryBeyondCeilingFailsTerminally(t *testing.T) {
	p := New(true)
	p.SetRetryCeiling(2)
	st := p.IngestSpawn("p", parser.SpawnDirective{Task: "original", Role: "general"})

	var ok bool
	for i := 0; i < 3; i++ {
		st, ok, _ = p.Retry(st.SubtaskID, "feedback")
	}
	if ok {
		t.Fatal("expected ok=false once retry ceiling is exceeded")
	}
	if st.Status != queue.TaskFailed {
		t.Errorf("Status = %q, want failed", st.Status)
	}
}

func TestRetryUnknownSubtaskErrors(t *testing.T) {
	p := New(true)
	if _, _, err := p.Retry("nonexistent", "x"); err == nil {
		t.Fatal("expected an error for an unknown subtask id")
	}
}

func TestTaskInfoSummaryTruncatesAfterThree(t *testing.T) {
	p := New(true)
	for i := 0; i < 5; i++ {
		p.IngestSpawn("p", parser.SpawnDirective{Task: "task", Role: "general"})
	}
	summary := p.TaskInfoSummary()
	if !strings.Contains(summary, "2 more") {
		t.Errorf("summary = %q, want mention of 2 more", summary)
	}
}

func TestFailMarksSubtaskFailed(t *testing.T) {
	p := New(true)
	st := p.IngestSpawn("p", parser.SpawnDirective{Task: "a", Role: "general"})
	if err := p.Fail(st.SubtaskID); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	tasks := p.Tasks()
	if tasks[0].Status != queue.TaskFailed {
		t.Errorf("Status = %q, want failed", tasks[0].Status)
	}
}
