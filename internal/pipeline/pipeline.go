// Package pipeline implements the task pipeline: an ordered,
// in-memory list of SubTasks advanced one at a time in sequential mode,
// retried with synthesized feedback prompts, and able to fall back to a
// single generic SubTask when the CTO's response contains no spawn
// directives at all.
package pipeline

import (
	"fmt"
	"sync"

	"github.com/mao-project/mao/internal/parser"
	"github.com/mao-project/mao/internal/queue"
)

// Priority is a SubTask's priority, distinct from the message
// queue's priority set.
type Priority string

const (
	PriorityLow Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh Priority = "high"
	PriorityCritical Priority = "critical"
)

// DefaultRetryCeiling is how many times a SubTask may be retried before
// being failed terminally.
const DefaultRetryCeiling = 3

// feedbackMarker is the Japanese heading uses
// to separate the original description from reviewer feedback in a retry
// prompt.
const feedbackMarker = "【前回の指摘事項】"

// SubTask is one unit of work tracked by the pipeline.
type SubTask struct {
	SubtaskID string
	ParentTaskID string
	Description string
	Role string
	ModelTier string
	Priority Priority
	Status queue.TaskStatus
	Result string
	RetryCount int
}

// Pipeline owns the ordered SubTask queue and its cursor.
type Pipeline struct {
	mu sync.Mutex
	tasks []SubTask
	currentIndex int
	sequential bool
	retryCeiling int
	nextID int
}

// New returns a Pipeline. sequential defaults to true
func New(sequential bool) *Pipeline {
	return &Pipeline{
		sequential: sequential,
		retryCeiling: DefaultRetryCeiling,
	}
}

// SetRetryCeiling overrides the default retry ceiling (3).
func (p *Pipeline) SetRetryCeiling(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retryCeiling = n
}

func (p *Pipeline) newSubtaskID() string {
	p.nextID++
	return fmt.Sprintf("st-%d", p.nextID)
}

// IngestSpawn appends a queued SubTask for one parsed spawn directive.
func (p *Pipeline) IngestSpawn(parentTaskID string, d parser.SpawnDirective) SubTask {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := SubTask{
		SubtaskID: p.newSubtaskID(),
		ParentTaskID: parentTaskID,
		Description: d.Task,
		Role: d.Role,
		ModelTier: d.Model,
		Priority: Priority(d.Priority),
		Status: queue.TaskQueued,
	}
	p.tasks = append(p.tasks, st)
	return st
}

// IngestFallback synthesizes a single generic SubTask from the full user
// prompt when the CTO's output contained no spawn directives at all. No
// automatic splitting by sentence or line is performed.
func (p *Pipeline) IngestFallback(parentTaskID, prompt string) SubTask {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := SubTask{
		SubtaskID: p.newSubtaskID(),
		ParentTaskID: parentTaskID,
		Description: prompt,
		Role: "general",
		Priority: PriorityMedium,
		Status: queue.TaskQueued,
	}
	p.tasks = append(p.tasks, st)
	return st
}

// Tasks returns a snapshot of every SubTask in order.
func (p *Pipeline) Tasks() []SubTask {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SubTask, len(p.tasks))
	copy(out, p.tasks)
	return out
}

// Current returns the SubTask at current_index, if any remains.
func (p *Pipeline) Current() (SubTask, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentIndex >= len(p.tasks) {
		return SubTask{}, false
	}
	return p.tasks[p.currentIndex], true
}

// MarkInProgress sets the SubTask at current_index to in_progress, used
// when the orchestrator dispatches it to the supervisor.
func (p *Pipeline) MarkInProgress() (SubTask, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentIndex >= len(p.tasks) {
		return SubTask{}, false
	}
	p.tasks[p.currentIndex].Status = queue.TaskInProgress
	return p.tasks[p.currentIndex], true
}

// Advance marks the task at current_index completed with result, then
// advances the cursor. In sequential mode the caller is expected to start
// the returned next task via the agent supervisor; hasNext is false once
// every task has been advanced, at which point the caller should announce
// completion.
func (p *Pipeline) Advance(result string) (next SubTask, hasNext bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.currentIndex < len(p.tasks) {
		p.tasks[p.currentIndex].Status = queue.TaskCompleted
		p.tasks[p.currentIndex].Result = result
		p.currentIndex++
	}

	if p.currentIndex >= len(p.tasks) {
		return SubTask{}, false
	}
	if !p.sequential {
		return SubTask{}, false
	}
	return p.tasks[p.currentIndex], true
}

// Retry synthesizes a feedback-augmented prompt for the SubTask identified
// by subtaskID and resets it to queued, incrementing its retry count. If
// the retry count exceeds the configured ceiling, the task is failed
// terminally instead and ok is false.
func (p *Pipeline) Retry(subtaskID, feedback string) (st SubTask, ok bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.indexOf(subtaskID)
	if idx < 0 {
		return SubTask{}, false, fmt.Errorf("unknown subtask %q", subtaskID)
	}

	p.tasks[idx].RetryCount++
	if p.tasks[idx].RetryCount > p.retryCeiling {
		p.tasks[idx].Status = queue.TaskFailed
		return p.tasks[idx], false, nil
	}

	original := p.tasks[idx].Description
	if i := indexOfMarker(original); i >= 0 {
		original = original[:i]
	}
	p.tasks[idx].Description = fmt.Sprintf("%s\n\n%s\n%s\n", original, feedbackMarker, feedback)
	p.tasks[idx].Status = queue.TaskQueued
	return p.tasks[idx], true, nil
}

func indexOfMarker(description string) int {
	for i := 0; i+len(feedbackMarker) <= len(description); i++ {
		if description[i:i+len(feedbackMarker)] == feedbackMarker {
			return i
		}
	}
	return -1
}

// Fail marks the SubTask identified by subtaskID as failed terminally,
// independent of the retry ceiling (used for failures the supervisor
// reports directly, e.g. LLM start failure).
func (p *Pipeline) Fail(subtaskID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.indexOf(subtaskID)
	if idx < 0 {
		return fmt.Errorf("unknown subtask %q", subtaskID)
	}
	p.tasks[idx].Status = queue.TaskFailed
	return nil
}

func (p *Pipeline) indexOf(subtaskID string) int {
	for i, t := range p.tasks {
		if t.SubtaskID == subtaskID {
			return i
		}
	}
	return -1
}

// Done reports whether every SubTask has advanced past current_index.
func (p *Pipeline) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentIndex >= len(p.tasks)
}

// TaskInfoSummary renders the observable "task info" header summary,
// listing up to the first three tasks and counting the rest.
func (p *Pipeline) TaskInfoSummary() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.tasks) == 0 {
		return ""
	}
	summary := fmt.Sprintf("CTO decomposed into %d task(s):\n", len(p.tasks))
	shown := p.tasks
	if len(shown) > 3 {
		shown = shown[:3]
	}
	for i, t := range shown {
		desc := t.Description
		if len(desc) > 40 {
			desc = desc[:40] + "..."
		}
		summary += fmt.Sprintf(" %d. %s\n", i+1, desc)
	}
	if len(p.tasks) > 3 {
		summary += fmt.Sprintf("... %d more\n", len(p.tasks)-3)
	}
	return summary
}
