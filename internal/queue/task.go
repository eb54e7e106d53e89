// Package queue implements the file-backed inter-process queues: the
// per-role task queue, the priority message queue, and the approval
// index. All three sit on top of internal/store's atomic
// primitives; apart from MessageQueue.Ack, which renames acknowledged
// message files itself, none of them touch the filesystem directly.
//
// Grounded on internal/nudge queue (priority-tagged,
// timestamp-named YAML/JSON files picked up by a poller) and
// internal/store's ClaimYAML/AppendToIndex.
package queue

import (
	"fmt"
	"time"

	"github.com/mao-project/mao/internal/store"
)

// TaskStatus is the lifecycle state of a queued task's wire form.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted TaskStatus = "completed"
	TaskFailed TaskStatus = "failed"
	TaskQueued TaskStatus = "queued"
)

// QueuedTask is the wire form of one file under queue/tasks/<role>.yaml or
// queue/results/<role>.yaml.
type QueuedTask struct {
	TaskID string `yaml:"task_id"`
	Role string `yaml:"role"`
	Prompt string `yaml:"prompt"`
	Model string `yaml:"model,omitempty"`
	Status TaskStatus `yaml:"status"`
	CreatedAt time.Time `yaml:"created_at"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
	Result string `yaml:"result,omitempty"`
	Error string `yaml:"error,omitempty"`
}

// TaskQueue manages the per-role task/result YAML files.
type TaskQueue struct {
	st *store.Store
}

// NewTaskQueue returns a TaskQueue rooted at the given store.
func NewTaskQueue(st *store.Store) *TaskQueue {
	return &TaskQueue{st: st}
}

func (q *TaskQueue) taskPath(role string) string {
	return fmt.Sprintf("queue/tasks/%s.yaml", role)
}

func (q *TaskQueue) resultPath(role string) string {
	return fmt.Sprintf("queue/results/%s.yaml", role)
}

// Assign writes task to its role's tasks file. Overwriting an existing,
// unclaimed task for the same role is permitted — the caller is responsible for surfacing
// that warning since this layer is silent about prior contents.
func (q *TaskQueue) Assign(task QueuedTask) error {
	if task.Status == "" {
		task.Status = TaskPending
	}
	return q.st.WriteYAML(q.taskPath(task.Role), task)
}

// Claim reads and unlinks the tasks file for role — the atomic ownership
// transfer for a claimed task.
// Returns found=false if no task is currently assigned to role.
func (q *TaskQueue) Claim(role string) (QueuedTask, bool, error) {
	var task QueuedTask
	found, err := q.st.ClaimYAML(q.taskPath(role), &task)
	if err != nil {
		return QueuedTask{}, false, fmt.Errorf("claiming task for role %s: %w", role, err)
	}
	return task, found, nil
}

// SubmitResult writes task to its role's results file, signalling
// completion back to whoever is polling fetch_result for that role.
func (q *TaskQueue) SubmitResult(task QueuedTask) error {
	return q.st.WriteYAML(q.resultPath(task.Role), task)
}

// FetchResult reads and unlinks the results file for role. Returns
// found=false if no result is currently available.
func (q *TaskQueue) FetchResult(role string) (QueuedTask, bool, error) {
	var task QueuedTask
	found, err := q.st.ClaimYAML(q.resultPath(role), &task)
	if err != nil {
		return QueuedTask{}, false, fmt.Errorf("fetching result for role %s: %w", role, err)
	}
	return task, found, nil
}
