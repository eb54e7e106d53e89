package queue

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mao-project/mao/internal/store"
)

// ApprovalStatus is the lifecycle state of a pending completion.
type ApprovalStatus string

const (
	ApprovalPending ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalInReview ApprovalStatus = "in_review"
)

// ApprovalItem is one pending completion awaiting operator decision.
type ApprovalItem struct {
	ID string `json:"id"`
	AgentID string `json:"agent_id"`
	TaskNumber int `json:"task_number"`
	TaskDescription string `json:"task_description"`
	Role string `json:"role"`
	Model string `json:"model"`
	Status ApprovalStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	ReviewerFeedback string `json:"reviewer_feedback,omitempty"`
	PaneID string `json:"pane_id"`
	WorktreePath string `json:"worktree_path,omitempty"`
	BranchName string `json:"branch_name,omitempty"`
	ChangedFiles []string `json:"changed_files,omitempty"`
	CapturedOutput string `json:"captured_output,omitempty"`
}

const approvalIndexPath = "approval_queue/index.json"

// ApprovalQueue manages the approval_queue/index.json array. Unlike
// Feedback/Improvement, an ApprovalItem has no
// separate per-entity file — the index is the sole store, mutated
// wholesale under a locked section.
type ApprovalQueue struct {
	st *store.Store
}

// NewApprovalQueue returns an ApprovalQueue rooted at the given store.
func NewApprovalQueue(st *store.Store) *ApprovalQueue {
	return &ApprovalQueue{st: st}
}

// newApprovalID returns an 8 hex char id, matching the Session/Feedback
// random-suffix convention ("id (8 hex)").
func newApprovalID() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating approval id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// Add appends item to the index, assigning an id and created_at if unset.
// Returns the stored item.
func (q *ApprovalQueue) Add(item ApprovalItem) (ApprovalItem, error) {
	if item.ID == "" {
		id, err := newApprovalID()
		if err != nil {
			return ApprovalItem{}, err
		}
		item.ID = id
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.Status == "" {
		item.Status = ApprovalPending
	}

	unlock, err := q.st.LockedSection("approval-index")
	if err != nil {
		return ApprovalItem{}, err
	}
	defer unlock()

	items, err := q.readAllLocked()
	if err != nil {
		return ApprovalItem{}, err
	}
	items = append(items, item)
	if err := q.writeAllLocked(items); err != nil {
		return ApprovalItem{}, err
	}
	return item, nil
}

// All returns every item currently in the index.
func (q *ApprovalQueue) All() ([]ApprovalItem, error) {
	unlock, err := q.st.LockedSection("approval-index")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return q.readAllLocked()
}

// Pending returns all items with status pending or in_review.
func (q *ApprovalQueue) Pending() ([]ApprovalItem, error) {
	all, err := q.All()
	if err != nil {
		return nil, err
	}
	var pending []ApprovalItem
	for _, it := range all {
		if it.Status == ApprovalPending || it.Status == ApprovalInReview {
			pending = append(pending, it)
		}
	}
	return pending, nil
}

// Resolve finds the single item whose id has idPrefix as a prefix.
// Returns an error if zero or
// more than one item matches.
func (q *ApprovalQueue) Resolve(idPrefix string) (ApprovalItem, error) {
	all, err := q.All()
	if err != nil {
		return ApprovalItem{}, err
	}
	var matches []ApprovalItem
	for _, it := range all {
		if strings.HasPrefix(it.ID, idPrefix) {
			matches = append(matches, it)
		}
	}
	switch len(matches) {
	case 0:
		return ApprovalItem{}, fmt.Errorf("no approval item matches id prefix %q", idPrefix)
	case 1:
		return matches[0], nil
	default:
		return ApprovalItem{}, fmt.Errorf("ambiguous id prefix %q matches %d items", idPrefix, len(matches))
	}
}

// Update replaces the item with the same ID as updated, resolving by
// prefix the same way Resolve does. Used by the approval gate to record
// status and reviewer_feedback transitions; the gate does not set
// reviewed_at.
func (q *ApprovalQueue) Update(idPrefix string, mutate func(*ApprovalItem)) (ApprovalItem, error) {
	unlock, err := q.st.LockedSection("approval-index")
	if err != nil {
		return ApprovalItem{}, err
	}
	defer unlock()

	items, err := q.readAllLocked()
	if err != nil {
		return ApprovalItem{}, err
	}

	idx := -1
	for i, it := range items {
		if strings.HasPrefix(it.ID, idPrefix) {
			if idx != -1 {
				return ApprovalItem{}, fmt.Errorf("ambiguous id prefix %q matches multiple items", idPrefix)
			}
			idx = i
		}
	}
	if idx == -1 {
		return ApprovalItem{}, fmt.Errorf("no approval item matches id prefix %q", idPrefix)
	}

	mutate(&items[idx])
	if err := q.writeAllLocked(items); err != nil {
		return ApprovalItem{}, err
	}
	return items[idx], nil
}

// Remove deletes the item identified by idPrefix from the index, part of
// the ordered cleanup sequence after approve/reject.
func (q *ApprovalQueue) Remove(idPrefix string) error {
	unlock, err := q.st.LockedSection("approval-index")
	if err != nil {
		return err
	}
	defer unlock()

	items, err := q.readAllLocked()
	if err != nil {
		return err
	}

	idx := -1
	for i, it := range items {
		if strings.HasPrefix(it.ID, idPrefix) {
			if idx != -1 {
				return fmt.Errorf("ambiguous id prefix %q matches multiple items", idPrefix)
			}
			idx = i
		}
	}
	if idx == -1 {
		return fmt.Errorf("no approval item matches id prefix %q", idPrefix)
	}

	items = append(items[:idx], items[idx+1:]...)
	return q.writeAllLocked(items)
}

func (q *ApprovalQueue) readAllLocked() ([]ApprovalItem, error) {
	var items []ApprovalItem
	if _, err := q.st.ReadJSON(approvalIndexPath, &items); err != nil {
		return nil, fmt.Errorf("reading approval index: %w", err)
	}
	return items, nil
}

func (q *ApprovalQueue) writeAllLocked(items []ApprovalItem) error {
	if err := q.st.WriteJSON(approvalIndexPath, items); err != nil {
		return fmt.Errorf("writing approval index: %w", err)
	}
	return nil
}

// MarshalForLog renders item as a single compact JSON line, used by the
// orchestrator shell in the session-log notice it writes when an agent
// is awaiting approval.
func (item ApprovalItem) MarshalForLog() string {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Sprintf("{\"id\":%q,\"marshal_error\":%q}", item.ID, err.Error())
	}
	return string(data)
}
