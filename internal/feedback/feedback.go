// Package feedback persists orchestrator self-improvement suggestions:
// one JSON file per feedback item under .mao/feedback/<id>.json plus an
// entry in .mao/feedback/index.json, rebuildable deterministically from
// the per-file records.
//
// Grounded on a write-entity-then-index sequence, built on
// internal/store.AppendToIndex rather than a hand-rolled temp-file-plus-
// rename.
package feedback

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mao-project/mao/internal/store"
)

// Category is one of the closed set of feedback categories.
type Category string

const (
	CategoryBug Category = "bug"
	CategoryFeature Category = "feature"
	CategoryImprovement Category = "improvement"
	CategoryDocumentation Category = "documentation"
)

// Status is a Feedback's lifecycle state.
type Status string

const (
	StatusOpen Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted Status = "completed"
	StatusRejected Status = "rejected"
)

// Feedback is a persisted suggestion for improving the orchestrator
// itself.
type Feedback struct {
	ID string `json:"id"`
	Title string `json:"title"`
	Description string `json:"description"`
	Category Category `json:"category"`
	Priority string `json:"priority"`
	AgentID string `json:"agent_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Status Status `json:"status"`
	Metadata map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const indexPath = "feedback/index.json"

func entityPath(id string) string {
	return fmt.Sprintf("feedback/%s.json", id)
}

// Store manages the feedback directory.
type Store struct {
	st *store.Store
}

// New returns a Store rooted at the given atomic store.
func New(st *store.Store) *Store {
	return &Store{st: st}
}

// NewID returns a feedback id of the form fb_<yyyymmdd_HHMMSS>_<random-8-hex>.
func NewID(now time.Time) (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating feedback id: %w", err)
	}
	return fmt.Sprintf("fb_%s_%s", now.UTC().Format("20060102_150405"), hex.EncodeToString(b[:])), nil
}

// Add persists fb as a new entity file and appends it to the index,
// assigning an id, status, and timestamps if unset.
func (s *Store) Add(fb Feedback) (Feedback, error) {
	now := time.Now().UTC()
	if fb.ID == "" {
		id, err := NewID(now)
		if err != nil {
			return Feedback{}, err
		}
		fb.ID = id
	}
	if fb.Status == "" {
		fb.Status = StatusOpen
	}
	if fb.Priority == "" {
		fb.Priority = "medium"
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = now
	}
	fb.UpdatedAt = now

	if err := s.st.AppendToIndex(entityPath(fb.ID), fb, indexPath, fb); err != nil {
		return Feedback{}, fmt.Errorf("adding feedback %s: %w", fb.ID, err)
	}
	return fb, nil
}

// Get reads one feedback item by its exact id.
func (s *Store) Get(id string) (Feedback, error) {
	var fb Feedback
	found, err := s.st.ReadJSON(entityPath(id), &fb)
	if err != nil {
		return Feedback{}, fmt.Errorf("reading feedback %s: %w", id, err)
	}
	if !found {
		return Feedback{}, fmt.Errorf("feedback %s not found", id)
	}
	return fb, nil
}

// Update loads feedback id, applies mutate, rewrites the entity file, and
// refreshes its entry in the index: entity file first, then index,
// with the index rewrite whole-array and idempotent on retry.
func (s *Store) Update(id string, mutate func(*Feedback)) (Feedback, error) {
	unlock, err := s.st.LockedSection("index:" + indexPath)
	if err != nil {
		return Feedback{}, err
	}
	defer unlock()

	fb, err := s.Get(id)
	if err != nil {
		return Feedback{}, err
	}
	mutate(&fb)
	fb.UpdatedAt = time.Now().UTC()

	if err := s.st.WriteJSON(entityPath(id), fb); err != nil {
		return Feedback{}, fmt.Errorf("updating feedback %s: %w", id, err)
	}

	items, err := s.readIndexLocked()
	if err != nil {
		return Feedback{}, err
	}
	for i, it := range items {
		if it.ID == id {
			items[i] = fb
		}
	}
	if err := s.st.WriteJSON(indexPath, items); err != nil {
		return Feedback{}, fmt.Errorf("updating feedback index for %s: %w", id, err)
	}
	return fb, nil
}

// SetStatus is a convenience wrapper around Update for the common case of
// transitioning status alone.
func (s *Store) SetStatus(id string, status Status) (Feedback, error) {
	return s.Update(id, func(fb *Feedback) { fb.Status = status })
}

// Filter narrows All/List results; a zero-value filter matches everything.
type Filter struct {
	Status Status
	Category Category
	Priority string
}

func (f Filter) matches(fb Feedback) bool {
	if f.Status != "" && fb.Status != f.Status {
		return false
	}
	if f.Category != "" && fb.Category != f.Category {
		return false
	}
	if f.Priority != "" && fb.Priority != f.Priority {
		return false
	}
	return true
}

// List returns every feedback item matching filter, newest first
// (descending by created_at).
func (s *Store) List(filter Filter) ([]Feedback, error) {
	items, err := s.readIndexLocked()
	if err != nil {
		return nil, err
	}
	var out []Feedback
	for _, fb := range items {
		if filter.matches(fb) {
			out = append(out, fb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) readIndexLocked() ([]Feedback, error) {
	var items []Feedback
	if _, err := s.st.ReadJSON(indexPath, &items); err != nil {
		return nil, fmt.Errorf("reading feedback index: %w", err)
	}
	return items, nil
}

// RepairIndex rebuilds index.json from the per-file *.json records under
// the feedback directory, discarding whatever the index currently
// contains. Returns the number of records recovered.
func (s *Store) RepairIndex() (int, error) {
	unlock, err := s.st.LockedSection("index:" + indexPath)
	if err != nil {
		return 0, err
	}
	defer unlock()

	names, err := s.st.ListDir("feedback")
	if err != nil {
		return 0, fmt.Errorf("listing feedback directory: %w", err)
	}

	var items []Feedback
	for _, name := range names {
		if name == "index.json" || !strings.HasSuffix(name, ".json") {
			continue
		}
		var fb Feedback
		found, err := s.st.ReadJSON("feedback/"+name, &fb)
		if err != nil {
			return 0, fmt.Errorf("reading feedback file %s: %w", name, err)
		}
		if !found {
			continue
		}
		items = append(items, fb)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	if err := s.st.WriteJSON(indexPath, items); err != nil {
		return 0, fmt.Errorf("writing repaired feedback index: %w", err)
	}
	return len(items), nil
}

// MarshalForLog renders fb as a single compact JSON line.
func (fb Feedback) MarshalForLog() string {
	data, err := json.Marshal(fb)
	if err != nil {
		return fmt.Sprintf("{\"id\":%q,\"marshal_error\":%q}", fb.ID, err.Error())
	}
	return string(data)
}
