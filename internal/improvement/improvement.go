// Package improvement persists suggestions scoped to an arbitrary target
// project: the same per-file-plus-index shape as internal/feedback,
// annotated with a target project path and, once a worker has opened a
// pull request for it, pr_url/branch_name.
//
// Built the same way as internal/feedback, on top of
// internal/store.AppendToIndex.
package improvement

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

// Category is one of the closed set of improvement categories.
type Category string

const (
	CategoryFeature Category = "feature"
	CategoryBug Category = "bug"
	CategoryRefactor Category = "refactor"
	CategoryPerformance Category = "performance"
	CategoryDocumentation Category = "documentation"
)

// Status is an Improvement's lifecycle state.
type Status string

const (
	StatusPending Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Improvement is a persisted suggestion targeting an arbitrary project.
type Improvement struct {
	ID string `json:"id"`
	ProjectPath string `json:"project_path"`
	Title string `json:"title"`
	Description string `json:"description"`
	Category Category `json:"category"`
	Priority string `json:"priority"`
	Status Status `json:"status"`
	PRURL string `json:"pr_url,omitempty"`
	BranchName string `json:"branch_name,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const indexPath = "improvements/index.json"

func entityPath(id string) string {
	return fmt.Sprintf("improvements/%s.json", id)
}

// Store manages the improvements directory.
type Store struct {
	st *store.Store
}

// New returns a Store rooted at the given atomic store.
func New(st *store.Store) *Store {
	return &Store{st: st}
}

// NewID returns an improvement id of the form
// imp_<yyyymmdd_HHMMSS>_<random-8-hex>, matching feedback's id shape.
func NewID(now time.Time) (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating improvement id: %w", err)
	}
	return fmt.Sprintf("imp_%s_%s", now.UTC().Format("20060102_150405"), hex.EncodeToString(b[:])), nil
}

// Add persists imp as a new entity file and appends it to the index.
func (s *Store) Add(imp Improvement) (Improvement, error) {
	now := time.Now().UTC()
	if imp.ID == "" {
		id, err := NewID(now)
		if err != nil {
			return Improvement{}, err
		}
		imp.ID = id
	}
	if imp.Status == "" {
		imp.Status = StatusPending
	}
	if imp.Priority == "" {
		imp.Priority = "medium"
	}
	if imp.CreatedAt.IsZero() {
		imp.CreatedAt = now
	}
	imp.UpdatedAt = now

	if err := s.st.AppendToIndex(entityPath(imp.ID), imp, indexPath, imp); err != nil {
		return Improvement{}, fmt.Errorf("adding improvement %s: %w", imp.ID, err)
	}
	return imp, nil
}

// Get reads one improvement by its exact id.
func (s *Store) Get(id string) (Improvement, error) {
	var imp Improvement
	found, err := s.st.ReadJSON(entityPath(id), &imp)
	if err != nil {
		return Improvement{}, fmt.Errorf("reading improvement %s: %w", id, err)
	}
	if !found {
		return Improvement{}, fmt.Errorf("improvement %s not found", id)
	}
	return imp, nil
}

// Update loads improvement id, applies mutate, and rewrites both the
// entity file and its index entry.
func (s *Store) Update(id string, mutate func(*Improvement)) (Improvement, error) {
	unlock, err := s.st.LockedSection("index:" + indexPath)
	if err != nil {
		return Improvement{}, err
	}
	defer unlock()

	imp, err := s.Get(id)
	if err != nil {
		return Improvement{}, err
	}
	mutate(&imp)
	imp.UpdatedAt = time.Now().UTC()

	if err := s.st.WriteJSON(entityPath(id), imp); err != nil {
		return Improvement{}, fmt.Errorf("updating improvement %s: %w", id, err)
	}

	items, err := s.readIndexLocked()
	if err != nil {
		return Improvement{}, err
	}
	for i, it := range items {
		if it.ID == id {
			items[i] = imp
		}
	}
	if err := s.st.WriteJSON(indexPath, items); err != nil {
		return Improvement{}, fmt.Errorf("updating improvement index for %s: %w", id, err)
	}
	return imp, nil
}

// CompleteWithPR records the PR URL and branch name for imp and marks it
// completed.
func (s *Store) CompleteWithPR(id, prURL, branchName string) (Improvement, error) {
	return s.Update(id, func(imp *Improvement) {
		imp.Status = StatusCompleted
		imp.PRURL = prURL
		imp.BranchName = branchName
	})
}

// Filter narrows List results; a zero-value filter matches everything.
type Filter struct {
	ProjectPath string
	Status Status
	Category Category
}

func (f Filter) matches(imp Improvement) bool {
	if f.ProjectPath != "" && imp.ProjectPath != f.ProjectPath {
		return false
	}
	if f.Status != "" && imp.Status != f.Status {
		return false
	}
	if f.Category != "" && imp.Category != f.Category {
		return false
	}
	return true
}

// List returns every improvement matching filter, newest first.
func (s *Store) List(filter Filter) ([]Improvement, error) {
	items, err := s.readIndexLocked()
	if err != nil {
		return nil, err
	}
	var out []Improvement
	for _, imp := range items {
		if filter.matches(imp) {
			out = append(out, imp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) readIndexLocked() ([]Improvement, error) {
	var items []Improvement
	if _, err := s.st.ReadJSON(indexPath, &items); err != nil {
		return nil, fmt.Errorf("reading improvement index: %w", err)
	}
	return items, nil
}

// RepairIndex rebuilds index.json from the per-file *.json records under
// the improvements directory. Returns the number of records recovered.
func (s *Store) RepairIndex() (int, error) {
	unlock, err := s.st.LockedSection("index:" + indexPath)
	if err != nil {
		return 0, err
	}
	defer unlock()

	names, err := s.st.ListDir("improvements")
	if err != nil {
		return 0, fmt.Errorf("listing improvements directory: %w", err)
	}

	var items []Improvement
	for _, name := range names {
		if name == "index.json" || !strings.HasSuffix(name, ".json") {
			continue
		}
		var imp Improvement
		found, err := s.st.ReadJSON("improvements/"+name, &imp)
		if err != nil {
			return 0, fmt.Errorf("reading improvement file %s: %w", name, err)
		}
		if !found {
			continue
		}
		items = append(items, imp)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	if err := s.st.WriteJSON(indexPath, items); err != nil {
		return 0, fmt.Errorf("writing repaired improvement index: %w", err)
	}
	return len(items), nil
}

// MarshalForLog renders imp as a single compact JSON line.
func (imp Improvement) MarshalForLog() string {
	data, err := json.Marshal(imp)
	if err != nil {
		return fmt.Sprintf("{\"id\":%q,\"marshal_error\":%q}", imp.ID, err.Error())
	}
	return string(data)
}
