// Package store implements the atomic, crash-safe persistence layer used
// by every other package that reads or writes files under
// <project>/.mao/. Every write materializes to a sibling temp file in
// the same directory and is atomically renamed over the destination, so
// readers never observe partial content. A per-entity/index append
// follows a write-then-commit-or-rollback pattern: if the entity file
// write succeeds but the index write fails, the entity file is deleted
// so the two never disagree outside a transient window.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// Store roots all atomic operations under a project's .mao/ directory
// and keeps per-process named mutexes so concurrent goroutines
// serialize before ever reaching the filesystem. The target deployment
// runs exactly one orchestrator process per project, so a process-wide
// lock plus a cross-process flock as a second line of defense is
// sufficient.
type Store struct {
	root string

	mu sync.Mutex
	named map[string]*sync.Mutex
	locksMu sync.Mutex
}

// New creates a Store rooted at dir (typically <project>/.mao).
func New(dir string) *Store {
	return &Store{
		root: dir,
		named: make(map[string]*sync.Mutex),
	}
}

// Root returns the root directory this store operates under.
func (s *Store) Root() string { return s.root }

// Abs resolves a store-relative path against the root. Absolute paths are
// returned unchanged.
func (s *Store) Abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.root, path)
}

// namedMutex returns (creating if necessary) the in-process mutex for name.
func (s *Store) namedMutex(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.named[name]
	if !ok {
		m = &sync.Mutex{}
		s.named[name] = m
	}
	return m
}

// atomicWrite writes data to path via a sibling temp file plus rename.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file over %s: %w", path, err)
	}
	return nil
}

// WriteJSON marshals v as indented JSON and atomically writes it to path.
func (s *Store) WriteJSON(path string, v any) error {
	abs := s.Abs(path)
	m := s.namedMutex(abs)
	m.Lock()
	defer m.Unlock()

	data, err := json.MarshalIndent(v, "", " ")
	if err != nil {
		return fmt.Errorf("marshaling JSON for %s: %w", path, err)
	}
	return atomicWrite(abs, data, 0o644)
}

// ReadJSON unmarshals the JSON at path into v. Returns found=false (no error)
// if the file does not exist.
func (s *Store) ReadJSON(path string, v any) (found bool, err error) {
	abs := s.Abs(path)
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("parsing JSON %s: %w", path, err)
	}
	return true, nil
}

// WriteYAML marshals v as YAML and atomically writes it to path. Used for
// the YAML wire entities (queued tasks, messages, config.yaml).
func (s *Store) WriteYAML(path string, v any) error {
	abs := s.Abs(path)
	m := s.namedMutex(abs)
	m.Lock()
	defer m.Unlock()

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling YAML for %s: %w", path, err)
	}
	return atomicWrite(abs, data, 0o644)
}

// ReadYAML unmarshals the YAML at path into v. Returns found=false (no
// error) if the file does not exist.
func (s *Store) ReadYAML(path string, v any) (found bool, err error) {
	abs := s.Abs(path)
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("parsing YAML %s: %w", path, err)
	}
	return true, nil
}

// ClaimYAML reads the YAML file at path into v, then unlinks it: the
// atomic-claim pattern used by the task and message queues. The unlink
// transfers ownership to the caller. Returns found=false if the file
// didn't exist (someone else already claimed it, or it was never
// assigned).
func (s *Store) ClaimYAML(path string, v any) (found bool, err error) {
	abs := s.Abs(path)
	m := s.namedMutex(abs)
	m.Lock()
	defer m.Unlock()

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("parsing YAML %s: %w", path, err)
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return true, fmt.Errorf("unlinking claimed file %s: %w", path, err)
	}
	return true, nil
}

// Remove deletes the file at path. Missing files are not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(s.Abs(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists under the store root.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(s.Abs(path))
	return err == nil
}

// ListDir returns the base names of entries directly under dir (no error if
// dir doesn't exist: returns an empty slice).
func (s *Store) ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(s.Abs(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// AppendToIndex writes entity to entityPath, then appends entryJSON to the
// JSON array stored at indexPath. If the index write fails after the
// entity file was written, the entity file is deleted (rollback) so an
// index never disagrees with its per-entity files except transiently
// inside this call.
func (s *Store) AppendToIndex(entityPath string, entity any, indexPath string, entry any) (err error) {
	unlock, lerr := s.LockedSection("index:" + indexPath)
	if lerr != nil {
		return lerr
	}
	defer unlock()

	if err := s.WriteJSON(entityPath, entity); err != nil {
		return fmt.Errorf("writing entity %s: %w", entityPath, err)
	}
	defer func() {
		if err != nil {
			_ = s.Remove(entityPath)
		}
	}()

	var items []json.RawMessage
	if _, err = s.ReadJSON(indexPath, &items); err != nil {
		return fmt.Errorf("reading index %s: %w", indexPath, err)
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling index entry: %w", err)
	}
	items = append(items, raw)

	if err = s.WriteJSON(indexPath, items); err != nil {
		return fmt.Errorf("writing index %s: %w", indexPath, err)
	}
	return nil
}

// LockedSection acquires a cross-process advisory lock (via flock on a
// sibling .lock file under <root>/.locks/) plus an in-process mutex
// keyed by name, and returns a function that releases both.
func (s *Store) LockedSection(name string) (release func(), err error) {
	mu := s.namedMutex("section:" + name)
	mu.Lock()

	locksDir := filepath.Join(s.root, ".locks")
	if err := os.MkdirAll(locksDir, 0o755); err != nil {
		mu.Unlock()
		return nil, fmt.Errorf("creating locks directory: %w", err)
	}

	lockPath := filepath.Join(locksDir, sanitizeLockName(name)+".lock")
	fl := flock.New(lockPath)
	if err := fl.Lock(); err != nil {
		mu.Unlock()
		return nil, fmt.Errorf("acquiring flock %s: %w", lockPath, err)
	}

	return func() {
		_ = fl.Unlock()
		mu.Unlock()
	}, nil
}

// sanitizeLockName replaces path separators so a locked-section name that
// happens to be a path doesn't escape the locks directory.
func sanitizeLockName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case '/', '\\', ':':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
