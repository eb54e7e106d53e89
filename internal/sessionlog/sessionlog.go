// Package sessionlog implements the per-session conversation log: an
// ordered, append-only chat history plus metadata, one directory per
// session under .mao/sessions/.
//
// Grounded on internal/store's atomic JSON primitives (the log is
// rewritten in full on each append, acceptable given bounded message
// lengths and human pace) and the random-8-hex id-suffix convention
// used elsewhere in this module (internal/queue's approval ids).
package sessionlog

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/mao-project/mao/internal/store"
)

// Role is who authored a ChatMessage.
type Role string

const (
	RoleUser Role = "user"
	RoleCTO Role = "cto"
	RoleSystem Role = "system"
)

// ChatMessage is one entry in a session's ordered chat.json array.
type ChatMessage struct {
	Role Role `json:"role"`
	Content string `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Metadata is the sidecar metadata.json for a session.
type Metadata struct {
	ID string `json:"id"`
	Title string `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	MessageCount int `json:"message_count"`
}

// Log manages the per-session directories under.mao/sessions/.
type Log struct {
	st *store.Store
}

// New returns a Log rooted at the given store.
func New(st *store.Store) *Log {
	return &Log{st: st}
}

func sessionDir(id string) string {
	return filepath.Join("sessions", id)
}

func chatPath(id string) string {
	return filepath.Join(sessionDir(id), "chat.json")
}

func metadataPath(id string) string {
	return filepath.Join(sessionDir(id), "metadata.json")
}

// NewSessionID returns a session id of the form
// <UTC-yyyymmdd_HHMMSS>_<random-8-hex>.
func NewSessionID(now time.Time) (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return fmt.Sprintf("%s_%s", now.UTC().Format("20060102_150405"), hex.EncodeToString(b[:])), nil
}

// Create starts a new session with the given title (optional), writing
// empty chat.json/metadata.json files.
func (l *Log) Create(id string, title string, now time.Time) (Metadata, error) {
	meta := Metadata{
		ID: id,
		Title: title,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if err := l.st.WriteJSON(metadataPath(id), meta); err != nil {
		return Metadata{}, fmt.Errorf("creating session %s: %w", id, err)
	}
	if err := l.st.WriteJSON(chatPath(id), []ChatMessage{}); err != nil {
		return Metadata{}, fmt.Errorf("creating session %s chat log: %w", id, err)
	}
	return meta, nil
}

// Append adds msg to the end of session id's chat log, NFC-normalizing
// its content first, then rewrites metadata.json so message_count and
// updated_at stay in sync.
func (l *Log) Append(id string, msg ChatMessage) error {
	msg.Content = norm.NFC.String(msg.Content)
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	unlock, err := l.st.LockedSection("session:" + id)
	if err != nil {
		return err
	}
	defer unlock()

	var messages []ChatMessage
	if _, err := l.st.ReadJSON(chatPath(id), &messages); err != nil {
		return fmt.Errorf("reading chat log for session %s: %w", id, err)
	}
	messages = append(messages, msg)
	if err := l.st.WriteJSON(chatPath(id), messages); err != nil {
		return fmt.Errorf("appending to chat log for session %s: %w", id, err)
	}

	var meta Metadata
	found, err := l.st.ReadJSON(metadataPath(id), &meta)
	if err != nil {
		return fmt.Errorf("reading metadata for session %s: %w", id, err)
	}
	if !found {
		meta = Metadata{ID: id, CreatedAt: msg.Timestamp}
	}
	meta.MessageCount = len(messages)
	meta.UpdatedAt = msg.Timestamp
	if err := l.st.WriteJSON(metadataPath(id), meta); err != nil {
		return fmt.Errorf("updating metadata for session %s: %w", id, err)
	}
	return nil
}

// Messages returns the full ordered chat log for session id.
func (l *Log) Messages(id string) ([]ChatMessage, error) {
	var messages []ChatMessage
	if _, err := l.st.ReadJSON(chatPath(id), &messages); err != nil {
		return nil, fmt.Errorf("reading chat log for session %s: %w", id, err)
	}
	return messages, nil
}

// Metadata returns session id's metadata.
func (l *Log) Metadata(id string) (Metadata, error) {
	var meta Metadata
	found, err := l.st.ReadJSON(metadataPath(id), &meta)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading metadata for session %s: %w", id, err)
	}
	if !found {
		return Metadata{}, fmt.Errorf("session %s not found", id)
	}
	return meta, nil
}

// Rename sets session id's title.
func (l *Log) Rename(id string, title string) error {
	unlock, err := l.st.LockedSection("session:" + id)
	if err != nil {
		return err
	}
	defer unlock()

	var meta Metadata
	found, err := l.st.ReadJSON(metadataPath(id), &meta)
	if err != nil {
		return fmt.Errorf("reading metadata for session %s: %w", id, err)
	}
	if !found {
		return fmt.Errorf("session %s not found", id)
	}
	meta.Title = title
	return l.st.WriteJSON(metadataPath(id), meta)
}

// Delete destroys session id entirely (chat.json, metadata.json, and the
// containing directory).
func (l *Log) Delete(id string) error {
	if err := l.st.Remove(chatPath(id)); err != nil {
		return err
	}
	if err := l.st.Remove(metadataPath(id)); err != nil {
		return err
	}
	if err := l.st.Remove(sessionDir(id)); err != nil {
		return err
	}
	return nil
}

// All enumerates every session's metadata, ordered by updated_at
// descending.
func (l *Log) All() ([]Metadata, error) {
	names, err := l.st.ListDir("sessions")
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	var metas []Metadata
	for _, name := range names {
		var meta Metadata
		found, err := l.st.ReadJSON(metadataPath(name), &meta)
		if err != nil {
			return nil, fmt.Errorf("reading metadata for session %s: %w", name, err)
		}
		if !found {
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// SearchResult pairs a matched message with the session it belongs to.
type SearchResult struct {
	SessionID string
	Message ChatMessage
}

// Search performs a linear substring scan over every session's message
// content.
func (l *Log) Search(query string) ([]SearchResult, error) {
	sessions, err := l.All()
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, meta := range sessions {
		messages, err := l.Messages(meta.ID)
		if err != nil {
			return nil, err
		}
		for _, m := range messages {
			if strings.Contains(m.Content, query) {
				results = append(results, SearchResult{SessionID: meta.ID, Message: m})
			}
		}
	}
	return results, nil
}
