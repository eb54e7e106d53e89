package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mao-project/mao/internal/store"
)

// MessageType enumerates the recognised message types.
type MessageType string

const (
	MessageTaskStarted MessageType = "task_started"
	MessageTaskProgress MessageType = "task_progress"
	MessageTaskCompleted MessageType = "task_completed"
	MessageTaskFailed MessageType = "task_failed"
	MessageQuestion MessageType = "question"
	MessageResponse MessageType = "response"
	MessageReassignRequest MessageType = "reassign_request"
)

// MessagePriority is the message queue's own priority set, distinct from
// SubTask.Priority.
type MessagePriority string

const (
	MsgPriorityLow MessagePriority = "low"
	MsgPriorityMedium MessagePriority = "medium"
	MsgPriorityHigh MessagePriority = "high"
	MsgPriorityUrgent MessagePriority = "urgent"
)

// priorityRank orders MessagePriority for descending sort: higher rank
// sorts first.
var priorityRank = map[MessagePriority]int{
	MsgPriorityUrgent: 3,
	MsgPriorityHigh: 2,
	MsgPriorityMedium: 1,
	MsgPriorityLow: 0,
}

// Message is one YAML file under queue/messages/ (pending) or
// queue/processed/ (acknowledged).
type Message struct {
	MessageID string `yaml:"message_id"`
	Type MessageType `yaml:"type"`
	Sender string `yaml:"sender"`
	Receiver string `yaml:"receiver"`
	Content string `yaml:"content"`
	Priority MessagePriority `yaml:"priority"`
	Timestamp time.Time `yaml:"timestamp"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// MessageFilter narrows GetMessages results. A zero-value filter matches
// everything.
type MessageFilter struct {
	Receiver string
	Type MessageType
}

func (f MessageFilter) matches(m Message) bool {
	if f.Receiver != "" && m.Receiver != f.Receiver {
		return false
	}
	if f.Type != "" && m.Type != f.Type {
		return false
	}
	return true
}

// MessageQueue manages queue/messages/ and queue/processed/.
type MessageQueue struct {
	st *store.Store
}

// NewMessageQueue returns a MessageQueue rooted at the given store.
func NewMessageQueue(st *store.Store) *MessageQueue {
	return &MessageQueue{st: st}
}

const (
	messagesDir = "queue/messages"
	processedDir = "queue/processed"
)

// Send writes msg as a new file under queue/messages/. A message_id is
// assigned if msg.MessageID is empty; the ID is time-ordered (its prefix
// is the timestamp) so lexical and chronological order agree.
func (q *MessageQueue) Send(msg Message) (Message, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if msg.Priority == "" {
		msg.Priority = MsgPriorityMedium
	}
	if msg.MessageID == "" {
		msg.MessageID = fmt.Sprintf("%d-%s", msg.Timestamp.UnixNano(), uuid.NewString()[:8])
	}
	path := filepath.Join(messagesDir, msg.MessageID+".yaml")
	if err := q.st.WriteYAML(path, msg); err != nil {
		return Message{}, fmt.Errorf("sending message %s: %w", msg.MessageID, err)
	}
	return msg, nil
}

// GetMessages enumerates pending messages matching filter, ordered by
// priority descending then timestamp ascending.
func (q *MessageQueue) GetMessages(filter MessageFilter) ([]Message, error) {
	names, err := q.st.ListDir(messagesDir)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	var out []Message
	for _, name := range names {
		if filepath.Ext(name) != ".yaml" {
			continue
		}
		var m Message
		found, err := q.st.ReadYAML(filepath.Join(messagesDir, name), &m)
		if err != nil {
			return nil, fmt.Errorf("reading message %s: %w", name, err)
		}
		if !found {
			// Raced with a concurrent Ack; skip.
			continue
		}
		if filter.matches(m) {
			out = append(out, m)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		ri, rj := priorityRank[out[i].Priority], priorityRank[out[j].Priority]
		if ri != rj {
			return ri > rj
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Ack moves a processed message intact from queue/messages/ to
// queue/processed/.
func (q *MessageQueue) Ack(messageID string) error {
	src := q.st.Abs(filepath.Join(messagesDir, messageID+".yaml"))
	dstDir := q.st.Abs(processedDir)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}
	dst := filepath.Join(dstDir, messageID+".yaml")
	if err := os.Rename(src, dst); err != nil {
		if os.IsNotExist(err) {
			// Already acked by a racing handler — idempotent no-op.
			return nil
		}
		return fmt.Errorf("acking message %s: %w", messageID, err)
	}
	return nil
}

// HandlerFunc processes one message. Handlers must be idempotent
// since Dispatch acks only after the handler returns successfully,
// and a crash between those two steps redelivers the message.
type HandlerFunc func(Message) error

// Dispatch runs handlers (keyed by message type) over every pending
// message matching filter, acking each message whose handler succeeds.
// Messages with no registered handler are left pending.
func (q *MessageQueue) Dispatch(filter MessageFilter, handlers map[MessageType]HandlerFunc) error {
	msgs, err := q.GetMessages(filter)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		h, ok := handlers[m.Type]
		if !ok {
			continue
		}
		if err := h(m); err != nil {
			return fmt.Errorf("handling message %s (%s): %w", m.MessageID, m.Type, err)
		}
		if err := q.Ack(m.MessageID); err != nil {
			return err
		}
	}
	return nil
}
