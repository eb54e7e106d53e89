package queue

import (
	"testing"
	"time"

	"github.com/mao-project/mao/internal/store"
)

func newTestMessageQueue(t *testing.T) *MessageQueue {
	t.Helper()
	return NewMessageQueue(store.New(t.TempDir()))
}

func TestSendAssignsIDAndDefaults(t *testing.T) {
	t.Parallel()
	q := newTestMessageQueue(t)

	sent, err := q.Send(Message{Type: MessageQuestion, Sender: "cto", Receiver: "operator", Content: "ok?"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sent.MessageID == "" {
		t.Error("expected a generated message id")
	}
	if sent.Priority != MsgPriorityMedium {
		t.Errorf("Priority = %q, want %q", sent.Priority, MsgPriorityMedium)
	}
	if sent.Timestamp.IsZero() {
		t.Error("expected a generated timestamp")
	}
}

func TestGetMessagesOrdersByPriorityThenTimestamp(t *testing.T) {
	t.Parallel()
	q := newTestMessageQueue(t)

	base := time.Now().UTC()
	low, err := q.Send(Message{Type: MessageQuestion, Receiver: "operator", Priority: MsgPriorityLow, Timestamp: base})
	if err != nil {
		t.Fatalf("Send low: %v", err)
	}
	urgentLater, err := q.Send(Message{Type: MessageQuestion, Receiver: "operator", Priority: MsgPriorityUrgent, Timestamp: base.Add(time.Minute)})
	if err != nil {
		t.Fatalf("Send urgent: %v", err)
	}
	mediumEarlier, err := q.Send(Message{Type: MessageQuestion, Receiver: "operator", Priority: MsgPriorityMedium, Timestamp: base.Add(-time.Minute)})
	if err != nil {
		t.Fatalf("Send medium: %v", err)
	}

	got, err := q.GetMessages(MessageFilter{Receiver: "operator"})
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	wantOrder := []string{urgentLater.MessageID, mediumEarlier.MessageID, low.MessageID}
	for i, id := range wantOrder {
		if got[i].MessageID != id {
			t.Errorf("position %d: got %q, want %q", i, got[i].MessageID, id)
		}
	}
}

func TestGetMessagesFiltersByReceiverAndType(t *testing.T) {
	t.Parallel()
	q := newTestMessageQueue(t)

	if _, err := q.Send(Message{Type: MessageTaskCompleted, Receiver: "cto"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := q.Send(Message{Type: MessageQuestion, Receiver: "operator"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, err := q.GetMessages(MessageFilter{Receiver: "cto", Type: MessageTaskCompleted})
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
}

func TestAckMovesToProcessed(t *testing.T) {
	t.Parallel()
	q := newTestMessageQueue(t)

	sent, err := q.Send(Message{Type: MessageQuestion, Receiver: "operator"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := q.Ack(sent.MessageID); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	pending, err := q.GetMessages(MessageFilter{})
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending messages after ack, got %d", len(pending))
	}
}

func TestAckIsIdempotent(t *testing.T) {
	t.Parallel()
	q := newTestMessageQueue(t)

	sent, err := q.Send(Message{Type: MessageQuestion, Receiver: "operator"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := q.Ack(sent.MessageID); err != nil {
		t.Fatalf("first Ack: %v", err)
	}
	if err := q.Ack(sent.MessageID); err != nil {
		t.Fatalf("second Ack should be a no-op, got: %v", err)
	}
}

func TestDispatchRunsHandlerThenAcks(t *testing.T) {
	t.Parallel()
	q := newTestMessageQueue(t)

	if _, err := q.Send(Message{Type: MessageTaskCompleted, Receiver: "cto", Content: "done"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var handled []string
	err := q.Dispatch(MessageFilter{Receiver: "cto"}, map[MessageType]HandlerFunc{
		MessageTaskCompleted: func(m Message) error {
			handled = append(handled, m.Content)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(handled) != 1 || handled[0] != "done" {
		t.Errorf("handled = %v, want [done]", handled)
	}

	remaining, err := q.GetMessages(MessageFilter{Receiver: "cto"})
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(remaining) != 0 {
		t.Error("expected handled message to be acked")
	}
}

func TestDispatchLeavesUnhandledTypesPending(t *testing.T) {
	t.Parallel()
	q := newTestMessageQueue(t)

	if _, err := q.Send(Message{Type: MessageReassignRequest, Receiver: "cto"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := q.Dispatch(MessageFilter{Receiver: "cto"}, map[MessageType]HandlerFunc{}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	remaining, err := q.GetMessages(MessageFilter{Receiver: "cto"})
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(remaining) != 1 {
		t.Error("expected unhandled message to remain pending")
	}
}
