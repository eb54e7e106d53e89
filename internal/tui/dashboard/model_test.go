package dashboard

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mao-project/mao/internal/orchestrator"
	"github.com/mao-project/mao/internal/pipeline"
	"github.com/mao-project/mao/internal/queue"
)

type fakeSource struct {
	state orchestrator.State
}

func (f fakeSource) State() orchestrator.State { return f.state }

func TestUpdateAppliesFetchedState(t *testing.T) {
	src := fakeSource{state: orchestrator.State{
		SessionID: "sess-1",
		Tasks: []pipeline.SubTask{
			{SubtaskID: "st-1", Description: "write the parser", Status: queue.TaskInProgress},
		},
	}}
	m := New(src)

	updated, _ := m.Update(stateMsg{state: src.state})
	m = updated.(*Model)

	view := m.View()
	if !strings.Contains(view, "sess-1") {
		t.Fatalf("expected view to mention session id, got: %s", view)
	}
	if !strings.Contains(view, "write the parser") {
		t.Fatalf("expected view to mention sub-task description, got: %s", view)
	}
}

func TestCursorClampedToAvailableRows(t *testing.T) {
	m := New(fakeSource{})
	m.cursor = 5

	updated, _ := m.Update(stateMsg{state: orchestrator.State{}})
	m = updated.(*Model)

	if m.cursor != 0 {
		t.Fatalf("expected cursor clamped to 0 with no rows, got %d", m.cursor)
	}
}

func TestQuitKeyReturnsQuitCommand(t *testing.T) {
	m := New(fakeSource{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected a command from quit key")
	}
}
