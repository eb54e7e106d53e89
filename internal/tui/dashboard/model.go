// Package dashboard provides the bubbletea TUI for `mao dashboard`, a
// read-mostly view over a running orchestrator session's sub-tasks and
// pending approvals.
package dashboard

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mao-project/mao/internal/orchestrator"
	"github.com/mao-project/mao/internal/style"
)

const pollInterval = 2 * time.Second

// StateSource is the subset of *orchestrator.Orchestrator the dashboard
// needs, so tests can supply a fake.
type StateSource interface {
	State() orchestrator.State
}

// Model is the bubbletea model for the session dashboard.
type Model struct {
	source StateSource

	state    orchestrator.State
	err      error
	cursor   int
	selected string // id of the approval item the cursor highlighted, for "d"

	keys     KeyMap
	help     help.Model
	showHelp bool
	width    int
	height   int

	// mu protects state, err, cursor, selected, showHelp, width, height —
	// everything View() reads. Update holds the write lock; View the read lock.
	mu sync.RWMutex
}

// New creates a dashboard model watching the given orchestrator.
func New(source StateSource) *Model {
	h := help.New()
	h.ShowAll = false
	return &Model{
		source: source,
		keys:   DefaultKeyMap(),
		help:   h,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchState, tickCmd())
}

type stateMsg struct {
	state orchestrator.State
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) fetchState() tea.Msg {
	return stateMsg{state: m.source.State()}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.mu.Unlock()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchState, tickCmd())

	case stateMsg:
		m.mu.Lock()
		m.state = msg.state
		if max := m.maxCursorLocked(); m.cursor > max {
			m.cursor = max
		}
		m.mu.Unlock()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.mu.Lock()
			m.showHelp = !m.showHelp
			m.mu.Unlock()
		case key.Matches(msg, m.keys.Up):
			m.mu.Lock()
			if m.cursor > 0 {
				m.cursor--
			}
			m.mu.Unlock()
		case key.Matches(msg, m.keys.Down):
			m.mu.Lock()
			if max := m.maxCursorLocked(); m.cursor < max {
				m.cursor++
			}
			m.mu.Unlock()
		}
	}
	return m, nil
}

// maxCursorLocked returns the highest valid cursor row. Caller must hold m.mu.
func (m *Model) maxCursorLocked() int {
	n := len(m.state.Tasks) + len(m.state.Pending) - 1
	if n < 0 {
		return 0
	}
	return n
}

func (m *Model) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder
	b.WriteString(style.Header.Render(fmt.Sprintf("mao session %s", m.state.SessionID)))
	b.WriteString("\n\n")

	b.WriteString(style.Bold.Render("sub-tasks"))
	b.WriteString("\n")
	row := 0
	if len(m.state.Tasks) > 0 {
		tasks := style.NewTable(
			style.Column{Name: "ID", Width: 12},
			style.Column{Name: "STATUS", Width: 12},
			style.Column{Name: "DESCRIPTION", Width: 48},
		)
		for _, t := range m.state.Tasks {
			tasks.AddRow(rowMarker(row == m.cursor)+t.SubtaskID, style.StatusStyle(string(t.Status)).Render(string(t.Status)), t.Description)
			row++
		}
		b.WriteString(tasks.Render())
	} else {
		b.WriteString(style.Dim.Render("  (none yet)") + "\n")
	}

	b.WriteString("\n")
	b.WriteString(style.Bold.Render("pending approvals"))
	b.WriteString("\n")
	if len(m.state.Pending) > 0 {
		pending := style.NewTable(
			style.Column{Name: "ID", Width: 12},
			style.Column{Name: "STATUS", Width: 12},
			style.Column{Name: "DESCRIPTION", Width: 48},
		)
		for _, a := range m.state.Pending {
			pending.AddRow(rowMarker(row == m.cursor)+a.ID, style.StatusStyle(string(a.Status)).Render(string(a.Status)), a.TaskDescription)
			row++
		}
		b.WriteString(pending.Render())
	} else {
		b.WriteString(style.Dim.Render("  (none)") + "\n")
	}

	if m.state.Done {
		b.WriteString("\n" + style.Good.Render("all sub-tasks complete"))
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func rowMarker(selected bool) string {
	if selected {
		return "> "
	}
	return "  "
}
