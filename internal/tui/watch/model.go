// Package watch implements the live shared-list view: an always-current
// rendering of the session's todos that reacts to local keystrokes
// optimistically and to server change notifications as they arrive.
package watch

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/doable/internal/engine"
	"github.com/marcus/doable/internal/models"
)

// RefreshMsg signals that the engine's derived display changed; the model
// re-snapshots it. Sent from outside the program via Program.Send.
type RefreshMsg struct{}

// ConnMsg reports a connectivity transition of the notification stream.
type ConnMsg struct{ Connected bool }

// ExpiredMsg means the server no longer recognizes the session identity.
type ExpiredMsg struct{}

// Model is the Bubble Tea model for the watch view.
type Model struct {
	Engine *engine.Engine
	Ctx    context.Context

	ListName string

	todos     []models.Todo
	cursor    int
	width     int
	height    int
	connected bool
	expired   bool
	lastSync  time.Time

	adding  bool
	input   textinput.Model
	spinner spinner.Model
}

// NewModel creates a watch model over a running engine.
func NewModel(ctx context.Context, eng *engine.Engine, listName string) Model {
	ti := textinput.New()
	ti.Placeholder = "what needs doing?"
	ti.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		Engine:   eng,
		Ctx:      ctx,
		ListName: listName,
		todos:    eng.Scope().Display(),
		input:    ti,
		spinner:  sp,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.adding {
			return m.handleAddKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case RefreshMsg:
		m.todos = m.Engine.Scope().Display()
		m.lastSync = time.Now()
		m.clampCursor()
		return m, nil

	case ConnMsg:
		m.connected = msg.Connected
		return m, nil

	case ExpiredMsg:
		m.expired = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey processes key input in list mode
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "j", "down":
		if m.cursor < len(m.todos)-1 {
			m.cursor++
		}
		return m, nil

	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "a":
		m.adding = true
		m.input.SetValue("")
		return m, m.input.Focus()

	case "enter", " ":
		// Advance the selected todo one step.
		return m.moveSelected(forwardState), nil

	case "u":
		// Step the selected todo back.
		return m.moveSelected(backState), nil
	}

	return m, nil
}

// handleAddKey processes key input while the add prompt is open
func (m Model) handleAddKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.adding = false
		m.input.Blur()
		return m, nil

	case "enter":
		title := m.input.Value()
		m.adding = false
		m.input.Blur()
		if title == "" {
			return m, nil
		}
		eng, ctx := m.Engine, m.Ctx
		return m, func() tea.Msg {
			// The optimistic copy is already visible via the change hook;
			// a transport error here just leaves it marked as sending.
			eng.CreateTodo(ctx, title)
			return nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// forwardState is the single-step advance for a displayed state.
func forwardState(s models.State) (models.State, bool) {
	switch s {
	case models.StateTodo:
		return models.StateOngoing, true
	case models.StateOngoing:
		return models.StateDone, true
	}
	return s, false
}

// backState is the single-step reverse.
func backState(s models.State) (models.State, bool) {
	switch s {
	case models.StateOngoing:
		return models.StateTodo, true
	case models.StateDone:
		return models.StateOngoing, true
	}
	return s, false
}

func (m Model) moveSelected(step func(models.State) (models.State, bool)) Model {
	if m.cursor >= len(m.todos) {
		return m
	}
	t := m.todos[m.cursor]
	next, ok := step(t.State)
	if !ok {
		return m
	}
	m.Engine.EnqueueState(m.Ctx, t.ID, next)
	// The enqueue already fired the change hook; the RefreshMsg it sent
	// will re-snapshot the display.
	return m
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.todos) {
		m.cursor = len(m.todos) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Expired reports whether the view quit because the session identity was
// rejected; the caller prints the sign-in hint after the program exits.
func (m Model) Expired() bool {
	return m.expired
}
