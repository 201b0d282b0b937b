package watch

import (
	"fmt"
	"strings"

	"github.com/marcus/doable/internal/models"
)

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	if len(m.todos) == 0 {
		b.WriteString(subtleStyle.Render("  nothing here yet — press a to add a todo"))
		b.WriteString("\n")
	}
	for i, t := range m.todos {
		b.WriteString(m.renderTodo(i, t))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.adding {
		b.WriteString(promptStyle.Render("add: "))
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter save · esc cancel"))
	} else {
		b.WriteString(helpStyle.Render("a add · enter/space advance · u step back · j/k move · q quit"))
	}
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderHeader() string {
	title := titleStyle.Render(m.ListName)
	var status string
	if m.connected {
		status = connectedStyle.Render("● live")
	} else {
		status = disconnectedStyle.Render(m.spinner.View() + "connecting")
	}
	pending := ""
	if n := m.pendingTotal(); n > 0 {
		pending = pendingStyle.Render(fmt.Sprintf("  %d sending", n))
	}
	return fmt.Sprintf("%s  %s%s", title, status, pending)
}

func (m Model) renderTodo(i int, t models.Todo) string {
	marker := "  "
	if i == m.cursor {
		marker = cursorStyle.Render("> ")
	}

	state := stateStyles[t.State].Render(fmt.Sprintf("%-7s", t.State))
	line := marker + state + " " + t.Title
	if t.Version == 0 || m.Engine.Scope().PendingCount(t.ID) > 0 {
		line += pendingStyle.Render("  ~")
	}
	if i == m.cursor {
		return selectedStyle.Render(line)
	}
	return line
}

func (m Model) pendingTotal() int {
	n := 0
	for _, t := range m.todos {
		if t.Version == 0 {
			n++
		}
		n += m.Engine.Scope().PendingCount(t.ID)
	}
	return n
}
