// Package output provides styled terminal output helpers (success, error,
// todo formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/marcus/doable/internal/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	codeStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stateStyles  = map[models.State]lipgloss.Style{
		models.StateTodo:    lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.StateOngoing: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.StateDone:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// FormatState formats a todo state with color
func FormatState(s models.State) string {
	style, ok := stateStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(fmt.Sprintf("[%s]", s))
}

// FormatJoinCode renders a list join code so it stands out for sharing.
func FormatJoinCode(code string) string {
	return codeStyle.Render(code)
}

// FormatTodoLine renders one todo as a single list line. Version-0 todos
// are still awaiting server confirmation and render dimmed.
func FormatTodoLine(t models.Todo) string {
	line := fmt.Sprintf("%-9s %s  %s", FormatState(t.State), shortID(t.ID), t.Title)
	if t.Version == 0 {
		return pendingStyle.Render(line + "  (sending)")
	}
	return line
}

// RenderTodos renders a todo list grouped under a title line.
func RenderTodos(title string, todos []models.Todo) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	if len(todos) == 0 {
		b.WriteString(subtleStyle.Render("  nothing here yet"))
		b.WriteString("\n")
		return b.String()
	}
	for _, t := range todos {
		b.WriteString("  ")
		b.WriteString(FormatTodoLine(t))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatRelativeTime formats a time relative to now ("3m ago").
func FormatRelativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// shortID returns the first id segment, enough to disambiguate in a list.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

const defaultWidth = 80

// TerminalWidth returns the current terminal width or a fallback when unavailable.
func TerminalWidth(fallback int) int {
	if fallback <= 0 {
		fallback = defaultWidth
	}

	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if parsed, err := strconv.Atoi(cols); err == nil && parsed > 0 {
			return parsed
		}
	}

	return fallback
}
