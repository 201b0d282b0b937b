package watch

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/doable/internal/models"
)

var (
	titleStyle        = lipgloss.NewStyle().Bold(true)
	subtleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	selectedStyle     = lipgloss.NewStyle().Bold(true)
	promptStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	pendingStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	connectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	disconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	stateStyles = map[models.State]lipgloss.Style{
		models.StateTodo:    lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.StateOngoing: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.StateDone:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
)
