package help

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/runalert/internal/keys"
	"github.com/nhle/runalert/internal/theme"
)

// Model is the help overlay. Besides the key bindings it shows a few
// status lines supplied by the parent, such as sound diagnostics.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	title  string
	lines  []string
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// SetStatus sets the section rendered below the key bindings.
func (m *Model) SetStatus(title string, lines []string) {
	m.title = title
	m.lines = lines
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	m.help.Width = m.width - 4
	sections := []string{titleStyle.Render("Keyboard Shortcuts"), m.help.View(m.keys)}

	if len(m.lines) > 0 {
		sections = append(sections, "", titleStyle.Render(m.title))
		lineStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
		for _, l := range m.lines {
			sections = append(sections, lineStyle.Render(l))
		}
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(max(0, m.height-4)).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
