package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/runalert/internal/theme"
)

// CommandMsg is emitted when the user executes a command.
type CommandMsg string

// Command describes a palette entry.
type Command struct {
	Name        string
	Description string
}

// Commands lists every palette command.
var Commands = []Command{
	{"sync", "flush queued changes now"},
	{"retry", "move failed changes back into the queue"},
	{"mute", "toggle mute"},
	{"important", "toggle important alerts bypassing mute"},
	{"test critical", "play a critical alert"},
	{"test warning", "play a warning alert"},
	{"test announcement", "play an announcement alert"},
	{"test normal", "play a normal alert"},
	{"test info", "play an info alert"},
	{"hide read", "toggle hiding read messages"},
	{"important only", "toggle showing only warning and critical"},
	{"show dismissed", "toggle showing dismissed messages"},
	{"sound", "show sound diagnostics"},
	{"quit", "exit RunAlert"},
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.Width = width - 6

	names := make([]string, len(Commands))
	for i, c := range Commands {
		names[i] = c.Name
	}
	ti.SetSuggestions(names)

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		cmd := strings.ToLower(strings.TrimSpace(m.input.Value()))
		m.input.Reset()
		if cmd == "" {
			return m, nil
		}
		return m, func() tea.Msg { return CommandMsg(cmd) }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette with the matching commands.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	nameStyle := lipgloss.NewStyle().Foreground(theme.ColorBlue).Width(20)
	descStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)

	typed := strings.ToLower(strings.TrimSpace(m.input.Value()))
	rows := []string{titleStyle.Render("Command Palette"), m.input.View(), ""}
	for _, c := range Commands {
		if typed != "" && !strings.HasPrefix(c.Name, typed) {
			continue
		}
		rows = append(rows, nameStyle.Render(c.Name)+descStyle.Render(c.Description))
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	m.input.Reset()
	return m.input.Focus()
}
