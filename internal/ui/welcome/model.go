package welcome

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/runalert/internal/theme"
)

// DoneMsg is sent when the dialog is acknowledged or dismissed.
type DoneMsg struct{}

// bindings keeps huh's Value pointer valid across model copies.
type bindings struct {
	ok bool
}

// Model is the first-run welcome dialog. Acknowledging it counts as the
// first interaction, which lets alert sounds play.
type Model struct {
	form   *huh.Form
	b      *bindings
	width  int
	height int
}

// New creates the welcome dialog.
func New(width, height int) Model {
	m := Model{b: &bindings{ok: true}, width: width, height: height}
	m.form = m.buildForm()
	return m
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to RunAlert").
				Description("Race updates arrive here in real time.\n\n" +
					"Critical and warning alerts play a sound. Keep this\n" +
					"terminal open during the event and turn your volume up.\n\n" +
					"Press m to mute, i to let important alerts through a mute."),
			huh.NewConfirm().
				Affirmative("Get started").
				Negative("").
				Value(&m.b.ok),
		),
	).WithWidth(min(60, max(30, m.width-4))).WithShowHelp(false)
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the dialog.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted, huh.StateAborted:
		return m, func() tea.Msg { return DoneMsg{} }
	}
	return m, cmd
}

// View renders the dialog centered in the content area.
func (m Model) View() string {
	return lipgloss.Place(
		m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		theme.DetailPanelStyle.Render(m.form.View()),
	)
}

// SetSize updates the dialog dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(min(60, max(30, width-4)))
}
