package message

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/runalert/internal/keys"
	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/theme"
)

// BackMsg signals the parent to navigate back to the feed.
type BackMsg struct{}

// DismissMsg asks the parent to toggle dismissal of the open message.
type DismissMsg struct {
	MessageID string
}

// Model is the message detail view component.
type Model struct {
	item     *model.FeedItem
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Dismiss):
			if m.item != nil {
				id := m.item.ID
				return m, func() tea.Msg { return DismissMsg{MessageID: id} }
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.item == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No message selected")
	}
	return m.viewport.View()
}

// OpenID returns the id of the displayed message, or "".
func (m Model) OpenID() string {
	if m.item == nil {
		return ""
	}
	return m.item.ID
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	it := m.item
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(it.Title))

	badges := []string{theme.PriorityStyle(it.Priority).Render(strings.ToUpper(string(it.Priority)))}
	if it.Dismissed {
		badges = append(badges, theme.DimmedStyle.Render("dismissed"))
	}
	sections = append(sections, strings.Join(badges, "  "))

	if !it.CreatedAt.IsZero() {
		meta := lipgloss.NewStyle().Foreground(theme.ColorGray)
		sections = append(sections, meta.Render("Posted "+it.CreatedAt.Local().Format("2006-01-02 15:04")))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(0, min(m.width-4, 80))))
	sections = append(sections, "", separator, "")

	body := it.Content
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No content")
	}
	sections = append(sections, lipgloss.NewStyle().Width(max(20, m.width-4)).Render(body))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetItem updates the displayed message and re-renders the content.
func (m *Model) SetItem(item model.FeedItem) {
	m.item = &item
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Refresh re-renders the open message from items, keeping the scroll
// position. It closes the view when the message has been removed.
func (m *Model) Refresh(items []model.FeedItem) bool {
	if m.item == nil {
		return false
	}
	for _, it := range items {
		if it.ID == m.item.ID {
			m.item = &it
			m.viewport.SetContent(m.renderContent())
			return true
		}
	}
	m.item = nil
	return false
}

// Clear closes the open message.
func (m *Model) Clear() {
	m.item = nil
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.item != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
