package feedlist

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/runalert/internal/keys"
	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/theme"
)

// SelectedMessageMsg is sent when the user opens a message.
type SelectedMessageMsg struct {
	Item model.FeedItem
}

// Model is the message feed list.
type Model struct {
	list    list.Model
	keys    *keys.KeyMap
	filters model.FilterOptions
	total   int
	width   int
	height  int
}

// New creates a new feed list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.Title = "Messages"
	l.SetShowStatusBar(true)
	l.SetStatusBarItemName("message", "messages")
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetItems replaces the visible items. total is the unfiltered count,
// used to explain an empty view. The selection stays on the same message
// when it is still visible.
func (m *Model) SetItems(items []model.FeedItem, total int, filters model.FilterOptions) tea.Cmd {
	selected, hadSelection := m.Selected()

	m.total = total
	m.filters = filters

	listItems := make([]list.Item, len(items))
	for i, it := range items {
		listItems[i] = Item{FeedItem: it}
	}
	cmd := m.list.SetItems(listItems)

	if hadSelection {
		for i, it := range items {
			if it.ID == selected.ID {
				m.list.Select(i)
				break
			}
		}
	}
	return cmd
}

// Selected returns the highlighted item.
func (m Model) Selected() (model.FeedItem, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.FeedItem{}, false
	}
	return it.FeedItem, true
}

// Items returns the visible items in display order.
func (m Model) Items() []model.FeedItem {
	items := m.list.Items()
	out := make([]model.FeedItem, 0, len(items))
	for _, it := range items {
		if fi, ok := it.(Item); ok {
			out = append(out, fi.FeedItem)
		}
	}
	return out
}

// Update handles messages for the feed list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Select) {
		it, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return SelectedMessageMsg{Item: it} }
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the feed list.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.total > 0 {
		return style.Render(fmt.Sprintf(
			"No messages match the current filters (%d hidden).\nFilters: %s",
			m.total, m.FilterSummary(),
		))
	}
	return style.Render("No messages yet.\n\nNew race updates will appear here.")
}

// FilterSummary describes the active filters, or "" when none are set.
func (m Model) FilterSummary() string {
	var parts []string
	if m.filters.HideRead {
		parts = append(parts, "hide read")
	}
	if m.filters.OnlyImportant {
		parts = append(parts, "important only")
	}
	if m.filters.ShowDismissed {
		parts = append(parts, "showing dismissed")
	}
	return strings.Join(parts, ", ")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
