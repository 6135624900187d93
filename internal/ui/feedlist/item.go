package feedlist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/theme"
)

// Item wraps a model.FeedItem so it can be used in a bubbles/list.
type Item struct {
	model.FeedItem
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Message.Title }

// ItemDelegate implements list.ItemDelegate for feed rows.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single feed row: unread marker, priority badge, title,
// and age.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}

	marker := " "
	if !it.Read {
		marker = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("●")
	}

	badge := theme.PriorityStyle(it.Priority).Render(priorityLabel(it.Priority))

	title := it.Title
	if title == "" {
		title = "(untitled)"
	}
	if it.Dismissed {
		title += " [dismissed]"
	}

	now := time.Now
	if d.now != nil {
		now = d.now
	}
	age := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(now(), it.CreatedAt))

	line := fmt.Sprintf("%s %s %s  %s", marker, badge, title, age)

	if it.Read || it.Dismissed {
		line = theme.DimmedStyle.Render(line)
	}

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// priorityLabel returns a fixed-width label for the priority.
func priorityLabel(p model.Priority) string {
	switch p {
	case model.PriorityCritical:
		return "CRIT"
	case model.PriorityWarning:
		return "WARN"
	case model.PriorityAnnouncement:
		return "NEWS"
	case model.PriorityNormal:
		return "NORM"
	default:
		return "INFO"
	}
}

// relativeTime returns a human-friendly age of t relative to now.
func relativeTime(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return strings.TrimSpace(t.Format("Jan _2"))
	}
}
