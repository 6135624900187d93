package feedlist

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/runalert/internal/keys"
	"github.com/nhle/runalert/internal/model"
)

func feedItems(ids ...string) []model.FeedItem {
	out := make([]model.FeedItem, len(ids))
	for i, id := range ids {
		out[i] = model.FeedItem{Message: model.Message{ID: id, Title: "msg " + id, Priority: model.PriorityNormal}}
	}
	return out
}

func TestSetItems_KeepsSelection(t *testing.T) {
	k := keys.DefaultKeyMap()
	m := New(k, 80, 20)
	m.SetItems(feedItems("3", "2", "1"), 3, model.FilterOptions{})

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "2", sel.ID)

	// A new message arrives at the top.
	m.SetItems(feedItems("4", "3", "2", "1"), 4, model.FilterOptions{})
	sel, ok = m.Selected()
	require.True(t, ok)
	assert.Equal(t, "2", sel.ID)
}

func TestUpdate_SelectEmitsMessage(t *testing.T) {
	k := keys.DefaultKeyMap()
	m := New(k, 80, 20)
	m.SetItems(feedItems("1"), 1, model.FilterOptions{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(SelectedMessageMsg)
	require.True(t, ok)
	assert.Equal(t, "1", msg.Item.ID)
}

func TestEmptyState(t *testing.T) {
	k := keys.DefaultKeyMap()
	m := New(k, 80, 20)
	assert.Contains(t, m.View(), "No messages yet")

	m.SetItems(nil, 5, model.FilterOptions{HideRead: true, OnlyImportant: true})
	assert.Contains(t, m.View(), "5 hidden")
	assert.Equal(t, "hide read, important only", m.FilterSummary())
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, ""},
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-50 * time.Hour), "2d ago"},
		{time.Date(2025, 4, 15, 8, 0, 0, 0, time.UTC), "Apr 15"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relativeTime(now, tt.t))
	}
}
