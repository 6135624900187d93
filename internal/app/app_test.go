package app

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/runalert/internal/connectivity"
	"github.com/nhle/runalert/internal/feed"
	"github.com/nhle/runalert/internal/identity"
	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/reconciler"
	"github.com/nhle/runalert/internal/remote"
	"github.com/nhle/runalert/internal/sound"
	"github.com/nhle/runalert/internal/store"
	appsync "github.com/nhle/runalert/internal/sync"
	"github.com/nhle/runalert/internal/testutil"
	"github.com/nhle/runalert/internal/ui/feedlist"
	"github.com/nhle/runalert/internal/ui/message"
	"github.com/nhle/runalert/internal/ui/welcome"
)

func newTestModel(t *testing.T) (Model, Deps) {
	t.Helper()
	ctx := context.Background()
	cols := model.DefaultAppConfig().Collections

	mem := remote.NewMemory(cols.Messages)
	require.NoError(t, remote.SeedDemo(ctx, mem, cols.Messages, cols.RaceStatus, "mmc-2025", time.Now()))

	cache := testutil.NewTestCache(t)
	mon := connectivity.New(mem, connectivity.Config{})
	t.Cleanup(mon.Stop)

	session := identity.NewSession(identity.Config{Profiles: mem, UsersCollection: cols.Users})
	session.UseLocalUser(ctx, model.User{UID: "u1"})

	writer := &appsync.RemoteWriter{Store: mem, ReadStatusColl: cols.ReadStatus, UsersCollection: cols.Users}
	queue := appsync.New(cache, writer, mon, appsync.Config{})
	notifier := NewNotifier()
	engine := sound.NewEngine(cache, sound.Config{Toaster: notifier})
	rec := reconciler.New(cache, engine, reconciler.Config{})

	svc := feed.New(feed.Deps{
		Remote:     mem,
		Cache:      cache,
		Session:    session,
		Monitor:    mon,
		Queue:      queue,
		Writer:     writer,
		Engine:     engine,
		Reconciler: rec,
	}, cols)
	require.True(t, mon.Check(ctx))

	d := Deps{Feed: svc, Engine: engine, Queue: queue, Cache: cache, Notifier: notifier, EditionID: "mmc-2025"}
	m := New(ctx, d)
	t.Cleanup(m.subs.close)
	return m, d
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func demoItems(t *testing.T, m Model) []model.FeedItem {
	t.Helper()
	var items []model.FeedItem
	unsubscribe, err := m.d.Feed.SubscribeToMessages(context.Background(), func(got []model.FeedItem) { items = got })
	require.NoError(t, err)
	unsubscribe()
	return items
}

func TestModel_WelcomeShownOnce(t *testing.T) {
	m, d := newTestModel(t)
	assert.Equal(t, ViewWelcome, m.currentView)

	m, cmd := update(t, m, welcome.DoneMsg{})
	assert.Equal(t, ViewFeed, m.currentView)
	assert.NotNil(t, cmd, "acknowledging the dialog unlocks sound")
	assert.True(t, store.LoadBool(d.Cache, store.KeyWelcomed, false))

	cmd()
	assert.True(t, d.Engine.Unlocked())

	again := New(context.Background(), d)
	t.Cleanup(again.subs.close)
	assert.Equal(t, ViewFeed, again.currentView)
}

func TestModel_FeedAndFilters(t *testing.T) {
	m, _ := newTestModel(t)
	m.currentView = ViewFeed
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m, _ = update(t, m, feedMsg{items: demoItems(t, m)})
	assert.Len(t, m.feedList.Items(), 7)

	m, _ = update(t, m, key("2"))
	for _, it := range m.feedList.Items() {
		assert.True(t, it.Priority.IsImportant(), it.ID)
	}
	assert.True(t, m.filters.OnlyImportant)
	assert.True(t, m.d.Feed.Filters().OnlyImportant, "filters persist")

	m, _ = update(t, m, key("2"))
	assert.Len(t, m.feedList.Items(), 7)
}

func TestModel_OpenMarksRead(t *testing.T) {
	m, _ := newTestModel(t)
	m.currentView = ViewFeed
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	items := demoItems(t, m)
	m, _ = update(t, m, feedMsg{items: items})

	m, _ = update(t, m, feedlist.SelectedMessageMsg{Item: items[0]})
	assert.Equal(t, ViewMessage, m.currentView)
	assert.Equal(t, items[0].ID, m.message.OpenID())

	msg := m.markRead(items[0].ID)()
	m, _ = update(t, m, msg)
	for _, it := range m.items {
		if it.ID == items[0].ID {
			assert.True(t, it.Read)
		}
	}

	m, _ = update(t, m, message.BackMsg{})
	assert.Equal(t, ViewFeed, m.currentView)
	assert.Empty(t, m.message.OpenID())
}

func TestModel_MuteKeyShowsToast(t *testing.T) {
	m, d := newTestModel(t)
	m.currentView = ViewFeed

	m, _ = update(t, m, key("m"))
	require.NotNil(t, m.toast)
	assert.Equal(t, "Sound muted", m.toast.Text)
	assert.True(t, d.Engine.Preference().Muted)
	assert.Contains(t, m.headerStatus(), "muted")
}

func TestModel_ToastExpires(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, ToastMsg{Priority: model.PriorityInfo, Text: "first"})
	seq := m.toastSeq
	m, _ = update(t, m, ToastMsg{Priority: model.PriorityInfo, Text: "second"})

	m, _ = update(t, m, clearToastMsg{seq: seq})
	require.NotNil(t, m.toast, "a stale timer does not clear a newer toast")

	m, _ = update(t, m, clearToastMsg{seq: m.toastSeq})
	assert.Nil(t, m.toast)
}

func TestNotifier_DropsWhenFull(t *testing.T) {
	n := NewNotifier()
	for i := 0; i < 32; i++ {
		n.Toastf("toast %d", i)
	}
	msg := n.Wait()()
	assert.Equal(t, ToastMsg{Priority: model.PriorityInfo, Text: "toast 0"}, msg)
}

func TestUpdates_KeepLatest(t *testing.T) {
	u := newUpdates()
	u.pushFeed([]model.FeedItem{{Message: model.Message{ID: "a"}}})
	u.pushFeed([]model.FeedItem{{Message: model.Message{ID: "b"}}})

	msg := u.waitFeed()().(feedMsg)
	require.Len(t, msg.items, 1)
	assert.Equal(t, "b", msg.items[0].ID)
}
