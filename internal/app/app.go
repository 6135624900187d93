package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/runalert/internal/feed"
	"github.com/nhle/runalert/internal/keys"
	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/sound"
	"github.com/nhle/runalert/internal/store"
	appsync "github.com/nhle/runalert/internal/sync"
	"github.com/nhle/runalert/internal/theme"
	"github.com/nhle/runalert/internal/ui"
	"github.com/nhle/runalert/internal/ui/command"
	"github.com/nhle/runalert/internal/ui/feedlist"
	helpview "github.com/nhle/runalert/internal/ui/help"
	"github.com/nhle/runalert/internal/ui/message"
	"github.com/nhle/runalert/internal/ui/welcome"
)

// statusInterval is how often the header status is refreshed.
const statusInterval = 2 * time.Second

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewFeed ViewState = iota
	ViewMessage
	ViewHelp
	ViewCommand
	ViewWelcome
)

// Deps are the services the UI drives.
type Deps struct {
	Feed      *feed.Service
	Engine    *sound.Engine
	Queue     *appsync.Queue
	Cache     store.Cache
	Notifier  *Notifier
	EditionID string
}

type statusMsg feed.Status

type statusTickMsg struct{}

type readMarkedMsg struct {
	id  string
	err error
}

type dismissedMsg struct {
	id        string
	dismissed bool
	err       error
}

type soundMsg struct {
	priority model.Priority
	outcome  sound.Outcome
	explicit bool
}

type subscribeFailedMsg struct {
	err error
}

// subscriptions holds the unsubscribe functions of the live queries.
type subscriptions struct {
	mu     gosync.Mutex
	cancel context.CancelFunc
	unsubs []func()
}

func (s *subscriptions) add(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubs = append(s.unsubs, fn)
}

func (s *subscriptions) close() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, fn := range unsubs {
		fn()
	}
	s.cancel()
}

// Model is the root Bubble Tea model that manages view routing, layout,
// and the live feed.
type Model struct {
	d    Deps
	ctx  context.Context
	subs *subscriptions
	upd  *updates

	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	feedList     feedlist.Model
	message      message.Model
	helpView     helpview.Model
	commandView  command.Model
	welcome      welcome.Model
	ready        bool

	items    []model.FeedItem
	filters  model.FilterOptions
	race     *model.RaceStatus
	status   feed.Status
	toast    *ToastMsg
	toastSeq int
}

// New creates the root model. The welcome dialog is shown until it has
// been acknowledged once.
func New(ctx context.Context, d Deps) Model {
	if d.Notifier == nil {
		d.Notifier = NewNotifier()
	}
	ctx, cancel := context.WithCancel(ctx)
	k := keys.DefaultKeyMap()

	m := Model{
		d:           d,
		ctx:         ctx,
		subs:        &subscriptions{cancel: cancel},
		upd:         newUpdates(),
		currentView: ViewFeed,
		keys:        k,
		feedList:    feedlist.New(k, 80, 24),
		message:     message.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		welcome:     welcome.New(80, 24),
		filters:     d.Feed.Filters(),
		status:      d.Feed.Status(),
	}
	if !store.LoadBool(d.Cache, store.KeyWelcomed, false) {
		m.currentView = ViewWelcome
	}
	return m
}

// Init subscribes to the feed and race status, runs the first
// connectivity check, and starts listening for background events.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.subscribe(),
		m.start(),
		m.upd.waitFeed(),
		m.upd.waitRace(),
		m.d.Notifier.Wait(),
		m.d.Queue.WaitForResult(),
		tickStatus(),
	}
	if m.currentView == ViewWelcome {
		cmds = append(cmds, m.welcome.Init())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()-1
		m.feedList.SetSize(w, h)
		m.message.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.welcome.SetSize(w, h)
		return m.updateActiveView(msg)

	case feedMsg:
		m.items = msg.items
		if m.currentView == ViewMessage && !m.message.Refresh(m.items) {
			m.currentView = ViewFeed
		}
		return m, tea.Batch(m.refreshFeed(), m.upd.waitFeed())

	case raceStatusMsg:
		m.race = msg.status
		return m, m.upd.waitRace()

	case subscribeFailedMsg:
		return m, m.showToast(ToastMsg{Priority: model.PriorityWarning, Text: msg.err.Error()})

	case ToastMsg:
		return m, tea.Batch(m.showToast(msg), m.d.Notifier.Wait())

	case clearToastMsg:
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil

	case appsync.FlushResult:
		m.status = m.d.Feed.Status()
		return m, tea.Batch(m.flushToast(msg), m.d.Queue.WaitForResult())

	case statusMsg:
		m.status = feed.Status(msg)
		return m, nil

	case statusTickMsg:
		m.status = m.d.Feed.Status()
		return m, tickStatus()

	case readMarkedMsg:
		m.items = m.d.Feed.Decorate(m.items)
		m.status = m.d.Feed.Status()
		var cmd tea.Cmd
		if msg.err != nil {
			cmd = m.showToast(ToastMsg{Priority: model.PriorityWarning, Text: "Could not mark as read: " + msg.err.Error()})
		}
		return m, tea.Batch(m.refreshFeed(), cmd)

	case dismissedMsg:
		m.items = m.d.Feed.Decorate(m.items)
		m.status = m.d.Feed.Status()
		m.message.Refresh(m.items)
		text := "Message dismissed"
		if !msg.dismissed {
			text = "Message restored"
		}
		if msg.err != nil {
			text = "Could not update message: " + msg.err.Error()
		}
		return m, tea.Batch(m.refreshFeed(), m.showToast(ToastMsg{Priority: model.PriorityInfo, Text: text}))

	case soundMsg:
		if !msg.explicit {
			return m, nil
		}
		return m, m.showToast(ToastMsg{
			Priority: msg.priority,
			Text:     fmt.Sprintf("Test %s sound: %s", msg.priority, msg.outcome),
		})

	case feedlist.SelectedMessageMsg:
		m.previousView = m.currentView
		m.currentView = ViewMessage
		m.message.SetItem(msg.Item)
		return m, tea.Batch(m.refreshFeed(), m.markRead(msg.Item.ID))

	case message.BackMsg:
		m.currentView = ViewFeed
		m.message.Clear()
		return m, m.refreshFeed()

	case message.DismissMsg:
		return m, m.toggleDismissed(msg.MessageID)

	case welcome.DoneMsg:
		if err := m.d.Cache.Set(store.KeyWelcomed, "true"); err != nil {
			log.Printf("app: saving welcome flag: %v", err)
		}
		m.currentView = ViewFeed
		return m, m.unlock()

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveView(msg)
}

// handleKey routes global keys. Every key press counts as a user
// interaction for the sound engine.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, m.quit()
	}

	// The welcome dialog unlocks sound itself when acknowledged.
	if m.currentView == ViewWelcome {
		return m.updateActiveView(msg)
	}
	unlock := m.unlock()

	if m.currentView == ViewCommand {
		if msg.String() == "esc" || msg.String() == ":" {
			m.currentView = m.previousView
			return m, unlock
		}
		mdl, cmd := m.updateActiveView(msg)
		return mdl, tea.Batch(unlock, cmd)
	}

	switch msg.String() {
	case "?":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, unlock
		}
		m.helpView.SetStatus("Sound", soundLines(m.d.Engine.Diagnostics()))
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, unlock

	case ":":
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, tea.Batch(unlock, m.commandView.Focus())

	case "esc":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, unlock
		}
	}

	if m.currentView == ViewFeed || m.currentView == ViewMessage {
		if cmd, ok := m.handleActionKey(msg); ok {
			return m, tea.Batch(unlock, cmd)
		}
	}

	if m.currentView == ViewFeed {
		switch msg.String() {
		case "q":
			return m, m.quit()
		case "d":
			if it, ok := m.feedList.Selected(); ok {
				return m, tea.Batch(unlock, m.toggleDismissed(it.ID))
			}
			return m, unlock
		}
	}

	mdl, cmd := m.updateActiveView(msg)
	return mdl, tea.Batch(unlock, cmd)
}

// handleActionKey handles keys shared by the feed and message views.
func (m *Model) handleActionKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "1":
		return m.toggleFilter(model.FilterHideRead), true
	case "2":
		return m.toggleFilter(model.FilterImportant), true
	case "3":
		return m.toggleFilter(model.FilterShowDismissed), true
	case "m":
		return m.toggleMute(), true
	case "i":
		return m.toggleImportant(), true
	case "s":
		p := model.PriorityInfo
		if m.currentView == ViewMessage {
			for _, it := range m.items {
				if it.ID == m.message.OpenID() {
					p = it.Priority
				}
			}
		} else if it, ok := m.feedList.Selected(); ok {
			p = it.Priority
		}
		return m.testSound(p), true
	case "r":
		return m.syncNow(), true
	case "R":
		return m.retryFailed(), true
	}
	return nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewFeed:
		m.feedList, cmd = m.feedList.Update(msg)
	case ViewMessage:
		m.message, cmd = m.message.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewWelcome:
		m.welcome, cmd = m.welcome.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "RunAlert"
	if n := feed.Unread(m.items); n > 0 {
		title = fmt.Sprintf("RunAlert [%d unread]", n)
	}
	header := m.layout.RenderHeader(title, m.headerStatus())
	banner := m.raceBanner()

	content := m.renderContent()
	if m.toast != nil {
		content = content + "\n" + theme.ToastStyle.
			Background(theme.PriorityStyle(m.toast.Priority).GetForeground()).
			Render(m.toast.Text)
	}

	return m.layout.RenderWithFrame(header, banner, content, m.layout.RenderStatusBar(m.keyHints()))
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewFeed:
		return m.feedList.View()
	case ViewMessage:
		return m.message.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewWelcome:
		return m.welcome.View()
	default:
		return ""
	}
}

// headerStatus describes connectivity, the queue, and mute state.
func (m Model) headerStatus() string {
	parts := []string{m.status.Label()}
	if m.status.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", m.status.Failed))
	}
	pref := m.d.Engine.Preference()
	if pref.Muted {
		if pref.AlwaysPlayImportant {
			parts = append(parts, "muted (important on)")
		} else {
			parts = append(parts, "muted")
		}
	}
	return strings.Join(parts, " | ")
}

// raceBanner renders the race status line.
func (m Model) raceBanner() string {
	if m.race == nil {
		return m.layout.RenderBanner("Race status: not published", theme.RaceStatusStyle(""))
	}
	text := "Race status: " + strings.ToUpper(m.race.Status)
	if m.race.Title != "" {
		text += " - " + m.race.Title
	}
	if m.race.Content != "" {
		text += ": " + m.race.Content
	}
	return m.layout.RenderBanner(text, theme.RaceStatusStyle(m.race.Status))
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewMessage:
		return "esc back | d dismiss | s test sound | j/k scroll"
	case ViewWelcome:
		return "enter get started"
	default:
		if summary := m.feedList.FilterSummary(); summary != "" {
			return summary + " | 1/2/3 toggle filters | ? help"
		}
		return "q quit | ? help | enter open | d dismiss | 1 hide read | 2 important | m mute | r sync"
	}
}

// refreshFeed recomputes the visible list from the current items.
func (m *Model) refreshFeed() tea.Cmd {
	openID := ""
	if m.currentView == ViewMessage {
		openID = m.message.OpenID()
	}
	visible := feed.Visible(m.items, m.filters, openID)
	return m.feedList.SetItems(visible, len(m.items), m.filters)
}

func (m *Model) showToast(t ToastMsg) tea.Cmd {
	m.toastSeq++
	m.toast = &t
	seq := m.toastSeq
	return tea.Tick(toastTTL, func(time.Time) tea.Msg { return clearToastMsg{seq: seq} })
}

func (m *Model) flushToast(r appsync.FlushResult) tea.Cmd {
	switch {
	case r.Dropped > 0:
		return m.showToast(ToastMsg{
			Priority: model.PriorityWarning,
			Text:     fmt.Sprintf("%d change(s) could not be synced; press R to retry", r.Dropped),
		})
	case r.Applied > 0:
		return m.showToast(ToastMsg{Priority: model.PriorityInfo, Text: fmt.Sprintf("Synced %d change(s)", r.Applied)})
	}
	return nil
}

func (m *Model) toggleFilter(name string) tea.Cmd {
	opts, err := m.d.Feed.ToggleFilter(name)
	if err != nil {
		log.Printf("app: %v", err)
		return nil
	}
	m.filters = opts
	return m.refreshFeed()
}

func (m *Model) toggleMute() tea.Cmd {
	text := "Sound on"
	if m.d.Feed.ToggleMute() {
		text = "Sound muted"
	}
	return m.showToast(ToastMsg{Priority: model.PriorityInfo, Text: text})
}

func (m *Model) toggleImportant() tea.Cmd {
	text := "Important alerts follow mute"
	if m.d.Feed.ToggleAlwaysPlayImportant() {
		text = "Important alerts play even when muted"
	}
	return m.showToast(ToastMsg{Priority: model.PriorityInfo, Text: text})
}

func (m *Model) retryFailed() tea.Cmd {
	n, err := m.d.Queue.RetryFailed()
	if err != nil {
		return m.showToast(ToastMsg{Priority: model.PriorityWarning, Text: "Retry failed: " + err.Error()})
	}
	if n == 0 {
		return m.showToast(ToastMsg{Priority: model.PriorityInfo, Text: "No failed changes"})
	}
	return tea.Batch(
		m.showToast(ToastMsg{Priority: model.PriorityInfo, Text: fmt.Sprintf("Retrying %d change(s)", n)}),
		m.syncNow(),
	)
}

// quit tears down subscriptions before exiting.
func (m Model) quit() tea.Cmd {
	m.subs.close()
	return tea.Quit
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	if p, ok := strings.CutPrefix(cmd, "test "); ok {
		return m.testSound(model.ParsePriority(p))
	}

	switch cmd {
	case "sync", "refresh":
		return m.syncNow()
	case "retry":
		return m.retryFailed()
	case "mute":
		return m.toggleMute()
	case "important":
		return m.toggleImportant()
	case "hide read":
		return m.toggleFilter(model.FilterHideRead)
	case "important only":
		return m.toggleFilter(model.FilterImportant)
	case "show dismissed":
		return m.toggleFilter(model.FilterShowDismissed)
	case "sound":
		m.helpView.SetStatus("Sound", soundLines(m.d.Engine.Diagnostics()))
		m.previousView = ViewFeed
		m.currentView = ViewHelp
		return nil
	case "quit", "q":
		return m.quit()
	default:
		return m.showToast(ToastMsg{Priority: model.PriorityInfo, Text: fmt.Sprintf("Unknown command %q", cmd)})
	}
}

func soundLines(d sound.Diagnostics) []string {
	lines := []string{
		fmt.Sprintf("muted: %t   important bypasses mute: %t", d.Muted, d.AlwaysPlayImportant),
		fmt.Sprintf("unlocked: %t   device muted: %t", d.Unlocked, d.DeviceMuted),
		fmt.Sprintf("pending sounds: %d   played: %d", d.Pending, d.Played),
	}
	if d.LastOutcome != "" {
		lines = append(lines, fmt.Sprintf("last: %s %s at %s", d.LastPriority, d.LastOutcome, d.LastAt.Local().Format("15:04:05")))
	}
	if d.LastError != "" {
		lines = append(lines, "last error: "+d.LastError)
	}
	return lines
}
