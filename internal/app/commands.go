package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/runalert/internal/model"
)

// subscribe starts the message and race status subscriptions.
func (m Model) subscribe() tea.Cmd {
	ctx, f, subs, upd, edition := m.ctx, m.d.Feed, m.subs, m.upd, m.d.EditionID
	return func() tea.Msg {
		unsub, err := f.SubscribeToMessages(ctx, upd.pushFeed)
		if err != nil {
			return subscribeFailedMsg{err: err}
		}
		subs.add(unsub)

		unsub, err = f.SubscribeToRaceStatus(ctx, edition, upd.pushRace)
		if err != nil {
			return subscribeFailedMsg{err: err}
		}
		subs.add(unsub)
		return nil
	}
}

// start runs the initial connectivity check, which flushes the queue when
// the remote store is reachable.
func (m Model) start() tea.Cmd {
	ctx, f := m.ctx, m.d.Feed
	return func() tea.Msg {
		f.Start(ctx)
		return statusMsg(f.Status())
	}
}

func tickStatus() tea.Cmd {
	return tea.Tick(statusInterval, func(time.Time) tea.Msg { return statusTickMsg{} })
}

// unlock records a user interaction with the sound engine, playing at most
// one pending sound.
func (m Model) unlock() tea.Cmd {
	ctx, e := m.ctx, m.d.Engine
	return func() tea.Msg {
		o, played := e.Unlock(ctx)
		if !played {
			return nil
		}
		return soundMsg{outcome: o}
	}
}

func (m Model) markRead(id string) tea.Cmd {
	ctx, f := m.ctx, m.d.Feed
	return func() tea.Msg {
		return readMarkedMsg{id: id, err: f.MarkRead(ctx, id)}
	}
}

func (m Model) toggleDismissed(id string) tea.Cmd {
	ctx, f := m.ctx, m.d.Feed
	return func() tea.Msg {
		dismissed, err := f.ToggleDismissed(ctx, id)
		return dismissedMsg{id: id, dismissed: dismissed, err: err}
	}
}

func (m Model) testSound(p model.Priority) tea.Cmd {
	ctx, f := m.ctx, m.d.Feed
	return func() tea.Msg {
		return soundMsg{priority: p, outcome: f.PlaySound(ctx, p), explicit: true}
	}
}

// syncNow flushes the queue. The result arrives through the queue's
// result channel.
func (m Model) syncNow() tea.Cmd {
	ctx, f := m.ctx, m.d.Feed
	return func() tea.Msg {
		f.Sync(ctx)
		return statusMsg(f.Status())
	}
}
