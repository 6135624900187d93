package app

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/runalert/internal/model"
)

// toastTTL is how long a toast stays in the status bar.
const toastTTL = 6 * time.Second

// ToastMsg is a transient notice shown above the status bar.
type ToastMsg struct {
	Priority model.Priority
	Text     string
}

type clearToastMsg struct {
	seq int
}

// Notifier carries toasts raised outside the UI goroutine (for example by
// the sound engine when playback is blocked) into the program. It
// implements sound.Toaster.
type Notifier struct {
	ch chan ToastMsg
}

// NewNotifier creates a notifier with a small buffer.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan ToastMsg, 16)}
}

// Toast queues a notice without blocking. Notices beyond the buffer are
// dropped.
func (n *Notifier) Toast(p model.Priority, text string) {
	select {
	case n.ch <- ToastMsg{Priority: p, Text: text}:
	default:
	}
}

// Toastf is a formatted Toast for informational notices.
func (n *Notifier) Toastf(format string, args ...any) {
	n.Toast(model.PriorityInfo, fmt.Sprintf(format, args...))
}

// Wait returns a tea.Cmd that waits for the next toast. Call it again after
// handling each ToastMsg to keep listening.
func (n *Notifier) Wait() tea.Cmd {
	return func() tea.Msg {
		return <-n.ch
	}
}

// feedMsg delivers a decorated feed snapshot.
type feedMsg struct {
	items []model.FeedItem
}

// raceStatusMsg delivers the latest race status; status is nil when none
// has been published.
type raceStatusMsg struct {
	status *model.RaceStatus
}

// updates bridges subscription callbacks into the program. Only the latest
// value matters, so a pending value is replaced rather than queued.
type updates struct {
	feed chan feedMsg
	race chan raceStatusMsg
}

func newUpdates() *updates {
	return &updates{
		feed: make(chan feedMsg, 1),
		race: make(chan raceStatusMsg, 1),
	}
}

func (u *updates) pushFeed(items []model.FeedItem) {
	for {
		select {
		case u.feed <- feedMsg{items: items}:
			return
		default:
			select {
			case <-u.feed:
			default:
			}
		}
	}
}

func (u *updates) pushRace(rs *model.RaceStatus) {
	for {
		select {
		case u.race <- raceStatusMsg{status: rs}:
			return
		default:
			select {
			case <-u.race:
			default:
			}
		}
	}
}

func (u *updates) waitFeed() tea.Cmd {
	return func() tea.Msg { return <-u.feed }
}

func (u *updates) waitRace() tea.Cmd {
	return func() tea.Msg { return <-u.race }
}
