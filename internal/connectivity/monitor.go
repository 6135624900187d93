// Package connectivity tracks whether the remote store is actually
// reachable, using a cheap probe read rather than OS network hints.
package connectivity

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nhle/runalert/internal/diag"
)

// State is the monitor's view of reachability.
type State int

const (
	Unknown State = iota
	Connected
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Prober performs the reachability check.
type Prober interface {
	Probe(ctx context.Context) error
}

// Config tunes a Monitor.
type Config struct {
	// RetryInterval is how long to wait before re-probing while
	// disconnected.
	RetryInterval time.Duration

	// MinProbeInterval throttles probes triggered by Hint.
	MinProbeInterval time.Duration

	// ProbeTimeout bounds probes started by the retry timer.
	ProbeTimeout time.Duration

	Metrics *diag.Metrics
}

// DefaultRetryInterval is the disconnected re-probe interval when none is
// configured.
const DefaultRetryInterval = 3 * time.Minute

const defaultProbeTimeout = 30 * time.Second

type timer interface {
	Stop() bool
}

// Monitor tracks reachability of the remote store. A transition into
// Connected notifies every registered listener.
type Monitor struct {
	prober  Prober
	cfg     Config
	limiter *rate.Limiter

	afterFunc func(d time.Duration, f func()) timer

	mu        sync.Mutex
	state     State
	retry     timer
	listeners []func(context.Context)
	stopped   bool
}

// New creates a monitor in the Unknown state. No probe is issued until
// Check or Hint is called.
func New(p Prober, cfg Config) *Monitor {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}

	limit := rate.Inf
	if cfg.MinProbeInterval > 0 {
		limit = rate.Every(cfg.MinProbeInterval)
	}

	return &Monitor{
		prober:  p,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
}

// OnConnected registers fn to run on every transition into Connected,
// including the first successful probe.
func (m *Monitor) OnConnected(fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Check probes the remote store and updates the state. It reports whether
// the store is reachable.
func (m *Monitor) Check(ctx context.Context) bool {
	err := m.prober.Probe(ctx)
	ok := err == nil
	m.cfg.Metrics.Probe(ok)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ok
	}

	prev := m.state
	var notify []func(context.Context)
	if ok {
		m.state = Connected
		if m.retry != nil {
			m.retry.Stop()
			m.retry = nil
		}
		if prev != Connected {
			notify = append(notify, m.listeners...)
		}
	} else {
		m.state = Disconnected
		if m.retry == nil {
			m.retry = m.afterFunc(m.cfg.RetryInterval, m.retryProbe)
		}
	}
	m.mu.Unlock()

	if !ok && prev != Disconnected {
		log.Printf("connectivity: remote store unreachable: %v", err)
	}
	if ok && prev == Disconnected {
		log.Printf("connectivity: remote store reachable again")
	}

	for _, fn := range notify {
		fn(ctx)
	}
	return ok
}

// Hint reacts to an OS-level online/offline event by re-probing. The hint
// itself is never trusted; bursts of hints are throttled and a throttled
// hint returns the current state.
func (m *Monitor) Hint(ctx context.Context, online bool) bool {
	if !m.limiter.Allow() {
		return m.Connected()
	}
	log.Printf("connectivity: network reported %s, probing", onlineLabel(online))
	return m.Check(ctx)
}

// retryProbe runs when the retry timer fires.
func (m *Monitor) retryProbe() {
	m.mu.Lock()
	m.retry = nil
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ProbeTimeout)
	defer cancel()
	m.Check(ctx)
}

// Connected reports whether the last probe succeeded.
func (m *Monitor) Connected() bool {
	return m.State() == Connected
}

// State returns the current reachability state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RetryArmed reports whether a retry probe is scheduled.
func (m *Monitor) RetryArmed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retry != nil
}

// Stop cancels the retry timer. Later probes still report results but no
// longer change state or notify listeners.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func onlineLabel(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
