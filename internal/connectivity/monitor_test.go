package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *fakeProber) Probe(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *fakeProber) set(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

type fakeTimer struct {
	d       time.Duration
	fire    func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

func newTestMonitor(p Prober, cfg Config) (*Monitor, *[]*fakeTimer) {
	m := New(p, cfg)
	timers := &[]*fakeTimer{}
	m.afterFunc = func(d time.Duration, f func()) timer {
		ft := &fakeTimer{d: d, fire: f}
		*timers = append(*timers, ft)
		return ft
	}
	return m, timers
}

func TestMonitor_StartsUnknown(t *testing.T) {
	m, _ := newTestMonitor(&fakeProber{}, Config{})
	assert.Equal(t, Unknown, m.State())
	assert.False(t, m.Connected())
}

func TestMonitor_FailureArmsRetryAndSuccessCancelsIt(t *testing.T) {
	p := &fakeProber{err: errors.New("unreachable")}
	m, timers := newTestMonitor(p, Config{RetryInterval: 3 * time.Minute})

	assert.False(t, m.Check(context.Background()))
	assert.Equal(t, Disconnected, m.State())
	require.Len(t, *timers, 1)
	assert.Equal(t, 3*time.Minute, (*timers)[0].d)

	// A second failure does not stack another timer.
	m.Check(context.Background())
	assert.Len(t, *timers, 1)

	p.set(nil)
	assert.True(t, m.Check(context.Background()))
	assert.Equal(t, Connected, m.State())
	assert.True(t, (*timers)[0].stopped)
	assert.False(t, m.RetryArmed())
}

func TestMonitor_RetryTimerReprobes(t *testing.T) {
	p := &fakeProber{err: errors.New("unreachable")}
	m, timers := newTestMonitor(p, Config{})

	var connects int
	m.OnConnected(func(context.Context) { connects++ })

	m.Check(context.Background())
	require.Len(t, *timers, 1)
	assert.Equal(t, DefaultRetryInterval, (*timers)[0].d)

	p.set(nil)
	(*timers)[0].fire()

	assert.True(t, m.Connected())
	assert.Equal(t, 1, connects)
	assert.Equal(t, 2, p.calls)
}

func TestMonitor_NotifiesOnlyOnTransitionIntoConnected(t *testing.T) {
	p := &fakeProber{}
	m, _ := newTestMonitor(p, Config{})

	var connects int
	m.OnConnected(func(context.Context) { connects++ })

	m.Check(context.Background())
	m.Check(context.Background())
	assert.Equal(t, 1, connects, "unknown -> connected notifies once")

	p.set(errors.New("down"))
	m.Check(context.Background())
	p.set(nil)
	m.Check(context.Background())
	assert.Equal(t, 2, connects)
}

func TestMonitor_HintAlwaysProbes(t *testing.T) {
	p := &fakeProber{err: errors.New("down")}
	m, _ := newTestMonitor(p, Config{})

	// The OS says online but the store is unreachable.
	assert.False(t, m.Hint(context.Background(), true))
	assert.Equal(t, Disconnected, m.State())

	// The OS says offline but the store answers.
	p.set(nil)
	assert.True(t, m.Hint(context.Background(), false))
	assert.Equal(t, Connected, m.State())
}

func TestMonitor_HintIsThrottled(t *testing.T) {
	p := &fakeProber{}
	m, _ := newTestMonitor(p, Config{MinProbeInterval: time.Hour})

	m.Hint(context.Background(), true)
	m.Hint(context.Background(), true)
	m.Hint(context.Background(), false)

	assert.Equal(t, 1, p.calls)
	assert.True(t, m.Connected())
}

func TestMonitor_StopCancelsRetry(t *testing.T) {
	p := &fakeProber{err: errors.New("down")}
	m, timers := newTestMonitor(p, Config{})

	m.Check(context.Background())
	m.Stop()

	require.Len(t, *timers, 1)
	assert.True(t, (*timers)[0].stopped)

	(*timers)[0].fire()
	assert.Equal(t, 1, p.calls)
}
