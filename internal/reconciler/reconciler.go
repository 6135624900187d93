// Package reconciler decides which messages in a live subscription
// delivery are genuinely new and raises one alert per delivery.
package reconciler

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/nhle/runalert/internal/diag"
	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/sound"
	"github.com/nhle/runalert/internal/store"
)

// Alerter raises the alert for a new message.
type Alerter interface {
	PlaySound(ctx context.Context, p model.Priority) sound.Outcome
}

// Config tunes a Reconciler.
type Config struct {
	// GraceWindow re-admits messages seen in an earlier session when they
	// were created at most this long ago.
	GraceWindow time.Duration

	// PersistRate is the probability that a delivery persists the seen
	// set. Baselines and Persist always write.
	PersistRate float64

	// SeenCap bounds the long-term seen set; the least recently delivered
	// ids are evicted first.
	SeenCap int

	Metrics *diag.Metrics
	Now     func() time.Time
	Rand    func() float64
}

// Defaults used when Config fields are unset.
const (
	DefaultGraceWindow = 120 * time.Second
	DefaultSeenCap     = 1000
)

// Result describes how one delivery was handled.
type Result struct {
	// Baseline is set for the first delivery after construction or Reset.
	Baseline bool

	// New lists the messages that qualified as new, in delivery order.
	New []model.Message

	// Alerted is the message the alert was raised for, if any.
	Alerted *model.Message
	Outcome sound.Outcome

	// Persisted reports whether the seen set was written.
	Persisted bool
}

// Reconciler tracks which message ids have been observed. It keeps a
// session set (ids handled since the last baseline) and a long-term set
// persisted across runs.
type Reconciler struct {
	cache   store.Cache
	alerter Alerter
	cfg     Config

	mu        sync.Mutex
	baselined bool
	session   map[string]bool
	seen      map[string]int64
	seq       int64
}

// New creates a reconciler, restoring the long-term seen set from cache.
func New(cache store.Cache, alerter Alerter, cfg Config) *Reconciler {
	if cfg.GraceWindow < 0 {
		cfg.GraceWindow = 0
	}
	if cfg.SeenCap <= 0 {
		cfg.SeenCap = DefaultSeenCap
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}

	r := &Reconciler{
		cache:   cache,
		alerter: alerter,
		cfg:     cfg,
		session: make(map[string]bool),
		seen:    make(map[string]int64),
	}

	var ids []string
	store.LoadJSON(cache, store.KeySeenMessages, &ids)
	for _, id := range ids {
		r.touchLocked(id)
	}

	return r
}

// OnSnapshot handles one full ordered delivery, newest first.
func (r *Reconciler) OnSnapshot(ctx context.Context, msgs []model.Message) Result {
	r.cfg.Metrics.Delivery()

	r.mu.Lock()
	if !r.baselined {
		r.baselined = true
		for _, m := range msgs {
			r.session[m.ID] = true
			r.touchLocked(m.ID)
		}
		r.capLocked()
		persisted := r.persistLocked()
		r.mu.Unlock()
		return Result{Baseline: true, Persisted: persisted}
	}

	now := r.cfg.Now()
	var res Result
	best := -1
	for _, m := range msgs {
		if !r.isNewLocked(m, now) {
			continue
		}
		res.New = append(res.New, m)
		if best < 0 || m.Priority.Rank() > res.New[best].Priority.Rank() {
			best = len(res.New) - 1
		}
	}

	for _, m := range msgs {
		r.session[m.ID] = true
		r.touchLocked(m.ID)
	}
	r.capLocked()

	if r.cfg.Rand() < r.cfg.PersistRate {
		res.Persisted = r.persistLocked()
	}
	r.mu.Unlock()

	if best >= 0 {
		alerted := res.New[best]
		res.Alerted = &alerted
		outcome, err := r.alert(ctx, alerted.Priority)
		if err != nil {
			log.Printf("reconciler: alert for %s failed: %v", alerted.ID, err)
		}
		res.Outcome = outcome
	}

	return res
}

// isNewLocked reports whether m qualifies for alerting.
func (r *Reconciler) isNewLocked(m model.Message, now time.Time) bool {
	if _, ok := r.seen[m.ID]; !ok {
		return true
	}
	if r.session[m.ID] || m.CreatedAt.IsZero() {
		return false
	}
	return now.Sub(m.CreatedAt) <= r.cfg.GraceWindow
}

// alert invokes the alerter, turning a panic into an error so delivery
// always completes.
func (r *Reconciler) alert(ctx context.Context, p model.Priority) (outcome sound.Outcome, err error) {
	if r.alerter == nil {
		return "", nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("alerter panicked: %v", rec)
		}
	}()
	return r.alerter.PlaySound(ctx, p), nil
}

// touchLocked marks id as the most recently delivered.
func (r *Reconciler) touchLocked(id string) {
	r.seq++
	r.seen[id] = r.seq
}

// capLocked evicts the least recently delivered ids beyond SeenCap.
func (r *Reconciler) capLocked() {
	over := len(r.seen) - r.cfg.SeenCap
	if over <= 0 {
		return
	}
	for _, id := range r.orderedLocked()[:over] {
		delete(r.seen, id)
	}
}

// orderedLocked returns the seen ids, least recently delivered first.
func (r *Reconciler) orderedLocked() []string {
	ids := make([]string, 0, len(r.seen))
	for id := range r.seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return r.seen[ids[i]] < r.seen[ids[j]] })
	return ids
}

func (r *Reconciler) persistLocked() bool {
	if err := store.SaveJSON(r.cache, store.KeySeenMessages, r.orderedLocked()); err != nil {
		log.Printf("reconciler: saving seen messages: %v", err)
		return false
	}
	return true
}

// Persist writes the seen set unconditionally, e.g. on shutdown.
func (r *Reconciler) Persist() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := store.SaveJSON(r.cache, store.KeySeenMessages, r.orderedLocked()); err != nil {
		return fmt.Errorf("saving seen messages: %w", err)
	}
	return nil
}

// Reset starts a new session: the next delivery is a baseline again.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baselined = false
	r.session = make(map[string]bool)
}

// Seen reports whether id is in the long-term seen set.
func (r *Reconciler) Seen(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[id]
	return ok
}
