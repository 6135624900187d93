// Package sound decides whether and how to alert the user for a message
// priority: audio, vibration, or a visual toast, under the user's mute
// preferences and the platform's playback restrictions.
package sound

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/nhle/runalert/internal/diag"
	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/store"
)

// Outcome is the result of a PlaySound request.
type Outcome string

const (
	OutcomePlayed      Outcome = "played"
	OutcomeMuted       Outcome = "muted"
	OutcomeDeviceMuted Outcome = "device-muted"
	OutcomeVibrated    Outcome = "vibrated"
	OutcomeQueued      Outcome = "queued"
)

// PendingSound is a blocked alert waiting for user interaction.
type PendingSound struct {
	Priority model.Priority `json:"priority"`

	// Timestamp is epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// Config wires the platform capabilities into an Engine. Nil capabilities
// fall back to silent defaults.
type Config struct {
	Backend      Backend
	Tone         ToneSynth
	Vibrator     Vibrator
	Toaster      Toaster
	MuteDetector MuteDetector

	// DeviceMuteOverride lists priorities that still play when the device
	// looks muted. Nil means critical only.
	DeviceMuteOverride []model.Priority

	Metrics *diag.Metrics
	Now     func() time.Time
}

// Diagnostics is a snapshot of engine state for status displays.
type Diagnostics struct {
	Muted               bool
	AlwaysPlayImportant bool
	Unlocked            bool
	DeviceMuted         bool
	Pending             int
	Played              int
	LastPriority        model.Priority
	LastOutcome         Outcome
	LastError           string
	LastAt              time.Time
}

// Engine is the notification sound service. Construct one per process
// and share it.
type Engine struct {
	cache     store.Cache
	cfg       Config
	overrides map[model.Priority]bool

	mu       sync.Mutex
	pref     model.MutePreference
	unlocked bool
	pending  []PendingSound
	diag     Diagnostics
}

// NewEngine creates an engine, restoring preferences and pending sounds
// from cache.
func NewEngine(cache store.Cache, cfg Config) *Engine {
	if cfg.Backend == nil {
		cfg.Backend = &BellBackend{Out: io.Discard}
	}
	if cfg.Tone == nil {
		cfg.Tone = noTone{}
	}
	if cfg.Vibrator == nil {
		cfg.Vibrator = NoVibrator{}
	}
	if cfg.Toaster == nil {
		cfg.Toaster = LogToaster{}
	}
	if cfg.MuteDetector == nil {
		cfg.MuteDetector = AssumeUnmuted{}
	}
	if cfg.DeviceMuteOverride == nil {
		cfg.DeviceMuteOverride = []model.Priority{model.PriorityCritical}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	e := &Engine{
		cache:     cache,
		cfg:       cfg,
		overrides: make(map[model.Priority]bool, len(cfg.DeviceMuteOverride)),
		pref: model.MutePreference{
			Muted:               store.LoadBool(cache, store.KeyMuted, false),
			AlwaysPlayImportant: store.LoadBool(cache, store.KeyAlwaysPlayImportant, true),
		},
	}
	for _, p := range cfg.DeviceMuteOverride {
		e.overrides[p] = true
	}
	store.LoadJSON(cache, store.KeyPendingSounds, &e.pending)
	if len(e.pending) > 0 {
		log.Printf("sound: restored %d pending sounds", len(e.pending))
	}
	cfg.Metrics.PendingSounds(len(e.pending))

	return e
}

// PlaySound alerts the user for priority p.
func (e *Engine) PlaySound(ctx context.Context, p model.Priority) Outcome {
	p = model.ParsePriority(string(p))

	deviceMuted := e.cfg.MuteDetector.LikelyDeviceMuted()
	important := p.IsImportant()
	pref := e.Preference()

	if pref.Muted && !(important && pref.AlwaysPlayImportant) {
		return e.record(p, OutcomeMuted, deviceMuted, nil)
	}

	if deviceMuted && !e.overrides[p] {
		if important && e.cfg.Vibrator.Vibrate(vibrationPulse) {
			return e.record(p, OutcomeVibrated, deviceMuted, nil)
		}
		return e.record(p, OutcomeDeviceMuted, deviceMuted, nil)
	}

	err := e.play(ctx, p)
	if err == nil {
		e.cfg.Vibrator.Vibrate(vibrationPulse)
		return e.record(p, OutcomePlayed, deviceMuted, nil)
	}

	log.Printf("sound: could not play %s sound: %v", p, err)
	e.enqueue(p)
	e.cfg.Toaster.Toast(p, fmt.Sprintf("New %s notification. Press any key to enable sound.", p))
	if terr := e.cfg.Tone.Beep(ctx, ToneFor(p)); terr != nil {
		log.Printf("sound: fallback tone for %s failed: %v", p, terr)
	}
	return e.record(p, OutcomeQueued, deviceMuted, err)
}

// play creates a fresh playback handle and starts it.
func (e *Engine) play(ctx context.Context, p model.Priority) error {
	pb, err := e.cfg.Backend.NewPlayback(p, Volume(p))
	if err != nil {
		return fmt.Errorf("creating %s playback: %w", p, err)
	}
	return pb.Play(ctx)
}

func (e *Engine) enqueue(p model.Priority) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, PendingSound{Priority: p, Timestamp: e.cfg.Now().UnixMilli()})
	e.savePendingLocked()
}

func (e *Engine) savePendingLocked() {
	e.cfg.Metrics.PendingSounds(len(e.pending))

	var err error
	if len(e.pending) == 0 {
		err = e.cache.Remove(store.KeyPendingSounds)
	} else {
		err = store.SaveJSON(e.cache, store.KeyPendingSounds, e.pending)
	}
	if err != nil {
		log.Printf("sound: saving pending sounds: %v", err)
	}
}

func (e *Engine) record(p model.Priority, o Outcome, deviceMuted bool, err error) Outcome {
	e.cfg.Metrics.Alert(string(p), string(o))

	e.mu.Lock()
	defer e.mu.Unlock()
	e.diag.DeviceMuted = deviceMuted
	e.diag.LastPriority = p
	e.diag.LastOutcome = o
	e.diag.LastAt = e.cfg.Now()
	e.diag.LastError = ""
	if err != nil {
		e.diag.LastError = err.Error()
	}
	if o == OutcomePlayed {
		e.diag.Played++
	}
	return o
}

// Unlock records a user interaction. The first call primes the backend;
// every call plays at most one pending sound.
func (e *Engine) Unlock(ctx context.Context) (Outcome, bool) {
	e.mu.Lock()
	first := !e.unlocked
	e.unlocked = true
	e.mu.Unlock()

	if first {
		if err := e.cfg.Backend.Prime(ctx); err != nil {
			log.Printf("sound: priming playback: %v", err)
		}
	}
	return e.DrainPending(ctx)
}

// DrainPending plays the single most urgent pending sound, oldest first
// among equals. It does nothing before the first interaction.
func (e *Engine) DrainPending(ctx context.Context) (Outcome, bool) {
	e.mu.Lock()
	if !e.unlocked || len(e.pending) == 0 {
		e.mu.Unlock()
		return "", false
	}

	sort.SliceStable(e.pending, func(i, j int) bool {
		ri, rj := e.pending[i].Priority.Rank(), e.pending[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return e.pending[i].Timestamp < e.pending[j].Timestamp
	})
	next := e.pending[0]
	e.pending = e.pending[1:]
	e.savePendingLocked()
	e.mu.Unlock()

	return e.PlaySound(ctx, next.Priority), true
}

// Pending returns the queued sounds.
func (e *Engine) Pending() []PendingSound {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]PendingSound(nil), e.pending...)
}

// Unlocked reports whether a user interaction has been seen.
func (e *Engine) Unlocked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unlocked
}

// Preference returns the current mute preferences.
func (e *Engine) Preference() model.MutePreference {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pref
}

// ToggleMute flips the global mute and returns the new value.
func (e *Engine) ToggleMute() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pref.Muted = !e.pref.Muted
	e.savePrefLocked(store.KeyMuted, e.pref.Muted)
	return e.pref.Muted
}

// SetMuted sets the global mute.
func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pref.Muted = muted
	e.savePrefLocked(store.KeyMuted, muted)
}

// ToggleAlwaysPlayImportant flips the important-override and returns the
// new value.
func (e *Engine) ToggleAlwaysPlayImportant() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pref.AlwaysPlayImportant = !e.pref.AlwaysPlayImportant
	e.savePrefLocked(store.KeyAlwaysPlayImportant, e.pref.AlwaysPlayImportant)
	return e.pref.AlwaysPlayImportant
}

// SetAlwaysPlayImportant sets the important-override.
func (e *Engine) SetAlwaysPlayImportant(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pref.AlwaysPlayImportant = v
	e.savePrefLocked(store.KeyAlwaysPlayImportant, v)
}

func (e *Engine) savePrefLocked(key string, v bool) {
	if err := store.SaveJSON(e.cache, key, v); err != nil {
		log.Printf("sound: saving %s: %v", key, err)
	}
}

// Diagnostics returns a snapshot of the engine state.
func (e *Engine) Diagnostics() Diagnostics {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.diag
	d.Muted = e.pref.Muted
	d.AlwaysPlayImportant = e.pref.AlwaysPlayImportant
	d.Unlocked = e.unlocked
	d.Pending = len(e.pending)
	return d
}

type noTone struct{}

func (noTone) Beep(context.Context, Tone) error { return nil }
