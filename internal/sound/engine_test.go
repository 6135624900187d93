package sound

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/store"
)

type fakeBackend struct {
	blocked  bool
	failWith error
	created  []*fakePlayback
	played   []model.Priority
	volumes  []float64
	primed   int
}

type fakePlayback struct {
	b     *fakeBackend
	p     model.Priority
	plays int
}

func (b *fakeBackend) NewPlayback(p model.Priority, volume float64) (Playback, error) {
	pb := &fakePlayback{b: b, p: p}
	b.created = append(b.created, pb)
	b.volumes = append(b.volumes, volume)
	return pb, nil
}

func (b *fakeBackend) Prime(context.Context) error {
	b.primed++
	b.blocked = false
	return nil
}

func (pb *fakePlayback) Play(context.Context) error {
	pb.plays++
	if pb.b.blocked {
		return ErrPlaybackBlocked
	}
	if pb.b.failWith != nil {
		return pb.b.failWith
	}
	pb.b.played = append(pb.b.played, pb.p)
	return nil
}

type fakeTone struct{ beeps []Tone }

func (t *fakeTone) Beep(_ context.Context, tone Tone) error {
	t.beeps = append(t.beeps, tone)
	return nil
}

type fakeVibrator struct{ pulses []time.Duration }

func (v *fakeVibrator) Vibrate(d time.Duration) bool {
	v.pulses = append(v.pulses, d)
	return true
}

type fakeToaster struct{ toasts []model.Priority }

func (t *fakeToaster) Toast(p model.Priority, _ string) { t.toasts = append(t.toasts, p) }

type fixedMute bool

func (m fixedMute) LikelyDeviceMuted() bool { return bool(m) }

type harness struct {
	cache    *store.MemoryStore
	backend  *fakeBackend
	tone     *fakeTone
	vibrator *fakeVibrator
	toaster  *fakeToaster
	engine   *Engine
	now      time.Time
}

func newHarness(t *testing.T, deviceMuted bool) *harness {
	t.Helper()
	h := &harness{
		cache:    store.NewMemoryStore(),
		backend:  &fakeBackend{},
		tone:     &fakeTone{},
		vibrator: &fakeVibrator{},
		toaster:  &fakeToaster{},
		now:      time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	h.engine = h.build(deviceMuted)
	return h
}

func (h *harness) build(deviceMuted bool) *Engine {
	return NewEngine(h.cache, Config{
		Backend:      h.backend,
		Tone:         h.tone,
		Vibrator:     h.vibrator,
		Toaster:      h.toaster,
		MuteDetector: fixedMute(deviceMuted),
		Now: func() time.Time {
			h.now = h.now.Add(time.Second)
			return h.now
		},
	})
}

func TestEngine_DefaultsPlayEverything(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	for _, p := range model.Priorities {
		assert.Equal(t, OutcomePlayed, h.engine.PlaySound(ctx, p))
	}
	assert.Equal(t, model.Priorities, h.backend.played)
	assert.True(t, h.engine.Preference().AlwaysPlayImportant)
}

func TestEngine_MuteOverride(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	h.engine.SetMuted(true)
	h.engine.SetAlwaysPlayImportant(true)

	assert.Equal(t, OutcomePlayed, h.engine.PlaySound(ctx, model.PriorityCritical))
	assert.Equal(t, OutcomePlayed, h.engine.PlaySound(ctx, model.PriorityWarning))
	assert.Equal(t, OutcomeMuted, h.engine.PlaySound(ctx, model.PriorityInfo))
	assert.Equal(t, OutcomeMuted, h.engine.PlaySound(ctx, model.PriorityAnnouncement))

	assert.Equal(t, []model.Priority{model.PriorityCritical, model.PriorityWarning}, h.backend.played)
}

func TestEngine_MutedWithoutOverrideSilencesAll(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	assert.True(t, h.engine.ToggleMute())
	assert.False(t, h.engine.ToggleAlwaysPlayImportant())

	assert.Equal(t, OutcomeMuted, h.engine.PlaySound(ctx, model.PriorityCritical))
	assert.Empty(t, h.backend.created)
	assert.Empty(t, h.vibrator.pulses)
}

func TestEngine_DeviceMute(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	assert.Equal(t, OutcomePlayed, h.engine.PlaySound(ctx, model.PriorityCritical), "critical overrides device mute")
	assert.Equal(t, OutcomeVibrated, h.engine.PlaySound(ctx, model.PriorityWarning))
	assert.Equal(t, OutcomeDeviceMuted, h.engine.PlaySound(ctx, model.PriorityInfo))

	assert.Equal(t, []model.Priority{model.PriorityCritical}, h.backend.played)
	// One pulse accompanies the played critical sound, one replaces the warning.
	assert.Len(t, h.vibrator.pulses, 2)
	assert.Equal(t, vibrationPulse, h.vibrator.pulses[1])
	assert.True(t, h.engine.Diagnostics().DeviceMuted)
}

func TestEngine_FreshPlaybackPerCall(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	h.engine.PlaySound(ctx, model.PriorityInfo)
	h.engine.PlaySound(ctx, model.PriorityInfo)

	require.Len(t, h.backend.created, 2)
	assert.NotSame(t, h.backend.created[0], h.backend.created[1])
	assert.Equal(t, 1, h.backend.created[0].plays)
	assert.Equal(t, 1, h.backend.created[1].plays)
	assert.Equal(t, []float64{0.7, 0.7}, h.backend.volumes)
}

func TestEngine_BlockedPlaybackQueuesToastsAndBeeps(t *testing.T) {
	h := newHarness(t, false)
	h.backend.blocked = true
	ctx := context.Background()

	assert.Equal(t, OutcomeQueued, h.engine.PlaySound(ctx, model.PriorityWarning))

	assert.Equal(t, []model.Priority{model.PriorityWarning}, h.toaster.toasts)
	require.Len(t, h.tone.beeps, 1)
	assert.Equal(t, 659.25, h.tone.beeps[0].Frequency)
	assert.Equal(t, 300*time.Millisecond, h.tone.beeps[0].Duration)

	var persisted []PendingSound
	require.True(t, store.LoadJSON(h.cache, store.KeyPendingSounds, &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, model.PriorityWarning, persisted[0].Priority)

	d := h.engine.Diagnostics()
	assert.Equal(t, OutcomeQueued, d.LastOutcome)
	assert.Equal(t, ErrPlaybackBlocked.Error(), d.LastError)
	assert.Equal(t, 1, d.Pending)
}

func TestEngine_UnlockDrainsOnePerInteraction(t *testing.T) {
	h := newHarness(t, false)
	h.backend.blocked = true
	ctx := context.Background()

	h.engine.PlaySound(ctx, model.PriorityInfo)
	h.engine.PlaySound(ctx, model.PriorityWarning)
	h.engine.PlaySound(ctx, model.PriorityCritical)
	h.engine.PlaySound(ctx, model.PriorityWarning)
	require.Len(t, h.engine.Pending(), 4)

	_, ok := h.engine.DrainPending(ctx)
	assert.False(t, ok, "nothing drains before the first interaction")

	outcome, ok := h.engine.Unlock(ctx)
	require.True(t, ok)
	assert.Equal(t, OutcomePlayed, outcome)
	assert.Equal(t, 1, h.backend.primed)
	assert.Equal(t, []model.Priority{model.PriorityCritical}, h.backend.played)
	assert.Len(t, h.engine.Pending(), 3)

	h.engine.Unlock(ctx)
	h.engine.Unlock(ctx)
	h.engine.Unlock(ctx)
	assert.Equal(t, 1, h.backend.primed, "primer plays once")
	assert.Equal(t, []model.Priority{
		model.PriorityCritical,
		model.PriorityWarning,
		model.PriorityWarning,
		model.PriorityInfo,
	}, h.backend.played)

	_, ok = h.engine.Unlock(ctx)
	assert.False(t, ok)
	_, present, err := h.cache.Get(store.KeyPendingSounds)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestEngine_DrainOrdersOldestFirstWithinPriority(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, store.SaveJSON(h.cache, store.KeyPendingSounds, []PendingSound{
		{Priority: model.PriorityWarning, Timestamp: 300},
		{Priority: model.PriorityAnnouncement, Timestamp: 200},
		{Priority: model.PriorityWarning, Timestamp: 100},
	}))
	e := h.build(false)
	ctx := context.Background()

	e.Unlock(ctx)
	assert.Equal(t, []PendingSound{
		{Priority: model.PriorityWarning, Timestamp: 100},
		{Priority: model.PriorityWarning, Timestamp: 300},
	}, e.Pending())
	assert.Equal(t, []model.Priority{model.PriorityAnnouncement}, h.backend.played)
}

func TestEngine_PreferencesPersist(t *testing.T) {
	h := newHarness(t, false)

	h.engine.ToggleMute()
	h.engine.ToggleAlwaysPlayImportant()

	restored := h.build(false)
	assert.Equal(t, model.MutePreference{Muted: true, AlwaysPlayImportant: false}, restored.Preference())
}

func TestEngine_CorruptedPreferencesFallBackToDefaults(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.cache.Set(store.KeyMuted, "garbage"))
	require.NoError(t, h.cache.Set(store.KeyPendingSounds, "{"))

	e := h.build(false)
	assert.Equal(t, model.MutePreference{Muted: false, AlwaysPlayImportant: true}, e.Preference())
	assert.Empty(t, e.Pending())
}

func TestEngine_PlaybackErrorFallsBack(t *testing.T) {
	h := newHarness(t, false)
	h.backend.failWith = errors.New("device busy")

	assert.Equal(t, OutcomeQueued, h.engine.PlaySound(context.Background(), model.PriorityCritical))
	assert.Len(t, h.tone.beeps, 1)
	assert.Equal(t, 880.0, h.tone.beeps[0].Frequency)
}

func TestVolumeAndToneTables(t *testing.T) {
	assert.Equal(t, 1.0, Volume(model.PriorityCritical))
	assert.Equal(t, 0.95, Volume(model.PriorityAnnouncement))
	assert.Equal(t, 0.9, Volume(model.PriorityWarning))
	assert.Equal(t, 0.7, Volume(model.PriorityInfo))
	assert.Equal(t, 0.7, Volume("unknown"))

	assert.Equal(t, 783.99, ToneFor(model.PriorityAnnouncement).Frequency)
	assert.Equal(t, 440.0, ToneFor(model.PriorityInfo).Frequency)
}
