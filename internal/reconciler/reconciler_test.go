package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/sound"
	"github.com/nhle/runalert/internal/store"
)

type recordingAlerter struct {
	calls []model.Priority
	panic bool
}

func (a *recordingAlerter) PlaySound(_ context.Context, p model.Priority) sound.Outcome {
	if a.panic {
		panic("audio device exploded")
	}
	a.calls = append(a.calls, p)
	return sound.OutcomePlayed
}

var now = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func msg(id string, p model.Priority, age time.Duration) model.Message {
	return model.Message{ID: id, Title: id, Priority: p, CreatedAt: now.Add(-age)}
}

func newTestReconciler(cache store.Cache, a Alerter, rate float64) *Reconciler {
	return New(cache, a, Config{
		GraceWindow: DefaultGraceWindow,
		PersistRate: rate,
		Now:         func() time.Time { return now },
		Rand:        func() float64 { return 0.5 },
	})
}

func TestReconciler_FirstDeliveryIsSilent(t *testing.T) {
	a := &recordingAlerter{}
	r := newTestReconciler(store.NewMemoryStore(), a, 1)

	res := r.OnSnapshot(context.Background(), []model.Message{
		msg("1", model.PriorityCritical, time.Second),
		msg("2", model.PriorityWarning, time.Hour),
	})

	assert.True(t, res.Baseline)
	assert.True(t, res.Persisted)
	assert.Nil(t, res.Alerted)
	assert.Empty(t, a.calls)
	assert.True(t, r.Seen("1"))
}

func TestReconciler_OneAlertPerDeliveryForHighestRank(t *testing.T) {
	a := &recordingAlerter{}
	r := newTestReconciler(store.NewMemoryStore(), a, 1)
	ctx := context.Background()

	base := []model.Message{msg("old", model.PriorityInfo, time.Hour)}
	r.OnSnapshot(ctx, base)

	delivery := append([]model.Message{
		msg("i", model.PriorityInfo, 0),
		msg("w", model.PriorityWarning, 0),
		msg("a", model.PriorityAnnouncement, 0),
		msg("n", model.PriorityNormal, 0),
	}, base...)
	res := r.OnSnapshot(ctx, delivery)

	assert.Len(t, res.New, 4)
	require.NotNil(t, res.Alerted)
	assert.Equal(t, "a", res.Alerted.ID)
	assert.Equal(t, []model.Priority{model.PriorityAnnouncement}, a.calls)

	delivery = append([]model.Message{
		msg("c", model.PriorityCritical, 0),
		msg("w2", model.PriorityWarning, 0),
	}, delivery...)
	res = r.OnSnapshot(ctx, delivery)

	assert.Len(t, res.New, 2)
	assert.Equal(t, []model.Priority{model.PriorityAnnouncement, model.PriorityCritical}, a.calls)
}

func TestReconciler_RedeliveryDoesNotAlert(t *testing.T) {
	a := &recordingAlerter{}
	r := newTestReconciler(store.NewMemoryStore(), a, 1)
	ctx := context.Background()

	r.OnSnapshot(ctx, nil)
	delivery := []model.Message{msg("1", model.PriorityCritical, 0)}
	r.OnSnapshot(ctx, delivery)
	res := r.OnSnapshot(ctx, delivery)

	assert.Empty(t, res.New)
	assert.Len(t, a.calls, 1)
}

func TestReconciler_BaselineMessagesDoNotAlertLater(t *testing.T) {
	a := &recordingAlerter{}
	r := newTestReconciler(store.NewMemoryStore(), a, 1)
	ctx := context.Background()

	crit := msg("c", model.PriorityCritical, 30*time.Second)
	r.OnSnapshot(ctx, []model.Message{crit})

	res := r.OnSnapshot(ctx, []model.Message{msg("n", model.PriorityInfo, 0), crit})
	require.Len(t, res.New, 1)
	require.NotNil(t, res.Alerted)
	assert.Equal(t, "n", res.Alerted.ID)
	assert.Equal(t, []model.Priority{model.PriorityInfo}, a.calls)
}

func TestReconciler_GraceWindowReadmission(t *testing.T) {
	cache := store.NewMemoryStore()
	require.NoError(t, store.SaveJSON(cache, store.KeySeenMessages, []string{"recent", "stale"}))

	a := &recordingAlerter{}
	r := newTestReconciler(cache, a, 1)
	ctx := context.Background()

	r.OnSnapshot(ctx, nil)

	delivery := []model.Message{
		msg("recent", model.PriorityWarning, 30*time.Second),
		msg("stale", model.PriorityCritical, 10*time.Minute),
	}
	res := r.OnSnapshot(ctx, delivery)
	require.Len(t, res.New, 1)
	assert.Equal(t, "recent", res.New[0].ID)
	assert.Equal(t, []model.Priority{model.PriorityWarning}, a.calls)

	res = r.OnSnapshot(ctx, delivery)
	assert.Empty(t, res.New)
	assert.Len(t, a.calls, 1)
}

func TestReconciler_ResetStartsNewBaseline(t *testing.T) {
	a := &recordingAlerter{}
	r := newTestReconciler(store.NewMemoryStore(), a, 1)
	ctx := context.Background()

	r.OnSnapshot(ctx, nil)
	r.Reset()
	res := r.OnSnapshot(ctx, []model.Message{msg("1", model.PriorityCritical, time.Hour)})
	assert.True(t, res.Baseline)
	assert.Empty(t, a.calls)
}

func TestReconciler_SampledPersistence(t *testing.T) {
	cache := store.NewMemoryStore()
	a := &recordingAlerter{}
	r := newTestReconciler(cache, a, 0.25)
	ctx := context.Background()

	r.OnSnapshot(ctx, nil)
	res := r.OnSnapshot(ctx, []model.Message{msg("1", model.PriorityInfo, 0)})
	assert.False(t, res.Persisted, "0.5 draw is above the 0.25 rate")

	var ids []string
	require.True(t, store.LoadJSON(cache, store.KeySeenMessages, &ids))
	assert.Empty(t, ids)

	require.NoError(t, r.Persist())
	require.True(t, store.LoadJSON(cache, store.KeySeenMessages, &ids))
	assert.Equal(t, []string{"1"}, ids)

	restored := newTestReconciler(cache, a, 0)
	assert.True(t, restored.Seen("1"))
}

func TestReconciler_SeenCapEvictsLeastRecent(t *testing.T) {
	cache := store.NewMemoryStore()
	r := New(cache, nil, Config{SeenCap: 2, PersistRate: 1, Now: func() time.Time { return now }})
	ctx := context.Background()

	r.OnSnapshot(ctx, []model.Message{msg("a", model.PriorityInfo, time.Hour)})
	r.OnSnapshot(ctx, []model.Message{msg("b", model.PriorityInfo, time.Hour), msg("a", model.PriorityInfo, time.Hour)})
	r.OnSnapshot(ctx, []model.Message{msg("c", model.PriorityInfo, time.Hour), msg("a", model.PriorityInfo, time.Hour)})

	assert.True(t, r.Seen("a"))
	assert.True(t, r.Seen("c"))
	assert.False(t, r.Seen("b"))
}

func TestReconciler_AlertPanicDoesNotBreakDelivery(t *testing.T) {
	a := &recordingAlerter{panic: true}
	r := newTestReconciler(store.NewMemoryStore(), a, 1)
	ctx := context.Background()

	r.OnSnapshot(ctx, nil)
	var res Result
	assert.NotPanics(t, func() {
		res = r.OnSnapshot(ctx, []model.Message{msg("1", model.PriorityCritical, 0)})
	})
	require.NotNil(t, res.Alerted)
	assert.True(t, r.Seen("1"))
}

func TestReconciler_CorruptedSeenSetIsEmpty(t *testing.T) {
	cache := store.NewMemoryStore()
	require.NoError(t, cache.Set(store.KeySeenMessages, "not json"))

	r := newTestReconciler(cache, &recordingAlerter{}, 1)
	assert.False(t, r.Seen("anything"))

	r.OnSnapshot(context.Background(), []model.Message{msg("1", model.PriorityInfo, 0)})
	var ids []string
	assert.True(t, store.LoadJSON(cache, store.KeySeenMessages, &ids))
	assert.Equal(t, []string{"1"}, ids)
}
