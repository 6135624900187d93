package sound

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/store"
)

func TestBellBackend_GatedUntilPrimed(t *testing.T) {
	var out bytes.Buffer
	bell := &BellBackend{Out: &out, Gate: NewGate(true)}
	ctx := context.Background()

	pb, err := bell.NewPlayback(model.PriorityCritical, 1)
	require.NoError(t, err)
	assert.ErrorIs(t, pb.Play(ctx), ErrPlaybackBlocked)
	assert.ErrorIs(t, BellTone{Bell: bell}.Beep(ctx, ToneFor(model.PriorityCritical)), ErrPlaybackBlocked)
	assert.Empty(t, out.String())

	require.NoError(t, bell.Prime(ctx))
	require.NoError(t, pb.Play(ctx))
	assert.Equal(t, "\a\a", out.String())

	pb, err = bell.NewPlayback(model.PriorityInfo, 0.7)
	require.NoError(t, err)
	require.NoError(t, pb.Play(ctx))
	assert.Equal(t, "\a\a\a", out.String())
}

func TestEngine_WithBellBackendQueuesUntilUnlock(t *testing.T) {
	var out bytes.Buffer
	bell := &BellBackend{Out: &out, Gate: NewGate(true)}
	e := NewEngine(store.NewMemoryStore(), Config{Backend: bell, Tone: BellTone{Bell: bell}})
	ctx := context.Background()

	assert.Equal(t, OutcomeQueued, e.PlaySound(ctx, model.PriorityWarning))
	assert.Empty(t, out.String())

	outcome, ok := e.Unlock(ctx)
	assert.True(t, ok)
	assert.Equal(t, OutcomePlayed, outcome)
	assert.Equal(t, "\a", out.String())
}

func TestExecBackend_ExpandsArgs(t *testing.T) {
	var gotName string
	var gotArgs []string
	b := &ExecBackend{
		Command: "paplay",
		Args:    []string{"--volume={volume}", "{file}"},
		Files: map[model.Priority]string{
			model.PriorityInfo:     "info.ogg",
			model.PriorityCritical: "critical.ogg",
		},
		start: func(_ context.Context, name string, args ...string) error {
			gotName = name
			gotArgs = args
			return nil
		},
	}
	ctx := context.Background()

	pb, err := b.NewPlayback(model.PriorityCritical, Volume(model.PriorityCritical))
	require.NoError(t, err)
	require.NoError(t, pb.Play(ctx))
	assert.Equal(t, "paplay", gotName)
	assert.Equal(t, []string{"--volume=1.00", "critical.ogg"}, gotArgs)

	pb, err = b.NewPlayback(model.PriorityWarning, Volume(model.PriorityWarning))
	require.NoError(t, err, "falls back to the info file")
	require.NoError(t, pb.Play(ctx))
	assert.Equal(t, []string{"--volume=0.90", "info.ogg"}, gotArgs)
}

func TestExecBackend_MissingFile(t *testing.T) {
	b := &ExecBackend{Command: "paplay"}
	_, err := b.NewPlayback(model.PriorityInfo, 0.7)
	assert.Error(t, err)
}

func TestExecBackend_Gate(t *testing.T) {
	started := 0
	b := &ExecBackend{
		Command: "afplay",
		Files:   map[model.Priority]string{model.PriorityInfo: "info.ogg"},
		Gate:    NewGate(true),
		start: func(context.Context, string, ...string) error {
			started++
			return nil
		},
	}
	ctx := context.Background()

	pb, err := b.NewPlayback(model.PriorityInfo, 0.7)
	require.NoError(t, err)
	assert.ErrorIs(t, pb.Play(ctx), ErrPlaybackBlocked)

	require.NoError(t, b.Prime(ctx))
	require.NoError(t, pb.Play(ctx))
	assert.Equal(t, 1, started)
}
