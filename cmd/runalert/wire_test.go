package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/sound"
)

func demoConfig(t *testing.T) *model.AppConfig {
	t.Helper()
	cfg := model.DefaultAppConfig()
	cfg.Demo = true
	cfg.CachePath = filepath.Join(t.TempDir(), "cache.db")
	return cfg
}

func TestBuild_DemoFeedEndToEnd(t *testing.T) {
	ctx := context.Background()
	rt, err := build(ctx, demoConfig(t), soundOptions{})
	require.NoError(t, err)
	defer rt.Close()

	user, err := rt.signIn(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, demoUser.UID, user.UID)

	require.True(t, rt.feed.Start(ctx))

	var items []model.FeedItem
	unsubscribe, err := rt.feed.SubscribeToMessages(ctx, func(got []model.FeedItem) { items = got })
	require.NoError(t, err)
	defer unsubscribe()
	require.Len(t, items, 7)

	require.NoError(t, rt.feed.MarkRead(ctx, items[0].ID))
	assert.Zero(t, rt.feed.Status().Pending)
	assert.True(t, rt.feed.IsRead(items[0].ID))
}

func TestBuild_PreferencesSurviveRestart(t *testing.T) {
	ctx := context.Background()
	cfg := demoConfig(t)

	rt, err := build(ctx, cfg, soundOptions{})
	require.NoError(t, err)
	assert.True(t, rt.engine.ToggleMute())
	rt.Close()

	rt, err = build(ctx, cfg, soundOptions{})
	require.NoError(t, err)
	defer rt.Close()
	assert.True(t, rt.engine.Preference().Muted)
}

func TestSoundBackend(t *testing.T) {
	backend, _ := soundBackend(model.SoundConfig{}, soundOptions{})
	assert.IsType(t, &sound.BellBackend{}, backend)

	backend, _ = soundBackend(model.SoundConfig{
		PlayerCommand: "paplay",
		Files:         map[string]string{"critical": "crit.ogg", "general": "info.ogg"},
	}, soundOptions{})
	exec, ok := backend.(*sound.ExecBackend)
	require.True(t, ok)
	assert.Equal(t, "crit.ogg", exec.Files[model.PriorityCritical])
	assert.Equal(t, "info.ogg", exec.Files[model.PriorityNormal])
}

func TestPriorities(t *testing.T) {
	assert.Nil(t, priorities(nil))
	assert.Equal(t,
		[]model.Priority{model.PriorityCritical, model.PriorityWarning, model.PriorityInfo},
		priorities([]string{"critical", "high", "bogus"}),
	)
}

func TestFormatItem(t *testing.T) {
	it := model.FeedItem{Message: model.Message{
		ID:        "1",
		Title:     "Start delayed",
		Content:   "30 minutes",
		Priority:  model.PriorityCritical,
		CreatedAt: time.Date(2025, 5, 1, 9, 0, 0, 0, time.Local),
	}}

	assert.Equal(t, "* May  1 09:00 [critical    ] Start delayed\n    30 minutes", formatItem(it))

	it.Read = true
	it.Content = ""
	assert.Equal(t, "  May  1 09:00 [critical    ] Start delayed", formatItem(it))
}
