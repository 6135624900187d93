package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/nhle/runalert/internal/connectivity"
	"github.com/nhle/runalert/internal/credential"
	"github.com/nhle/runalert/internal/diag"
	"github.com/nhle/runalert/internal/feed"
	"github.com/nhle/runalert/internal/identity"
	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/reconciler"
	"github.com/nhle/runalert/internal/remote"
	"github.com/nhle/runalert/internal/sound"
	"github.com/nhle/runalert/internal/store"
	appsync "github.com/nhle/runalert/internal/sync"
)

// demoUser is the local identity used with the demo feed.
var demoUser = model.User{UID: "demo-user", Email: "demo@runalert.local", DisplayName: "Demo Runner"}

// soundOptions selects how alerts reach the user.
type soundOptions struct {
	// bellOut receives terminal bells when no player command is set.
	bellOut io.Writer

	// requireInteraction overrides the config; the TUI honors it, headless
	// commands never wait for a key press.
	requireInteraction bool

	toaster sound.Toaster
}

// runtime is the composed client.
type runtime struct {
	cfg        *model.AppConfig
	cache      store.Cache
	remote     remote.Store
	metrics    *diag.Metrics
	monitor    *connectivity.Monitor
	queue      *appsync.Queue
	engine     *sound.Engine
	reconciler *reconciler.Reconciler
	session    *identity.Session
	feed       *feed.Service

	closers []func() error
}

// build wires every component from cfg.
func build(ctx context.Context, cfg *model.AppConfig, so soundOptions) (*runtime, error) {
	rt := &runtime{cfg: cfg, metrics: diag.NewMetrics()}

	cache, err := store.NewSQLiteStore(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	rt.cache = cache
	rt.closers = append(rt.closers, cache.Close)

	var (
		verifier identity.Verifier
		tokens   identity.TokenStore
	)
	if cfg.Demo {
		mem := remote.NewMemory(cfg.Collections.Messages)
		if err := remote.SeedDemo(ctx, mem, cfg.Collections.Messages, cfg.Collections.RaceStatus, cfg.EventEditionID, time.Now()); err != nil {
			rt.Close()
			return nil, err
		}
		rt.remote = mem
	} else {
		fs, err := remote.NewFirestore(ctx, remote.FirestoreConfig{
			ProjectID:       cfg.Firebase.ProjectID,
			CredentialsFile: cfg.Firebase.CredentialsFile,
			ProbeCollection: cfg.Collections.Messages,
		})
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.remote = fs
		rt.closers = append(rt.closers, fs.Close)

		if client, err := fs.Auth(ctx); err != nil {
			log.Printf("identity: token verification unavailable, using unverified claims: %v", err)
		} else {
			verifier = client
		}

		if ring, err := credential.Open(); err != nil {
			log.Printf("identity: keyring unavailable, sessions will not be remembered: %v", err)
		} else {
			tokens = ring
		}
	}

	rt.monitor = connectivity.New(rt.remote, connectivity.Config{
		RetryInterval:    cfg.ConnectivityRetry(),
		MinProbeInterval: cfg.ProbeMinInterval(),
		Metrics:          rt.metrics,
	})
	rt.closers = append(rt.closers, func() error { rt.monitor.Stop(); return nil })

	writer := &appsync.RemoteWriter{
		Store:           rt.remote,
		ReadStatusColl:  cfg.Collections.ReadStatus,
		UsersCollection: cfg.Collections.Users,
	}
	rt.queue = appsync.New(rt.cache, writer, rt.monitor, appsync.Config{
		MaxAttempts: cfg.Sync.MaxAttempts,
		Metrics:     rt.metrics,
	})

	backend, tone := soundBackend(cfg.Sound, so)
	rt.engine = sound.NewEngine(rt.cache, sound.Config{
		Backend:            backend,
		Tone:               tone,
		Toaster:            so.toaster,
		DeviceMuteOverride: priorities(cfg.Sound.DeviceMuteOverride),
		Metrics:            rt.metrics,
	})

	rt.reconciler = reconciler.New(rt.cache, rt.engine, reconciler.Config{
		GraceWindow: cfg.GraceWindow(),
		PersistRate: cfg.Alerts.SeenPersistRate,
		SeenCap:     cfg.Alerts.SeenCap,
		Metrics:     rt.metrics,
	})

	rt.session = identity.NewSession(identity.Config{
		Verifier:        verifier,
		Tokens:          tokens,
		Profiles:        rt.remote,
		UsersCollection: cfg.Collections.Users,
	})

	rt.feed = feed.New(feed.Deps{
		Remote:     rt.remote,
		Cache:      rt.cache,
		Session:    rt.session,
		Monitor:    rt.monitor,
		Queue:      rt.queue,
		Writer:     writer,
		Engine:     rt.engine,
		Reconciler: rt.reconciler,
	}, cfg.Collections)

	return rt, nil
}

// signIn restores the stored session, or uses the demo identity.
func (rt *runtime) signIn(ctx context.Context) (*model.User, error) {
	if rt.cfg.Demo {
		return rt.session.UseLocalUser(ctx, demoUser), nil
	}
	return rt.session.Restore(ctx)
}

// serveDiag starts the metrics listener when configured.
func (rt *runtime) serveDiag(ctx context.Context) {
	addr := rt.cfg.Diag.ListenAddr
	if addr == "" {
		return
	}
	go diag.Serve(ctx, addr, rt.metrics, func() diag.HealthStatus {
		st := rt.feed.Status()
		return diag.HealthStatus{
			Connected: st.Connected,
			Syncing:   st.Syncing,
			Pending:   st.Pending,
			Failed:    st.Failed,
		}
	})
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
	rt.closers = nil
}

func soundBackend(cfg model.SoundConfig, so soundOptions) (sound.Backend, sound.ToneSynth) {
	gate := sound.NewGate(so.requireInteraction)
	out := so.bellOut
	if out == nil {
		out = io.Discard
	}
	bell := &sound.BellBackend{Out: out, Gate: gate}

	if cfg.PlayerCommand == "" {
		return bell, sound.BellTone{Bell: bell}
	}

	files := make(map[model.Priority]string, len(cfg.Files))
	for name, file := range cfg.Files {
		files[model.ParsePriority(name)] = file
	}
	return &sound.ExecBackend{
		Command: cfg.PlayerCommand,
		Args:    cfg.PlayerArgs,
		Files:   files,
		Gate:    gate,
	}, sound.BellTone{Bell: bell}
}

func priorities(names []string) []model.Priority {
	if names == nil {
		return nil
	}
	out := make([]model.Priority, 0, len(names))
	for _, n := range names {
		out = append(out, model.ParsePriority(n))
	}
	return out
}
