package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/runalert/internal/app"
)

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Log to a file so output does not corrupt the screen.
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	logFile, err := tea.LogToFile(cfg.LogPath, "runalert")
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	notifier := app.NewNotifier()
	rt, err := build(ctx, cfg, soundOptions{
		bellOut:            os.Stderr,
		requireInteraction: cfg.Sound.RequireInteraction,
		toaster:            notifier,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	user, err := rt.signIn(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("not signed in; run 'runalert login' or use --demo")
	}

	rt.serveDiag(ctx)

	m := app.New(ctx, app.Deps{
		Feed:      rt.feed,
		Engine:    rt.engine,
		Queue:     rt.queue,
		Cache:     rt.cache,
		Notifier:  notifier,
		EditionID: cfg.EventEditionID,
	})
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}
