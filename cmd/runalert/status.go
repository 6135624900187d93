package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, queued changes, and sound settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		rt, err := build(ctx, cfg, soundOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()

		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "Account:")
		user, err := rt.signIn(ctx)
		switch {
		case err != nil:
			fmt.Fprintf(out, "  error: %v\n", err)
		case user == nil:
			fmt.Fprintln(out, "  not signed in")
		default:
			fmt.Fprintf(out, "  %s (%s)\n", valueOrDefault(user.Email, user.UID), user.UID)
			fmt.Fprintf(out, "  dismissed messages: %d\n", len(user.DismissedMessageIDs))
		}

		rt.monitor.Check(ctx)
		st := rt.feed.Status()
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sync:")
		fmt.Fprintf(out, "  mode:      %s\n", mode(cfg.Demo))
		fmt.Fprintf(out, "  remote:    %s\n", st.State)
		fmt.Fprintf(out, "  pending:   %d\n", st.Pending)
		fmt.Fprintf(out, "  failed:    %d\n", st.Failed)
		if !st.LastSync.IsZero() {
			fmt.Fprintf(out, "  last sync: %s\n", st.LastSync.Local().Format("2006-01-02 15:04:05"))
		}
		for _, op := range rt.queue.Failed() {
			fmt.Fprintf(out, "    %s %s (%d attempts)\n", op.Kind, op.MessageID, op.Attempts)
		}

		d := rt.engine.Diagnostics()
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sound:")
		fmt.Fprintf(out, "  muted:                   %t\n", d.Muted)
		fmt.Fprintf(out, "  important bypasses mute: %t\n", d.AlwaysPlayImportant)
		fmt.Fprintf(out, "  pending sounds:          %d\n", d.Pending)
		fmt.Fprintf(out, "  player:                  %s\n", valueOrDefault(cfg.Sound.PlayerCommand, "terminal bell"))
		return nil
	},
}

func mode(demo bool) string {
	if demo {
		return "demo"
	}
	return "hosted"
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
