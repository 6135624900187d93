package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/sound"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print new messages and play alerts without the UI",
	Long: "Stream the feed to stdout. The first snapshot is printed as a\n" +
		"backlog; afterwards each new message is printed and alerted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		rt, err := build(ctx, cfg, soundOptions{
			bellOut: os.Stdout,
			toaster: sound.ToasterFunc(func(p model.Priority, text string) {
				fmt.Fprintf(out, "! [%s] %s\n", p, text)
			}),
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

		rt.monitor.OnConnected(func(context.Context) {
			fmt.Fprintln(out, "-- connected")
		})
		if !rt.feed.Start(ctx) {
			fmt.Fprintln(out, "-- offline, showing cached state")
		}

		printed := make(map[string]bool)
		unsubscribe, err := rt.feed.SubscribeToMessages(ctx, func(items []model.FeedItem) {
			// Oldest first so the newest line ends up at the bottom.
			for i := len(items) - 1; i >= 0; i-- {
				it := items[i]
				if printed[it.ID] || it.Dismissed {
					continue
				}
				printed[it.ID] = true
				fmt.Fprintln(out, formatItem(it))
			}
		})
		if err != nil {
			return err
		}
		defer unsubscribe()

		unsubRace, err := rt.feed.SubscribeToRaceStatus(ctx, cfg.EventEditionID, func(rs *model.RaceStatus) {
			if rs != nil {
				fmt.Fprintf(out, "-- race status: %s %s\n", rs.Status, rs.Title)
			}
		})
		if err != nil {
			return err
		}
		defer unsubRace()

		<-ctx.Done()
		return nil
	},
}

func formatItem(it model.FeedItem) string {
	read := " "
	if !it.Read {
		read = "*"
	}
	line := fmt.Sprintf("%s %s [%-12s] %s", read, it.CreatedAt.Local().Format("Jan _2 15:04"), it.Priority, it.Title)
	if it.Content != "" {
		line += "\n    " + it.Content
	}
	return line
}
