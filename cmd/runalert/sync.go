package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var retryFailed bool

func init() {
	syncCmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "move failed changes back into the queue first")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Send queued read and dismiss changes now",
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
		if retryFailed {
			n, err := rt.queue.RetryFailed()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "requeued %d failed change(s)\n", n)
		}

		res := rt.feed.Sync(ctx)
		if res.Skipped != "" {
			fmt.Fprintf(out, "nothing sent: %s\n", res.Skipped)
		} else {
			fmt.Fprintf(out, "sent %d, requeued %d, failed %d\n", res.Applied, res.Requeued, res.Dropped)
		}

		st := rt.feed.Status()
		if st.Pending > 0 || st.Failed > 0 {
			return fmt.Errorf("%d change(s) still pending, %d failed", st.Pending, st.Failed)
		}
		return nil
	},
}
