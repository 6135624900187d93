package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/sound"
)

func init() {
	soundCmd.AddCommand(soundTestCmd)
	rootCmd.AddCommand(soundCmd)
	rootCmd.AddCommand(muteCmd)
	rootCmd.AddCommand(importantCmd)
}

var soundCmd = &cobra.Command{
	Use:   "sound",
	Short: "Sound diagnostics",
}

var soundTestCmd = &cobra.Command{
	Use:       "test [priority...]",
	Short:     "Play the alert for each priority (default: all)",
	ValidArgs: []string{"critical", "announcement", "warning", "normal", "info"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		rt, err := build(cmd.Context(), cfg, soundOptions{
			bellOut: os.Stdout,
			toaster: sound.ToasterFunc(func(p model.Priority, text string) {
				fmt.Fprintf(out, "  toast: %s\n", text)
			}),
		})
		if err != nil {
			return err
		}
		defer rt.Close()

		ps := model.Priorities
		if len(args) > 0 {
			ps = priorities(args)
		}
		for _, p := range ps {
			fmt.Fprintf(out, "%-12s volume %.1f  %s\n", p, sound.Volume(p), rt.engine.PlaySound(cmd.Context(), p))
		}

		d := rt.engine.Diagnostics()
		if d.LastError != "" {
			fmt.Fprintf(out, "last error: %s\n", d.LastError)
		}
		return nil
	},
}

var muteCmd = &cobra.Command{
	Use:       "mute [on|off]",
	Short:     "Show or change the global mute",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPreference(cmd, args, "muted",
			func(rt *runtime) bool { return rt.engine.Preference().Muted },
			func(rt *runtime, v bool) { rt.engine.SetMuted(v) },
		)
	},
}

var importantCmd = &cobra.Command{
	Use:       "important [on|off]",
	Short:     "Show or change whether critical and warning alerts bypass mute",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPreference(cmd, args, "important alerts bypass mute",
			func(rt *runtime) bool { return rt.engine.Preference().AlwaysPlayImportant },
			func(rt *runtime, v bool) { rt.engine.SetAlwaysPlayImportant(v) },
		)
	},
}

func setPreference(cmd *cobra.Command, args []string, label string, get func(*runtime) bool, set func(*runtime, bool)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := build(cmd.Context(), cfg, soundOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if len(args) == 1 {
		switch strings.ToLower(args[0]) {
		case "on", "true", "yes":
			set(rt, true)
		case "off", "false", "no":
			set(rt, false)
		default:
			return fmt.Errorf("expected on or off, got %q", args[0])
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", label, onOff(get(rt)))
	return nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
