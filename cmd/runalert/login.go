package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var idToken string

func init() {
	loginCmd.Flags().StringVar(&idToken, "token", "", "Firebase ID token (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a Firebase ID token",
	Long: "Verify an ID token issued for the RunAlert project and remember it\n" +
		"in the system keyring.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Demo {
			fmt.Fprintln(cmd.OutOrStdout(), "demo mode uses a built-in account; nothing to do")
			return nil
		}

		token := strings.TrimSpace(idToken)
		if token == "" {
			err := huh.NewInput().
				Title("ID token").
				EchoMode(huh.EchoModePassword).
				Value(&token).
				Run()
			if err != nil {
				return err
			}
			token = strings.TrimSpace(token)
		}
		if token == "" {
			return fmt.Errorf("no token given")
		}

		ctx := cmd.Context()
		rt, err := build(ctx, cfg, soundOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()

		user, err := rt.session.SignIn(ctx, token)
		if err != nil {
			return fmt.Errorf("signing in: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", valueOrDefault(user.Email, user.UID))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rt, err := build(cmd.Context(), cfg, soundOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.session.SignOut(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "signed out")
		return nil
	},
}
