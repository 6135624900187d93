package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/runalert/internal/model"
)

var (
	configPath string
	forceDemo  bool
)

var rootCmd = &cobra.Command{
	Use:   "runalert",
	Short: "Real-time race notifications in the terminal",
	Long: "RunAlert shows race updates as they are published, plays an alert\n" +
		"sound for new messages, and keeps working while offline.",
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "config file")
	rootCmd.PersistentFlags().BoolVar(&forceDemo, "demo", false, "use the bundled demo feed instead of the hosted store")
}

// loadConfig reads the config file named by --config.
func loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if forceDemo {
		cfg.Demo = true
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
