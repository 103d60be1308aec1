// Package cli implements the ferroclaw command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/ferroclaw/ferroclaw/internal/config"
)

const version = "0.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ferroclaw",
	Short: "Ferroclaw - long-lived multi-session AI reasoning engine",
	Long: `Ferroclaw runs tool-using AI agents over a fallback chain of model
providers. Sessions are persistent, skills extend agent behavior through
markdown files, and every run is observable through a live event stream.`,
	Version: version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.ferroclaw/ferroclaw.json)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

func loadConfig() (*config.Config, error) {
	return config.NewLoader(cfgFile).Load()
}

// GetRootCmd returns the root command for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}
