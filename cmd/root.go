package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "livepen",
	Short: "Live-preview playground for HTML, CSS and JavaScript",
	Long: `LivePen recomposes your HTML, CSS and JavaScript into a sandboxed preview
document on every edit. It serves a browser-hosted preview with simulated
device frames, saves pens to a local database, renders documents headlessly
and asks an AI collaborator to write or modify code.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".livepen.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
