package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/livepen/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize livepen configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the AI provider, server port, preview mode and data directory, and writes a .livepen.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
