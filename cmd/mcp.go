package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/livepen/internal/mcp"
	"github.com/ziadkadry99/livepen/internal/pens"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing document composition, code-block extraction, headless rendering, templates and saved pens as tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		mcpserver.Version = Version
		fmt.Fprintf(os.Stderr, "livepen MCP server started on stdio (db=%s)\n", cfg.DatabasePath())

		srv := mcpserver.NewServer(mcpserver.Options{
			Pens:            pens.NewStore(database),
			HeadlessTimeout: cfg.Preview.HeadlessTimeout,
			Logger:          log,
		})
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
