package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/livepen/internal/session"
	"github.com/ziadkadry99/livepen/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Preview html/css/js files from a directory as they change",
	Long: `Loads the first file matching each of the watch.html, watch.css and
watch.js patterns into a new session, serves its preview and re-renders
whenever one of the files is written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		app, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer app.close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := app.sessions.Create(ctx, session.CreateRequest{})
		if err != nil {
			return err
		}
		w, err := watch.New(args[0], cfg.Watch, s.Store, app.log)
		if err != nil {
			return err
		}
		for lang, path := range w.Bindings() {
			fmt.Fprintf(os.Stderr, "  %-4s %s\n", lang, path)
		}

		go func() {
			if err := w.Run(ctx); err != nil {
				app.log.Error("watcher stopped", zap.Error(err))
			}
		}()

		fmt.Fprintf(os.Stderr, "Preview: http://localhost:%d/preview/%s\n", cfg.Server.Port, s.ID)
		return app.run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
