package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/livepen/internal/buffer"
	"github.com/ziadkadry99/livepen/internal/compose"
	"github.com/ziadkadry99/livepen/internal/config"
	"github.com/ziadkadry99/livepen/internal/host/headless"
	"github.com/ziadkadry99/livepen/internal/preview"
	"github.com/ziadkadry99/livepen/internal/surface"
	"github.com/ziadkadry99/livepen/internal/watch"
)

var (
	renderOut  string
	renderJSON bool
)

var renderCmd = &cobra.Command{
	Use:   "render <dir | files...>",
	Short: "Compose html/css/js files and run the result headlessly",
	Long: `Composes the given files (or the first html, css and js file found in a
directory) into a preview document, runs its scripts in an in-process
JavaScript runtime and prints the console output and script errors.
With --out the standalone export document is written to a file instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}

		src, err := loadSource(cfg, args)
		if err != nil {
			return err
		}

		var host *headless.Context
		factory := func(mode surface.Mode) (surface.ExecutionContext, error) {
			host = headless.New(headless.WithTimeout(cfg.Preview.HeadlessTimeout), headless.WithLogger(log))
			return host, nil
		}
		ctrl, err := preview.New(buffer.NewStore(src), factory, preview.Options{Logger: log})
		if err != nil {
			return err
		}
		defer ctrl.Close()

		if renderOut != "" {
			if err := os.WriteFile(renderOut, []byte(ctrl.Export()), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", renderOut, err)
			}
			fmt.Fprintf(os.Stderr, "Wrote %s\n", renderOut)
			return nil
		}

		host.Wait()
		report, ok := host.Latest()
		if !ok {
			return fmt.Errorf("document did not finish rendering")
		}
		if renderJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printReport(cmd, report)
		return nil
	},
}

func printReport(cmd *cobra.Command, r headless.Report) {
	out := cmd.OutOrStdout()
	if r.Title != "" {
		fmt.Fprintf(out, "Title: %s\n", r.Title)
	}
	if r.Text != "" {
		fmt.Fprintf(out, "Text:  %s\n", r.Text)
	}
	for _, e := range r.Console {
		fmt.Fprintf(out, "[%s] %s\n", e.Level, e.Message)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(out, "error: %s\n", e)
	}
	fmt.Fprintf(out, "Rendered in %s\n", r.Duration)
}

// loadSource binds a directory via the watch patterns, or classifies each
// given file by the pattern it matches.
func loadSource(cfg *config.Config, args []string) (compose.Source, error) {
	if len(args) == 1 {
		if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
			bindings, err := watch.Scan(args[0], cfg.Watch)
			if err != nil {
				return compose.Source{}, err
			}
			return watch.Load(bindings)
		}
	}

	bindings := watch.Bindings{}
	for _, path := range args {
		lang, ok := languageOf(cfg.Watch, path)
		if !ok {
			return compose.Source{}, fmt.Errorf("%s: not an html, css or js file", path)
		}
		if prev, dup := bindings[lang]; dup {
			return compose.Source{}, fmt.Errorf("%s and %s both map to the %s buffer", prev, path, lang)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return compose.Source{}, err
		}
		bindings[lang] = abs
	}
	return watch.Load(bindings)
}

func languageOf(p watch.Patterns, path string) (buffer.Language, bool) {
	path = strings.TrimPrefix(filepath.ToSlash(path), "./")
	switch {
	case watch.Matches(path, p.HTML):
		return buffer.HTML, true
	case watch.Matches(path, p.CSS):
		return buffer.CSS, true
	case watch.Matches(path, p.JS):
		return buffer.JS, true
	}
	return "", false
}

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "write the standalone document to this file")
	renderCmd.Flags().BoolVar(&renderJSON, "json", false, "print the render report as JSON")
	rootCmd.AddCommand(renderCmd)
}
