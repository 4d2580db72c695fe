package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/livepen/internal/pens"
	"github.com/ziadkadry99/livepen/internal/progress"
)

var (
	exportDir  string
	exportUser string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved pens as standalone HTML files",
	Long:  `Writes every saved pen (or only one user's pens) as a standalone HTML document into the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx := context.Background()
		store := pens.NewStore(database)
		var list []pens.Pen
		if exportUser != "" {
			list, err = store.ListByUser(ctx, exportUser)
		} else {
			list, err = store.All(ctx)
		}
		if err != nil {
			return fmt.Errorf("listing pens: %w", err)
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No pens to export.")
			return nil
		}

		if err := os.MkdirAll(exportDir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", exportDir, err)
		}

		reporter := progress.NewReporter("Exporting pens")
		reporter.Start(len(list))
		for i, pen := range list {
			name := exportFilename(pen)
			path := filepath.Join(exportDir, name)
			if err := os.WriteFile(path, []byte(pen.Source().Standalone()), 0644); err != nil {
				reporter.Finish()
				return fmt.Errorf("writing %s: %w", path, err)
			}
			reporter.Update(i+1, name)
		}
		reporter.Finish()

		fmt.Fprintf(os.Stderr, "Exported %d pens to %s\n", len(list), exportDir)
		return nil
	},
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// exportFilename is the slugged title plus the id prefix, unique per pen.
func exportFilename(p pens.Pen) string {
	slug := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(p.Title), "-"), "-")
	if slug == "" {
		slug = "pen"
	}
	id := p.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return slug + "-" + id + ".html"
}

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "export", "output directory")
	exportCmd.Flags().StringVar(&exportUser, "user", "", "only export pens owned by this user id")
	rootCmd.AddCommand(exportCmd)
}
