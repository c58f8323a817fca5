package commands

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptrust/internal/export"
	"github.com/leapstack-labs/leaptrust/internal/pipeline"
	"github.com/leapstack-labs/leaptrust/internal/store"
	"github.com/leapstack-labs/leaptrust/pkg/dataset"
)

// debounceWindow coalesces the write bursts editors and copies produce.
const debounceWindow = 500 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var noSave bool

	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Score CSV files as they appear or change in a directory",
		Long: `Watches a directory and runs the scoring pipeline on every CSV file
that is created or modified, persisting each report to the snapshot
store. Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)
			logger := loggerFrom(ctx)

			var st store.Store
			if !noSave {
				var err error
				st, err = store.Open(ctx, cfg.Store)
				if err != nil {
					return err
				}
				defer st.Close()
			}

			runner, err := pipeline.NewRunner(cfg, st, logger)
			if err != nil {
				return err
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()

			if err := watcher.Add(args[0]); err != nil {
				return fmt.Errorf("watch %s: %w", args[0], err)
			}
			logger.Info("watching for csv files", "dir", args[0])

			lastRun := map[string]time.Time{}
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
						continue
					}
					if !strings.EqualFold(filepath.Ext(event.Name), ".csv") {
						continue
					}
					if time.Since(lastRun[event.Name]) < debounceWindow {
						continue
					}
					lastRun[event.Name] = time.Now()

					ds, err := dataset.ReadCSVFile(event.Name)
					if err != nil {
						logger.Error("failed to read csv", "path", event.Name, "error", err)
						continue
					}
					res, err := runner.Run(ctx, ds)
					if err != nil {
						logger.Error("scoring failed", "dataset", ds.Name, "error", err)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "\nDataset: %s\n", res.DatasetName)
					export.RenderReport(cmd.OutOrStdout(), res.Trust)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					logger.Error("watch error", "error", err)
				}
			}
		},
	}

	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist reports to the snapshot store")
	return cmd
}
