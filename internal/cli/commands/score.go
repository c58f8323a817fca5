package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptrust/internal/export"
	"github.com/leapstack-labs/leaptrust/internal/pipeline"
	"github.com/leapstack-labs/leaptrust/internal/store"
	"github.com/leapstack-labs/leaptrust/pkg/dataset"
)

// NewScoreCommand creates the score command.
func NewScoreCommand() *cobra.Command {
	var (
		noSave     bool
		exportPath string
	)

	cmd := &cobra.Command{
		Use:   "score <file.csv> [file.csv...]",
		Short: "Validate, detect anomalies, and compute trust scores",
		Long: `Runs the full pipeline over each CSV file: schema validation, anomaly
detection, and trust scoring. Reports are persisted to the snapshot store
unless --no-save is given. Independent files are scored in parallel.`,
		Args: cobra.MinimumNArgs(1),
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

			datasets := make([]*dataset.Dataset, 0, len(args))
			for _, path := range args {
				ds, err := dataset.ReadCSVFile(path)
				if err != nil {
					return err
				}
				datasets = append(datasets, ds)
			}

			results, err := runner.RunAll(ctx, datasets)
			if err != nil {
				return err
			}

			for _, res := range results {
				switch cfg.Output {
				case "json":
					if err := export.WriteJSON(cmd.OutOrStdout(), res.Trust); err != nil {
						return err
					}
				case "csv":
					if err := export.WriteTableauCSV(cmd.OutOrStdout(), res.Trust); err != nil {
						return err
					}
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "\nDataset: %s\n", res.DatasetName)
					export.RenderReport(cmd.OutOrStdout(), res.Trust)
				}
			}

			if exportPath != "" {
				f, err := os.Create(exportPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer f.Close()
				var snaps []store.Snapshot
				for _, res := range results {
					snaps = append(snaps, store.SnapshotsFromReport(res.Trust)...)
				}
				if err := export.WriteSnapshotCSV(f, snaps); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d report(s) to %s\n", len(results), exportPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist reports to the snapshot store")
	cmd.Flags().StringVar(&exportPath, "export", "", "also write the BI-facing CSV export to this path")
	return cmd
}
