package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptrust/pkg/anomaly"
	"github.com/leapstack-labs/leaptrust/pkg/dataset"
)

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <file.csv>",
		Short: "Flag statistical outliers in numeric columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)

			ds, err := dataset.ReadCSVFile(args[0])
			if err != nil {
				return err
			}

			det, err := anomaly.NewDetector(anomaly.Method(cfg.Anomaly.Method), anomaly.Config{
				IQRMultiplier:   cfg.Anomaly.IQRMultiplier,
				ZScoreThreshold: cfg.Anomaly.ZScoreThreshold,
				Contamination:   cfg.Anomaly.Contamination,
				TreeCount:       cfg.Anomaly.TreeCount,
				Seed:            cfg.Anomaly.Seed,
				VotePolicy:      anomaly.VotePolicy(cfg.Anomaly.VotePolicy),
			}, loggerFrom(ctx))
			if err != nil {
				return err
			}

			rep, err := det.Detect(ds)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(rep.ByColumn) > 0 {
				t := table.NewWriter()
				t.SetOutputMirror(out)
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"Column", "Anomalies", "Row Indices"})
				for _, col := range ds.ColumnNames() {
					if n := rep.ByColumn[col]; n > 0 {
						t.AppendRow(table.Row{col, n, fmt.Sprint(rep.Indices(col))})
					}
				}
				t.Render()
			}
			for _, w := range rep.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			fmt.Fprintf(out, "Method: %s  anomalous values: %d  anomalous rows: %d (%.1f%% of %d)\n",
				rep.Method, rep.TotalAnomalies, rep.AnomalousRows, rep.AnomalyPercentage, rep.TotalRows)
			return nil
		},
	}
	return cmd
}
