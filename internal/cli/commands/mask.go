package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptrust/pkg/dataset"
	"github.com/leapstack-labs/leaptrust/pkg/privacy"
)

// NewMaskCommand creates the mask command.
func NewMaskCommand() *cobra.Command {
	var (
		strategy string
		outPath  string
		keep     []string
		maxRows  int
	)

	cmd := &cobra.Command{
		Use:   "mask <file.csv>",
		Short: "Detect and mask personally identifiable information",
		Long: `Scans column names and values for PII (emails, phone numbers, national
IDs, card numbers, IP addresses) and masks the detected columns before
the data leaves for an external consumer. With --keep, all columns not
listed are dropped instead (data minimization).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataset.ReadCSVFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(keep) > 0 {
				minimized := privacy.Minimize(ds, keep, maxRows)
				fmt.Fprintf(out, "Kept %d of %d columns\n", len(minimized.Columns), len(ds.Columns))
				if outPath != "" {
					return minimized.WriteCSVFile(outPath)
				}
				return minimized.WriteCSV(out)
			}

			masker := privacy.NewMasker(loggerFrom(cmd.Context()))
			detections := masker.Detect(ds)
			for _, d := range detections {
				how := "values"
				if d.ByName {
					how = "name"
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "detected %s in column %q (by %s, confidence %.2f)\n",
					d.Kind, d.Column, how, d.Confidence)
			}
			if len(detections) == 0 {
				fmt.Fprintln(out, "No PII detected")
				return nil
			}

			masked, err := masker.Mask(ds, detections, privacy.Strategy(strategy))
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := masked.WriteCSVFile(outPath); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote masked dataset to %s\n", outPath)
				return nil
			}
			return masked.WriteCSV(out)
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "partial", "masking strategy (partial|full|hash|remove)")
	cmd.Flags().StringVar(&outPath, "out", "", "write the masked dataset to this CSV file")
	cmd.Flags().StringSliceVar(&keep, "keep", nil, "keep only these columns, dropping everything else")
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "with --keep, truncate the output to this many rows (0 = all)")
	return cmd
}
