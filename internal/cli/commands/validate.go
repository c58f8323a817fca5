package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptrust/pkg/dataset"
	"github.com/leapstack-labs/leaptrust/pkg/validate"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file.csv>",
		Short: "Check a dataset against schema rules",
		Long: `Validates required columns, type consistency, null ratios, uniqueness,
value ranges, and duplicate rows. Rule lists come from the --rules YAML
file. Findings are reported; the command fails only when a check fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)

			ds, err := dataset.ReadCSVFile(args[0])
			if err != nil {
				return err
			}

			opts := validate.Options{
				NullThresholdPct:       cfg.Validation.NullThresholdPct,
				UniquenessThresholdPct: cfg.Validation.UniquenessThresholdPct,
				MixedTypeTolerancePct:  cfg.Validation.MixedTypeTolerancePct,
			}
			if cfg.Validation.RulesFile != "" {
				opts, err = validate.LoadRules(cfg.Validation.RulesFile, opts)
				if err != nil {
					return err
				}
			}

			res, err := validate.New(opts, loggerFrom(ctx)).Validate(ds)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Severity", "Field", "Check", "Message"})
			for _, f := range res.Errors {
				t.AppendRow(table.Row{f.Severity, f.Field, f.Check, f.Message})
			}
			for _, f := range res.Warnings {
				t.AppendRow(table.Row{f.Severity, f.Field, f.Check, f.Message})
			}
			if len(res.Errors)+len(res.Warnings) > 0 {
				t.Render()
			}

			fmt.Fprintf(out, "Checks: %d passed, %d failed (%.1f%% pass rate, %d issue(s))\n",
				res.PassedChecks, res.FailedChecks, res.PassRate(), res.TotalIssues())
			for _, rec := range res.Recommendations() {
				fmt.Fprintf(out, "  - %s\n", rec)
			}
			if !res.Passed {
				return fmt.Errorf("validation failed with %d error(s)", len(res.Errors))
			}
			fmt.Fprintln(out, "Validation passed")
			return nil
		},
	}
	return cmd
}
