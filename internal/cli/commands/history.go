package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptrust/internal/export"
	"github.com/leapstack-labs/leaptrust/internal/store"
)

// NewLatestCommand creates the latest command.
func NewLatestCommand() *cobra.Command {
	var (
		field      string
		exportPath string
	)

	cmd := &cobra.Command{
		Use:   "latest <dataset>",
		Short: "Show the most recent trust snapshot for a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := store.Open(ctx, configFrom(ctx).Store)
			if err != nil {
				return err
			}
			defer st.Close()

			snaps, err := st.QueryLatest(ctx, args[0], field)
			if err != nil {
				return err
			}

			if exportPath != "" {
				f, err := os.Create(exportPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer f.Close()
				if err := export.WriteSnapshotCSV(f, snaps); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d row(s) to %s\n", len(snaps), exportPath)
				return nil
			}

			export.RenderSnapshots(cmd.OutOrStdout(), snaps)
			return nil
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "filter to one field")
	cmd.Flags().StringVar(&exportPath, "export", "", "write the snapshot as BI-facing CSV to this path")
	return cmd
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var (
		field string
		days  int
	)

	cmd := &cobra.Command{
		Use:   "history <dataset>",
		Short: "Show trust snapshots within a time window, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := store.Open(ctx, configFrom(ctx).Store)
			if err != nil {
				return err
			}
			defer st.Close()

			snaps, err := st.QueryHistory(ctx, args[0], field, days)
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No snapshots for %q in the last %d days\n", args[0], days)
				return nil
			}
			export.RenderSnapshots(cmd.OutOrStdout(), snaps)
			return nil
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "filter to one field")
	cmd.Flags().IntVar(&days, "days", 30, "window size in days")
	return cmd
}

// NewPruneCommand creates the prune command.
func NewPruneCommand() *cobra.Command {
	var olderThan int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete snapshots older than the retention window",
		Long: `Deletes expired snapshots. Pruning only ever happens through this
explicit command; saving and querying never delete anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)
			if olderThan == 0 {
				olderThan = cfg.Store.RetentionDays
			}

			st, err := store.Open(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.Prune(ctx, olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d snapshot row(s) older than %d days\n", n, olderThan)
			return nil
		},
	}

	cmd.Flags().IntVar(&olderThan, "older-than", 0, "age threshold in days (default: store.retention_days)")
	return cmd
}
