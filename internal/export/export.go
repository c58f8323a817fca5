// Package export writes trust reports in the formats downstream tooling
// consumes: a flat CSV schema for BI import, JSON, and styled terminal
// tables.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/leapstack-labs/leaptrust/internal/store"
	"github.com/leapstack-labs/leaptrust/pkg/trust"
)

// tableauHeader is the stable export schema. External tooling joins on
// Dataset and Field_Name; do not reorder or rename without a migration
// plan for consumers.
var tableauHeader = []string{
	"Dataset", "Field_Name", "Trust_Score", "Grade", "Color",
	"Completeness", "Validity", "Anomaly_Free", "Freshness",
	"Sample_Size", "Last_Validated", "Warnings", "Reasons",
}

// WriteTableauCSV writes one row per field score in the BI-facing schema.
func WriteTableauCSV(w io.Writer, rep *trust.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tableauHeader); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, snap := range store.SnapshotsFromReport(rep) {
		if err := cw.Write(snapshotRecord(snap)); err != nil {
			return fmt.Errorf("write export row for %s: %w", snap.FieldName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSnapshotCSV writes already-persisted snapshots in the same schema.
func WriteSnapshotCSV(w io.Writer, snaps []store.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tableauHeader); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, snap := range snaps {
		if err := cw.Write(snapshotRecord(snap)); err != nil {
			return fmt.Errorf("write export row for %s: %w", snap.FieldName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func snapshotRecord(snap store.Snapshot) []string {
	return []string{
		snap.DatasetName,
		snap.FieldName,
		formatScore(snap.TrustScore),
		snap.Grade,
		snap.Color,
		formatScore(snap.Completeness),
		formatScore(snap.Validity),
		formatScore(snap.AnomalyFree),
		formatScore(snap.Freshness),
		strconv.Itoa(snap.SampleSize),
		snap.GeneratedAt.UTC().Format(time.RFC3339),
		snap.Warnings,
		snap.Reasons,
	}
}

// formatScore renders a 0-100 score with one decimal, the precision the
// export contract promises.
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// WriteJSON writes the full report as indented JSON.
func WriteJSON(w io.Writer, rep *trust.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
