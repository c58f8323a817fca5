package export

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/leaptrust/internal/store"
	"github.com/leapstack-labs/leaptrust/pkg/trust"
)

var (
	greenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10a37f"))
	yellowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f39c12"))
	orangeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e67e22"))
	redStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#e74c3c"))
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

func styleFor(score float64) lipgloss.Style {
	switch {
	case score >= 90:
		return greenStyle
	case score >= 75:
		return yellowStyle
	case score >= 60:
		return orangeStyle
	default:
		return redStyle
	}
}

// RenderReport prints the report as a styled terminal table with a
// summary line.
func RenderReport(w io.Writer, rep *trust.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Trust", "Grade", "Complete", "Valid", "Anomaly-Free", "Fresh", "Warnings"})
	for _, fs := range rep.FieldScores {
		style := styleFor(fs.TrustScore)
		t.AppendRow(table.Row{
			fs.FieldName,
			style.Render(formatScore(fs.TrustScore)),
			style.Render(fs.Grade()),
			formatScore(fs.Completeness),
			formatScore(fs.Validity),
			formatScore(fs.AnomalyFree),
			formatScore(fs.Freshness),
			len(fs.Warnings),
		})
	}
	t.Render()

	overall := styleFor(rep.Overall).Render(fmt.Sprintf("%s (%s)", formatScore(rep.Overall), trust.GradeFor(rep.Overall)))
	fmt.Fprintf(w, "%s %s  fields: %d high / %d medium / %d low\n",
		boldStyle.Render("Overall trust:"), overall,
		rep.Metadata.HighTrustFields, rep.Metadata.MediumTrustFields, rep.Metadata.LowTrustFields)
}

// RenderSnapshots prints persisted snapshots as a terminal table.
func RenderSnapshots(w io.Writer, snaps []store.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Dataset", "Field", "Trust", "Grade", "Generated At"})
	for _, snap := range snaps {
		t.AppendRow(table.Row{
			snap.DatasetName,
			snap.FieldName,
			styleFor(snap.TrustScore).Render(formatScore(snap.TrustScore)),
			snap.Grade,
			snap.GeneratedAt.Format("2006-01-02 15:04:05"),
		})
	}
	t.Render()
}
