package export

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptrust/pkg/trust"
)

func sampleReport() *trust.Report {
	return &trust.Report{
		DatasetName: "users",
		Overall:     94.0,
		GeneratedAt: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		FieldScores: []trust.FieldScore{
			{
				FieldName:    "email",
				TrustScore:   94.0,
				Completeness: 80.0,
				Validity:     100.0,
				AnomalyFree:  100.0,
				Freshness:    100.0,
				SampleSize:   100,
				Warnings:     []string{"Low completeness (80.0%)"},
				Reasons:      []string{"Data is fresh"},
			},
		},
	}
}

func TestTableauCSVSchema(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteTableauCSV(&sb, sampleReport()))

	records, err := csv.NewReader(strings.NewReader(sb.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []string{
		"Dataset", "Field_Name", "Trust_Score", "Grade", "Color",
		"Completeness", "Validity", "Anomaly_Free", "Freshness",
		"Sample_Size", "Last_Validated", "Warnings", "Reasons",
	}, records[0])

	row := records[1]
	assert.Equal(t, "users", row[0])
	assert.Equal(t, "email", row[1])
	assert.Equal(t, "94.0", row[2])
	assert.Equal(t, "A", row[3])
	assert.Equal(t, "#10a37f", row[4])
	assert.Equal(t, "80.0", row[5])
	assert.Equal(t, "100", row[9])
	assert.Equal(t, "2026-08-20T12:00:00Z", row[10])
	assert.Equal(t, "Low completeness (80.0%)", row[11])
}

func TestScoresKeepOneDecimal(t *testing.T) {
	assert.Equal(t, "100.0", formatScore(100))
	assert.Equal(t, "83.3", formatScore(83.3))
	assert.Equal(t, "0.0", formatScore(0))
}

func TestRenderReportIncludesFieldsAndSummary(t *testing.T) {
	var sb strings.Builder
	RenderReport(&sb, sampleReport())
	out := sb.String()
	assert.Contains(t, out, "email")
	assert.Contains(t, out, "94.0")
	assert.Contains(t, out, "Overall trust:")
}

func TestWriteJSONRoundTrips(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteJSON(&sb, sampleReport()))
	assert.Contains(t, sb.String(), `"dataset_name": "users"`)
	assert.Contains(t, sb.String(), `"trust_score": 94`)
}
