// Package trust combines validation findings, anomaly reports, and raw
// column statistics into per-field and per-dataset trust scores on a
// 0-100 scale.
package trust

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/leapstack-labs/leaptrust/pkg/anomaly"
	"github.com/leapstack-labs/leaptrust/pkg/dataset"
	"github.com/leapstack-labs/leaptrust/pkg/validate"
)

// Weights are the sub-score weights of the composite trust score. They
// must sum to 1.0.
type Weights struct {
	Completeness float64 `koanf:"completeness"`
	Validity     float64 `koanf:"validity"`
	AnomalyFree  float64 `koanf:"anomaly_free"`
	Freshness    float64 `koanf:"freshness"`
}

// DefaultWeights returns the standard 0.30/0.30/0.25/0.15 split.
func DefaultWeights() Weights {
	return Weights{Completeness: 0.30, Validity: 0.30, AnomalyFree: 0.25, Freshness: 0.15}
}

const weightSumTolerance = 1e-9

// Validate checks that the weights are non-negative and sum to 1.0.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"completeness": w.Completeness,
		"validity":     w.Validity,
		"anomaly_free": w.AnomalyFree,
		"freshness":    w.Freshness,
	} {
		if v < 0 {
			return fmt.Errorf("trust weight %s is negative: %g", name, v)
		}
	}
	sum := w.Completeness + w.Validity + w.AnomalyFree + w.Freshness
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("trust weights must sum to 1.0, got %g", sum)
	}
	return nil
}

// FieldScore is the trust assessment of one column. Sub-scores are
// rounded to one decimal before weighting.
type FieldScore struct {
	FieldName    string   `json:"field_name"`
	TrustScore   float64  `json:"trust_score"`
	Completeness float64  `json:"completeness_score"`
	Validity     float64  `json:"validity_score"`
	AnomalyFree  float64  `json:"anomaly_free_score"`
	Freshness    float64  `json:"freshness_score"`
	SampleSize   int      `json:"sample_size"`
	Warnings     []string `json:"warnings"`
	Reasons      []string `json:"reasons"`
}

// Grade maps the trust score to a letter grade. Bands are inclusive at
// the lower bound.
func (f FieldScore) Grade() string { return GradeFor(f.TrustScore) }

// Color maps the trust score to a visualization hex color.
func (f FieldScore) Color() string { return ColorFor(f.TrustScore) }

// GradeFor returns the letter grade for a 0-100 score.
func GradeFor(score float64) string {
	switch {
	case score >= 95:
		return "A+"
	case score >= 90:
		return "A"
	case score >= 85:
		return "B+"
	case score >= 80:
		return "B"
	case score >= 75:
		return "C+"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// ColorFor returns the visualization color band for a 0-100 score.
func ColorFor(score float64) string {
	switch {
	case score >= 90:
		return "#10a37f"
	case score >= 75:
		return "#f39c12"
	case score >= 60:
		return "#e67e22"
	default:
		return "#e74c3c"
	}
}

// Metadata counts fields by trust band for a quick report summary.
type Metadata struct {
	FieldCount        int `json:"field_count"`
	HighTrustFields   int `json:"high_trust_fields"`
	MediumTrustFields int `json:"medium_trust_fields"`
	LowTrustFields    int `json:"low_trust_fields"`
}

// Report is one scoring run over a dataset. It is immutable once
// produced; every run makes a fresh report.
type Report struct {
	DatasetName string       `json:"dataset_name"`
	Overall     float64      `json:"overall_trust_score"`
	FieldScores []FieldScore `json:"field_scores"`
	GeneratedAt time.Time    `json:"generated_at"`
	Metadata    Metadata     `json:"metadata"`
}

// Options configures a Calculator.
type Options struct {
	Weights Weights
	// FreshnessThresholdDays is the age within which a dataset is fully
	// fresh. The score decays linearly to 0 at four times this value.
	FreshnessThresholdDays int
	// ExcludeFields are column names left out of the report entirely.
	ExcludeFields []string
}

// DefaultOptions returns the standard scoring policy.
func DefaultOptions() Options {
	return Options{Weights: DefaultWeights(), FreshnessThresholdDays: 7}
}

// Calculator computes trust reports. The clock is injectable so freshness
// is testable.
type Calculator struct {
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Calculator. It fails if the weights are invalid.
func New(opts Options, logger *slog.Logger) (*Calculator, error) {
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}
	if opts.FreshnessThresholdDays <= 0 {
		opts.FreshnessThresholdDays = 7
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Calculator{opts: opts, now: time.Now, logger: logger}, nil
}

// SetNow overrides the clock used for freshness. Intended for tests.
func (c *Calculator) SetNow(now func() time.Time) { c.now = now }

// Input carries the optional evidence a scoring run consumes. Nil members
// default the corresponding sub-score to 100: absence of evidence is not
// evidence of a problem.
type Input struct {
	Validation *validate.Result
	Anomalies  *anomaly.Report
	DateColumn string
}

// Calculate scores every column of the dataset.
func (c *Calculator) Calculate(ds *dataset.Dataset, in Input) (*Report, error) {
	if in.DateColumn != "" && !ds.HasColumn(in.DateColumn) {
		return nil, fmt.Errorf("date column %q not in dataset", in.DateColumn)
	}
	excluded := make(map[string]bool, len(c.opts.ExcludeFields))
	for _, f := range c.opts.ExcludeFields {
		excluded[f] = true
	}

	freshness := c.freshnessScore(ds, in.DateColumn)

	rep := &Report{
		DatasetName: ds.Name,
		GeneratedAt: c.now().UTC(),
	}
	var sum float64
	for _, col := range ds.Columns {
		if excluded[col.Name] {
			continue
		}
		fs := c.scoreField(col, in, freshness)
		rep.FieldScores = append(rep.FieldScores, fs)
		sum += fs.TrustScore
	}
	if n := len(rep.FieldScores); n > 0 {
		rep.Overall = round1(sum / float64(n))
	}
	rep.Metadata = summarize(rep.FieldScores)
	c.logger.Debug("trust report computed",
		"dataset", ds.Name,
		"overall", rep.Overall,
		"fields", len(rep.FieldScores))
	return rep, nil
}

func (c *Calculator) scoreField(col *dataset.Column, in Input, freshness float64) FieldScore {
	fs := FieldScore{FieldName: col.Name, SampleSize: len(col.Values)}

	fs.Completeness = round1(completeness(col))
	fs.Validity = round1(validity(col.Name, in.Validation))
	fs.AnomalyFree = round1(anomalyFree(col, in.Anomalies))
	fs.Freshness = round1(freshness)

	w := c.opts.Weights
	score := w.Completeness*fs.Completeness +
		w.Validity*fs.Validity +
		w.AnomalyFree*fs.AnomalyFree +
		w.Freshness*fs.Freshness
	fs.TrustScore = clamp(round1(score), 0, 100)

	fs.Warnings, fs.Reasons = annotate(fs)
	return fs
}

func completeness(col *dataset.Column) float64 {
	total := len(col.Values)
	if total == 0 {
		return 100
	}
	return float64(col.NonNullCount()) / float64(total) * 100
}

// validity starts at 100 and deducts 10 per warning and 25 per error that
// references the field. Without a validation result it stays 100.
func validity(field string, res *validate.Result) float64 {
	if res == nil {
		return 100
	}
	warnings, errors := res.FindingsFor(field)
	score := 100 - 10*float64(len(warnings)) - 25*float64(len(errors))
	if score < 0 {
		return 0
	}
	return score
}

func anomalyFree(col *dataset.Column, rep *anomaly.Report) float64 {
	if rep == nil || col.Type != dataset.TypeNumeric {
		return 100
	}
	nonNull := col.NonNullCount()
	if nonNull == 0 {
		return 100
	}
	count := rep.ByColumn[col.Name]
	score := 100 - float64(count)/float64(nonNull)*100
	if score < 0 {
		return 0
	}
	return score
}

// freshnessScore is dataset-level: 100 within the threshold, linear decay
// to 0 at four times the threshold. A date column with no parseable dates
// scores 50. No date column means freshness cannot be assessed, so 100.
func (c *Calculator) freshnessScore(ds *dataset.Dataset, dateColumn string) float64 {
	if dateColumn == "" {
		return 100
	}
	col, _ := ds.Column(dateColumn)
	times := col.Times()
	if len(times) == 0 {
		return 50
	}
	latest := times[0]
	for _, t := range times[1:] {
		if t.After(latest) {
			latest = t
		}
	}
	ageDays := c.now().Sub(latest).Hours() / 24
	threshold := float64(c.opts.FreshnessThresholdDays)
	switch {
	case ageDays <= threshold:
		return 100
	case ageDays >= 4*threshold:
		return 0
	default:
		return 100 * (1 - (ageDays-threshold)/(3*threshold))
	}
}

// annotate derives the deterministic warning and reason strings from the
// sub-scores. Warnings trigger on strict less-than; reasons on
// greater-or-equal.
func annotate(fs FieldScore) (warnings, reasons []string) {
	if fs.Completeness >= 95 {
		reasons = append(reasons, "Excellent data completeness (>=95%)")
	} else if fs.Completeness < 80 {
		warnings = append(warnings, fmt.Sprintf("Low completeness (%.1f%%)", fs.Completeness))
	}
	if fs.Validity >= 95 {
		reasons = append(reasons, "Passes schema validation checks")
	} else if fs.Validity < 80 {
		warnings = append(warnings, fmt.Sprintf("Validation issues lower validity to %.1f", fs.Validity))
	}
	if fs.AnomalyFree >= 90 {
		reasons = append(reasons, "Few or no statistical outliers")
	} else if fs.AnomalyFree < 75 {
		warnings = append(warnings, fmt.Sprintf("High outlier rate (anomaly-free %.1f)", fs.AnomalyFree))
	}
	if fs.Freshness >= 95 {
		reasons = append(reasons, "Data is fresh")
	} else if fs.Freshness < 40 {
		warnings = append(warnings, fmt.Sprintf("Data is stale (freshness %.1f)", fs.Freshness))
	} else if fs.Freshness < 70 {
		warnings = append(warnings, fmt.Sprintf("Data is aging (freshness %.1f)", fs.Freshness))
	}
	return warnings, reasons
}

func summarize(scores []FieldScore) Metadata {
	m := Metadata{FieldCount: len(scores)}
	for _, fs := range scores {
		switch {
		case fs.TrustScore >= 90:
			m.HighTrustFields++
		case fs.TrustScore >= 75:
			m.MediumTrustFields++
		default:
			m.LowTrustFields++
		}
	}
	return m
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
