// Package anomaly flags statistical outliers in numeric columns. Detectors
// share one interface; the ensemble composes them with a voting policy.
package anomaly

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/leapstack-labs/leaptrust/pkg/dataset"
)

// Method identifies a detection algorithm.
type Method string

const (
	MethodIQR             Method = "iqr"
	MethodZScore          Method = "zscore"
	MethodIsolationForest Method = "isolation_forest"
	MethodEnsemble        Method = "ensemble"
)

// Detector flags outlier values per numeric column.
type Detector interface {
	Method() Method
	Detect(ds *dataset.Dataset) (*Report, error)
}

// Report summarizes one detection run. TotalAnomalies counts flagged
// values (summed over columns); AnomalousRows counts distinct flagged row
// indices. AnomalyPercentage is row-based.
type Report struct {
	Method            Method                      `json:"method"`
	TotalRows         int                         `json:"total_rows"`
	TotalAnomalies    int                         `json:"total_anomalies"`
	AnomalousRows     int                         `json:"anomalous_rows"`
	AnomalyPercentage float64                     `json:"anomaly_percentage"`
	ByColumn          map[string]int              `json:"anomalies_by_column"`
	IndicesByColumn   map[string]map[int]struct{} `json:"-"`
	ColumnStats       map[string]ColumnStats      `json:"column_stats,omitempty"`
	Warnings          []string                    `json:"warnings,omitempty"`
}

// ColumnStats records the statistics a detector derived for one column.
type ColumnStats struct {
	Q1     float64 `json:"q1,omitempty"`
	Q3     float64 `json:"q3,omitempty"`
	IQR    float64 `json:"iqr,omitempty"`
	Lower  float64 `json:"lower,omitempty"`
	Upper  float64 `json:"upper,omitempty"`
	Mean   float64 `json:"mean,omitempty"`
	StdDev float64 `json:"stddev,omitempty"`
}

func newReport(method Method, rows int) *Report {
	return &Report{
		Method:          method,
		TotalRows:       rows,
		ByColumn:        map[string]int{},
		IndicesByColumn: map[string]map[int]struct{}{},
		ColumnStats:     map[string]ColumnStats{},
	}
}

// flag records anomalous row indices for a column and updates the tallies.
func (r *Report) flag(column string, indices []int) {
	if len(indices) == 0 {
		return
	}
	set := r.IndicesByColumn[column]
	if set == nil {
		set = map[int]struct{}{}
		r.IndicesByColumn[column] = set
	}
	for _, i := range indices {
		set[i] = struct{}{}
	}
	r.ByColumn[column] = len(set)
}

// finish recomputes the aggregate counts from the per-column sets.
func (r *Report) finish() {
	r.TotalAnomalies = 0
	rows := map[int]struct{}{}
	for col, set := range r.IndicesByColumn {
		r.ByColumn[col] = len(set)
		r.TotalAnomalies += len(set)
		for i := range set {
			rows[i] = struct{}{}
		}
	}
	r.AnomalousRows = len(rows)
	if r.TotalRows > 0 {
		r.AnomalyPercentage = float64(r.AnomalousRows) / float64(r.TotalRows) * 100
	}
}

// Indices returns the sorted anomalous row indices for a column.
func (r *Report) Indices(column string) []int {
	return dataset.SortedIndices(r.IndicesByColumn[column])
}

// UnknownMethodError reports a detection method that is not registered.
type UnknownMethodError struct {
	Method Method
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown anomaly detection method %q (supported: iqr, zscore, isolation_forest, ensemble)", e.Method)
}

// Config carries detector thresholds.
type Config struct {
	IQRMultiplier   float64
	ZScoreThreshold float64
	Contamination   float64
	TreeCount       int
	Seed            int64
	VotePolicy      VotePolicy
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		IQRMultiplier:   1.5,
		ZScoreThreshold: 3.0,
		Contamination:   0.05,
		TreeCount:       100,
		Seed:            42,
		VotePolicy:      VoteMajority,
	}
}

// NewDetector builds a detector for the given method. The ensemble runs
// IQR, Z-score, and isolation forest together.
func NewDetector(method Method, cfg Config, logger *slog.Logger) (Detector, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch method {
	case MethodIQR:
		return &IQRDetector{Multiplier: cfg.IQRMultiplier, logger: logger}, nil
	case MethodZScore:
		return &ZScoreDetector{Threshold: cfg.ZScoreThreshold, logger: logger}, nil
	case MethodIsolationForest:
		return &IsolationForest{
			Trees:         cfg.TreeCount,
			Contamination: cfg.Contamination,
			Seed:          cfg.Seed,
			logger:        logger,
		}, nil
	case MethodEnsemble:
		iqr, _ := NewDetector(MethodIQR, cfg, logger)
		z, _ := NewDetector(MethodZScore, cfg, logger)
		iso, _ := NewDetector(MethodIsolationForest, cfg, logger)
		return &Ensemble{
			Detectors: []Detector{iqr, z, iso},
			Policy:    cfg.VotePolicy,
			logger:    logger,
		}, nil
	default:
		return nil, &UnknownMethodError{Method: method}
	}
}

// numericColumns returns the dataset's numeric columns in order.
func numericColumns(ds *dataset.Dataset) []*dataset.Column {
	var out []*dataset.Column
	for _, c := range ds.Columns {
		if c.Type == dataset.TypeNumeric {
			out = append(out, c)
		}
	}
	return out
}

// sortedCopy returns a sorted copy of the values.
func sortedCopy(vals []float64) []float64 {
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)
	return s
}
