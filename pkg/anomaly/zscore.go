package anomaly

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/leapstack-labs/leaptrust/pkg/dataset"
)

// ZScoreDetector flags values whose absolute z-score exceeds Threshold.
// Standard deviation is the sample form (divisor n-1).
type ZScoreDetector struct {
	Threshold float64
	logger    *slog.Logger
}

func (d *ZScoreDetector) Method() Method { return MethodZScore }

func (d *ZScoreDetector) Detect(ds *dataset.Dataset) (*Report, error) {
	rep := newReport(MethodZScore, ds.Rows())
	for _, c := range numericColumns(ds) {
		vals, idx := c.Floats()
		if len(vals) < 2 {
			rep.Warnings = append(rep.Warnings,
				fmt.Sprintf("column %q skipped: %d non-null values, need at least 2 for standard deviation", c.Name, len(vals)))
			continue
		}
		mean, sd := meanStdDev(vals)
		rep.ColumnStats[c.Name] = ColumnStats{Mean: mean, StdDev: sd}
		if sd == 0 {
			// Constant column, every z-score undefined. No anomalies.
			rep.Warnings = append(rep.Warnings,
				fmt.Sprintf("column %q has zero variance, z-scores undefined", c.Name))
			d.log().Debug("zscore column degenerate", "column", c.Name)
			continue
		}
		var flagged []int
		for i, v := range vals {
			if math.Abs((v-mean)/sd) > d.Threshold {
				flagged = append(flagged, idx[i])
			}
		}
		rep.flag(c.Name, flagged)
	}
	rep.finish()
	return rep, nil
}

func (d *ZScoreDetector) log() *slog.Logger {
	if d.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.logger
}

// meanStdDev returns the mean and sample standard deviation.
func meanStdDev(vals []float64) (mean, sd float64) {
	n := float64(len(vals))
	for _, v := range vals {
		mean += v
	}
	mean /= n
	if len(vals) < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}
