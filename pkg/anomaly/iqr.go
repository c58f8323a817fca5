package anomaly

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leaptrust/pkg/dataset"
)

// IQRDetector flags values outside [Q1 - k*IQR, Q3 + k*IQR].
type IQRDetector struct {
	Multiplier float64
	logger     *slog.Logger
}

func (d *IQRDetector) Method() Method { return MethodIQR }

// Detect runs IQR detection over every numeric column. Columns with fewer
// than 4 non-null values are skipped with a report warning; constant
// columns (IQR of zero) have no anomalies.
func (d *IQRDetector) Detect(ds *dataset.Dataset) (*Report, error) {
	rep := newReport(MethodIQR, ds.Rows())
	for _, c := range numericColumns(ds) {
		vals, idx := c.Floats()
		if len(vals) < 4 {
			rep.Warnings = append(rep.Warnings,
				fmt.Sprintf("column %q skipped: %d non-null values, need at least 4 for quartiles", c.Name, len(vals)))
			d.log().Debug("iqr column skipped", "column", c.Name, "non_null", len(vals))
			continue
		}
		q1, q3 := Quartiles(vals)
		iqr := q3 - q1
		lower := q1 - d.Multiplier*iqr
		upper := q3 + d.Multiplier*iqr
		rep.ColumnStats[c.Name] = ColumnStats{Q1: q1, Q3: q3, IQR: iqr, Lower: lower, Upper: upper}

		var flagged []int
		for i, v := range vals {
			if v < lower || v > upper {
				flagged = append(flagged, idx[i])
			}
		}
		rep.flag(c.Name, flagged)
	}
	rep.finish()
	return rep, nil
}

func (d *IQRDetector) log() *slog.Logger {
	if d.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.logger
}

// Quartiles computes Q1 and Q3 by the median-of-halves method: the lower
// quartile is the median of the lower half and the upper quartile the
// median of the upper half, with the overall median shared by both halves
// when the count is odd. Small samples with a distant extreme keep tight
// quartiles this way, so the extreme lands outside the fences.
func Quartiles(vals []float64) (q1, q3 float64) {
	s := sortedCopy(vals)
	n := len(s)
	half := n / 2
	if n%2 == 0 {
		q1 = median(s[:half])
		q3 = median(s[half:])
	} else {
		q1 = median(s[:half+1])
		q3 = median(s[half:])
	}
	return q1, q3
}

// median of an already-sorted slice.
func median(s []float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
