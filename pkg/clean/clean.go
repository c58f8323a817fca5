// Package clean applies a fixed ordered pipeline of deterministic
// transformations to a dataset and reports every change it makes.
// Deduplication runs before imputation so duplicated rows cannot skew the
// median or mode used for filling.
package clean

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/leapstack-labs/leaptrust/pkg/anomaly"
	"github.com/leapstack-labs/leaptrust/pkg/dataset"
)

// Action is one recorded pipeline step outcome.
type Action struct {
	Step        string `json:"step"`
	Description string `json:"description"`
	Delta       int    `json:"delta"`
}

// Report summarizes what a cleaning run changed.
type Report struct {
	Actions             []Action `json:"actions"`
	OriginalRows        int      `json:"original_rows"`
	OriginalColumns     int      `json:"original_columns"`
	FinalRows           int      `json:"final_rows"`
	FinalColumns        int      `json:"final_columns"`
	RowsRemoved         int      `json:"rows_removed"`
	ColumnsRemoved      int      `json:"columns_removed"`
	DuplicatesRemoved   int      `json:"duplicates_removed"`
	TypeConversions     int      `json:"type_conversions"`
	MissingValuesFilled int      `json:"missing_values_filled"`
	RowsDroppedByCap    int      `json:"rows_dropped_by_cap"`
}

func (r *Report) record(step, desc string, delta int) {
	r.Actions = append(r.Actions, Action{Step: step, Description: desc, Delta: delta})
}

// Options configures a cleaning run.
type Options struct {
	// InferenceThresholdPct is the share of non-null values that must
	// parse as numeric (or datetime) for the column to convert.
	InferenceThresholdPct float64
	RowCap                int
	Placeholder           string
}

// DefaultOptions returns the standard cleaning policy.
func DefaultOptions() Options {
	return Options{
		InferenceThresholdPct: 80.0,
		RowCap:                1_000_000,
		Placeholder:           "unknown",
	}
}

// Cleaner runs the fixed cleaning pipeline.
type Cleaner struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Cleaner. A nil logger discards output.
func New(opts Options, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cleaner{opts: opts, logger: logger}
}

// Clean returns a cleaned copy of the dataset and a report of every
// change. The input dataset is not modified.
func (c *Cleaner) Clean(ds *dataset.Dataset) (*dataset.Dataset, *Report) {
	out := ds.Clone()
	rep := &Report{}
	rep.OriginalRows, rep.OriginalColumns = out.Shape()

	c.standardizeNames(out, rep)
	c.removeEmpty(out, rep)
	c.dedupe(out, rep)
	c.convertTypes(out, rep)
	c.impute(out, rep)
	c.trimWhitespace(out, rep)
	c.enforceRowCap(out, rep)
	c.optimizeMemory(out, rep)

	rep.FinalRows, rep.FinalColumns = out.Shape()
	c.logger.Debug("cleaning complete",
		"dataset", ds.Name,
		"rows_removed", rep.RowsRemoved,
		"columns_removed", rep.ColumnsRemoved,
		"actions", len(rep.Actions))
	return out, rep
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// StandardizeName lowercases, replaces runs of non-alphanumerics with one
// underscore, and trims leading/trailing underscores.
func StandardizeName(name string) string {
	s := strings.ToLower(name)
	s = nonAlnum.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		s = "column"
	}
	return s
}

func (c *Cleaner) standardizeNames(ds *dataset.Dataset, rep *Report) {
	changed := 0
	seen := map[string]int{}
	for _, col := range ds.Columns {
		name := StandardizeName(col.Name)
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		seen[StandardizeName(col.Name)]++
		if name != col.Name {
			col.Name = name
			changed++
		}
	}
	if changed > 0 {
		rep.record("standardize_names", fmt.Sprintf("standardized %d column names", changed), changed)
	}
}

func (c *Cleaner) removeEmpty(ds *dataset.Dataset, rep *Report) {
	// Fully-null columns first.
	kept := ds.Columns[:0]
	removedCols := 0
	for _, col := range ds.Columns {
		if len(col.Values) > 0 && col.NonNullCount() == 0 {
			removedCols++
			continue
		}
		kept = append(kept, col)
	}
	ds.Columns = kept
	if removedCols > 0 {
		rep.ColumnsRemoved += removedCols
		rep.record("remove_empty", fmt.Sprintf("removed %d fully-empty columns", removedCols), removedCols)
	}

	// Then fully-null rows over the remaining columns.
	rows := ds.Rows()
	var keep []int
	for i := 0; i < rows; i++ {
		empty := true
		for _, col := range ds.Columns {
			if col.Values[i] != nil {
				empty = false
				break
			}
		}
		if !empty {
			keep = append(keep, i)
		}
	}
	removedRows := rows - len(keep)
	if removedRows > 0 {
		selectRows(ds, keep)
		rep.RowsRemoved += removedRows
		rep.record("remove_empty", fmt.Sprintf("removed %d fully-empty rows", removedRows), removedRows)
	}
}

func (c *Cleaner) dedupe(ds *dataset.Dataset, rep *Report) {
	rows := ds.Rows()
	seen := make(map[string]struct{}, rows)
	var keep []int
	for i := 0; i < rows; i++ {
		key := ds.RowKey(i)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, i)
	}
	removed := rows - len(keep)
	if removed > 0 {
		selectRows(ds, keep)
		rep.RowsRemoved += removed
		rep.DuplicatesRemoved = removed
		rep.record("deduplicate", fmt.Sprintf("removed %d exact-duplicate rows", removed), removed)
	}
}

// convertTypes re-infers text columns whose values mostly parse as
// numeric or datetime. Numeric is tried before datetime.
func (c *Cleaner) convertTypes(ds *dataset.Dataset, rep *Report) {
	converted := 0
	for _, col := range ds.Columns {
		if col.Type != dataset.TypeText {
			continue
		}
		nonNull := col.NonNullCount()
		if nonNull == 0 {
			continue
		}
		numeric, datetime := 0, 0
		for _, v := range col.Values {
			if v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				continue
			}
			if _, ok := dataset.AsFloat(s); ok {
				numeric++
			} else if _, ok := dataset.ParseTime(s); ok {
				datetime++
			}
		}
		threshold := c.opts.InferenceThresholdPct / 100 * float64(nonNull)
		var target dataset.ColumnType
		switch {
		case float64(numeric) >= threshold:
			target = dataset.TypeNumeric
		case float64(datetime) >= threshold:
			target = dataset.TypeDatetime
		default:
			continue
		}
		for i, v := range col.Values {
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok {
				col.Values[i] = dataset.Coerce(s, target)
			}
		}
		col.Type = target
		converted++
		rep.record("convert_types", fmt.Sprintf("converted column %q to %s", col.Name, target), 1)
	}
	rep.TypeConversions = converted
}

func (c *Cleaner) impute(ds *dataset.Dataset, rep *Report) {
	filled := 0
	for _, col := range ds.Columns {
		nulls := col.NullCount()
		if nulls == 0 {
			continue
		}
		var fill dataset.Value
		switch col.Type {
		case dataset.TypeNumeric:
			vals, _ := col.Floats()
			if len(vals) == 0 {
				continue
			}
			fill = medianOf(vals)
		default:
			fill = modeOf(col)
			if fill == nil {
				fill = c.opts.Placeholder
			}
		}
		for i, v := range col.Values {
			if v == nil {
				col.Values[i] = fill
			}
		}
		filled += nulls
		rep.record("impute", fmt.Sprintf("filled %d missing values in %q with %s", nulls, col.Name, dataset.FormatValue(fill)), nulls)
	}
	rep.MissingValuesFilled = filled
}

func medianOf(vals []float64) float64 {
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// modeOf returns the most frequent non-null value, ties broken by the
// lexicographically smallest formatted value. Returns nil when the column
// has no non-null values.
func modeOf(col *dataset.Column) dataset.Value {
	counts := map[string]int{}
	byKey := map[string]dataset.Value{}
	for _, v := range col.Values {
		if v == nil {
			continue
		}
		k := dataset.FormatValue(v)
		counts[k]++
		byKey[k] = v
	}
	bestKey, bestCount := "", 0
	for k, n := range counts {
		if n > bestCount || (n == bestCount && k < bestKey) {
			bestKey, bestCount = k, n
		}
	}
	if bestCount == 0 {
		return nil
	}
	return byKey[bestKey]
}

func (c *Cleaner) trimWhitespace(ds *dataset.Dataset, rep *Report) {
	trimmed := 0
	for _, col := range ds.Columns {
		if col.Type != dataset.TypeText {
			continue
		}
		for i, v := range col.Values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			t := strings.TrimSpace(s)
			if t != s {
				col.Values[i] = t
				trimmed++
			}
		}
	}
	if trimmed > 0 {
		rep.record("trim_whitespace", fmt.Sprintf("trimmed whitespace on %d text values", trimmed), trimmed)
	}
}

func (c *Cleaner) enforceRowCap(ds *dataset.Dataset, rep *Report) {
	rows := ds.Rows()
	if c.opts.RowCap <= 0 || rows <= c.opts.RowCap {
		return
	}
	dropped := rows - c.opts.RowCap
	for _, col := range ds.Columns {
		col.Values = col.Values[:c.opts.RowCap]
	}
	rep.RowsRemoved += dropped
	rep.RowsDroppedByCap = dropped
	rep.record("row_cap", fmt.Sprintf("dropped %d rows beyond cap of %d", dropped, c.opts.RowCap), dropped)
}

// optimizeMemory dictionary-encodes low-cardinality text columns by
// interning repeated strings. Observable values never change; the Compact
// flag keeps the step idempotent.
func (c *Cleaner) optimizeMemory(ds *dataset.Dataset, rep *Report) {
	optimized := 0
	for _, col := range ds.Columns {
		if col.Type != dataset.TypeText || col.Compact {
			continue
		}
		unique := col.UniqueCount()
		nonNull := col.NonNullCount()
		if nonNull == 0 || unique*2 > nonNull {
			continue
		}
		intern := make(map[string]string, unique)
		for i, v := range col.Values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if canon, seen := intern[s]; seen {
				col.Values[i] = canon
			} else {
				intern[s] = s
			}
		}
		col.Compact = true
		optimized++
	}
	if optimized > 0 {
		rep.record("optimize_memory", fmt.Sprintf("dictionary-encoded %d low-cardinality text columns", optimized), optimized)
	}
}

// selectRows keeps only the given row indices, in order, in every column.
func selectRows(ds *dataset.Dataset, keep []int) {
	for _, col := range ds.Columns {
		vals := make([]dataset.Value, len(keep))
		for j, i := range keep {
			vals[j] = col.Values[i]
		}
		col.Values = vals
	}
}

// CapOutliers clamps numeric values to IQR fences with the given
// multiplier. The capping fence is wider than detection's because capping
// rewrites data. Returns the number of values clamped per column.
func CapOutliers(ds *dataset.Dataset, multiplier float64) map[string]int {
	capped := map[string]int{}
	for _, col := range ds.Columns {
		if col.Type != dataset.TypeNumeric {
			continue
		}
		vals, idx := col.Floats()
		if len(vals) < 4 {
			continue
		}
		q1, q3 := anomaly.Quartiles(vals)
		iqr := q3 - q1
		lower := q1 - multiplier*iqr
		upper := q3 + multiplier*iqr
		n := 0
		for i, v := range vals {
			switch {
			case v < lower:
				col.Values[idx[i]] = lower
				n++
			case v > upper:
				col.Values[idx[i]] = upper
				n++
			}
		}
		if n > 0 {
			capped[col.Name] = n
		}
	}
	return capped
}
