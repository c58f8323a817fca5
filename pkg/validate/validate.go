// Package validate checks datasets against structural rules: required
// columns, type consistency, null ratios, uniqueness, value ranges, and
// duplicate rows. Findings about the data are reported in the Result, never
// as errors; only misconfigured rules fail loudly.
package validate

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leaptrust/pkg/dataset"
)

// Severity classifies a finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one validation observation attributed to a field.
type Finding struct {
	Field    string   `json:"field"`
	Check    string   `json:"check"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Result is the outcome of validating one dataset. Passed is true iff no
// check failed; warnings never flip it.
type Result struct {
	Passed       bool      `json:"passed"`
	PassedChecks int       `json:"passed_checks"`
	FailedChecks int       `json:"failed_checks"`
	Warnings     []Finding `json:"warnings"`
	Errors       []Finding `json:"errors"`
}

// FindingsFor returns all findings that reference the given field.
func (r *Result) FindingsFor(field string) (warnings, errors []Finding) {
	for _, f := range r.Warnings {
		if f.Field == field {
			warnings = append(warnings, f)
		}
	}
	for _, f := range r.Errors {
		if f.Field == field {
			errors = append(errors, f)
		}
	}
	return warnings, errors
}

// PassRate returns the percentage of checks that passed.
func (r *Result) PassRate() float64 {
	total := r.PassedChecks + r.FailedChecks
	if total == 0 {
		return 100.0
	}
	return float64(r.PassedChecks) / float64(total) * 100
}

// TotalIssues counts all findings, warnings and errors alike.
func (r *Result) TotalIssues() int {
	return len(r.Warnings) + len(r.Errors)
}

// Recommendations turns the findings into actionable next steps.
func (r *Result) Recommendations() []string {
	var recs []string
	if n := r.countCheck("null_ratio"); n > 0 {
		recs = append(recs, fmt.Sprintf("Address %d column(s) with excessive missing values: impute, drop the column, or collect more complete data.", n))
	}
	if r.countCheck("duplicate_rows") > 0 {
		recs = append(recs, "Remove duplicate rows before the BI import for better performance.")
	}
	if n := r.countCheck("mixed_types"); n > 0 {
		recs = append(recs, fmt.Sprintf("Correct mixed-type values in %d column(s) so field types map cleanly.", n))
	}
	if n := r.countCheck("value_range"); n > 0 {
		recs = append(recs, fmt.Sprintf("Investigate %d column(s) with out-of-range values.", n))
	}
	if len(recs) == 0 {
		recs = append(recs, "Data quality looks good. Ready for import.")
	}
	return recs
}

func (r *Result) countCheck(check string) int {
	n := 0
	for _, f := range r.Warnings {
		if f.Check == check {
			n++
		}
	}
	for _, f := range r.Errors {
		if f.Check == check {
			n++
		}
	}
	return n
}

// SchemaError reports rule lists that reference columns absent from the
// dataset entirely. This is a caller mistake, distinct from a required
// column missing from the data.
type SchemaError struct {
	Rule    string
	Columns []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s rule references unknown columns: %s", e.Rule, strings.Join(e.Columns, ", "))
}

// Range bounds numeric values for one column. A nil side is unbounded.
type Range struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

// Options configures a validation run.
type Options struct {
	RequiredColumns        []string
	UniqueColumns          []string
	ValueRanges            map[string]Range
	NullThresholdPct       float64
	UniquenessThresholdPct float64
	MixedTypeTolerancePct  float64
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		NullThresholdPct:       20.0,
		UniquenessThresholdPct: 95.0,
		MixedTypeTolerancePct:  5.0,
	}
}

// Validator runs schema checks over datasets.
type Validator struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Validator. A nil logger discards output.
func New(opts Options, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Validator{opts: opts, logger: logger}
}

// Validate checks the dataset against the configured rules. It returns an
// error only for rule lists naming columns the dataset does not have at
// all (except RequiredColumns, where absence is a normal failure).
func (v *Validator) Validate(ds *dataset.Dataset) (*Result, error) {
	if err := v.checkRuleColumns(ds); err != nil {
		return nil, err
	}

	res := &Result{}
	v.checkRequired(ds, res)
	v.checkTypes(ds, res)
	v.checkNullRatios(ds, res)
	v.checkUniqueness(ds, res)
	v.checkRanges(ds, res)
	v.checkDuplicates(ds, res)

	res.Passed = res.FailedChecks == 0
	v.logger.Debug("validation complete",
		"dataset", ds.Name,
		"passed", res.Passed,
		"passed_checks", res.PassedChecks,
		"failed_checks", res.FailedChecks)
	return res, nil
}

func (v *Validator) checkRuleColumns(ds *dataset.Dataset) error {
	var missing []string
	for _, col := range v.opts.UniqueColumns {
		if !ds.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Rule: "unique_columns", Columns: missing}
	}
	for col := range v.opts.ValueRanges {
		if !ds.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Rule: "value_ranges", Columns: missing}
	}
	return nil
}

func (v *Validator) checkRequired(ds *dataset.Dataset, res *Result) {
	for _, col := range v.opts.RequiredColumns {
		if ds.HasColumn(col) {
			res.PassedChecks++
			continue
		}
		res.FailedChecks++
		res.Errors = append(res.Errors, Finding{
			Field:    col,
			Check:    "required_column",
			Message:  fmt.Sprintf("missing required column %q", col),
			Severity: SeverityError,
		})
	}
}

func (v *Validator) checkTypes(ds *dataset.Dataset, res *Result) {
	for _, c := range ds.Columns {
		nonNull := c.NonNullCount()
		if nonNull == 0 {
			res.PassedChecks++
			continue
		}
		mismatched := countTypeMismatches(c)
		pct := float64(mismatched) / float64(nonNull) * 100
		if pct > v.opts.MixedTypeTolerancePct {
			res.Warnings = append(res.Warnings, Finding{
				Field:    c.Name,
				Check:    "mixed_types",
				Message:  fmt.Sprintf("column %q mixes types: %.1f%% of values do not match majority type %s", c.Name, pct, c.Type),
				Severity: SeverityWarning,
			})
		}
		res.PassedChecks++
	}
}

// countTypeMismatches counts non-null values that do not conform to the
// column's inferred type. Text columns accept anything.
func countTypeMismatches(c *dataset.Column) int {
	if c.Type == dataset.TypeText {
		return 0
	}
	n := 0
	for _, val := range c.Values {
		if val == nil {
			continue
		}
		switch c.Type {
		case dataset.TypeNumeric:
			if _, ok := dataset.AsFloat(val); !ok {
				n++
			}
		case dataset.TypeDatetime:
			if _, ok := dataset.AsTime(val); !ok {
				n++
			}
		case dataset.TypeBoolean:
			if _, ok := val.(bool); !ok {
				n++
			}
		}
	}
	return n
}

func (v *Validator) checkNullRatios(ds *dataset.Dataset, res *Result) {
	required := make(map[string]bool, len(v.opts.RequiredColumns))
	for _, col := range v.opts.RequiredColumns {
		required[col] = true
	}
	for _, c := range ds.Columns {
		total := len(c.Values)
		if total == 0 {
			res.PassedChecks++
			continue
		}
		pct := float64(c.NullCount()) / float64(total) * 100
		if pct <= v.opts.NullThresholdPct {
			res.PassedChecks++
			continue
		}
		msg := fmt.Sprintf("column %q is %.1f%% null (threshold %.1f%%)", c.Name, pct, v.opts.NullThresholdPct)
		if required[c.Name] {
			res.FailedChecks++
			res.Errors = append(res.Errors, Finding{
				Field:    c.Name,
				Check:    "null_ratio",
				Message:  msg,
				Severity: SeverityError,
			})
		} else {
			res.PassedChecks++
			res.Warnings = append(res.Warnings, Finding{
				Field:    c.Name,
				Check:    "null_ratio",
				Message:  msg,
				Severity: SeverityWarning,
			})
		}
	}
}

func (v *Validator) checkUniqueness(ds *dataset.Dataset, res *Result) {
	for _, col := range v.opts.UniqueColumns {
		c, _ := ds.Column(col)
		nonNull := c.NonNullCount()
		if nonNull == 0 {
			res.PassedChecks++
			continue
		}
		pct := float64(c.UniqueCount()) / float64(nonNull) * 100
		if pct >= v.opts.UniquenessThresholdPct {
			res.PassedChecks++
			continue
		}
		res.FailedChecks++
		res.Errors = append(res.Errors, Finding{
			Field:    col,
			Check:    "uniqueness",
			Message:  fmt.Sprintf("column %q is %.1f%% unique (threshold %.1f%%)", col, pct, v.opts.UniquenessThresholdPct),
			Severity: SeverityError,
		})
	}
}

func (v *Validator) checkRanges(ds *dataset.Dataset, res *Result) {
	for _, c := range ds.Columns {
		rng, ok := v.opts.ValueRanges[c.Name]
		if !ok {
			continue
		}
		out := 0
		for _, val := range c.Values {
			if val == nil {
				continue
			}
			f, ok := dataset.AsFloat(val)
			if !ok {
				continue
			}
			if (rng.Min != nil && f < *rng.Min) || (rng.Max != nil && f > *rng.Max) {
				out++
			}
		}
		if out == 0 {
			res.PassedChecks++
			continue
		}
		res.PassedChecks++
		res.Warnings = append(res.Warnings, Finding{
			Field:    c.Name,
			Check:    "value_range",
			Message:  fmt.Sprintf("column %q has %d values outside [%s, %s]", c.Name, out, boundString(rng.Min), boundString(rng.Max)),
			Severity: SeverityWarning,
		})
	}
}

func boundString(b *float64) string {
	if b == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *b)
}

func (v *Validator) checkDuplicates(ds *dataset.Dataset, res *Result) {
	rows := ds.Rows()
	if rows == 0 {
		res.PassedChecks++
		return
	}
	seen := make(map[string]struct{}, rows)
	dupes := 0
	for i := 0; i < rows; i++ {
		key := ds.RowKey(i)
		if _, ok := seen[key]; ok {
			dupes++
			continue
		}
		seen[key] = struct{}{}
	}
	res.PassedChecks++
	if dupes > 0 {
		res.Warnings = append(res.Warnings, Finding{
			Field:    "",
			Check:    "duplicate_rows",
			Message:  fmt.Sprintf("%d duplicate rows (%.1f%% of %d)", dupes, float64(dupes)/float64(rows)*100, rows),
			Severity: SeverityWarning,
		})
	}
}
