package validate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leaptrust/pkg/dataset"
)

func ptr(f float64) *float64 { return &f }

func mustCSV(t *testing.T, in string) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.ReadCSV(strings.NewReader(in), "test")
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func TestMissingRequiredColumn(t *testing.T) {
	ds := mustCSV(t, "a\n1\n")
	v := New(Options{RequiredColumns: []string{"a", "b"}, NullThresholdPct: 20, UniquenessThresholdPct: 95, MixedTypeTolerancePct: 5}, nil)
	res, err := v.Validate(ds)
	if err != nil {
		t.Fatal(err)
	}
	if res.Passed {
		t.Error("expected failure")
	}
	if res.FailedChecks != 1 {
		t.Errorf("failed_checks = %d", res.FailedChecks)
	}
	if len(res.Errors) != 1 || res.Errors[0].Field != "b" || res.Errors[0].Check != "required_column" {
		t.Errorf("errors = %+v", res.Errors)
	}
}

func TestPassedMirrorsFailedChecks(t *testing.T) {
	ds := mustCSV(t, "id\n1\n2\n3\n")
	v := New(DefaultOptions(), nil)
	res, err := v.Validate(ds)
	if err != nil {
		t.Fatal(err)
	}
	if res.Passed != (res.FailedChecks == 0) {
		t.Errorf("passed = %v with failed_checks = %d", res.Passed, res.FailedChecks)
	}
}

func TestNullRatioWarningAndError(t *testing.T) {
	// 2 of 4 null, 50% > 20% threshold.
	in := "opt,req\n1,\n2,\n3,3\n4,4\n"
	ds := mustCSV(t, in)

	opts := DefaultOptions()
	v := New(opts, nil)
	res, _ := v.Validate(ds)
	if !res.Passed {
		t.Error("null ratio on optional column should warn, not fail")
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected null ratio warning")
	}

	opts.RequiredColumns = []string{"req"}
	v = New(opts, nil)
	res, _ = v.Validate(ds)
	if res.Passed {
		t.Error("null ratio on required column should fail")
	}
}

func TestNullRatioAtThresholdPasses(t *testing.T) {
	// exactly 20% null with threshold 20: not a violation, rule is strict >.
	in := "x\n\n1\n2\n3\n4\n"
	ds := mustCSV(t, in)
	res, _ := New(DefaultOptions(), nil).Validate(ds)
	for _, w := range res.Warnings {
		if w.Check == "null_ratio" {
			t.Errorf("unexpected warning at exact threshold: %s", w.Message)
		}
	}
}

func TestUniquenessViolation(t *testing.T) {
	in := "id\n1\n1\n2\n3\n"
	ds := mustCSV(t, in)
	opts := DefaultOptions()
	opts.UniqueColumns = []string{"id"}
	res, err := New(opts, nil).Validate(ds)
	if err != nil {
		t.Fatal(err)
	}
	if res.Passed {
		t.Error("uniqueness violation should fail")
	}
	if len(res.Errors) != 1 || res.Errors[0].Check != "uniqueness" {
		t.Fatalf("errors = %+v", res.Errors)
	}
	if !strings.Contains(res.Errors[0].Message, "75.0%") {
		t.Errorf("message should name the violating percentage: %s", res.Errors[0].Message)
	}
}

func TestUnknownRuleColumnIsSchemaError(t *testing.T) {
	ds := mustCSV(t, "a\n1\n")
	opts := DefaultOptions()
	opts.UniqueColumns = []string{"nope"}
	_, err := New(opts, nil).Validate(ds)
	var se *SchemaError
	if err == nil {
		t.Fatal("expected SchemaError")
	}
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T", err)
	}
	if se.Rule != "unique_columns" || se.Columns[0] != "nope" {
		t.Errorf("schema error = %+v", se)
	}
}

func TestValueRangeWarning(t *testing.T) {
	in := "temp\n10\n20\n150\n-5\n"
	ds := mustCSV(t, in)
	opts := DefaultOptions()
	opts.ValueRanges = map[string]Range{"temp": {Min: ptr(0), Max: ptr(100)}}
	res, err := New(opts, nil).Validate(ds)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Passed {
		t.Error("range violations warn, not fail")
	}
	found := false
	for _, w := range res.Warnings {
		if w.Check == "value_range" {
			found = true
			if !strings.Contains(w.Message, "2 values") {
				t.Errorf("message = %s", w.Message)
			}
		}
	}
	if !found {
		t.Error("expected value_range warning")
	}
}

func TestDuplicateRowsWarning(t *testing.T) {
	in := "a,b\n1,x\n1,x\n2,y\n"
	ds := mustCSV(t, in)
	res, _ := New(DefaultOptions(), nil).Validate(ds)
	found := false
	for _, w := range res.Warnings {
		if w.Check == "duplicate_rows" {
			found = true
			if !strings.Contains(w.Message, "1 duplicate") {
				t.Errorf("message = %s", w.Message)
			}
		}
	}
	if !found {
		t.Error("expected duplicate_rows warning")
	}
}

func TestMixedTypeWarning(t *testing.T) {
	// 3 of 10 values non-numeric in a numeric-majority column: 30% > 5%.
	in := "n\n1\n2\n3\n4\n5\n6\n7\nx\ny\nz\n"
	ds := mustCSV(t, in)
	res, _ := New(DefaultOptions(), nil).Validate(ds)
	found := false
	for _, w := range res.Warnings {
		if w.Check == "mixed_types" {
			found = true
		}
	}
	if !found {
		t.Error("expected mixed_types warning")
	}
}

func TestFindingsFor(t *testing.T) {
	res := &Result{
		Warnings: []Finding{{Field: "a", Check: "x"}, {Field: "b", Check: "y"}},
		Errors:   []Finding{{Field: "a", Check: "z"}},
	}
	w, e := res.FindingsFor("a")
	if len(w) != 1 || len(e) != 1 {
		t.Errorf("findings for a: %d warnings, %d errors", len(w), len(e))
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := "required_columns: [id, name]\nunique_columns: [id]\nvalue_ranges:\n  score:\n    min: 0\n    max: 100\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	opts, err := LoadRules(path, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.RequiredColumns) != 2 || opts.UniqueColumns[0] != "id" {
		t.Errorf("opts = %+v", opts)
	}
	rng := opts.ValueRanges["score"]
	if rng.Min == nil || *rng.Min != 0 || rng.Max == nil || *rng.Max != 100 {
		t.Errorf("range = %+v", rng)
	}
}

func TestPassRateAndIssues(t *testing.T) {
	res := &Result{
		PassedChecks: 3,
		FailedChecks: 1,
		Warnings:     []Finding{{Check: "null_ratio"}},
		Errors:       []Finding{{Check: "uniqueness"}},
	}
	if got := res.PassRate(); got != 75.0 {
		t.Errorf("PassRate() = %v, want 75.0", got)
	}
	if got := res.TotalIssues(); got != 2 {
		t.Errorf("TotalIssues() = %d, want 2", got)
	}
	if got := (&Result{}).PassRate(); got != 100.0 {
		t.Errorf("empty PassRate() = %v, want 100.0", got)
	}
}

func TestRecommendations(t *testing.T) {
	res := &Result{
		Warnings: []Finding{
			{Check: "duplicate_rows"},
			{Check: "mixed_types", Field: "a"},
			{Check: "mixed_types", Field: "b"},
		},
		Errors: []Finding{{Check: "null_ratio", Field: "c"}},
	}
	recs := res.Recommendations()
	if len(recs) != 3 {
		t.Fatalf("got %d recommendations: %v", len(recs), recs)
	}
	if !strings.Contains(recs[0], "1 column(s) with excessive missing") {
		t.Errorf("recs[0] = %q", recs[0])
	}
	if !strings.Contains(recs[2], "2 column(s)") {
		t.Errorf("recs[2] = %q", recs[2])
	}

	clean := (&Result{PassedChecks: 5}).Recommendations()
	if len(clean) != 1 || !strings.Contains(clean[0], "looks good") {
		t.Errorf("clean recommendations = %v", clean)
	}
}
