// Package dataset provides the in-memory tabular data model used by the
// trust-scoring pipeline. A Dataset is an ordered sequence of named columns,
// each holding an ordered sequence of nullable scalar values.
//
// Values are stored as any with a closed set of concrete types:
// float64 (numeric), time.Time (datetime), string (text), bool (boolean),
// and nil for null. Column types are inferred once and carried through the
// pipeline rather than re-derived ad hoc.
package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ColumnType classifies the values a column holds.
type ColumnType string

const (
	TypeText     ColumnType = "text"
	TypeNumeric  ColumnType = "numeric"
	TypeDatetime ColumnType = "datetime"
	TypeBoolean  ColumnType = "boolean"
)

// Value is a nullable scalar cell. Concrete types are float64, time.Time,
// string, bool; nil represents null.
type Value = any

// Column is an ordered, named sequence of values.
type Column struct {
	Name   string
	Type   ColumnType
	Values []Value

	// Compact marks a column whose representation has been optimized
	// (dictionary-encoded text, integral numeric storage). Observable
	// values are unaffected.
	Compact bool
}

// Dataset is an ordered collection of equal-length columns. The name is a
// grouping key for persistence and is not required to be unique.
type Dataset struct {
	Name    string
	Columns []*Column
}

// New creates an empty dataset with the given name.
func New(name string) *Dataset {
	return &Dataset{Name: name}
}

// AddColumn appends a column. All columns must have the same length.
func (d *Dataset) AddColumn(name string, typ ColumnType, values []Value) error {
	if len(d.Columns) > 0 && len(values) != d.Rows() {
		return fmt.Errorf("column %q has %d values, dataset has %d rows", name, len(values), d.Rows())
	}
	d.Columns = append(d.Columns, &Column{Name: name, Type: typ, Values: values})
	return nil
}

// Column returns the column with the given name, or false if absent.
func (d *Dataset) Column(name string) (*Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// HasColumn reports whether a column with the given name exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.Column(name)
	return ok
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Rows returns the number of rows (the length of the first column).
func (d *Dataset) Rows() int {
	if len(d.Columns) == 0 {
		return 0
	}
	return len(d.Columns[0].Values)
}

// Shape returns (rows, columns).
func (d *Dataset) Shape() (int, int) {
	return d.Rows(), len(d.Columns)
}

// Clone returns a deep copy. Value slices are copied; the scalar values
// themselves are immutable and shared.
func (d *Dataset) Clone() *Dataset {
	out := New(d.Name)
	for _, c := range d.Columns {
		values := make([]Value, len(c.Values))
		copy(values, c.Values)
		out.Columns = append(out.Columns, &Column{
			Name:    c.Name,
			Type:    c.Type,
			Values:  values,
			Compact: c.Compact,
		})
	}
	return out
}

// Row materializes one row across all columns.
func (d *Dataset) Row(i int) []Value {
	row := make([]Value, len(d.Columns))
	for j, c := range d.Columns {
		row[j] = c.Values[i]
	}
	return row
}

// RowKey returns a canonical string key for a row, used for exact-duplicate
// detection. Two rows have equal keys iff all their formatted values match.
func (d *Dataset) RowKey(i int) string {
	var sb strings.Builder
	for j, c := range d.Columns {
		if j > 0 {
			sb.WriteByte('\x1f')
		}
		sb.WriteString(FormatValue(c.Values[i]))
	}
	return sb.String()
}

// NullCount returns the number of null values in the column.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// NonNullCount returns the number of non-null values in the column.
func (c *Column) NonNullCount() int {
	return len(c.Values) - c.NullCount()
}

// UniqueCount returns the number of distinct non-null values.
func (c *Column) UniqueCount() int {
	seen := make(map[string]struct{}, len(c.Values))
	for _, v := range c.Values {
		if v == nil {
			continue
		}
		seen[FormatValue(v)] = struct{}{}
	}
	return len(seen)
}

// MinMax returns the smallest and largest numeric values in the column.
// ok is false when the column holds no numeric values.
func (c *Column) MinMax() (min, max float64, ok bool) {
	vals, _ := c.Floats()
	if len(vals) == 0 {
		return 0, 0, false
	}
	min, max = vals[0], vals[0]
	for _, f := range vals[1:] {
		if f < min {
			min = f
		}
		if f > max {
			max = f
		}
	}
	return min, max, true
}

// Floats returns the non-null values of a column coerced to float64, with
// the row index of each. Values that cannot be coerced are skipped.
func (c *Column) Floats() ([]float64, []int) {
	vals := make([]float64, 0, len(c.Values))
	idx := make([]int, 0, len(c.Values))
	for i, v := range c.Values {
		if v == nil {
			continue
		}
		if f, ok := AsFloat(v); ok {
			vals = append(vals, f)
			idx = append(idx, i)
		}
	}
	return vals, idx
}

// Times returns the non-null values of a column coerced to time.Time.
func (c *Column) Times() []time.Time {
	out := make([]time.Time, 0, len(c.Values))
	for _, v := range c.Values {
		if v == nil {
			continue
		}
		if t, ok := AsTime(v); ok {
			out = append(out, t)
		}
	}
	return out
}

// AsFloat coerces a value to float64. Strings are parsed, booleans are not
// considered numeric.
func AsFloat(v Value) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsTime coerces a value to time.Time. Strings are parsed against the
// recognized date layouts.
func AsTime(v Value) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return ParseTime(t)
	default:
		return time.Time{}, false
	}
}

// dateLayouts are the recognized date formats, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
}

// ParseTime parses a string against the recognized date layouts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatValue renders a value canonically: empty string for null, RFC 3339
// for datetimes, shortest round-trip form for numerics.
func FormatValue(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case bool:
		return strconv.FormatBool(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// SortedIndices returns a sorted copy of a row-index set.
func SortedIndices(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
