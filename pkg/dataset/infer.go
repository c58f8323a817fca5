package dataset

import (
	"strconv"
	"strings"
)

// nullTokens are string forms treated as null on ingest.
var nullTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"null": {},
	"none": {},
	"nan":  {},
}

// IsNullToken reports whether a raw string should be read as null.
func IsNullToken(s string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// boolTokens maps recognized boolean string forms.
var boolTokens = map[string]bool{
	"true":  true,
	"false": false,
	"yes":   true,
	"no":    false,
	"t":     true,
	"f":     false,
	"1":     true,
	"0":     false,
}

// InferType inspects raw string cells and returns the majority type among
// the non-null values. Order of preference on ties: numeric, datetime,
// boolean, text. Returns text when everything is null.
func InferType(raw []string) ColumnType {
	var numeric, datetime, boolean, total int
	for _, s := range raw {
		if IsNullToken(s) {
			continue
		}
		total++
		s = strings.TrimSpace(s)
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			numeric++
			continue
		}
		if _, ok := ParseTime(s); ok {
			datetime++
			continue
		}
		if _, ok := boolTokens[strings.ToLower(s)]; ok {
			boolean++
		}
	}
	if total == 0 {
		return TypeText
	}
	half := total / 2
	switch {
	case numeric > half:
		return TypeNumeric
	case datetime > half:
		return TypeDatetime
	case boolean > half:
		return TypeBoolean
	default:
		return TypeText
	}
}

// Coerce converts a raw string cell to the typed value for a column of the
// given type. Cells that do not parse keep their string form so that
// mixed-type detection can see them.
func Coerce(s string, typ ColumnType) Value {
	if IsNullToken(s) {
		return nil
	}
	trimmed := strings.TrimSpace(s)
	switch typ {
	case TypeNumeric:
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	case TypeDatetime:
		if t, ok := ParseTime(trimmed); ok {
			return t
		}
	case TypeBoolean:
		if b, ok := boolTokens[strings.ToLower(trimmed)]; ok {
			return b
		}
	}
	return s
}

// FromStrings builds a typed column from raw string cells, inferring the
// column type from the data.
func FromStrings(name string, raw []string) *Column {
	typ := InferType(raw)
	values := make([]Value, len(raw))
	for i, s := range raw {
		values[i] = Coerce(s, typ)
	}
	return &Column{Name: name, Type: typ, Values: values}
}
