package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadCSV loads a dataset from CSV. The first record is the header; column
// types are inferred per column from the data rows.
func ReadCSV(r io.Reader, name string) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	raw := make([][]string, len(header))
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		for i := range header {
			cell := ""
			if i < len(rec) {
				cell = rec[i]
			}
			raw[i] = append(raw[i], cell)
		}
	}

	ds := New(name)
	for i, col := range header {
		ds.Columns = append(ds.Columns, FromStrings(col, raw[i]))
	}
	return ds, nil
}

// ReadCSVFile loads a dataset from a CSV file. The dataset name is the file
// base name without extension.
func ReadCSVFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return ReadCSV(f, name)
}

// WriteCSV writes the dataset as CSV with a header row. Nulls become empty
// cells.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.ColumnNames()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	rec := make([]string, len(d.Columns))
	for i := 0; i < d.Rows(); i++ {
		for j, c := range d.Columns {
			rec[j] = FormatValue(c.Values[i])
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the dataset to a CSV file.
func (d *Dataset) WriteCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return d.WriteCSV(f)
}
