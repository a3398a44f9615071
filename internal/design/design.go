// Package design reads the per-run design table: one tab-separated row per
// trial, in presentation order.
package design

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"expori/internal/position"
)

// Columns every orientation run needs.
const (
	ColOrientation = "orientation_degrees"
	ColColor       = "color"
)

// Missing is how absent values are spelled in design and output tables.
const Missing = "NA"

var (
	ErrEmpty         = errors.New("design: table has no rows")
	ErrMissingColumn = errors.New("design: missing column")
	ErrMissingValue  = errors.New("design: missing value")
)

// Path returns the design file of a subject/task/run.
func Path(dir, sub, task string, run int) string {
	s := position.PadSubject(sub)
	return filepath.Join(dir, "sub-"+s, fmt.Sprintf("sub-%s_task-%s_run%02d.tsv", s, task, run))
}

// Row is one trial's design parameters.
type Row struct {
	cols   []string
	values map[string]string
}

// Columns returns column names in file order.
func (r Row) Columns() []string { return r.cols }

// Has reports whether name is present and not NA.
func (r Row) Has(name string) bool {
	v, ok := r.values[name]
	return ok && v != Missing && v != ""
}

// String returns the raw value of name.
func (r Row) String(name string) (string, error) {
	if !r.Has(name) {
		return "", fmt.Errorf("%w: %s", ErrMissingValue, name)
	}
	return r.values[name], nil
}

// Float parses name as a number.
func (r Row) Float(name string) (float64, error) {
	s, err := r.String(name)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("design: column %s: %w", name, err)
	}
	return f, nil
}

// Table is the parsed design.
type Table struct {
	Columns []string
	Rows    []Row
}

// Read parses the file at path.
func Read(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return t, nil
}

// Parse reads a header line followed by rows. An unnamed first header cell
// marks an index column, which is dropped.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, ErrEmpty
	}
	header := records[0]
	skip := 0
	if len(header) > 0 && strings.TrimSpace(header[0]) == "" {
		skip = 1
	}
	cols := make([]string, 0, len(header)-skip)
	for _, h := range header[skip:] {
		cols = append(cols, strings.TrimSpace(h))
	}
	t := &Table{Columns: cols, Rows: make([]Row, 0, len(records)-1)}
	for _, rec := range records[1:] {
		row := Row{cols: cols, values: make(map[string]string, len(cols))}
		for i, c := range cols {
			if i+skip < len(rec) {
				row.values[c] = strings.TrimSpace(rec[i+skip])
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Require checks that every name is a column.
func (t *Table) Require(names ...string) error {
	for _, n := range names {
		found := false
		for _, c := range t.Columns {
			if c == n {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrMissingColumn, n)
		}
	}
	return nil
}

// Params returns the row as a log parameter map. Numeric cells become
// float64, NA becomes nil.
func (r Row) Params() map[string]any {
	out := make(map[string]any, len(r.cols))
	for _, c := range r.cols {
		v, ok := r.values[c]
		if !ok || v == Missing || v == "" {
			out[c] = nil
			continue
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out[c] = f
			continue
		}
		out[c] = v
	}
	return out
}
