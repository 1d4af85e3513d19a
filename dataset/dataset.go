// Package dataset holds the named tabular datasets questions are answered from.
//
// Datasets are built once at startup (see LoadDir) and are read-only for the
// rest of the process, so a Registry can be shared between goroutines without
// locking.
package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/teranos/samarth/errors"
)

// Type is the declared type of a column. Names follow the dtype vocabulary
// the query-synthesis prompt shows the model.
type Type string

const (
	TypeInt    Type = "int64"
	TypeFloat  Type = "float64"
	TypeBool   Type = "bool"
	TypeString Type = "object"
)

// Column is a named, typed column
type Column struct {
	Name string
	Type Type
}

// ColumnProfile summarizes one column for schema descriptions
type ColumnProfile struct {
	Name   string
	Type   Type
	Unique int // distinct non-null values
	Nulls  int
}

// Dataset is an immutable table. Cell values are int64, float64, bool,
// string or nil (null).
type Dataset struct {
	name    string
	columns []Column
	rows    [][]any

	profileOnce sync.Once
	profile     []ColumnProfile
}

// New builds a dataset. Rows are copied; every row must match the column count.
func New(name string, columns []Column, rows [][]any) (*Dataset, error) {
	if name == "" {
		return nil, errors.New("dataset name cannot be empty")
	}

	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c.Name] {
			return nil, errors.Newf("dataset %s: duplicate column %q", name, c.Name)
		}
		seen[c.Name] = true
	}

	copied := make([][]any, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, errors.Newf("dataset %s: row %d has %d values, want %d", name, i, len(row), len(columns))
		}
		copied[i] = append([]any(nil), row...)
	}

	return &Dataset{
		name:    name,
		columns: append([]Column(nil), columns...),
		rows:    copied,
	}, nil
}

// Name returns the dataset's unique key
func (d *Dataset) Name() string { return d.name }

// Columns returns the columns in declaration order
func (d *Dataset) Columns() []Column {
	return append([]Column(nil), d.columns...)
}

// RowCount returns the number of rows
func (d *Dataset) RowCount() int { return len(d.rows) }

// Value returns the cell at (row, col). Callers must stay in range.
func (d *Dataset) Value(row, col int) any { return d.rows[row][col] }

// Row returns a copy of one row
func (d *Dataset) Row(i int) []any {
	return append([]any(nil), d.rows[i]...)
}

// Sample returns copies of the first n rows
func (d *Dataset) Sample(n int) [][]any {
	if n > len(d.rows) {
		n = len(d.rows)
	}
	if n < 0 {
		n = 0
	}
	out := make([][]any, n)
	for i := 0; i < n; i++ {
		out[i] = d.Row(i)
	}
	return out
}

// Profile returns per-column distinct and null counts. Computed once.
func (d *Dataset) Profile() []ColumnProfile {
	d.profileOnce.Do(func() {
		profile := make([]ColumnProfile, len(d.columns))
		for j, c := range d.columns {
			seen := make(map[any]struct{})
			nulls := 0
			for _, row := range d.rows {
				v := row[j]
				if v == nil {
					nulls++
					continue
				}
				seen[v] = struct{}{}
			}
			profile[j] = ColumnProfile{Name: c.Name, Type: c.Type, Unique: len(seen), Nulls: nulls}
		}
		d.profile = profile
	})
	return append([]ColumnProfile(nil), d.profile...)
}

// String implements fmt.Stringer
func (d *Dataset) String() string {
	return fmt.Sprintf("%s (%d rows x %d columns)", d.name, len(d.rows), len(d.columns))
}

// FormatValue renders a cell the way schema samples and scalar results show
// it. Null renders as "null"; integral floats keep a trailing ".0".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		if math.IsNaN(x) {
			return "null"
		}
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !math.IsInf(x, 0) && !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(x)
	}
}
