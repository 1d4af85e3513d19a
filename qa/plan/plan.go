// Package plan defines the query language the model writes and evaluates it.
//
// A program is a JSON object binding the result slot to a query:
//
//	{"result": {"dataset": "agmark_mandis_and_locations",
//	            "ops": [{"op": "filter", "where": [{"column": "State Name", "cmp": "contains", "value": "punjab"}]},
//	                    {"op": "head", "n": 20}]}}
//
// A query starts from a dataset and pipes it through ops in order. The only
// capabilities a program has are dataset lookup by name and the ops below,
// so evaluating untrusted model output cannot reach the filesystem, network
// or process.
package plan

import (
	"bytes"
	"encoding/json"

	"github.com/teranos/samarth/dataset"
	"github.com/teranos/samarth/errors"
)

// ResultSlot is the key a program binds its output to
const ResultSlot = "result"

// Program is a parsed query program
type Program struct {
	// Result is nil when the slot is absent or null
	Result *Query
}

// Query is a dataset reference followed by a pipeline of ops
type Query struct {
	Dataset string `json:"dataset"`
	Ops     []Op   `json:"-"`
}

// UnmarshalJSON decodes the tagged ops list
func (q *Query) UnmarshalJSON(data []byte) error {
	var raw struct {
		Dataset string            `json:"dataset"`
		Ops     []json.RawMessage `json:"ops"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return errors.Wrap(err, "invalid query")
	}
	if raw.Dataset == "" {
		return errors.New("query is missing \"dataset\"")
	}

	q.Dataset = raw.Dataset
	q.Ops = make([]Op, 0, len(raw.Ops))
	for i, r := range raw.Ops {
		op, err := decodeOp(r)
		if err != nil {
			return errors.Wrapf(err, "ops[%d]", i)
		}
		q.Ops = append(q.Ops, op)
	}
	return nil
}

// Parse decodes program text. Anything other than a single JSON object
// is a syntax error.
func Parse(text string) (*Program, error) {
	var top map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	if err := dec.Decode(&top); err != nil {
		return nil, errors.Wrap(err, "syntax error")
	}
	if dec.More() {
		return nil, errors.New("syntax error: unexpected content after program")
	}

	raw, ok := top[ResultSlot]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return &Program{}, nil
	}

	var q Query
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, err
	}
	return &Program{Result: &q}, nil
}

// Value is what a query evaluates to: *Table, *Series or *Scalar
type Value interface {
	isValue()
}

// Table is a rectangular result
type Table struct {
	Columns []dataset.Column
	Rows    [][]any
}

// Series is a labelled one-dimensional result
type Series struct {
	Name      string
	IndexName string
	Index     []any
	Values    []any
}

// Scalar is a single value
type Scalar struct {
	Value any
}

func (*Table) isValue()  {}
func (*Series) isValue() {}
func (*Scalar) isValue() {}

// Len returns the number of rows
func (t *Table) Len() int { return len(t.Rows) }

// Len returns the number of items
func (s *Series) Len() int { return len(s.Values) }

func (t *Table) columnIndex(name string) (int, error) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, nil
		}
	}
	return 0, errors.Newf("column %q not found", name)
}

func tableFrom(d *dataset.Dataset) *Table {
	return &Table{Columns: d.Columns(), Rows: d.Sample(d.RowCount())}
}
