package plan

import (
	"bytes"
	"encoding/json"

	"github.com/teranos/samarth/errors"
)

// Op is one pipeline step
type Op interface {
	Name() string
	apply(st *state, in Value) (Value, error)
}

// opTag carries the "op" discriminator so strict decoding accepts it
type opTag struct {
	Op string `json:"op"`
}

// Condition is one filter predicate
type Condition struct {
	Column string `json:"column"`
	Cmp    string `json:"cmp"`
	Value  any    `json:"value,omitempty"`
}

// Filter keeps rows matching all (or any) conditions
type Filter struct {
	opTag
	Where []Condition `json:"where"`
	Match string      `json:"match,omitempty"`
}

// Select projects columns in the order given
type Select struct {
	opTag
	Columns []string `json:"columns"`
}

// DropNulls removes rows with a null in any of Columns (all columns if empty)
type DropNulls struct {
	opTag
	Columns []string `json:"columns,omitempty"`
}

// Distinct keeps the first row of each distinct combination of Columns
// (all columns if empty)
type Distinct struct {
	opTag
	Columns []string `json:"columns,omitempty"`
}

// Agg is one aggregate in a group
type Agg struct {
	Fn     string `json:"fn"`
	Column string `json:"column,omitempty"`
	As     string `json:"as,omitempty"`
}

// Group aggregates rows by key columns. Groups come out sorted by key.
type Group struct {
	opTag
	By   []string `json:"by"`
	Aggs []Agg    `json:"aggs"`
}

// SortKey orders by one column. On a series the column is "value" or "index".
type SortKey struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

// Sort orders rows stably; nulls sort last
type Sort struct {
	opTag
	By []SortKey `json:"by"`
}

// Head keeps the first N rows or items
type Head struct {
	opTag
	N int `json:"n"`
}

// JoinKey pairs a left column with a right column
type JoinKey struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Join combines the current table with another dataset
type Join struct {
	opTag
	Dataset string    `json:"dataset"`
	On      []JoinKey `json:"on"`
	How     string    `json:"how,omitempty"`
}

// ValueCounts counts non-null values of a column, most frequent first
type ValueCounts struct {
	opTag
	Column string `json:"column"`
}

// Column extracts one column as a series
type Column struct {
	opTag
	Column string `json:"column"`
}

// Count returns the number of rows or items
type Count struct {
	opTag
}

// Reduce folds a column (or a series) to one value
type Reduce struct {
	opTag
	Fn     string `json:"fn"`
	Column string `json:"column,omitempty"`
}

func (*Filter) Name() string      { return "filter" }
func (*Select) Name() string      { return "select" }
func (*DropNulls) Name() string   { return "drop_nulls" }
func (*Distinct) Name() string    { return "distinct" }
func (*Group) Name() string       { return "group" }
func (*Sort) Name() string        { return "sort" }
func (*Head) Name() string        { return "head" }
func (*Join) Name() string        { return "join" }
func (*ValueCounts) Name() string { return "value_counts" }
func (*Column) Name() string      { return "column" }
func (*Count) Name() string       { return "count" }
func (*Reduce) Name() string      { return "reduce" }

// opNames lists the ops in the order prompts document them
var opNames = []string{
	"filter", "select", "drop_nulls", "distinct", "group", "sort",
	"head", "join", "value_counts", "column", "count", "reduce",
}

// OpNames returns every supported op name
func OpNames() []string {
	return append([]string(nil), opNames...)
}

func newOp(name string) (Op, bool) {
	switch name {
	case "filter":
		return &Filter{}, true
	case "select":
		return &Select{}, true
	case "drop_nulls":
		return &DropNulls{}, true
	case "distinct":
		return &Distinct{}, true
	case "group":
		return &Group{}, true
	case "sort":
		return &Sort{}, true
	case "head":
		return &Head{}, true
	case "join":
		return &Join{}, true
	case "value_counts":
		return &ValueCounts{}, true
	case "column":
		return &Column{}, true
	case "count":
		return &Count{}, true
	case "reduce":
		return &Reduce{}, true
	}
	return nil, false
}

func decodeOp(raw json.RawMessage) (Op, error) {
	var tag opTag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, errors.Wrap(err, "invalid op")
	}
	if tag.Op == "" {
		return nil, errors.New("op is missing \"op\"")
	}

	op, ok := newOp(tag.Op)
	if !ok {
		return nil, errors.Newf("unknown op %q", tag.Op)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(op); err != nil {
		return nil, errors.Wrapf(err, "invalid %s", tag.Op)
	}
	return op, nil
}
