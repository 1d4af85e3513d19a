// Package evidence shapes execution results into bounded, serializable
// bundles for the answer prompt.
package evidence

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/teranos/samarth/dataset"
	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/qa/executor"
)

// DefaultMaxResults caps records per bundle
const DefaultMaxResults = 20

// Bundle type tags
const (
	TypeTable  = "table"
	TypeSeries = "series"
	TypeScalar = "scalar"
)

// SummaryStats discloses truncation. RowsReturned is always
// min(TotalRows, max results) and Capped is TotalRows > max results.
type SummaryStats struct {
	TotalRows    int  `json:"total_rows"`
	RowsReturned int  `json:"rows_returned"`
	Capped       bool `json:"capped"`
}

// Bundle is the evidence handed to the answer model
type Bundle struct {
	Type         string        `json:"type"`
	Shape        []int         `json:"shape,omitempty"`
	Columns      []string      `json:"columns,omitempty"`
	Records      any           `json:"records"`
	SummaryStats *SummaryStats `json:"summary_stats,omitempty"`
	DatasetsUsed []string      `json:"datasets_used"`
}

// Record is a JSON object that keeps its key order
type Record struct {
	Keys   []string
	Values []any
}

// MarshalJSON writes keys in order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, r.Values[i]); err != nil {
			return nil, errors.Wrapf(err, "field %q", k)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeJSON encodes v without HTML escaping and without the trailing newline.
// Non-finite floats have no JSON form and are written as null.
func writeJSON(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			buf.WriteString("null")
			return nil
		}
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			buf.WriteString("null")
			return nil
		}
	}
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// Build caps res to maxResults records. maxResults <= 0 uses DefaultMaxResults.
func Build(res *executor.Result, datasets []string, maxResults int) Bundle {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if datasets == nil {
		datasets = []string{}
	}
	b := Bundle{DatasetsUsed: append([]string{}, datasets...)}

	switch res.Kind {
	case executor.TabularResult:
		t := res.Table
		total := t.Len()
		n := min(total, maxResults)

		b.Type = TypeTable
		b.Shape = []int{total, len(t.Columns)}
		b.Columns = make([]string, len(t.Columns))
		for i, c := range t.Columns {
			b.Columns[i] = c.Name
		}
		records := make([]Record, n)
		for i := 0; i < n; i++ {
			records[i] = Record{Keys: b.Columns, Values: t.Rows[i]}
		}
		b.Records = records
		b.SummaryStats = stats(total, maxResults)

	case executor.ScalarSeriesResult:
		s := res.Series
		total := s.Len()
		n := min(total, maxResults)

		b.Type = TypeSeries
		b.Shape = []int{total}
		rec := Record{Keys: make([]string, n), Values: s.Values[:n]}
		for i := 0; i < n; i++ {
			rec.Keys[i] = dataset.FormatValue(s.Index[i])
		}
		b.Records = rec
		b.SummaryStats = stats(total, maxResults)

	default:
		b.Type = TypeScalar
		b.Records = res.Opaque
	}
	return b
}

func stats(total, maxResults int) *SummaryStats {
	return &SummaryStats{
		TotalRows:    total,
		RowsReturned: min(total, maxResults),
		Capped:       total > maxResults,
	}
}

// JSON renders the bundle indented for prompts. Non-ASCII text is kept as is.
func (b Bundle) JSON() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return "", errors.Wrap(err, "failed to encode evidence")
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// Summary is the trace-friendly view: type, shape and stats without records
func (b Bundle) Summary() map[string]any {
	out := map[string]any{"type": b.Type}
	if b.Shape != nil {
		out["shape"] = b.Shape
	}
	if b.SummaryStats != nil {
		out["summary_stats"] = *b.SummaryStats
	}
	return out
}
