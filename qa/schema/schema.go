// Package schema describes datasets to the query-synthesis model.
package schema

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/samarth/dataset"
	"github.com/teranos/samarth/logger"
	"github.com/teranos/samarth/qa/prompt"
)

// DefaultSampleRows is how many leading rows each dataset shows
const DefaultSampleRows = 3

// Source resolves dataset names
type Source interface {
	Get(name string) (*dataset.Dataset, error)
}

// Field is one rendered sample cell
type Field struct {
	Name  string
	Value string
}

// Dataset is the description of a single dataset
type Dataset struct {
	Name     string
	RowCount int
	Columns  []dataset.ColumnProfile
	Sample   [][]Field
}

// Description is the schema context for one question
type Description struct {
	Datasets []Dataset
}

// Names returns the described dataset names in order
func (d Description) Names() []string {
	names := make([]string, len(d.Datasets))
	for i, ds := range d.Datasets {
		names[i] = ds.Name
	}
	return names
}

// Render produces the <SCHEMA> block
func (d Description) Render() string {
	var b strings.Builder
	b.WriteString("<SCHEMA>\n")
	for _, ds := range d.Datasets {
		fmt.Fprintf(&b, "  <DATASET name=\"%s\">\n", prompt.EscapeAttr(ds.Name))
		fmt.Fprintf(&b, "    <row_count>%d</row_count>\n", ds.RowCount)
		b.WriteString("    <columns>\n")
		for _, c := range ds.Columns {
			fmt.Fprintf(&b, "      <column name=\"%s\" dtype=\"%s\" unique=\"%d\" nulls=\"%d\"/>\n",
				prompt.EscapeAttr(c.Name), c.Type, c.Unique, c.Nulls)
		}
		b.WriteString("    </columns>\n")
		b.WriteString("    <sample_rows>\n")
		for i, row := range ds.Sample {
			fmt.Fprintf(&b, "      <row index=\"%d\">\n", i)
			for _, f := range row {
				fmt.Fprintf(&b, "        <field name=\"%s\">%s</field>\n", prompt.EscapeAttr(f.Name), prompt.Escape(f.Value))
			}
			b.WriteString("      </row>\n")
		}
		b.WriteString("    </sample_rows>\n")
		b.WriteString("  </DATASET>\n\n")
	}
	b.WriteString("</SCHEMA>")
	return b.String()
}

// Serializer builds descriptions from a dataset source
type Serializer struct {
	source     Source
	sampleRows int
	logger     *zap.SugaredLogger
}

// NewSerializer creates a serializer. sampleRows <= 0 uses DefaultSampleRows.
func NewSerializer(source Source, sampleRows int, log *zap.SugaredLogger) *Serializer {
	if sampleRows <= 0 {
		sampleRows = DefaultSampleRows
	}
	return &Serializer{source: source, sampleRows: sampleRows, logger: logger.OrNop(log)}
}

// Describe profiles the named datasets in the order given. Names the
// source does not hold are skipped.
func (s *Serializer) Describe(names []string) Description {
	var desc Description
	for _, name := range names {
		d, err := s.source.Get(name)
		if err != nil {
			s.logger.Debugw("Skipping unknown dataset in schema",
				logger.FieldDataset, name)
			continue
		}

		columns := d.Columns()
		sample := d.Sample(s.sampleRows)
		rows := make([][]Field, len(sample))
		for i, values := range sample {
			fields := make([]Field, len(columns))
			for j, c := range columns {
				fields[j] = Field{Name: c.Name, Value: dataset.FormatValue(values[j])}
			}
			rows[i] = fields
		}

		desc.Datasets = append(desc.Datasets, Dataset{
			Name:     d.Name(),
			RowCount: d.RowCount(),
			Columns:  d.Profile(),
			Sample:   rows,
		})
	}
	return desc
}
