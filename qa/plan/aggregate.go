package plan

import (
	"sort"

	"github.com/teranos/samarth/dataset"
	"github.com/teranos/samarth/errors"
)

// aggregate folds values with fn. colType is the source column's type.
func aggregate(fn string, values []any, colType dataset.Type) (any, dataset.Type, error) {
	switch fn {
	case "count":
		n := int64(0)
		for _, v := range values {
			if v != nil {
				n++
			}
		}
		return n, dataset.TypeInt, nil

	case "nunique":
		seen := make(map[string]struct{})
		for _, v := range values {
			if v != nil {
				seen[keyOf([]any{v})] = struct{}{}
			}
		}
		return int64(len(seen)), dataset.TypeInt, nil

	case "sum", "mean":
		var isum int64
		var fsum float64
		n := 0
		allInt := true
		for _, v := range values {
			if v == nil {
				continue
			}
			f, ok := toFloat(v)
			if !ok {
				return nil, "", errors.Newf("cannot %s non-numeric value %q", fn, dataset.FormatValue(v))
			}
			if i, isInt := v.(int64); isInt {
				isum += i
			} else {
				allInt = false
			}
			fsum += f
			n++
		}
		if fn == "mean" {
			if n == 0 {
				return nil, dataset.TypeFloat, nil
			}
			return fsum / float64(n), dataset.TypeFloat, nil
		}
		if allInt && colType != dataset.TypeFloat {
			return isum, dataset.TypeInt, nil
		}
		return fsum, dataset.TypeFloat, nil

	case "min", "max":
		var best any
		for _, v := range values {
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c := order(v, best)
			if (fn == "min" && c < 0) || (fn == "max" && c > 0) {
				best = v
			}
		}
		return best, colType, nil
	}
	return nil, "", errors.Newf("unknown aggregate %q (want count, sum, mean, min, max or nunique)", fn)
}

func (op *Group) apply(st *state, in Value) (Value, error) {
	t, err := asTable(op.Name(), in)
	if err != nil {
		return nil, err
	}
	if len(op.By) == 0 {
		return nil, errors.New("group needs at least one column in \"by\"")
	}
	if len(op.Aggs) == 0 {
		return nil, errors.New("group needs at least one aggregate in \"aggs\"")
	}

	byIdx, err := t.indices(op.By)
	if err != nil {
		return nil, err
	}

	aggIdx := make([]int, len(op.Aggs))
	for i, a := range op.Aggs {
		aggIdx[i] = -1
		if a.Column == "" {
			if a.Fn != "count" {
				return nil, errors.Newf("aggregate %s needs a column", a.Fn)
			}
			continue
		}
		if aggIdx[i], err = t.columnIndex(a.Column); err != nil {
			return nil, err
		}
	}

	type group struct {
		key  []any
		rows [][]any
	}
	groups := make(map[string]*group)
	var ordered []*group
	for _, row := range t.Rows {
		key := make([]any, len(byIdx))
		null := false
		for i, j := range byIdx {
			key[i] = row[j]
			null = null || row[j] == nil
		}
		// Null keys are dropped, as groupby does by default
		if null {
			continue
		}
		k := keyOf(key)
		g, ok := groups[k]
		if !ok {
			g = &group{key: key}
			groups[k] = g
			ordered = append(ordered, g)
		}
		g.rows = append(g.rows, row)
	}

	sort.SliceStable(ordered, func(a, b int) bool {
		for i := range byIdx {
			if c := order(ordered[a].key[i], ordered[b].key[i]); c != 0 {
				return c < 0
			}
		}
		return false
	})

	columns := make([]dataset.Column, 0, len(byIdx)+len(op.Aggs))
	for _, j := range byIdx {
		columns = append(columns, t.Columns[j])
	}
	aggTypes := make([]dataset.Type, len(op.Aggs))

	out := &Table{}
	for _, g := range ordered {
		row := append([]any(nil), g.key...)
		for i, a := range op.Aggs {
			var values []any
			colType := dataset.TypeInt
			if j := aggIdx[i]; j >= 0 {
				colType = t.Columns[j].Type
				values = make([]any, len(g.rows))
				for r, gr := range g.rows {
					values[r] = gr[j]
				}
			} else {
				// count without a column counts rows
				values = make([]any, len(g.rows))
				for r := range values {
					values[r] = true
				}
			}
			v, typ, err := aggregate(a.Fn, values, colType)
			if err != nil {
				return nil, err
			}
			aggTypes[i] = typ
			row = append(row, v)
		}
		out.Rows = append(out.Rows, row)
	}

	for i, a := range op.Aggs {
		typ := aggTypes[i]
		if typ == "" {
			// No groups; derive the type from an empty fold
			_, typ, err = aggregate(a.Fn, nil, columnType(t, aggIdx[i]))
			if err != nil {
				return nil, err
			}
		}
		columns = append(columns, dataset.Column{Name: aggName(a), Type: typ})
	}
	out.Columns = columns
	return out, nil
}

func columnType(t *Table, j int) dataset.Type {
	if j < 0 {
		return dataset.TypeInt
	}
	return t.Columns[j].Type
}

func aggName(a Agg) string {
	switch {
	case a.As != "":
		return a.As
	case a.Column == "":
		return a.Fn
	}
	return a.Column + "_" + a.Fn
}

func (op *Reduce) apply(st *state, in Value) (Value, error) {
	switch v := in.(type) {
	case *Table:
		if op.Column == "" {
			return nil, errors.Newf("reduce %s on a table needs a column", op.Fn)
		}
		j, err := v.columnIndex(op.Column)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(v.Rows))
		for i, row := range v.Rows {
			values[i] = row[j]
		}
		r, _, err := aggregate(op.Fn, values, v.Columns[j].Type)
		if err != nil {
			return nil, err
		}
		return &Scalar{Value: r}, nil

	case *Series:
		r, _, err := aggregate(op.Fn, v.Values, "")
		if err != nil {
			return nil, err
		}
		return &Scalar{Value: r}, nil
	}
	return nil, errors.Newf("reduce requires a table or series, got %s", kindOf(in))
}
