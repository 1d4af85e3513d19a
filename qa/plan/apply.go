package plan

import (
	"sort"
	"strings"

	"github.com/teranos/samarth/dataset"
	"github.com/teranos/samarth/errors"
)

func (op *Filter) apply(st *state, in Value) (Value, error) {
	t, err := asTable(op.Name(), in)
	if err != nil {
		return nil, err
	}
	if len(op.Where) == 0 {
		return nil, errors.New("filter needs at least one condition in \"where\"")
	}

	matchAny := false
	switch op.Match {
	case "", "all":
	case "any":
		matchAny = true
	default:
		return nil, errors.Newf("unknown match %q (want all or any)", op.Match)
	}

	preds := make([]func(row []any) bool, len(op.Where))
	for i, c := range op.Where {
		idx, err := t.columnIndex(c.Column)
		if err != nil {
			return nil, err
		}
		pred, err := st.predicate(c)
		if err != nil {
			return nil, err
		}
		preds[i] = func(row []any) bool { return pred(row[idx]) }
	}

	out := &Table{Columns: t.Columns}
	for _, row := range t.Rows {
		keep := !matchAny
		for _, p := range preds {
			if p(row) == matchAny {
				keep = matchAny
				break
			}
		}
		if keep {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// predicate compiles one condition against a cell value
func (st *state) predicate(c Condition) (func(v any) bool, error) {
	switch c.Cmp {
	case "is_null":
		return func(v any) bool { return v == nil }, nil
	case "not_null":
		return func(v any) bool { return v != nil }, nil
	}

	if c.Value == nil {
		return nil, errors.Newf("comparator %q on %q needs a value", c.Cmp, c.Column)
	}

	switch c.Cmp {
	case "eq", "==":
		return func(v any) bool { return st.equal(v, c.Value) }, nil
	case "ne", "!=":
		return func(v any) bool { return v == nil || !st.equal(v, c.Value) }, nil
	case "gt", "gte", "lt", "lte":
		return func(v any) bool {
			r, ok := st.compare(v, c.Value)
			if !ok {
				return false
			}
			switch c.Cmp {
			case "gt":
				return r > 0
			case "gte":
				return r >= 0
			case "lt":
				return r < 0
			}
			return r <= 0
		}, nil
	case "contains", "not_contains", "starts_with":
		needle, ok := c.Value.(string)
		if !ok {
			needle = dataset.FormatValue(c.Value)
		}
		needle = st.foldString(needle)
		return func(v any) bool {
			if v == nil {
				return c.Cmp == "not_contains"
			}
			hay := st.foldString(dataset.FormatValue(v))
			switch c.Cmp {
			case "contains":
				return strings.Contains(hay, needle)
			case "not_contains":
				return !strings.Contains(hay, needle)
			}
			return strings.HasPrefix(hay, needle)
		}, nil
	case "in":
		list, ok := c.Value.([]any)
		if !ok {
			return nil, errors.Newf("comparator \"in\" on %q needs a list value", c.Column)
		}
		return func(v any) bool {
			for _, want := range list {
				if st.equal(v, want) {
					return true
				}
			}
			return false
		}, nil
	}
	return nil, errors.Newf("unknown comparator %q", c.Cmp)
}

func (op *Select) apply(st *state, in Value) (Value, error) {
	t, err := asTable(op.Name(), in)
	if err != nil {
		return nil, err
	}
	if len(op.Columns) == 0 {
		return nil, errors.New("select needs at least one column")
	}

	idx := make([]int, len(op.Columns))
	cols := make([]dataset.Column, len(op.Columns))
	for i, name := range op.Columns {
		j, err := t.columnIndex(name)
		if err != nil {
			return nil, err
		}
		idx[i] = j
		cols[i] = t.Columns[j]
	}

	out := &Table{Columns: cols, Rows: make([][]any, len(t.Rows))}
	for r, row := range t.Rows {
		projected := make([]any, len(idx))
		for i, j := range idx {
			projected[i] = row[j]
		}
		out.Rows[r] = projected
	}
	return out, nil
}

// indices resolves names, or every column when names is empty
func (t *Table) indices(names []string) ([]int, error) {
	if len(names) == 0 {
		idx := make([]int, len(t.Columns))
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	idx := make([]int, len(names))
	for i, name := range names {
		j, err := t.columnIndex(name)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}
	return idx, nil
}

func (op *DropNulls) apply(st *state, in Value) (Value, error) {
	if s, ok := in.(*Series); ok {
		out := &Series{Name: s.Name, IndexName: s.IndexName}
		for i, v := range s.Values {
			if v != nil {
				out.Index = append(out.Index, s.Index[i])
				out.Values = append(out.Values, v)
			}
		}
		return out, nil
	}

	t, err := asTable(op.Name(), in)
	if err != nil {
		return nil, err
	}
	idx, err := t.indices(op.Columns)
	if err != nil {
		return nil, err
	}

	out := &Table{Columns: t.Columns}
rows:
	for _, row := range t.Rows {
		for _, j := range idx {
			if row[j] == nil {
				continue rows
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func (op *Distinct) apply(st *state, in Value) (Value, error) {
	t, err := asTable(op.Name(), in)
	if err != nil {
		return nil, err
	}
	idx, err := t.indices(op.Columns)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	out := &Table{Columns: t.Columns}
	key := make([]any, len(idx))
	for _, row := range t.Rows {
		for i, j := range idx {
			key[i] = row[j]
		}
		k := keyOf(key)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func (op *Sort) apply(st *state, in Value) (Value, error) {
	if len(op.By) == 0 {
		return nil, errors.New("sort needs at least one key in \"by\"")
	}

	switch v := in.(type) {
	case *Table:
		idx := make([]int, len(op.By))
		for i, k := range op.By {
			j, err := v.columnIndex(k.Column)
			if err != nil {
				return nil, err
			}
			idx[i] = j
		}
		rows := append([][]any(nil), v.Rows...)
		sort.SliceStable(rows, func(a, b int) bool {
			for i, k := range op.By {
				if c := directed(rows[a][idx[i]], rows[b][idx[i]], k.Desc); c != 0 {
					return c < 0
				}
			}
			return false
		})
		return &Table{Columns: v.Columns, Rows: rows}, nil

	case *Series:
		for _, k := range op.By {
			if k.Column != "value" && k.Column != "index" {
				return nil, errors.Newf("series sort key must be \"value\" or \"index\", got %q", k.Column)
			}
		}
		perm := make([]int, v.Len())
		for i := range perm {
			perm[i] = i
		}
		sort.SliceStable(perm, func(a, b int) bool {
			for _, k := range op.By {
				src := v.Values
				if k.Column == "index" {
					src = v.Index
				}
				if c := directed(src[perm[a]], src[perm[b]], k.Desc); c != 0 {
					return c < 0
				}
			}
			return false
		})
		out := &Series{Name: v.Name, IndexName: v.IndexName, Index: make([]any, len(perm)), Values: make([]any, len(perm))}
		for i, p := range perm {
			out.Index[i] = v.Index[p]
			out.Values[i] = v.Values[p]
		}
		return out, nil
	}
	return nil, errors.Newf("sort requires a table or series, got %s", kindOf(in))
}

// directed applies sort direction while keeping nulls last either way
func directed(a, b any, desc bool) int {
	if a == nil || b == nil {
		return order(a, b)
	}
	if desc {
		return order(b, a)
	}
	return order(a, b)
}

func (op *Head) apply(st *state, in Value) (Value, error) {
	if op.N < 0 {
		return nil, errors.Newf("head n must be non-negative, got %d", op.N)
	}
	switch v := in.(type) {
	case *Table:
		n := min(op.N, v.Len())
		return &Table{Columns: v.Columns, Rows: v.Rows[:n]}, nil
	case *Series:
		n := min(op.N, v.Len())
		return &Series{Name: v.Name, IndexName: v.IndexName, Index: v.Index[:n], Values: v.Values[:n]}, nil
	}
	return nil, errors.Newf("head requires a table or series, got %s", kindOf(in))
}

func (op *Join) apply(st *state, in Value) (Value, error) {
	left, err := asTable(op.Name(), in)
	if err != nil {
		return nil, err
	}
	if len(op.On) == 0 {
		return nil, errors.New("join needs at least one key in \"on\"")
	}
	how := op.How
	switch how {
	case "":
		how = "inner"
	case "inner", "left":
	default:
		return nil, errors.Newf("unknown join %q (want inner or left)", op.How)
	}

	right, err := st.load(op.Dataset)
	if err != nil {
		return nil, err
	}

	li := make([]int, len(op.On))
	ri := make([]int, len(op.On))
	for i, k := range op.On {
		if li[i], err = left.columnIndex(k.Left); err != nil {
			return nil, errors.Wrap(err, "left side")
		}
		if ri[i], err = right.columnIndex(k.Right); err != nil {
			return nil, errors.Wrapf(err, "right side (%s)", op.Dataset)
		}
	}

	// Keys compare case-folded, like eq
	buckets := make(map[string][]int)
	rkey := make([]any, len(ri))
	for r, row := range right.Rows {
		null := false
		for i, j := range ri {
			rkey[i] = st.joinKey(row[j])
			null = null || row[j] == nil
		}
		if null {
			continue
		}
		k := keyOf(rkey)
		buckets[k] = append(buckets[k], r)
	}

	columns := append([]dataset.Column(nil), left.Columns...)
	taken := make(map[string]bool, len(columns))
	for _, c := range columns {
		taken[c.Name] = true
	}
	for _, c := range right.Columns {
		name := c.Name
		for taken[name] {
			name += "_right"
		}
		taken[name] = true
		columns = append(columns, dataset.Column{Name: name, Type: c.Type})
	}

	out := &Table{Columns: columns}
	lkey := make([]any, len(li))
	emit := func(l []any, r []any) error {
		if len(out.Rows) >= st.opts.MaxJoinRows {
			return errors.Newf("join with %s exceeds %d rows", op.Dataset, st.opts.MaxJoinRows)
		}
		row := make([]any, 0, len(columns))
		row = append(row, l...)
		if r == nil {
			row = append(row, make([]any, len(right.Columns))...)
		} else {
			row = append(row, r...)
		}
		out.Rows = append(out.Rows, row)
		return nil
	}

	for _, l := range left.Rows {
		if err := st.ctx.Err(); err != nil {
			return nil, err
		}
		for i, j := range li {
			lkey[i] = st.joinKey(l[j])
		}
		matches := buckets[keyOf(lkey)]
		for _, r := range matches {
			if err := emit(l, right.Rows[r]); err != nil {
				return nil, err
			}
		}
		if len(matches) == 0 && how == "left" {
			if err := emit(l, nil); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// joinKey normalizes a key cell so join matching agrees with eq
func (st *state) joinKey(v any) any {
	switch x := v.(type) {
	case string:
		return st.foldString(x)
	case int64:
		return float64(x)
	}
	return v
}

func (op *ValueCounts) apply(st *state, in Value) (Value, error) {
	var values []any
	name := op.Column
	switch v := in.(type) {
	case *Table:
		j, err := v.columnIndex(op.Column)
		if err != nil {
			return nil, err
		}
		values = make([]any, len(v.Rows))
		for i, row := range v.Rows {
			values[i] = row[j]
		}
	case *Series:
		values = v.Values
		name = v.Name
	default:
		return nil, errors.Newf("value_counts requires a table or series, got %s", kindOf(in))
	}

	counts := make(map[string]int64)
	var firsts []any
	for _, v := range values {
		if v == nil {
			continue
		}
		k := keyOf([]any{v})
		if _, ok := counts[k]; !ok {
			firsts = append(firsts, v)
		}
		counts[k]++
	}

	sort.SliceStable(firsts, func(a, b int) bool {
		return counts[keyOf([]any{firsts[a]})] > counts[keyOf([]any{firsts[b]})]
	})

	out := &Series{Name: "count", IndexName: name, Index: firsts, Values: make([]any, len(firsts))}
	for i, v := range firsts {
		out.Values[i] = counts[keyOf([]any{v})]
	}
	return out, nil
}

func (op *Column) apply(st *state, in Value) (Value, error) {
	t, err := asTable(op.Name(), in)
	if err != nil {
		return nil, err
	}
	j, err := t.columnIndex(op.Column)
	if err != nil {
		return nil, err
	}
	out := &Series{Name: op.Column, Index: make([]any, len(t.Rows)), Values: make([]any, len(t.Rows))}
	for i, row := range t.Rows {
		out.Index[i] = int64(i)
		out.Values[i] = row[j]
	}
	return out, nil
}

func (op *Count) apply(st *state, in Value) (Value, error) {
	switch v := in.(type) {
	case *Table:
		return &Scalar{Value: int64(v.Len())}, nil
	case *Series:
		return &Scalar{Value: int64(v.Len())}, nil
	}
	return nil, errors.Newf("count requires a table or series, got %s", kindOf(in))
}
