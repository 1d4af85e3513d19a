package plan

import (
	"math"
	"strconv"
	"strings"

	"github.com/teranos/samarth/dataset"
)

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	}
	return 0, false
}

// toNumber is toFloat plus numeric strings
func toNumber(v any) (float64, bool) {
	if f, ok := toFloat(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compare orders two non-null values for predicates. Strings compare
// case-folded; a number and a numeric string compare as numbers.
func (s *state) compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toNumber(b); ok {
			return cmpFloat(fa, fb), true
		}
		return 0, false
	}
	if fb, ok := toFloat(b); ok {
		if fa, ok := toNumber(a); ok {
			return cmpFloat(fa, fb), true
		}
		return 0, false
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(s.foldString(x), s.foldString(y)), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

func (s *state) equal(a, b any) bool {
	c, ok := s.compare(a, b)
	return ok && c == 0
}

// typeRank groups values of different types for sorting
func typeRank(v any) int {
	switch v.(type) {
	case bool:
		return 0
	case int64, int, float64:
		return 1
	case string:
		return 2
	case nil:
		return 4
	}
	return 3
}

// order is the total order used by sort and group: nulls last, then by
// type, then by value. Strings compare exactly.
func order(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case string:
		return strings.Compare(x, b.(string))
	case nil:
		return 0
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmpFloat(fa, fb)
		}
	}
	return strings.Compare(dataset.FormatValue(a), dataset.FormatValue(b))
}

// keyOf builds a map key for a tuple of values
func keyOf(values []any) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(0)
		}
		switch v.(type) {
		case nil:
			b.WriteString("n:")
		case string:
			b.WriteString("s:")
		case bool:
			b.WriteString("b:")
		default:
			b.WriteString("f:")
		}
		if f, ok := toFloat(v); ok {
			b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
			continue
		}
		b.WriteString(dataset.FormatValue(v))
	}
	return b.String()
}
