package plan

import (
	"context"

	"golang.org/x/text/cases"

	"github.com/teranos/samarth/dataset"
	"github.com/teranos/samarth/errors"
)

// DefaultMaxJoinRows caps the rows a join may produce
const DefaultMaxJoinRows = 1_000_000

// Source resolves dataset names. It is the only capability a program gets.
type Source interface {
	Get(name string) (*dataset.Dataset, error)
}

// Options bound evaluation
type Options struct {
	MaxJoinRows int
}

// Evaluator runs programs against a dataset source
type Evaluator struct {
	source Source
	opts   Options
}

// NewEvaluator creates an evaluator. A zero MaxJoinRows uses DefaultMaxJoinRows.
func NewEvaluator(source Source, opts Options) *Evaluator {
	if opts.MaxJoinRows <= 0 {
		opts.MaxJoinRows = DefaultMaxJoinRows
	}
	return &Evaluator{source: source, opts: opts}
}

// state is per-evaluation. cases.Caser is stateful, so each run gets its own.
type state struct {
	ctx    context.Context
	source Source
	opts   Options
	fold   cases.Caser
}

func (s *state) foldString(v string) string {
	return s.fold.String(v)
}

func (s *state) load(name string) (*Table, error) {
	d, err := s.source.Get(name)
	if err != nil {
		return nil, errors.Newf("dataset %q not found", name)
	}
	return tableFrom(d), nil
}

// Evaluate runs the program and returns the value bound to the result slot.
// A program without a result returns errors.ErrMissingResult.
func (e *Evaluator) Evaluate(ctx context.Context, p *Program) (Value, error) {
	if p == nil || p.Result == nil {
		return nil, errors.ErrMissingResult
	}

	st := &state{ctx: ctx, source: e.source, opts: e.opts, fold: cases.Fold()}

	start, err := st.load(p.Result.Dataset)
	if err != nil {
		return nil, err
	}

	var v Value = start

	for i, op := range p.Result.Ops {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "evaluation cancelled")
		}
		v, err = op.apply(st, v)
		if err != nil {
			return nil, errors.Wrapf(err, "%s (ops[%d])", op.Name(), i)
		}
	}
	return v, nil
}

func asTable(op string, v Value) (*Table, error) {
	t, ok := v.(*Table)
	if !ok {
		return nil, errors.Newf("%s requires a table, got %s", op, kindOf(v))
	}
	return t, nil
}

func kindOf(v Value) string {
	switch v.(type) {
	case *Table:
		return "table"
	case *Series:
		return "series"
	case *Scalar:
		return "scalar"
	}
	return "nothing"
}
