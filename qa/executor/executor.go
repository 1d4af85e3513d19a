// Package executor runs query programs and classifies what they produce.
package executor

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/samarth/dataset"
	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/logger"
	"github.com/teranos/samarth/qa/plan"
)

// Kind classifies a successful result
type Kind string

const (
	TabularResult      Kind = "TabularResult"
	ScalarSeriesResult Kind = "ScalarSeriesResult"
	OpaqueResult       Kind = "OpaqueResult"
)

// FailureKind classifies a failed execution
type FailureKind string

const (
	MissingResult    FailureKind = "MissingResult"
	ExecutionFailure FailureKind = "ExecutionFailure"
)

// Failure is returned when a program cannot produce a result. Its Message
// is the text shown to users.
type Failure struct {
	Kind    FailureKind
	Message string
	cause   error
}

func (f *Failure) Error() string { return f.Message }

// Unwrap exposes the marked cause so errors.Is matches
// errors.ErrExecution or errors.ErrMissingResult.
func (f *Failure) Unwrap() error { return f.cause }

func newFailure(kind FailureKind, message string) *Failure {
	sentinel := errors.ErrExecution
	if kind == MissingResult {
		sentinel = errors.ErrMissingResult
	}
	return &Failure{
		Kind:    kind,
		Message: message,
		cause:   errors.Mark(errors.New(message), sentinel),
	}
}

// Result is a classified successful execution
type Result struct {
	Kind Kind

	// Exactly one of these is set, per Kind
	Table  *plan.Table
	Series *plan.Series
	Opaque string

	// Program is the text that ran
	Program string

	// Datasets are the names the program text references
	Datasets []string
}

// Total returns the full row or item count before any capping
func (r *Result) Total() int {
	switch r.Kind {
	case TabularResult:
		return r.Table.Len()
	case ScalarSeriesResult:
		return r.Series.Len()
	}
	return 0
}

// datasetRef finds dataset references in program text
var datasetRef = regexp.MustCompile(`"dataset"\s*:\s*"([^"]+)"`)

// DatasetsReferenced returns the dataset names in program text, in order of
// first appearance, without duplicates. It is lexical: a name counts even if
// the op that mentions it never runs.
func DatasetsReferenced(program string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range datasetRef.FindAllStringSubmatch(program, -1) {
		if name := m[1]; !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Executor evaluates programs against the dataset registry. Programs get
// dataset lookup and the plan ops, nothing else.
type Executor struct {
	evaluator *plan.Evaluator
	logger    *zap.SugaredLogger
}

// New creates an executor over source
func New(source plan.Source, opts plan.Options, log *zap.SugaredLogger) *Executor {
	return &Executor{
		evaluator: plan.NewEvaluator(source, opts),
		logger:    logger.OrNop(log),
	}
}

// Execute parses and evaluates program. Errors are always *Failure.
func (e *Executor) Execute(ctx context.Context, program string) (res *Result, err error) {
	start := time.Now()
	log := logger.FromContext(ctx, e.logger)

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = newFailure(ExecutionFailure, fmt.Sprintf("query panicked: %v", r))
		}
		if err != nil {
			log.Debugw("Query execution failed",
				logger.FieldError, err.Error(),
				logger.FieldDurationMS, time.Since(start).Milliseconds())
		}
	}()

	p, err := plan.Parse(program)
	if err != nil {
		return nil, newFailure(ExecutionFailure, err.Error())
	}

	v, err := e.evaluator.Evaluate(ctx, p)
	if errors.Is(err, errors.ErrMissingResult) {
		return nil, newFailure(MissingResult, "No result variable found in query")
	}
	if err != nil {
		return nil, newFailure(ExecutionFailure, err.Error())
	}

	res = &Result{Program: program, Datasets: DatasetsReferenced(program)}
	switch x := v.(type) {
	case *plan.Table:
		res.Kind, res.Table = TabularResult, x
	case *plan.Series:
		res.Kind, res.Series = ScalarSeriesResult, x
	case *plan.Scalar:
		res.Kind, res.Opaque = OpaqueResult, dataset.FormatValue(x.Value)
	default:
		return nil, newFailure(ExecutionFailure, fmt.Sprintf("unsupported result %T", v))
	}

	log.Debugw("Query executed",
		logger.FieldResultType, string(res.Kind),
		logger.FieldTotalCount, res.Total(),
		logger.FieldDatasets, res.Datasets,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return res, nil
}
