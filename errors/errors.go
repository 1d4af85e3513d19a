// Package errors provides error handling for samarth.
//
// It re-exports github.com/cockroachdb/errors so every package gets stack
// traces, hints and details from one import, and it declares the sentinels
// the question-answering pipeline classifies its failures with.
//
// Usage:
//
//	if err := registry.Get(name); err != nil {
//	    return errors.Wrapf(err, "load %s", name)
//	}
//
//	// Classify a stage failure
//	return errors.Mark(errors.Newf("no result bound"), errors.ErrMissingResult)
//
//	if errors.Is(err, errors.ErrExecution) {
//	    // the plan ran and failed
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New           = crdb.New
	Newf          = crdb.Newf
	Wrap          = crdb.Wrap
	Wrapf         = crdb.Wrapf
	WithStack     = crdb.WithStack
	WithMessage   = crdb.WithMessage
	WithMessagef  = crdb.WithMessagef
	Mark          = crdb.Mark
	CombineErrors = crdb.CombineErrors
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// GetStack returns the reportable stack trace attached to an error.
var GetStack = crdb.GetReportableStackTrace

// Generic sentinels.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")
)

// Pipeline sentinels. Stage errors are marked with one of these so callers
// can classify a failure with Is() without knowing the concrete type.
var (
	// ErrSynthesis means no usable query plan could be extracted from the model output
	ErrSynthesis = New("query synthesis failed")

	// ErrExecution means the plan was evaluated and raised
	ErrExecution = New("query execution failed")

	// ErrMissingResult means the plan never bound the result slot
	ErrMissingResult = New("no result variable found in query")

	// ErrModelDegraded means the model transport answered with error text instead of content
	ErrModelDegraded = New("model call degraded")

	// ErrPersistence means a trace or call log could not be written
	ErrPersistence = New("persistence failed")

	// ErrUnknownDataset means a plan referenced a dataset the registry does not hold
	ErrUnknownDataset = New("unknown dataset")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsStageFailure reports whether err is one of the terminal pipeline failures.
func IsStageFailure(err error) bool {
	return err != nil && IsAny(err, ErrSynthesis, ErrExecution, ErrMissingResult)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidRequest)
}
