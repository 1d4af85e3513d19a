// Package model is the generative-model collaborator of the question
// pipeline: one prompt in, one text (or a transport error) out.
//
// The concrete Caller is ChatCaller over an ai/provider client. Wrappers add
// the optional behaviors the pipeline does not own itself:
//
//	caller := model.Journal(
//	    model.Degrade(model.WithTimeout(model.NewChatCaller(client, log), 2*time.Minute), log),
//	    "llm_logs", log)
package model

import (
	"context"
	"strings"
	"time"

	"github.com/teranos/samarth/errors"
)

// CallType labels the purpose of a model call
type CallType string

const (
	CallQueryGeneration CallType = "query_generation"
	CallAnswerSynthesis CallType = "answer_synthesis"
)

// DegradedPrefix starts every text Degrade substitutes for a transport error
const DegradedPrefix = "Error generating content: "

// Response is the model's text and the id of the call that produced it
type Response struct {
	Text   string
	CallID string
}

// Caller issues one model call
type Caller interface {
	Call(ctx context.Context, prompt string, callType CallType) (Response, error)
}

// CallerFunc adapts a function to Caller
type CallerFunc func(ctx context.Context, prompt string, callType CallType) (Response, error)

// Call implements Caller
func (f CallerFunc) Call(ctx context.Context, prompt string, callType CallType) (Response, error) {
	return f(ctx, prompt, callType)
}

// TransportError is a failed call: network, HTTP status, provider error or
// timeout. CallID is set so the failure can be matched with its call log.
type TransportError struct {
	CallID   string
	CallType CallType
	Err      error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewCallID formats <call_type>_<UTC timestamp>, with ':' replaced so the id
// is usable as a file name.
func NewCallID(callType CallType, now time.Time) string {
	ts := now.UTC().Format("2006-01-02T15:04:05.000000")
	return string(callType) + "_" + strings.ReplaceAll(ts, ":", "-")
}

// IsDegraded reports whether text is a substituted transport error rather
// than model output.
func IsDegraded(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "Error")
}

func transportError(callID string, callType CallType, err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return &TransportError{CallID: callID, CallType: callType, Err: err}
}
