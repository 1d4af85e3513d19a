// Package trace records what happened while answering one question and
// persists it once the question reaches a terminal state.
package trace

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/samarth/qa/citation"
)

// Stage identifies a pipeline stage
type Stage string

const (
	StageQuerySynth  Stage = "QUERY_SYNTH"
	StageExecute     Stage = "EXECUTE"
	StageCite        Stage = "CITE"
	StageAnswerSynth Stage = "ANSWER_SYNTH"
)

// Name is the human-readable step name recorded in traces
func (s Stage) Name() string {
	switch s {
	case StageQuerySynth:
		return "Query Generation (LLM Call #1)"
	case StageExecute:
		return "Query Execution (Deterministic)"
	case StageCite:
		return "Citation Building (Deterministic)"
	case StageAnswerSynth:
		return "Answer Synthesis (LLM Call #2)"
	}
	return string(s)
}

// Label is the verb phrase used in "Error <label>: <message>"
func (s Stage) Label() string {
	switch s {
	case StageQuerySynth:
		return "generating query"
	case StageExecute:
		return "executing query"
	case StageCite:
		return "building citations"
	case StageAnswerSynth:
		return "synthesizing answer"
	}
	return strings.ToLower(string(s))
}

// Step is one stage record. Either Payload or Error is set.
type Step struct {
	Step       int            `json:"step"`
	Stage      Stage          `json:"stage"`
	Name       string         `json:"name"`
	CallID     string         `json:"call_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

// Trace is the full record of one question
type Trace struct {
	ID          string              `json:"id"`
	Timestamp   time.Time           `json:"timestamp"`
	Question    string              `json:"question"`
	Steps       []Step              `json:"steps"`
	FinalAnswer string              `json:"final_answer"`
	Citations   []citation.Citation `json:"citations"`
	Success     bool                `json:"success"`
	Error       string              `json:"error,omitempty"`
}

// New starts a trace for question
func New(question string, now time.Time) *Trace {
	return &Trace{
		ID:        uuid.NewString(),
		Timestamp: now,
		Question:  question,
		Steps:     []Step{},
		Citations: []citation.Citation{},
	}
}

// Append numbers and records a step. Steps are never modified once appended.
func (t *Trace) Append(s Step) Step {
	s.Step = len(t.Steps) + 1
	if s.Name == "" {
		s.Name = s.Stage.Name()
	}
	t.Steps = append(t.Steps, s)
	return s
}

// Last returns the most recent step, if any
func (t *Trace) Last() (Step, bool) {
	if len(t.Steps) == 0 {
		return Step{}, false
	}
	return t.Steps[len(t.Steps)-1], true
}

// Target is the persistence key: TRACE_<timestamp> with ':' replaced by '-'
func (t *Trace) Target() string {
	return "TRACE_" + strings.ReplaceAll(t.Timestamp.UTC().Format(time.RFC3339Nano), ":", "-")
}

// Sink persists a finished trace
type Sink interface {
	Save(ctx context.Context, t *Trace, target string) error
}

// Nop discards traces
type Nop struct{}

// Save implements Sink
func (Nop) Save(context.Context, *Trace, string) error { return nil }
