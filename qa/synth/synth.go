// Package synth turns a question and a schema description into query plan
// text with one model call.
package synth

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/logger"
	"github.com/teranos/samarth/model"
	"github.com/teranos/samarth/qa/evidence"
	"github.com/teranos/samarth/qa/plan"
	"github.com/teranos/samarth/qa/prompt"
	"github.com/teranos/samarth/qa/schema"
)

// Error is a synthesis failure. It wraps errors.ErrSynthesis.
type Error struct {
	Message string
	CallID  string
	Raw     string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

func newError(message, callID, raw string, cause error) *Error {
	if cause == nil {
		cause = errors.New(message)
	}
	return &Error{
		Message: message,
		CallID:  callID,
		Raw:     raw,
		cause:   errors.Mark(cause, errors.ErrSynthesis),
	}
}

// Synthesis is one successful synthesis
type Synthesis struct {
	Program   string
	Prompt    string
	Raw       string
	CallID    string
	Extractor string
}

// Synthesizer builds the query-generation prompt and extracts the plan
type Synthesizer struct {
	caller     model.Caller
	maxResults int
	extractors []Extractor
	log        *zap.SugaredLogger
}

// New returns a synthesizer using DefaultExtractors. maxResults <= 0 uses
// evidence.DefaultMaxResults.
func New(caller model.Caller, maxResults int, log *zap.SugaredLogger) *Synthesizer {
	if maxResults <= 0 {
		maxResults = evidence.DefaultMaxResults
	}
	return &Synthesizer{
		caller:     caller,
		maxResults: maxResults,
		extractors: DefaultExtractors(),
		log:        logger.OrNop(log),
	}
}

// Prompt renders the query-generation prompt
func (s *Synthesizer) Prompt(question string, desc schema.Description) string {
	n := s.maxResults
	return prompt.New().
		Inline("SYSTEM", "You are a senior data analyst who writes precise query plans.").
		Raw(desc.Render()).
		Block("QUESTION", question).
		Bullets("CONSTRAINTS",
			"Use exact dataset names and column names as shown in <SCHEMA>",
			`Start every query from a dataset: {"dataset": "dataset_name", "ops": [...]}`,
			"Prefer filter, group and sort ops",
			fmt.Sprintf(`Always cap outputs with {"op": "head", "n": %d}`, n),
			"Avoid joins unless necessary; if joining, use the key columns shown in <SCHEMA>",
			"Handle null values appropriately (drop_nulls, is_null, not_null)",
			`Use "cmp": "contains" for string matching; it is case-insensitive`,
			`Return a single JSON object that binds the final query to "result"`,
		).
		Block("OPS", opsReference()).
		Block("OUTPUT_FORMAT", fmt.Sprintf(outputFormat, n)).
		String()
}

// opUsage documents each op for the OPS block
var opUsage = map[string]string{
	"filter":       `{"op": "filter", "where": [{"column": C, "cmp": eq|ne|gt|gte|lt|lte|contains|not_contains|starts_with|in|is_null|not_null, "value": V}], "match": "all"|"any"}`,
	"select":       `{"op": "select", "columns": [C, ...]}`,
	"drop_nulls":   `{"op": "drop_nulls", "columns": [C, ...]}`,
	"distinct":     `{"op": "distinct", "columns": [C, ...]}`,
	"group":        `{"op": "group", "by": [C, ...], "aggs": [{"fn": count|sum|mean|min|max|nunique, "column": C, "as": NAME}]}`,
	"sort":         `{"op": "sort", "by": [{"column": C, "desc": true}]}  (on a series, C is "value" or "index")`,
	"head":         `{"op": "head", "n": N}`,
	"join":         `{"op": "join", "dataset": D, "on": [{"left": C, "right": C}], "how": "inner"|"left"}`,
	"value_counts": `{"op": "value_counts", "column": C}  (returns a series)`,
	"column":       `{"op": "column", "column": C}  (returns a series)`,
	"count":        `{"op": "count"}  (returns a number)`,
	"reduce":       `{"op": "reduce", "fn": sum|mean|min|max|nunique, "column": C}  (returns a number)`,
}

// opsReference renders one line per supported op, in plan.OpNames order
func opsReference() string {
	var sb strings.Builder
	for i, name := range plan.OpNames() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(opUsage[name])
	}
	return sb.String()
}

const outputFormat = `Return only the query plan JSON inside <QUERY_PLAN> tags.
Example:
<QUERY_PLAN>
{"result": {"dataset": "agmark_mandis_and_locations",
            "ops": [{"op": "filter", "where": [{"column": "State Name", "cmp": "contains", "value": "Punjab"}]},
                    {"op": "head", "n": %d}]}}
</QUERY_PLAN>`

// Synthesize makes the query-generation call and extracts the plan text.
// Every failure is a *Error.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, desc schema.Description) (*Synthesis, error) {
	log := logger.FromContext(ctx, s.log)
	text := s.Prompt(question, desc)

	resp, err := s.caller.Call(ctx, text, model.CallQueryGeneration)
	if err != nil {
		return nil, newError(err.Error(), resp.CallID, "", err)
	}

	raw := resp.Text
	if strings.TrimSpace(raw) == "" {
		return nil, newError("model returned no text", resp.CallID, raw, nil)
	}

	// Degraded text only counts as a plan if it still carries one
	if model.IsDegraded(raw) {
		if _, ok := (Delimited{}).Extract(raw); !ok {
			if _, ok := (Fence{}).Extract(raw); !ok {
				return nil, newError(strings.TrimSpace(raw), resp.CallID, raw,
					errors.Mark(errors.New(strings.TrimSpace(raw)), errors.ErrModelDegraded))
			}
		}
	}

	program, by, ok := Extract(raw, s.extractors)
	if !ok || program == "" {
		return nil, newError("failed to extract a query plan from the model response", resp.CallID, raw, nil)
	}

	log.Infow("query plan extracted",
		logger.FieldCallID, resp.CallID,
		"extractor", by,
		logger.FieldSize, len(program),
	)

	return &Synthesis{
		Program:   program,
		Prompt:    text,
		Raw:       raw,
		CallID:    resp.CallID,
		Extractor: by,
	}, nil
}
