// Package answer turns evidence and citations into the final cited answer
// with the second model call.
package answer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/logger"
	"github.com/teranos/samarth/model"
	"github.com/teranos/samarth/qa/citation"
	"github.com/teranos/samarth/qa/evidence"
	"github.com/teranos/samarth/qa/prompt"
)

// Synthesis is the model's answer and the call that produced it
type Synthesis struct {
	Answer string
	Prompt string
	CallID string
}

// Synthesizer builds the answer prompt and returns the model text verbatim
type Synthesizer struct {
	caller model.Caller
	log    *zap.SugaredLogger
}

// New creates an answer synthesizer
func New(caller model.Caller, log *zap.SugaredLogger) *Synthesizer {
	return &Synthesizer{caller: caller, log: logger.OrNop(log)}
}

// Prompt renders the answer-synthesis prompt
func Prompt(question, program string, bundle evidence.Bundle, citations []citation.Citation) (string, error) {
	evidenceJSON, err := bundle.JSON()
	if err != nil {
		return "", err
	}

	return prompt.New().
		Inline("SYSTEM", "You are a precise policy/data analyst. Cite exact numbers and sources.").
		Block("QUESTION", question).
		Block("EXECUTED_CODE", program).
		Block("EVIDENCE", evidenceJSON).
		Raw(renderCitations(citations)).
		Bullets("INSTRUCTIONS",
			"Use only data from <EVIDENCE>; do not invent values",
			"Include explicit comparisons/trends if relevant",
			"Call out data gaps/limits (row caps, missing fields)",
			"Keep answer compact; use bullets where helpful",
			"Be specific with numbers and names from the evidence",
			`If evidence shows the data was capped, mention "showing top N results"`,
		).
		Block("OUTPUT_FORMAT", "Provide a concise answer paragraph or bullets, then end with:\n\n"+
			"Sources:\n- [List source names from <CITATIONS>]").
		String(), nil
}

func renderCitations(citations []citation.Citation) string {
	var b strings.Builder
	b.WriteString("<CITATIONS>\n")
	for _, c := range citations {
		b.WriteString("  <SOURCE>\n")
		b.WriteString("    " + prompt.Element("name", c.Name) + "\n")
		b.WriteString("    " + prompt.Element("source", c.Source) + "\n")
		b.WriteString("    " + prompt.Element("description", c.Description) + "\n")
		b.WriteString("  </SOURCE>\n")
	}
	b.WriteString("</CITATIONS>")
	return b.String()
}

// Synthesize makes the answer call. The model text, degraded or not, is the answer.
func (s *Synthesizer) Synthesize(ctx context.Context, question, program string, bundle evidence.Bundle, citations []citation.Citation) (*Synthesis, error) {
	text, err := Prompt(question, program, bundle, citations)
	if err != nil {
		return nil, err
	}

	resp, err := s.caller.Call(ctx, text, model.CallAnswerSynthesis)
	if err != nil {
		return nil, errors.Wrap(err, "answer synthesis call failed")
	}

	if model.IsDegraded(resp.Text) {
		logger.FromContext(ctx, s.log).Warnw("answer is degraded model output",
			logger.FieldCallID, resp.CallID)
	}

	return &Synthesis{Answer: resp.Text, Prompt: text, CallID: resp.CallID}, nil
}
