package synth

import (
	"regexp"
	"strings"
)

// Delimiters around the plan in model output
const (
	OpenTag  = "<QUERY_PLAN>"
	CloseTag = "</QUERY_PLAN>"
)

// Extractor pulls program text out of a model response
type Extractor interface {
	Name() string
	Extract(text string) (string, bool)
}

// Delimited takes the first <QUERY_PLAN>...</QUERY_PLAN> block
type Delimited struct{}

var delimitedRe = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(OpenTag) + `(.*?)` + regexp.QuoteMeta(CloseTag))

func (Delimited) Name() string { return "delimited" }

func (Delimited) Extract(text string) (string, bool) {
	m := delimitedRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Fence takes the first ``` fenced block, whatever its info string
type Fence struct{}

var fenceRe = regexp.MustCompile("(?s)```[^\\n`]*\\n?(.*?)```")

func (Fence) Name() string { return "fence" }

func (Fence) Extract(text string) (string, bool) {
	m := fenceRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Raw takes the whole response
type Raw struct{}

func (Raw) Name() string { return "raw" }

func (Raw) Extract(text string) (string, bool) {
	return strings.TrimSpace(text), true
}

// DefaultExtractors returns delimited, fence, raw in precedence order
func DefaultExtractors() []Extractor {
	return []Extractor{Delimited{}, Fence{}, Raw{}}
}

// Extract runs extractors in order and returns the first match with the
// name of the extractor that produced it. A match may be empty.
func Extract(text string, extractors []Extractor) (program, by string, ok bool) {
	for _, e := range extractors {
		if p, ok := e.Extract(text); ok {
			return p, e.Name(), true
		}
	}
	return "", "", false
}
