package logger

// OutputCategory defines a category of CLI output that can be enabled/disabled.
//
// Unlike log levels (which filter by severity), output categories control
// WHAT is printed alongside an answer:
//
//	0 (default) - answer, sources, errors
//	1 (-v)      - + stage progress, loaded datasets
//	2 (-vv)     - + selected datasets, query plan, evidence bundle, timing
//	3 (-vvv)    - + full prompts sent to the model
//	4 (-vvvv)   - + raw model responses
type OutputCategory int

const (
	// Level 0 (default) - Always shown
	OutputAnswer OutputCategory = iota
	OutputSources
	OutputErrors

	// Level 1 (-v) - Informational
	OutputProgress
	OutputDatasets

	// Level 2 (-vv) - Detailed
	OutputSelection
	OutputQueryPlan
	OutputEvidence
	OutputTiming

	// Level 3 (-vvv) - Debug
	OutputPrompts

	// Level 4 (-vvvv) - Full dump
	OutputRawResponse
)

// categoryLevels maps each output category to its minimum verbosity level
var categoryLevels = map[OutputCategory]int{
	OutputAnswer:  VerbosityUser,
	OutputSources: VerbosityUser,
	OutputErrors:  VerbosityUser,

	OutputProgress: VerbosityInfo,
	OutputDatasets: VerbosityInfo,

	OutputSelection: VerbosityDebug,
	OutputQueryPlan: VerbosityDebug,
	OutputEvidence:  VerbosityDebug,
	OutputTiming:    VerbosityDebug,

	OutputPrompts: VerbosityTrace,

	OutputRawResponse: VerbosityAll,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}

var categoryNames = map[OutputCategory]string{
	OutputAnswer:      "answer",
	OutputSources:     "sources",
	OutputErrors:      "errors",
	OutputProgress:    "progress",
	OutputDatasets:    "datasets",
	OutputSelection:   "selection",
	OutputQueryPlan:   "query-plan",
	OutputEvidence:    "evidence",
	OutputTiming:      "timing",
	OutputPrompts:     "prompts",
	OutputRawResponse: "raw-response",
}

// CategoryName returns the human-readable name for an output category
func CategoryName(category OutputCategory) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return "unknown"
}
