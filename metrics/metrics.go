// Package metrics is the narrow interface the pipeline records counters and
// timings through. Backends live in subpackages.
package metrics

import "time"

// Labels are metric dimensions
type Labels map[string]string

// Backend receives counter increments and histogram observations
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Metric names
const (
	StageTotal       = "samarth_stage_total"
	StageDuration    = "samarth_stage_duration_seconds"
	QuestionTotal    = "samarth_questions_total"
	QuestionDuration = "samarth_question_duration_seconds"
)

// Status label values
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Nop drops everything
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}

// OrNop returns b, or Nop when b is nil
func OrNop(b Backend) Backend {
	if b == nil {
		return Nop{}
	}
	return b
}

func status(ok bool) string {
	if ok {
		return StatusOK
	}
	return StatusError
}

// RecordStage counts one stage outcome and its duration
func RecordStage(b Backend, stage string, ok bool, d time.Duration) {
	l := Labels{"stage": stage, "status": status(ok)}
	b.IncCounter(StageTotal, 1, l)
	b.ObserveHistogram(StageDuration, d.Seconds(), l)
}

// RecordQuestion counts one answered question and its end-to-end duration
func RecordQuestion(b Backend, ok bool, d time.Duration) {
	l := Labels{"status": status(ok)}
	b.IncCounter(QuestionTotal, 1, l)
	b.ObserveHistogram(QuestionDuration, d.Seconds(), l)
}
