// Package pipeline answers one question at a time: pick datasets, ask the
// model for a query plan, run it, cite the sources and ask the model to
// write the answer. Every question leaves exactly one trace.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/logger"
	"github.com/teranos/samarth/metrics"
	"github.com/teranos/samarth/qa/answer"
	"github.com/teranos/samarth/qa/citation"
	"github.com/teranos/samarth/qa/evidence"
	"github.com/teranos/samarth/qa/executor"
	"github.com/teranos/samarth/qa/relevance"
	"github.com/teranos/samarth/qa/schema"
	"github.com/teranos/samarth/qa/synth"
	"github.com/teranos/samarth/trace"
)

// Answer is what Ask returns. On failure Answer is empty and Error holds the
// stage's message.
type Answer struct {
	Success   bool                `json:"success"`
	Question  string              `json:"question"`
	Answer    string              `json:"answer,omitempty"`
	Citations []citation.Citation `json:"citations"`
	Error     string              `json:"error,omitempty"`
	Trace     *trace.Trace        `json:"trace"`
}

// Config wires the stage components. Sink, Metrics, Logger and Now are optional.
type Config struct {
	Selector    *relevance.Selector
	Schema      *schema.Serializer
	Synthesizer *synth.Synthesizer
	Executor    *executor.Executor
	Citations   *citation.Builder
	Answerer    *answer.Synthesizer

	Sink       trace.Sink
	Metrics    metrics.Backend
	MaxResults int
	Logger     *zap.SugaredLogger
	Now        func() time.Time
}

// Pipeline runs questions. Ask calls are serialized.
type Pipeline struct {
	mu sync.Mutex

	selector *relevance.Selector
	schema   *schema.Serializer
	synth    *synth.Synthesizer
	executor *executor.Executor
	cite     *citation.Builder
	answerer *answer.Synthesizer

	sink       trace.Sink
	metrics    metrics.Backend
	maxResults int
	log        *zap.SugaredLogger
	now        func() time.Time
}

// New validates cfg and builds a pipeline
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Selector == nil:
		return nil, errors.New("pipeline: relevance selector is required")
	case cfg.Schema == nil:
		return nil, errors.New("pipeline: schema serializer is required")
	case cfg.Synthesizer == nil:
		return nil, errors.New("pipeline: query synthesizer is required")
	case cfg.Executor == nil:
		return nil, errors.New("pipeline: executor is required")
	case cfg.Citations == nil:
		return nil, errors.New("pipeline: citation builder is required")
	case cfg.Answerer == nil:
		return nil, errors.New("pipeline: answer synthesizer is required")
	}

	p := &Pipeline{
		selector:   cfg.Selector,
		schema:     cfg.Schema,
		synth:      cfg.Synthesizer,
		executor:   cfg.Executor,
		cite:       cfg.Citations,
		answerer:   cfg.Answerer,
		sink:       cfg.Sink,
		metrics:    metrics.OrNop(cfg.Metrics),
		maxResults: cfg.MaxResults,
		log:        logger.OrNop(cfg.Logger),
		now:        cfg.Now,
	}
	if p.sink == nil {
		p.sink = trace.Nop{}
	}
	if p.maxResults <= 0 {
		p.maxResults = evidence.DefaultMaxResults
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// run is the state of one Ask
type run struct {
	p        *Pipeline
	ctx      context.Context
	log      *zap.SugaredLogger
	tr       *trace.Trace
	start    time.Time
	stage    trace.Stage
	finished *Answer
}

// Ask answers question. It never panics and always returns a trace.
func (p *Pipeline) Ask(ctx context.Context, question string) (ans *Answer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tr := trace.New(question, p.now())
	ctx = logger.WithTraceID(ctx, tr.ID)
	r := &run{
		p:     p,
		ctx:   ctx,
		log:   logger.FromContext(ctx, p.log),
		tr:    tr,
		start: time.Now(),
		stage: trace.StageQuerySynth,
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorw("Pipeline panicked",
				logger.FieldStage, string(r.stage),
				logger.FieldError, fmt.Sprint(rec))
			if r.finished != nil {
				ans = r.finished
				return
			}
			ans = r.fail(time.Now(), "", fmt.Sprintf("panic: %v", rec))
		}
	}()

	r.log.Infow("Answering question", logger.FieldQuestion, question)
	return r.execute()
}

func (r *run) execute() *Answer {
	p := r.p

	// QUERY_SYNTH
	began := time.Now()
	names := p.selector.Select(r.tr.Question)
	desc := p.schema.Describe(names)
	syn, err := p.synth.Synthesize(r.ctx, r.tr.Question, desc)
	if err != nil {
		var serr *synth.Error
		callID := ""
		if errors.As(err, &serr) {
			callID = serr.CallID
		}
		return r.fail(began, callID, err.Error())
	}
	r.succeed(began, syn.CallID, map[string]any{
		"log_id":            syn.CallID,
		"query_code":        syn.Program,
		"relevant_datasets": names,
	})

	// EXECUTE
	r.stage = trace.StageExecute
	began = time.Now()
	res, err := p.executor.Execute(r.ctx, syn.Program)
	if err != nil {
		return r.fail(began, "", err.Error())
	}
	bundle := evidence.Build(res, res.Datasets, p.maxResults)
	r.succeed(began, "", map[string]any{
		"evidence_summary": bundle.Summary(),
	})

	// CITE
	r.stage = trace.StageCite
	began = time.Now()
	citations := p.cite.Cite(bundle.DatasetsUsed)
	r.succeed(began, "", map[string]any{
		"citations": citations,
	})

	// ANSWER_SYNTH
	r.stage = trace.StageAnswerSynth
	began = time.Now()
	out, err := p.answerer.Synthesize(r.ctx, r.tr.Question, syn.Program, bundle, citations)
	if err != nil {
		return r.fail(began, "", err.Error())
	}
	r.succeed(began, out.CallID, map[string]any{
		"log_id": out.CallID,
	})

	r.tr.FinalAnswer = out.Answer
	r.tr.Citations = citations
	r.tr.Success = true

	return r.finish(&Answer{
		Success:   true,
		Question:  r.tr.Question,
		Answer:    out.Answer,
		Citations: citations,
		Trace:     r.tr,
	})
}

func (r *run) succeed(began time.Time, callID string, payload map[string]any) {
	d := time.Since(began)
	r.tr.Append(trace.Step{
		Stage:      r.stage,
		CallID:     callID,
		Payload:    payload,
		DurationMS: d.Milliseconds(),
	})
	metrics.RecordStage(r.p.metrics, string(r.stage), true, d)
	r.log.Debugw("Stage complete",
		logger.FieldStage, string(r.stage),
		logger.FieldDurationMS, d.Milliseconds())
}

// fail records the current stage as failed and ends the run
func (r *run) fail(began time.Time, callID, message string) *Answer {
	d := time.Since(began)
	r.tr.Append(trace.Step{
		Stage:      r.stage,
		CallID:     callID,
		Error:      message,
		DurationMS: d.Milliseconds(),
	})
	metrics.RecordStage(r.p.metrics, string(r.stage), false, d)

	r.tr.FinalAnswer = fmt.Sprintf("Error %s: %s", r.stage.Label(), message)
	r.tr.Error = message
	r.tr.Success = false

	r.log.Warnw("Question failed",
		logger.FieldStage, string(r.stage),
		logger.FieldError, message)

	return r.finish(&Answer{
		Success:   false,
		Question:  r.tr.Question,
		Citations: []citation.Citation{},
		Error:     message,
		Trace:     r.tr,
	})
}

// finish runs once per question, after the terminal state is reached
func (r *run) finish(ans *Answer) *Answer {
	r.finished = ans
	metrics.RecordQuestion(r.p.metrics, ans.Success, time.Since(r.start))
	r.persist()

	r.log.Infow("Question finished",
		logger.FieldSuccess, ans.Success,
		logger.FieldDurationMS, time.Since(r.start).Milliseconds())
	return ans
}

// persist saves the trace. Failures are logged and never reach the caller.
func (r *run) persist() {
	target := r.tr.Target()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorw("Trace sink panicked",
				logger.FieldTarget, target,
				logger.FieldError, fmt.Sprint(rec))
		}
	}()

	if err := r.p.sink.Save(context.WithoutCancel(r.ctx), r.tr, target); err != nil {
		r.log.Warnw("Could not save trace",
			logger.FieldTarget, target,
			logger.FieldError, err.Error())
		return
	}
	r.log.Debugw("Trace saved", logger.FieldTarget, target)
}
