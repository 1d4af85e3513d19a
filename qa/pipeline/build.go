package pipeline

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/samarth/ai/provider"
	"github.com/teranos/samarth/am"
	"github.com/teranos/samarth/dataset"
	"github.com/teranos/samarth/logger"
	"github.com/teranos/samarth/metrics"
	"github.com/teranos/samarth/model"
	"github.com/teranos/samarth/qa/answer"
	"github.com/teranos/samarth/qa/citation"
	"github.com/teranos/samarth/qa/executor"
	"github.com/teranos/samarth/qa/plan"
	"github.com/teranos/samarth/qa/relevance"
	"github.com/teranos/samarth/qa/schema"
	"github.com/teranos/samarth/qa/synth"
	"github.com/teranos/samarth/trace"
)

// Deps are the long-lived collaborators built once at startup
type Deps struct {
	Registry *dataset.Registry
	Catalog  *dataset.Catalog
	Caller   model.Caller
	Sink     trace.Sink
	Metrics  metrics.Backend
	Logger   *zap.SugaredLogger
}

// FromConfig assembles every stage from cfg and deps
func FromConfig(cfg *am.Config, deps Deps) (*Pipeline, error) {
	log := logger.OrNop(deps.Logger)

	keywords := deps.Catalog.Keywords()
	order := make([]string, 0, len(keywords))
	for name := range keywords {
		order = append(order, name)
	}
	sort.Strings(order)
	rules := relevance.WithKeywords(relevance.DefaultRules(), keywords, order)

	overrides := make(map[string]citation.Citation)
	for name, c := range deps.Catalog.Citations() {
		overrides[name] = citation.Citation{Name: c.Name, Source: c.Source, Description: c.Description}
	}

	return New(Config{
		Selector:    relevance.NewSelector(rules, deps.Registry, log.Named("relevance")),
		Schema:      schema.NewSerializer(deps.Registry, cfg.GetSampleRows(), log.Named("schema")),
		Synthesizer: synth.New(deps.Caller, cfg.GetMaxResults(), log.Named("synth")),
		Executor:    executor.New(deps.Registry, plan.Options{MaxJoinRows: cfg.Query.MaxJoinRows}, log.Named("executor")),
		Citations:   citation.NewBuilder(overrides),
		Answerer:    answer.New(deps.Caller, log.Named("answer")),
		Sink:        deps.Sink,
		Metrics:     deps.Metrics,
		MaxResults:  cfg.GetMaxResults(),
		Logger:      log.Named("pipeline"),
	})
}

// NewCaller wraps a provider client with the configured timeout, rate limit,
// error degradation and call logs. Call logs see degraded text as output.
func NewCaller(client provider.AIClient, cfg *am.Config, log *zap.SugaredLogger) model.Caller {
	var c model.Caller = model.NewChatCaller(client, log)
	c = model.WithTimeout(c, time.Duration(cfg.Model.TimeoutSeconds)*time.Second)
	c = model.WithRateLimit(c, cfg.Model.RequestsPerMinute)
	if cfg.Model.DegradeErrors {
		c = model.Degrade(c, log)
	}
	if cfg.Trace.CallLogs {
		c = model.Journal(c, cfg.GetTraceDir(), log)
	}
	return c
}

// NewSink builds the configured trace sinks. db may be nil when the SQLite
// store is disabled. The returned close func releases the Postgres pool.
func NewSink(ctx context.Context, cfg *am.Config, db *sql.DB) (trace.Sink, func(), error) {
	var sinks trace.Multi
	closeFn := func() {}

	if cfg.Trace.File {
		sinks = append(sinks, trace.NewFileSink(cfg.GetTraceDir()))
	}
	if cfg.Trace.SQLite && db != nil {
		sinks = append(sinks, trace.NewSQLiteStore(db))
	}
	if cfg.Trace.PostgresDSN != "" {
		pg, err := trace.NewPostgresStore(ctx, cfg.Trace.PostgresDSN)
		if err != nil {
			return nil, closeFn, err
		}
		sinks = append(sinks, pg)
		closeFn = pg.Close
	}

	if len(sinks) == 0 {
		return trace.Nop{}, closeFn, nil
	}
	return sinks, closeFn, nil
}
