package commands

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/samarth/ai/provider"
	"github.com/teranos/samarth/ai/tracker"
	"github.com/teranos/samarth/am"
	"github.com/teranos/samarth/dataset"
	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/logger"
	"github.com/teranos/samarth/metrics"
	"github.com/teranos/samarth/metrics/datadog"
	"github.com/teranos/samarth/qa/pipeline"
)

// app is everything a question needs, built once per process
type app struct {
	cfg      *am.Config
	registry *dataset.Registry
	catalog  *dataset.Catalog
	db       *sql.DB
	pipeline *pipeline.Pipeline
	closers  []func()
}

func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// loadData reads the catalog and the CSV datasets named by cfg
func loadData(cfg *am.Config) (*dataset.Registry, *dataset.Catalog, error) {
	catalog, err := dataset.LoadCatalog(cfg.Data.Catalog)
	if err != nil {
		return nil, nil, err
	}
	registry, err := dataset.LoadDir(cfg.Data.Dir, logger.ComponentLogger("dataset"))
	if err != nil {
		return nil, nil, err
	}
	if registry.Len() == 0 {
		return nil, nil, errors.WithHint(
			errors.Newf("no datasets found in %s", cfg.Data.Dir),
			"put the CSV files in data.dir or set SAMARTH_DATA_DIR",
		)
	}
	return registry, catalog, nil
}

// newApp wires the pipeline. maxResults > 0 overrides query.max_results.
func newApp(ctx context.Context, maxResults int) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if maxResults > 0 {
		cfg.Query.MaxResults = maxResults
	}

	log := logger.Logger
	a := &app{cfg: cfg}

	a.registry, a.catalog, err = loadData(cfg)
	if err != nil {
		return nil, err
	}

	// The database only holds traces and usage; the pipeline runs without it
	var usage *tracker.UsageTracker
	if database, err := openDatabase(cfg.GetDatabasePath()); err != nil {
		log.Warnw("Database unavailable, traces and usage will not be stored there",
			logger.FieldError, err.Error())
	} else {
		a.db = database
		a.closers = append(a.closers, func() { database.Close() })
		usage = tracker.NewUsageTracker(database)
	}

	client, err := provider.NewAIClient(cfg, provider.ClientConfig{Tracker: usage, Logger: log.Named("model")})
	if err != nil {
		a.Close()
		return nil, err
	}
	caller := pipeline.NewCaller(client, cfg, log.Named("model"))

	sink, closeSink, err := pipeline.NewSink(ctx, cfg, a.db)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeSink)

	var backend metrics.Backend = metrics.Nop{}
	if cfg.Metrics.Datadog {
		dd, err := datadog.NewBackend(ctx, datadog.Options{
			Tags:       datadog.ParseTags(cfg.Metrics.Tags),
			FlushEvery: time.Duration(cfg.Metrics.FlushEverySeconds) * time.Second,
			Logger:     log.Named("metrics"),
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		backend = dd
		a.closers = append(a.closers, func() {
			if err := dd.Close(); err != nil {
				log.Warnw("Final metrics flush failed", logger.FieldError, err.Error())
			}
		})
	}

	a.pipeline, err = pipeline.FromConfig(cfg, pipeline.Deps{
		Registry: a.registry,
		Catalog:  a.catalog,
		Caller:   caller,
		Sink:     sink,
		Metrics:  backend,
		Logger:   log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// callLogDir is where per-call prompt logs go, or "" when they are off
func (a *app) callLogDir() string {
	if !a.cfg.Trace.CallLogs {
		return ""
	}
	return a.cfg.GetTraceDir()
}

// Close releases resources in reverse order
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
