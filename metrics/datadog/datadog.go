// Package datadog implements metrics.Backend by buffering in memory and
// submitting to the Datadog metrics intake on a ticker and once more on Close.
//
// Flush snapshots and resets the buffers under the lock, then submits outside
// it. A failed submission drops that window.
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
	"go.uber.org/zap"

	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/logger"
	"github.com/teranos/samarth/metrics"
)

// Options controls the backend
type Options struct {
	// Service becomes tag "service:<name>". Defaults to "samarth".
	Service string

	// Tags are extra tags added to every series
	Tags []string

	// FlushEvery defaults to 60s
	FlushEvery time.Duration

	Logger *zap.SugaredLogger

	// test seams
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog
type Backend struct {
	api metricsSubmitter
	ctx context.Context
	log *zap.SugaredLogger

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once

	baseTags  []string
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu            sync.Mutex
	stageCounts   map[string]float64
	stageDur      map[string][]float64
	questionCount map[string]float64
	questionDur   map[string][]float64
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("SAMARTH_ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a backend using the official client. Credentials come
// from DD_API_KEY / DD_SITE via dd.NewDefaultContext.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, errors.New("datadog metrics init: nil context")
	}

	service := opts.Service
	if service == "" {
		service = "samarth"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "service:"+service)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}
	submitter := opts.submitter
	if submitter == nil {
		submitter = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		log:        logger.OrNop(opts.Logger),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
	}
	b.reset()

	go b.loop()
	return b, nil
}

func (b *Backend) reset() {
	b.stageCounts = make(map[string]float64)
	b.stageDur = make(map[string][]float64)
	b.questionCount = make(map[string]float64)
	b.questionDur = make(map[string][]float64)
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			if err := b.Flush(); err != nil {
				b.log.Warnw("Datadog flush failed", logger.FieldError, err.Error())
			}
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and flushes once more. Safe to call twice.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
		err = b.Flush()
	})
	return err
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.StageTotal:
		b.stageCounts[stageStatusKey(labels["stage"], labels["status"])] += delta
	case metrics.QuestionTotal:
		b.questionCount[orUnknown(labels["status"])] += delta
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.StageDuration:
		k := stageStatusKey(labels["stage"], labels["status"])
		b.stageDur[k] = append(b.stageDur[k], value)
	case metrics.QuestionDuration:
		k := orUnknown(labels["status"])
		b.questionDur[k] = append(b.questionDur[k], value)
	}
}

type snapshot struct {
	stageCounts   map[string]float64
	stageDur      map[string][]float64
	questionCount map[string]float64
	questionDur   map[string][]float64
}

func (s snapshot) isEmpty() bool {
	return len(s.stageCounts) == 0 &&
		len(s.stageDur) == 0 &&
		len(s.questionCount) == 0 &&
		len(s.questionDur) == 0
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		stageCounts:   b.stageCounts,
		stageDur:      b.stageDur,
		questionCount: b.questionCount,
		questionDur:   b.questionDur,
	}
	b.reset()
	return s
}

// Flush submits buffered metrics. Returns nil when there is nothing to send.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	if _, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters()); err != nil {
		return errors.Wrap(err, "submit metrics")
	}
	return nil
}

func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.stageCounts)+len(s.questionCount)+32)

	for k, v := range s.stageCounts {
		stage, status := splitStageStatusKey(k)
		series = append(series, countSeries("samarth.stage.total", v, withTags(b.baseTags, "stage:"+stage, "status:"+status), nowUnix))
	}
	for k, samples := range s.stageDur {
		stage, status := splitStageStatusKey(k)
		addPercentiles(&series, "samarth.stage.duration_seconds", samples, withTags(b.baseTags, "stage:"+stage, "status:"+status), nowUnix)
	}
	for status, v := range s.questionCount {
		series = append(series, countSeries("samarth.questions.total", v, withTags(b.baseTags, "status:"+status), nowUnix))
	}
	for status, samples := range s.questionDur {
		addPercentiles(&series, "samarth.question.duration_seconds", samples, withTags(b.baseTags, "status:"+status), nowUnix)
	}

	sort.Slice(series, func(i, j int) bool {
		if series[i].Metric != series[j].Metric {
			return series[i].Metric < series[j].Metric
		}
		return strings.Join(series[i].Tags, ",") < strings.Join(series[j].Tags, ",")
	})
	return series
}

func addPercentiles(series *[]datadogV2.MetricSeries, prefix string, samples []float64, tags []string, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series,
		gaugeSeries(prefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix),
		gaugeSeries(prefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix),
		gaugeSeries(prefix+".max", cp[len(cp)-1], tags, nowUnix),
		gaugeSeries(prefix+".samples", float64(len(cp)), tags, nowUnix),
	)
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func stageStatusKey(stage, status string) string {
	return orUnknown(stage) + "\x00" + orUnknown(status)
}

func splitStageStatusKey(k string) (stage, status string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	return append(out, extras...)
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

// ParseTags trims and drops empty entries from a tag list
func ParseTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		for _, p := range strings.Split(t, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

var _ metrics.Backend = (*Backend)(nil)
