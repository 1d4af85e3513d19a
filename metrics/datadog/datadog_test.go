package datadog

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/metrics"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(_ context.Context, body datadogV2.MetricPayload, _ ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func newTestBackend(t *testing.T, sub *fakeSubmitter) *Backend {
	t.Helper()
	t.Setenv("SAMARTH_ENV", "test")
	b, err := NewBackend(context.Background(), Options{
		Tags:       []string{"team:data"},
		FlushEvery: time.Hour,
		Logger:     zaptest.NewLogger(t).Sugar(),
		now:        func() time.Time { return time.Unix(1700000000, 0) },
		submitter:  sub,
	})
	require.NoError(t, err)
	return b
}

func seriesByName(p datadogV2.MetricPayload) map[string]datadogV2.MetricSeries {
	out := make(map[string]datadogV2.MetricSeries)
	for _, s := range p.Series {
		out[s.Metric] = s
	}
	return out
}

func TestFlush_BuildsSeries(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	metrics.RecordStage(b, "EXECUTE", true, 100*time.Millisecond)
	metrics.RecordStage(b, "EXECUTE", true, 300*time.Millisecond)
	metrics.RecordQuestion(b, false, 2*time.Second)

	require.NoError(t, b.Flush())
	require.Equal(t, 1, sub.count())

	got := seriesByName(sub.payloads[0])
	stage, ok := got["samarth.stage.total"]
	require.True(t, ok)
	assert.Equal(t, 2.0, *stage.Points[0].Value)
	assert.Equal(t, int64(1700000000), *stage.Points[0].Timestamp)
	assert.Equal(t, []string{"env:test", "service:samarth", "team:data", "stage:EXECUTE", "status:ok"}, stage.Tags)

	assert.Equal(t, 0.3, *got["samarth.stage.duration_seconds.max"].Points[0].Value)
	assert.Equal(t, 2.0, *got["samarth.stage.duration_seconds.samples"].Points[0].Value)
	assert.Equal(t, 1.0, *got["samarth.questions.total"].Points[0].Value)
	assert.Contains(t, got["samarth.questions.total"].Tags, "status:error")

	require.NoError(t, b.Close())
	assert.Equal(t, 1, sub.count(), "empty buffers are not submitted")
}

func TestIgnoresUnknownAndInvalid(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)
	defer b.Close()

	b.IncCounter("something_else", 1, nil)
	b.IncCounter(metrics.StageTotal, 0, metrics.Labels{"stage": "CITE"})
	b.ObserveHistogram(metrics.StageDuration, -1, metrics.Labels{"stage": "CITE"})

	require.NoError(t, b.Flush())
	assert.Equal(t, 0, sub.count())
}

func TestFlush_SubmitErrorDropsWindow(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("403 Forbidden")}
	b := newTestBackend(t, sub)
	defer b.Close()

	metrics.RecordQuestion(b, true, time.Second)
	err := b.Flush()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")

	sub.err = nil
	require.NoError(t, b.Flush())
	assert.Equal(t, 1, sub.count(), "failed window is not retried")
}

func TestTickerFlushes(t *testing.T) {
	sub := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		FlushEvery: 5 * time.Millisecond,
		submitter:  sub,
	})
	require.NoError(t, err)
	defer b.Close()

	metrics.RecordQuestion(b, true, time.Second)
	assert.Eventually(t, func() bool { return sub.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCloseTwice(t *testing.T) {
	b := newTestBackend(t, &fakeSubmitter{})
	require.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}

func TestNewBackend_NilContext(t *testing.T) {
	//nolint:staticcheck // exercising the guard
	_, err := NewBackend(nil, Options{})
	assert.Error(t, err)
}

func TestStageStatusKey(t *testing.T) {
	stage, status := splitStageStatusKey(stageStatusKey("ANSWER_SYNTH", ""))
	assert.Equal(t, "ANSWER_SYNTH", stage)
	assert.Equal(t, "unknown", status)

	stage, status = splitStageStatusKey("no-sep")
	assert.Equal(t, "no-sep", stage)
	assert.Equal(t, "unknown", status)
}

func TestPercentileNearestRank(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 0.0, percentileNearestRank(nil, 0.5))
	assert.Equal(t, 3.0, percentileNearestRank(s, 0.5))
	assert.Equal(t, 5.0, percentileNearestRank(s, 0.95))
	assert.Equal(t, 1.0, percentileNearestRank(s, -1))
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"env:prod", "team:data", "x:y"}, ParseTags([]string{" env:prod,team:data ", "", "x:y"}))
	assert.Empty(t, ParseTags(nil))
}
