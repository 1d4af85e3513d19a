package tracker

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qtest "github.com/teranos/samarth/internal/testing"
)

func intPtr(i int) *int              { return &i }
func float64Ptr(f float64) *float64 { return &f }

func usage(callType, model string, at time.Time, tokens int, cost float64, ok bool) *ModelUsage {
	u := &ModelUsage{
		OperationType:    callType,
		EntityType:       "model_call",
		EntityID:         callType + "_" + at.UTC().Format("2006-01-02T15-04-05.000000Z"),
		ModelName:        model,
		ModelProvider:    "gemini",
		RequestTimestamp: at,
		Success:          ok,
	}
	if ok {
		done := at.Add(1500 * time.Millisecond)
		u.ResponseTimestamp = &done
		u.TokensUsed = intPtr(tokens)
		u.Cost = float64Ptr(cost)
	} else {
		msg := "API request failed with status 429"
		u.ErrorMessage = &msg
	}
	return u
}

func TestTrackUsage(t *testing.T) {
	db := qtest.CreateMigratedTestDB(t)
	tr := NewUsageTracker(db)
	ctx := context.Background()

	u := usage("query_generation", "gemini-2.5-flash", time.Now(), 150, 0.05, true)
	u.ModelConfig = NewModelConfig(float64Ptr(0.3), intPtr(1000))
	u.Metadata = NewUsageMetadata(UsageMetadata{PromptTokens: 100, CompletionTokens: 50, PromptLength: 2048})
	require.NoError(t, tr.TrackUsage(ctx, u))

	var stored ModelUsage
	err := db.QueryRow(`
		SELECT operation_type, entity_type, model_name, model_provider, tokens_used, cost, success, model_config, metadata
		FROM ai_model_usage WHERE id = 1`).
		Scan(&stored.OperationType, &stored.EntityType, &stored.ModelName, &stored.ModelProvider,
			&stored.TokensUsed, &stored.Cost, &stored.Success, &stored.ModelConfig, &stored.Metadata)
	require.NoError(t, err)

	assert.Equal(t, "query_generation", stored.OperationType)
	assert.Equal(t, "gemini-2.5-flash", stored.ModelName)
	assert.Equal(t, 150, *stored.TokensUsed)
	assert.Equal(t, 0.05, *stored.Cost)
	assert.True(t, stored.Success)
	assert.JSONEq(t, `{"temperature": 0.3, "max_tokens": 1000}`, *stored.ModelConfig)
	assert.JSONEq(t, `{"prompt_tokens": 100, "completion_tokens": 50, "prompt_length": 2048}`, *stored.Metadata)
}

func TestTrackUsage_Failure(t *testing.T) {
	db := qtest.CreateMigratedTestDB(t)
	tr := NewUsageTracker(db)

	require.NoError(t, tr.TrackUsage(context.Background(),
		usage("answer_synthesis", "gemini-2.5-flash", time.Now(), 0, 0, false)))

	var success bool
	var msg sql.NullString
	require.NoError(t, db.QueryRow("SELECT success, error_message FROM ai_model_usage WHERE id = 1").Scan(&success, &msg))
	assert.False(t, success)
	assert.Equal(t, "API request failed with status 429", msg.String)
}

func TestGetUsageStats(t *testing.T) {
	db := qtest.CreateMigratedTestDB(t)
	tr := NewUsageTracker(db)
	ctx := context.Background()

	now := time.Now()
	for _, u := range []*ModelUsage{
		usage("query_generation", "gemini-2.5-flash", now.Add(-time.Hour), 100, 0.02, true),
		usage("answer_synthesis", "gemini-2.5-flash", now.Add(-50*time.Minute), 300, 0.04, true),
		usage("query_generation", "openai/gpt-4o-mini", now.Add(-40*time.Minute), 0, 0, false),
		usage("query_generation", "gemini-2.5-flash", now.Add(-72*time.Hour), 999, 9, true),
	} {
		require.NoError(t, tr.TrackUsage(ctx, u))
	}

	stats, err := tr.GetUsageStats(ctx, now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 2, stats.SuccessfulRequests)
	assert.Equal(t, 400, stats.TotalTokens)
	assert.InDelta(t, 0.06, stats.TotalCost, 1e-9)
	assert.Equal(t, 2, stats.UniqueModels)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 1e-9)

	byType, err := tr.GetCallTypeBreakdown(ctx, now.Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, byType, 2)
	assert.Equal(t, CallTypeBreakdown{CallType: "query_generation", RequestCount: 2, FailedCount: 1, TotalTokens: 100, TotalCost: 0.02}, byType[0])
	assert.Equal(t, "answer_synthesis", byType[1].CallType)

	models, err := tr.GetModelBreakdown(ctx, now.Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, models, 1, "failed calls are excluded")
	assert.Equal(t, "gemini-2.5-flash", models[0].ModelName)
	assert.Equal(t, 2, models[0].RequestCount)
	require.NotNil(t, models[0].AvgResponseTimeMs)
	assert.InDelta(t, 1500, *models[0].AvgResponseTimeMs, 5)
}

func TestGetUsageStats_Empty(t *testing.T) {
	tr := NewUsageTracker(qtest.CreateMigratedTestDB(t))

	stats, err := tr.GetUsageStats(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, UsageStats{}, *stats)
}

func TestNewModelConfig(t *testing.T) {
	assert.Nil(t, NewModelConfig(nil, nil))

	cfg := NewModelConfig(nil, intPtr(500))
	require.NotNil(t, cfg)
	assert.JSONEq(t, `{"max_tokens": 500}`, *cfg)
}

func TestTrackUsage_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ai_model_usage")).
		WithArgs(
			"query_generation", "model_call", sqlmock.AnyArg(),
			"gemini-2.5-flash", "gemini",
			sqlmock.AnyArg(), // model_config
			now,
			sqlmock.AnyArg(), // response_timestamp
			sqlmock.AnyArg(), // tokens_used
			sqlmock.AnyArg(), // cost
			true,
			sqlmock.AnyArg(), // error_message
			sqlmock.AnyArg(), // metadata
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	tr := NewUsageTracker(db)
	require.NoError(t, tr.TrackUsage(context.Background(), usage("query_generation", "gemini-2.5-flash", now, 10, 0.001, true)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackUsage_SqlmockError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO ai_model_usage").WillReturnError(sql.ErrConnDone)

	err = NewUsageTracker(db).TrackUsage(context.Background(), usage("answer_synthesis", "m", time.Now(), 1, 0, true))
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Contains(t, err.Error(), "failed to record usage for m")
}

func TestGetModelBreakdown_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"model_name", "model_provider", "request_count", "total_tokens", "total_cost", "avg_response_time_ms"}).
		AddRow("gemini-2.5-flash", "gemini", 4, 1200, 0.12, 850.0).
		AddRow("llama3.2:3b", "local", 2, 0, 0.0, nil)
	mock.ExpectQuery("SELECT(.+)FROM ai_model_usage(.+)GROUP BY model_name, model_provider").WillReturnRows(rows)

	got, err := NewUsageTracker(db).GetModelBreakdown(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 850.0, *got[0].AvgResponseTimeMs)
	assert.Nil(t, got[1].AvgResponseTimeMs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
