// Package tracker records every model call in ai_model_usage so token spend
// and failure rates can be reported with `samarth usage`.
package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/samarth/errors"
)

// ModelUsage is one row of ai_model_usage. OperationType holds the call
// type (query_generation, answer_synthesis) and EntityID the call id.
type ModelUsage struct {
	ID                int        `json:"id" db:"id"`
	OperationType     string     `json:"operation_type" db:"operation_type"`
	EntityType        string     `json:"entity_type" db:"entity_type"`
	EntityID          string     `json:"entity_id" db:"entity_id"`
	ModelName         string     `json:"model_name" db:"model_name"`
	ModelProvider     string     `json:"model_provider" db:"model_provider"`
	ModelConfig       *string    `json:"model_config,omitempty" db:"model_config"`
	RequestTimestamp  time.Time  `json:"request_timestamp" db:"request_timestamp"`
	ResponseTimestamp *time.Time `json:"response_timestamp,omitempty" db:"response_timestamp"`
	TokensUsed        *int       `json:"tokens_used,omitempty" db:"tokens_used"`
	Cost              *float64   `json:"cost,omitempty" db:"cost"`
	Success           bool       `json:"success" db:"success"`
	ErrorMessage      *string    `json:"error_message,omitempty" db:"error_message"`
	Metadata          *string    `json:"metadata,omitempty" db:"metadata"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// ModelConfig is the sampling configuration sent with a request
type ModelConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// UsageMetadata is stored as JSON alongside a usage row
type UsageMetadata struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	PromptLength     int `json:"prompt_length,omitempty"`
	ResponseLength   int `json:"response_length,omitempty"`
}

// UsageTracker writes and aggregates ai_model_usage rows
type UsageTracker struct {
	db *sql.DB
}

// NewUsageTracker creates a tracker over an already-migrated database
func NewUsageTracker(db *sql.DB) *UsageTracker {
	return &UsageTracker{db: db}
}

// TrackUsage records one model call
func (t *UsageTracker) TrackUsage(ctx context.Context, usage *ModelUsage) error {
	query := `
		INSERT INTO ai_model_usage (
			operation_type, entity_type, entity_id, model_name, model_provider,
			model_config, request_timestamp, response_timestamp, tokens_used,
			cost, success, error_message, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.db.ExecContext(ctx, query,
		usage.OperationType, usage.EntityType, usage.EntityID,
		usage.ModelName, usage.ModelProvider, usage.ModelConfig,
		usage.RequestTimestamp, usage.ResponseTimestamp, usage.TokensUsed,
		usage.Cost, usage.Success, usage.ErrorMessage, usage.Metadata,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record usage for %s", usage.ModelName)
	}
	return nil
}

// UsageStats is the aggregate over a time window
type UsageStats struct {
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	SuccessRate        float64 `json:"success_rate"`
	TotalTokens        int     `json:"total_tokens"`
	TotalCost          float64 `json:"total_cost"`
	UniqueModels       int     `json:"unique_models"`
}

// GetUsageStats aggregates every call made since the given time
func (t *UsageTracker) GetUsageStats(ctx context.Context, since time.Time) (*UsageStats, error) {
	query := `
		SELECT
			COUNT(*) as total_requests,
			COUNT(CASE WHEN success = 1 THEN 1 END) as successful_requests,
			COALESCE(SUM(COALESCE(tokens_used, 0)), 0) as total_tokens,
			COALESCE(SUM(COALESCE(cost, 0)), 0) as total_cost,
			COUNT(DISTINCT model_name) as unique_models
		FROM ai_model_usage
		WHERE request_timestamp >= ?`

	var stats UsageStats
	err := t.db.QueryRowContext(ctx, query, since).Scan(
		&stats.TotalRequests, &stats.SuccessfulRequests,
		&stats.TotalTokens, &stats.TotalCost, &stats.UniqueModels,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query usage stats")
	}

	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests)
	}
	return &stats, nil
}

// CallTypeBreakdown is usage for one call type
type CallTypeBreakdown struct {
	CallType     string  `json:"call_type"`
	RequestCount int     `json:"request_count"`
	FailedCount  int     `json:"failed_count"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`
}

// GetCallTypeBreakdown splits usage by call type, busiest first
func (t *UsageTracker) GetCallTypeBreakdown(ctx context.Context, since time.Time) ([]CallTypeBreakdown, error) {
	query := `
		SELECT
			operation_type,
			COUNT(*) as request_count,
			COUNT(CASE WHEN success = 0 THEN 1 END) as failed_count,
			COALESCE(SUM(COALESCE(tokens_used, 0)), 0) as total_tokens,
			COALESCE(SUM(COALESCE(cost, 0)), 0) as total_cost
		FROM ai_model_usage
		WHERE request_timestamp >= ?
		GROUP BY operation_type
		ORDER BY request_count DESC, operation_type ASC`

	rows, err := t.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query call type breakdown")
	}
	defer rows.Close()

	var out []CallTypeBreakdown
	for rows.Next() {
		var b CallTypeBreakdown
		if err := rows.Scan(&b.CallType, &b.RequestCount, &b.FailedCount, &b.TotalTokens, &b.TotalCost); err != nil {
			return nil, errors.Wrap(err, "failed to scan call type breakdown")
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ModelBreakdown is usage for one model
type ModelBreakdown struct {
	ModelName         string   `json:"model_name"`
	ModelProvider     string   `json:"model_provider"`
	RequestCount      int      `json:"request_count"`
	TotalTokens       int      `json:"total_tokens"`
	TotalCost         float64  `json:"total_cost"`
	AvgResponseTimeMs *float64 `json:"avg_response_time_ms,omitempty"`
}

// GetModelBreakdown splits successful calls by model, most expensive first
func (t *UsageTracker) GetModelBreakdown(ctx context.Context, since time.Time) ([]ModelBreakdown, error) {
	query := `
		SELECT
			model_name,
			model_provider,
			COUNT(*) as request_count,
			SUM(COALESCE(tokens_used, 0)) as total_tokens,
			SUM(COALESCE(cost, 0)) as total_cost,
			AVG(CASE WHEN response_timestamp IS NOT NULL THEN
				(julianday(response_timestamp) - julianday(request_timestamp)) * 86400000
				ELSE NULL END) as avg_response_time_ms
		FROM ai_model_usage
		WHERE request_timestamp >= ? AND success = 1
		GROUP BY model_name, model_provider
		ORDER BY total_cost DESC`

	rows, err := t.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query model breakdown")
	}
	defer rows.Close()

	var breakdown []ModelBreakdown
	for rows.Next() {
		var mb ModelBreakdown
		if err := rows.Scan(&mb.ModelName, &mb.ModelProvider, &mb.RequestCount,
			&mb.TotalTokens, &mb.TotalCost, &mb.AvgResponseTimeMs); err != nil {
			return nil, errors.Wrap(err, "failed to scan model breakdown")
		}
		breakdown = append(breakdown, mb)
	}
	return breakdown, rows.Err()
}

// TimeSeriesPoint is one day of usage
type TimeSeriesPoint struct {
	Date     string  `json:"date"`
	Requests int     `json:"requests"`
	Cost     float64 `json:"cost"`
}

// GetTimeSeriesData returns daily request counts and cost for the last days
func (t *UsageTracker) GetTimeSeriesData(ctx context.Context, days int) ([]TimeSeriesPoint, error) {
	query := `
		SELECT
			DATE(request_timestamp) as date,
			COUNT(*) as requests,
			COALESCE(SUM(COALESCE(cost, 0)), 0) as cost
		FROM ai_model_usage
		WHERE request_timestamp >= datetime('now', '-' || ? || ' days')
		GROUP BY DATE(request_timestamp)
		ORDER BY date ASC`

	rows, err := t.db.QueryContext(ctx, query, days)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query usage time series")
	}
	defer rows.Close()

	var points []TimeSeriesPoint
	for rows.Next() {
		var point TimeSeriesPoint
		if err := rows.Scan(&point.Date, &point.Requests, &point.Cost); err != nil {
			return nil, errors.Wrap(err, "failed to scan usage time series")
		}
		points = append(points, point)
	}
	return points, rows.Err()
}

// NewModelConfig serializes the sampling configuration, or nil if unset
func NewModelConfig(temperature *float64, maxTokens *int) *string {
	if temperature == nil && maxTokens == nil {
		return nil
	}
	return marshalString(ModelConfig{Temperature: temperature, MaxTokens: maxTokens})
}

// NewUsageMetadata serializes metadata for the metadata column
func NewUsageMetadata(metadata UsageMetadata) *string {
	return marshalString(metadata)
}

func marshalString(v any) *string {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}
