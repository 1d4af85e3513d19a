package openrouter

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/samarth/ai/tracker"
	qtest "github.com/teranos/samarth/internal/testing"
)

func newTestClient(t *testing.T, server *httptest.Server, cfg Config) *Client {
	t.Helper()
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	cfg.BaseURL = server.URL
	cfg.Logger = zaptest.NewLogger(t).Sugar()
	client := NewClient(cfg)
	client.SetHTTPClient(server.Client()) // Override SSRF-safer client for localhost testing
	return client
}

func completion(content string, usage Usage) ChatCompletionResponse {
	return ChatCompletionResponse{
		ID:      "test-id",
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   "test-model",
		Choices: []Choice{{
			Message:      Message{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: usage,
	}
}

func TestClient_Configuration(t *testing.T) {
	t.Run("applies default values", func(t *testing.T) {
		client := NewClient(Config{APIKey: "test-key"})

		assert.Equal(t, DefaultModel, client.Model())
		assert.Equal(t, 0.2, *client.config.Temperature)
		assert.Equal(t, 1000, *client.config.MaxTokens)
		assert.Equal(t, DefaultBaseURL, client.baseURL)
	})

	t.Run("preserves custom values", func(t *testing.T) {
		temp := 0.8
		tokens := 2000
		client := NewClient(Config{
			APIKey:      "test-key",
			Model:       "custom/model",
			BaseURL:     "https://proxy.example.com/v1/",
			Temperature: &temp,
			MaxTokens:   &tokens,
		})

		assert.Equal(t, "custom/model", client.Model())
		assert.Equal(t, 0.8, *client.config.Temperature)
		assert.Equal(t, 2000, *client.config.MaxTokens)
		assert.Equal(t, "https://proxy.example.com/v1", client.baseURL)
	})

	t.Run("IsConfigured follows the API key", func(t *testing.T) {
		assert.True(t, NewClient(Config{APIKey: "k"}).IsConfigured())
		assert.False(t, NewClient(Config{}).IsConfigured())
	})
}

func TestClient_Chat(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			assert.Equal(t, "samarth/query_generation", r.Header.Get("X-Title"))

			var req ChatCompletionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Messages, 2)
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "user", req.Messages[1].Role)
			assert.Equal(t, "How much rice?", req.Messages[1].Content)

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(completion("  Test response content\n", Usage{10, 20, 30}))
		}))
		defer server.Close()

		client := newTestClient(t, server, Config{})
		resp, err := client.Chat(context.Background(), ChatRequest{
			SystemPrompt: "You are a data analyst",
			UserPrompt:   "How much rice?",
			CallType:     "query_generation",
		})

		require.NoError(t, err)
		assert.Equal(t, "Test response content", resp.Content)
		assert.Equal(t, DefaultModel, resp.Model)
		assert.Equal(t, 30, resp.Usage.TotalTokens)
	})

	t.Run("system prompt is optional", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req ChatCompletionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Messages, 1)
			assert.Equal(t, "samarth", r.Header.Get("X-Title"))
			json.NewEncoder(w).Encode(completion("ok", Usage{}))
		}))
		defer server.Close()

		_, err := newTestClient(t, server, Config{}).Chat(context.Background(), ChatRequest{UserPrompt: "hi"})
		require.NoError(t, err)
	})

	t.Run("empty API key returns error", func(t *testing.T) {
		_, err := NewClient(Config{}).Chat(context.Background(), ChatRequest{UserPrompt: "Hello"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API key not configured")
	})

	t.Run("request parameter overrides", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req ChatCompletionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, 0.9, req.Temperature)
			assert.Equal(t, 500, req.MaxTokens)
			assert.Equal(t, "custom/model", req.Model)
			json.NewEncoder(w).Encode(completion("test", Usage{}))
		}))
		defer server.Close()

		temperature := 0.9
		maxTokens := 500
		model := "custom/model"
		resp, err := newTestClient(t, server, Config{}).Chat(context.Background(), ChatRequest{
			UserPrompt:  "test",
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
			Model:       &model,
		})
		require.NoError(t, err)
		assert.Equal(t, "custom/model", resp.Model)
	})
}

func TestClient_UsageTracking(t *testing.T) {
	db := qtest.CreateMigratedTestDB(t)
	usage := tracker.NewUsageTracker(db)

	t.Run("records successful calls", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(completion("ok", Usage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500}))
		}))
		defer server.Close()

		client := newTestClient(t, server, Config{Tracker: usage})
		_, err := client.Chat(context.Background(), ChatRequest{
			UserPrompt: "q",
			CallType:   "answer_synthesis",
			CallID:     "answer_synthesis_2026-01-01T00-00-00Z",
		})
		require.NoError(t, err)

		var callType, callID string
		var tokens int
		var cost float64
		var success bool
		err = db.QueryRow(`SELECT operation_type, entity_id, tokens_used, cost, success
			FROM ai_model_usage WHERE success = 1`).Scan(&callType, &callID, &tokens, &cost, &success)
		require.NoError(t, err)
		assert.Equal(t, "answer_synthesis", callType)
		assert.Equal(t, "answer_synthesis_2026-01-01T00-00-00Z", callID)
		assert.Equal(t, 1500, tokens)
		assert.InDelta(t, 0.00045, cost, 1e-9)
		assert.True(t, success)
	})

	t.Run("records failed calls", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad key", http.StatusUnauthorized)
		}))
		defer server.Close()

		client := newTestClient(t, server, Config{Tracker: usage})
		_, err := client.Chat(context.Background(), ChatRequest{UserPrompt: "q", CallType: "query_generation"})
		require.Error(t, err)

		var msg string
		err = db.QueryRow(`SELECT error_message FROM ai_model_usage WHERE success = 0`).Scan(&msg)
		require.NoError(t, err)
		assert.Contains(t, msg, "status 401")
	})
}

func TestClient_RetryLogic(t *testing.T) {
	t.Run("does not retry client errors", func(t *testing.T) {
		var requests atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := newTestClient(t, server, Config{}).Chat(context.Background(), ChatRequest{UserPrompt: "test"})
		require.Error(t, err)
		assert.Equal(t, int32(1), requests.Load())
	})

	t.Run("retries rate limiting", func(t *testing.T) {
		var requests atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requests.Add(1) == 1 {
				http.Error(w, "slow down", http.StatusTooManyRequests)
				return
			}
			json.NewEncoder(w).Encode(completion("second time", Usage{}))
		}))
		defer server.Close()

		resp, err := newTestClient(t, server, Config{}).Chat(context.Background(), ChatRequest{UserPrompt: "test"})
		require.NoError(t, err)
		assert.Equal(t, "second time", resp.Content)
		assert.Equal(t, int32(2), requests.Load())
	})

	t.Run("stops retrying when the context ends", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "slow down", http.StatusTooManyRequests)
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := newTestClient(t, server, Config{}).Chat(ctx, ChatRequest{UserPrompt: "test"})
		require.Error(t, err)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("classifies errors", func(t *testing.T) {
		client := NewClient(Config{APIKey: "test-key"})

		assert.True(t, client.isRetryableError(&net.DNSError{Err: "no such host", IsTimeout: true}))
		assert.False(t, client.isRetryableError(&net.DNSError{Err: "no such host", IsTimeout: false}))

		cases := []struct {
			errorStr  string
			retryable bool
		}{
			{"connection reset by peer", true},
			{"connection refused", true},
			{"i/o timeout", true},
			{"network is unreachable", true},
			{"temporary failure", true},
			{"API request failed with status 503: unavailable", true},
			{"invalid json", false},
			{"unauthorized", false},
		}
		for _, tc := range cases {
			assert.Equal(t, tc.retryable, client.isRetryableError(&testError{msg: tc.errorStr}), tc.errorStr)
		}
	})
}

type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}

func TestClient_ErrorHandling(t *testing.T) {
	t.Run("handles malformed JSON response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("invalid json"))
		}))
		defer server.Close()

		_, err := newTestClient(t, server, Config{}).Chat(context.Background(), ChatRequest{UserPrompt: "test"})
		require.Error(t, err)
	})

	t.Run("handles empty choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(ChatCompletionResponse{})
		}))
		defer server.Close()

		_, err := newTestClient(t, server, Config{}).Chat(context.Background(), ChatRequest{UserPrompt: "test"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no response choices")
	})

	t.Run("production client blocks localhost", func(t *testing.T) {
		client := NewClient(Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:1"})
		_, err := client.Chat(context.Background(), ChatRequest{UserPrompt: "test"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "blocked")
	})
}

func BenchmarkClient_Chat(b *testing.B) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completion("test response", Usage{TotalTokens: 10}))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	client.SetHTTPClient(server.Client())

	ctx := context.Background()
	req := ChatRequest{UserPrompt: "Hello"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := client.Chat(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}
