// Package gemini is a client for the Google Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/samarth/ai/openrouter"
	"github.com/teranos/samarth/ai/tracker"
	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/internal/httpclient"
	"github.com/teranos/samarth/version"
)

const (
	// DefaultModel should match gemini.model in am/defaults.go
	DefaultModel = "gemini-2.5-flash"

	// DefaultEndpoint is the models collection of the v1beta API
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"
)

// Config holds Gemini client configuration
type Config struct {
	APIKey      string
	Model       string
	Endpoint    string
	Temperature *float64 // nil = 0.3
	MaxTokens   *int     // nil = 1000
	Timeout     time.Duration
	Logger      *zap.SugaredLogger
	Tracker     *tracker.UsageTracker
}

// Client calls models/{model}:generateContent
type Client struct {
	config     Config
	httpClient *httpclient.Client
	tracker    *tracker.UsageTracker
	logger     *zap.SugaredLogger
}

// NewClient creates a Gemini client with defaults applied
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Temperature == nil {
		t := 0.3
		cfg.Temperature = &t
	}
	if cfg.MaxTokens == nil {
		n := 1000
		cfg.MaxTokens = &n
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Client{
		config:     cfg,
		httpClient: httpclient.New(cfg.Timeout),
		tracker:    cfg.Tracker,
		logger:     logger,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// GenerateRequest is the generateContent request body
type GenerateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

// UsageMetadata is Gemini's token accounting
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// GenerateResponse is the subset of the generateContent response samarth reads
type GenerateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata UsageMetadata `json:"usageMetadata"`
	Error         *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Text returns the concatenated text parts of the first candidate
func (r *GenerateResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// Generate posts one generateContent request
func (c *Client) Generate(ctx context.Context, model string, body GenerateRequest) (*GenerateResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	url := fmt.Sprintf("%s/%s:generateContent", c.config.Endpoint, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	// Header rather than ?key= so the key never appears in logged URLs
	req.Header.Set("x-goog-api-key", c.config.APIKey)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	var out GenerateResponse
	if jsonErr := json.Unmarshal(data, &out); jsonErr != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Newf("Gemini API returned %d: %s", resp.StatusCode, truncate(string(data), 200))
		}
		return nil, errors.Wrap(jsonErr, "failed to parse Gemini response")
	}
	if out.Error != nil {
		return nil, errors.Newf("Gemini error %d: %s", out.Error.Code, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("Gemini API returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	return &out, nil
}

// Chat implements provider.AIClient
func (c *Client) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	if c.config.APIKey == "" {
		return nil, errors.WithHint(
			errors.New("Gemini API key not configured"),
			"set GEMINI_API_KEY or gemini.api_key in am.toml",
		)
	}

	temperature := *c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := *c.config.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	model := c.config.Model
	if req.Model != nil {
		model = *req.Model
	}

	body := GenerateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: req.UserPrompt}}}},
		GenerationConfig: generationConfig{Temperature: temperature, MaxOutputTokens: maxTokens},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}

	c.logger.Debugw("Gemini generate request",
		"model", model,
		"call_type", req.CallType,
		"call_id", req.CallID,
		"prompt_length", len(req.SystemPrompt)+len(req.UserPrompt),
	)

	requested := time.Now()
	resp, err := c.Generate(ctx, model, body)
	if err == nil && len(resp.Candidates) == 0 {
		err = errors.New("Gemini returned empty response")
	}
	if err != nil {
		c.track(ctx, req, model, temperature, maxTokens, requested, nil, err)
		return nil, errors.Wrap(err, "gemini API error")
	}

	text := resp.Text()
	c.track(ctx, req, model, temperature, maxTokens, requested, resp, nil)

	c.logger.Debugw("Gemini response",
		"content_length", len(text),
		"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
		"completion_tokens", resp.UsageMetadata.CandidatesTokenCount,
	)

	return &openrouter.ChatResponse{
		Content: strings.TrimSpace(text),
		Model:   model,
		Usage: openrouter.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func (c *Client) track(ctx context.Context, req openrouter.ChatRequest, model string, temperature float64, maxTokens int, requested time.Time, resp *GenerateResponse, callErr error) {
	if c.tracker == nil {
		return
	}
	responded := time.Now()
	usage := &tracker.ModelUsage{
		OperationType:     req.CallType,
		EntityType:        "call",
		EntityID:          req.CallID,
		ModelName:         model,
		ModelProvider:     "gemini",
		ModelConfig:       tracker.NewModelConfig(&temperature, &maxTokens),
		RequestTimestamp:  requested,
		ResponseTimestamp: &responded,
		Success:           callErr == nil,
	}
	if callErr != nil {
		msg := callErr.Error()
		usage.ErrorMessage = &msg
	} else {
		tokens := resp.UsageMetadata.TotalTokenCount
		cost := CalculateCost(model, resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount)
		usage.TokensUsed = &tokens
		usage.Cost = &cost
		usage.Metadata = tracker.NewUsageMetadata(tracker.UsageMetadata{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			PromptLength:     len(req.SystemPrompt) + len(req.UserPrompt),
			ResponseLength:   len(resp.Text()),
		})
	}
	if err := c.tracker.TrackUsage(context.WithoutCancel(ctx), usage); err != nil {
		c.logger.Warnw("Failed to track usage", "error", err, "model", model)
	}
}

// IsConfigured returns true if the client has an API key
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// Model returns the default model name
func (c *Client) Model() string {
	return c.config.Model
}

// SetHTTPClient replaces the guarded client. Tests only.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.Wrap(client)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
