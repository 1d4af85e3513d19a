package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/samarth/ai/tracker"
	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/internal/httpclient"
	"github.com/teranos/samarth/version"
)

const (
	// DefaultModel is the fallback model when none is specified
	// Should match the default in am/defaults.go for consistency
	DefaultModel = "openai/gpt-4o-mini"

	// DefaultBaseURL is the OpenRouter API root
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	maxRetries = 3
)

// Client is an OpenRouter.ai chat completions client with usage tracking
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *httpclient.Client
	config       Config
	usageTracker *tracker.UsageTracker
	logger       *zap.SugaredLogger
}

// Config holds AI client configuration
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string                // empty = DefaultBaseURL
	Temperature *float64              // nil = use default (0.2)
	MaxTokens   *int                  // nil = use default (1000)
	Logger      *zap.SugaredLogger    // nil = nop logger
	Tracker     *tracker.UsageTracker // nil = usage is not recorded
}

// NewClient creates a new OpenRouter.ai client
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Temperature == nil {
		defaultTemp := 0.2
		config.Temperature = &defaultTemp
	}
	if config.MaxTokens == nil {
		defaultTokens := 1000
		config.MaxTokens = &defaultTokens
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	saferClient := httpclient.New(120 * time.Second)

	return &Client{
		apiKey:       config.APIKey,
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		httpClient:   saferClient,
		config:       config,
		usageTracker: config.Tracker,
		logger:       logger,
	}
}

// ChatCompletionRequest represents a request to the chat completions endpoint
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatRequest is a single-turn request. It is the shape every provider accepts.
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  *float64 // Override default temperature
	MaxTokens    *int     // Override default max tokens
	Model        *string  // Override default model

	// CallType and CallID are recorded with the usage row
	CallType string
	CallID   string
}

// ChatResponse represents the AI response
type ChatResponse struct {
	Content string
	Model   string
	Usage   Usage
}

// Message represents a message in a chat completion
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents the response from chat completions
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CreateChatCompletion sends a chat completion request to OpenRouter
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest, callType string) (*ChatCompletionResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("User-Agent", version.UserAgent())

	// X-Title shows up in the OpenRouter dashboard
	if callType != "" {
		httpReq.Header.Set("X-Title", fmt.Sprintf("samarth/%s", callType))
	} else {
		httpReq.Header.Set("X-Title", "samarth")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	return &chatResp, nil
}

// Chat sends a chat completion request with retries on network errors
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.config.APIKey == "" {
		return nil, errors.WithHint(
			errors.New("OpenRouter API key not configured"),
			"set SAMARTH_OPENROUTER_API_KEY or openrouter.api_key in am.toml",
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

	c.logger.Debugw("OpenRouter chat request",
		"model", model,
		"call_type", req.CallType,
		"call_id", req.CallID,
		"temperature", temperature,
		"max_tokens", maxTokens,
		"prompt_length", len(req.SystemPrompt)+len(req.UserPrompt),
	)

	messages := []Message{{Role: "user", Content: req.UserPrompt}}
	if req.SystemPrompt != "" {
		messages = append([]Message{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}

	openrouterReq := ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	requestTime := time.Now()

	var resp *ChatCompletionResponse
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * time.Second
			c.logger.Debugw("Retrying OpenRouter request",
				"attempt", attempt, "max_retries", maxRetries-1, "delay", delay)
			select {
			case <-ctx.Done():
				c.trackFailedRequest(ctx, req, requestTime, model, temperature, maxTokens, ctx.Err())
				return nil, errors.Wrap(ctx.Err(), "OpenRouter request cancelled")
			case <-time.After(delay):
			}
		}

		resp, err = c.CreateChatCompletion(ctx, openrouterReq, req.CallType)
		if err == nil {
			if attempt > 0 {
				c.logger.Infow("Request succeeded after retries", "attempts", attempt+1, "model", model)
			}
			break
		}

		c.logger.Warnw("OpenRouter API error",
			"attempt", attempt+1, "max_retries", maxRetries,
			"error", err, "model", model)

		if ctx.Err() == nil && c.isRetryableError(err) {
			continue
		}

		c.trackFailedRequest(ctx, req, requestTime, model, temperature, maxTokens, err)
		return nil, errors.Wrap(err, "OpenRouter API error")
	}

	if err != nil {
		c.trackFailedRequest(ctx, req, requestTime, model, temperature, maxTokens, err)
		return nil, errors.Wrapf(err, "OpenRouter API error after %d retries", maxRetries)
	}

	if len(resp.Choices) == 0 {
		err := errors.New("no response choices from OpenRouter")
		c.trackFailedRequest(ctx, req, requestTime, model, temperature, maxTokens, err)
		return nil, err
	}

	responseText := resp.Choices[0].Message.Content

	c.logger.Debugw("OpenRouter response",
		"content_length", len(responseText),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
	)

	if c.usageTracker != nil {
		responseTime := time.Now()
		tokensUsed := resp.Usage.TotalTokens
		cost := CalculateCost(model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

		usage := &tracker.ModelUsage{
			OperationType:     req.CallType,
			EntityType:        "call",
			EntityID:          req.CallID,
			ModelName:         model,
			ModelProvider:     "openrouter",
			ModelConfig:       tracker.NewModelConfig(&temperature, &maxTokens),
			RequestTimestamp:  requestTime,
			ResponseTimestamp: &responseTime,
			TokensUsed:        &tokensUsed,
			Cost:              &cost,
			Success:           true,
			Metadata: tracker.NewUsageMetadata(tracker.UsageMetadata{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				PromptLength:     len(req.SystemPrompt) + len(req.UserPrompt),
				ResponseLength:   len(responseText),
			}),
		}

		if err := c.usageTracker.TrackUsage(ctx, usage); err != nil {
			c.logger.Warnw("Failed to track usage", "error", err, "model", model, "tokens", tokensUsed)
		}
	}

	return &ChatResponse{
		Content: strings.TrimSpace(responseText),
		Model:   model,
		Usage:   resp.Usage,
	}, nil
}

// isRetryableError checks if an error is worth retrying (network-related)
func (c *Client) isRetryableError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errno, ok := opErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
				return true
			}
		}
	}

	errStr := strings.ToLower(err.Error())
	networkErrors := []string{
		"connection reset by peer",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"status 429",
		"status 502",
		"status 503",
	}

	for _, netErr := range networkErrors {
		if strings.Contains(errStr, netErr) {
			return true
		}
	}

	return false
}

func (c *Client) trackFailedRequest(ctx context.Context, req ChatRequest, requestTime time.Time, model string, temperature float64, maxTokens int, err error) {
	if c.usageTracker == nil {
		return
	}

	responseTime := time.Now()
	errMsg := err.Error()

	usage := &tracker.ModelUsage{
		OperationType:     req.CallType,
		EntityType:        "call",
		EntityID:          req.CallID,
		ModelName:         model,
		ModelProvider:     "openrouter",
		ModelConfig:       tracker.NewModelConfig(&temperature, &maxTokens),
		RequestTimestamp:  requestTime,
		ResponseTimestamp: &responseTime,
		Success:           false,
		ErrorMessage:      &errMsg,
	}

	// The caller's context may already be done; the failure row is still worth keeping.
	if trackErr := c.usageTracker.TrackUsage(context.WithoutCancel(ctx), usage); trackErr != nil {
		c.logger.Warnw("Failed to track failed request", "error", trackErr, "model", model, "original_error", errMsg)
	}
}

// IsConfigured returns true if the client has a valid API key
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
