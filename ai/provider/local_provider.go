package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/samarth/ai/openrouter"
	"github.com/teranos/samarth/ai/tracker"
	"github.com/teranos/samarth/am"
	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/internal/httpclient"
	"github.com/teranos/samarth/version"
)

// LocalProvider talks to a local inference server over the OpenAI-compatible
// /v1/chat/completions endpoint (Ollama, LocalAI).
type LocalProvider struct {
	baseURL    string
	model      string
	httpClient *httpclient.Client
	config     *am.LocalInferenceConfig
	tracker    *tracker.UsageTracker
	logger     *zap.SugaredLogger
}

// LocalOptions carries the optional collaborators of a LocalProvider
type LocalOptions struct {
	Tracker *tracker.UsageTracker
	Logger  *zap.SugaredLogger
}

// NewLocalProvider creates a provider for local inference. Local servers live
// on private addresses, so those are allowed.
func NewLocalProvider(cfg *am.LocalInferenceConfig, opts LocalOptions) *LocalProvider {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &LocalProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: httpclient.New(
			time.Duration(cfg.TimeoutSeconds)*time.Second,
			httpclient.AllowPrivateNetworks(),
		),
		config:  cfg,
		tracker: opts.Tracker,
		logger:  logger,
	}
}

// ChatCompletionRequest matches OpenAI API format (Ollama is compatible)
type ChatCompletionRequest struct {
	Model    string          `json:"model"`
	Messages []ChatMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *CompletionOpts `json:"options,omitempty"` // Ollama-specific options
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionOpts struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"num_predict,omitempty"` // Ollama uses num_predict
	NumCtx      int     `json:"num_ctx,omitempty"`     // Context window size (Ollama default: 4096)
}

// ChatCompletionResponse matches OpenAI API format
type ChatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Chat implements AIClient
func (lp *LocalProvider) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	temperature := 0.3
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := 1000
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	model := lp.model
	if req.Model != nil {
		model = *req.Model
	}

	var messages []ChatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.UserPrompt})

	requested := time.Now()
	completion, err := lp.complete(ctx, ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Options: &CompletionOpts{
			Temperature: temperature,
			MaxTokens:   maxTokens,
			NumCtx:      lp.config.ContextSize,
		},
	})
	lp.track(ctx, req, model, temperature, maxTokens, requested, completion, err)
	if err != nil {
		return nil, err
	}

	resp := &openrouter.ChatResponse{
		Content: strings.TrimSpace(completion.Choices[0].Message.Content),
		Model:   model,
	}
	if completion.Usage != nil {
		resp.Usage = openrouter.Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		}
	}
	return resp, nil
}

// GenerateText sends a system and user prompt and returns the raw completion
func (lp *LocalProvider) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := lp.Chat(ctx, openrouter.ChatRequest{SystemPrompt: systemPrompt, UserPrompt: userPrompt})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (lp *LocalProvider) complete(ctx context.Context, body ChatCompletionRequest) (*ChatCompletionResponse, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	endpoint := lp.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	lp.logger.Debugw("Local inference request", "endpoint", endpoint, "model", body.Model)

	resp, err := lp.httpClient.Do(req)
	if err != nil {
		return nil, errors.WithHintf(errors.Wrap(err, "local inference request failed"),
			"is the server at %s running?", lp.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, errors.Newf("local inference returned status %d: %s", resp.StatusCode, string(data))
	}

	var completion ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, errors.Wrap(err, "failed to decode response")
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("no completion choices returned")
	}
	return &completion, nil
}

// Local inference is free; rows are still written so call counts and failures show up in usage reports.
func (lp *LocalProvider) track(ctx context.Context, req openrouter.ChatRequest, model string, temperature float64, maxTokens int, requested time.Time, completion *ChatCompletionResponse, callErr error) {
	if lp.tracker == nil {
		return
	}
	responded := time.Now()
	cost := lp.EstimateCost(0, 0)
	usage := &tracker.ModelUsage{
		OperationType:     req.CallType,
		EntityType:        "call",
		EntityID:          req.CallID,
		ModelName:         model,
		ModelProvider:     "local",
		ModelConfig:       tracker.NewModelConfig(&temperature, &maxTokens),
		RequestTimestamp:  requested,
		ResponseTimestamp: &responded,
		Cost:              &cost,
		Success:           callErr == nil,
	}
	if callErr != nil {
		msg := callErr.Error()
		usage.ErrorMessage = &msg
	} else if completion.Usage != nil {
		tokens := completion.Usage.TotalTokens
		usage.TokensUsed = &tokens
	}
	if err := lp.tracker.TrackUsage(context.WithoutCancel(ctx), usage); err != nil {
		lp.logger.Warnw("Failed to track usage", "error", err, "model", model)
	}
}

// EstimateCost returns zero cost for local inference
func (lp *LocalProvider) EstimateCost(promptTokens, completionTokens int) float64 {
	return 0.0
}

// GetModelName returns the configured local model name
func (lp *LocalProvider) GetModelName() string {
	return lp.model
}
