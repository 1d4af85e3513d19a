package model

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/samarth/ai/openrouter"
	"github.com/teranos/samarth/ai/provider"
	"github.com/teranos/samarth/logger"
)

// ChatCaller sends the whole prompt as a single user turn to a provider client
type ChatCaller struct {
	client provider.AIClient
	now    func() time.Time
	log    *zap.SugaredLogger
}

// NewChatCaller wraps a provider client
func NewChatCaller(client provider.AIClient, log *zap.SugaredLogger) *ChatCaller {
	return &ChatCaller{
		client: client,
		now:    time.Now,
		log:    logger.OrNop(log),
	}
}

// Call implements Caller
func (c *ChatCaller) Call(ctx context.Context, prompt string, callType CallType) (Response, error) {
	callID := NewCallID(callType, c.now())
	log := logger.FromContext(ctx, c.log).With(logger.FieldCallType, callType, logger.FieldCallID, callID)

	start := time.Now()
	resp, err := c.client.Chat(ctx, openrouter.ChatRequest{
		UserPrompt: prompt,
		CallType:   string(callType),
		CallID:     callID,
	})
	if err != nil {
		log.Warnw("model call failed", logger.FieldError, err, logger.FieldDurationMS, time.Since(start).Milliseconds())
		return Response{CallID: callID}, &TransportError{CallID: callID, CallType: callType, Err: err}
	}

	log.Debugw("model call complete",
		logger.FieldModel, resp.Model,
		logger.FieldSize, len(resp.Content),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return Response{Text: resp.Content, CallID: callID}, nil
}
