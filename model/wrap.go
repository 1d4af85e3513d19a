package model

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/logger"
)

// Degrade turns transport errors into DegradedPrefix text so a failed call
// reaches the caller as a response. Downstream extraction recognizes it.
func Degrade(next Caller, log *zap.SugaredLogger) Caller {
	log = logger.OrNop(log)
	return CallerFunc(func(ctx context.Context, prompt string, callType CallType) (Response, error) {
		resp, err := next.Call(ctx, prompt, callType)
		if err == nil {
			return resp, nil
		}
		te := transportError(resp.CallID, callType, err)
		log.Warnw("model call degraded to error text",
			logger.FieldCallType, callType,
			logger.FieldCallID, te.CallID,
			logger.FieldError, errors.Mark(err, errors.ErrModelDegraded))
		return Response{Text: DegradedPrefix + te.Err.Error(), CallID: te.CallID}, nil
	})
}

// WithTimeout bounds each call. d <= 0 leaves calls unbounded.
func WithTimeout(next Caller, d time.Duration) Caller {
	if d <= 0 {
		return next
	}
	return CallerFunc(func(ctx context.Context, prompt string, callType CallType) (Response, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		resp, err := next.Call(ctx, prompt, callType)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return resp, &TransportError{
				CallID:   resp.CallID,
				CallType: callType,
				Err:      errors.Mark(errors.Wrapf(err, "model call exceeded %s", d), errors.ErrTimeout),
			}
		}
		return resp, err
	})
}

// WithRateLimit allows at most perMinute calls per minute, waiting for a
// token before each call. perMinute <= 0 disables the limit.
func WithRateLimit(next Caller, perMinute int) Caller {
	if perMinute <= 0 {
		return next
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	return CallerFunc(func(ctx context.Context, prompt string, callType CallType) (Response, error) {
		if err := limiter.Wait(ctx); err != nil {
			return Response{}, &TransportError{
				CallType: callType,
				Err:      errors.Wrap(err, "rate limit wait"),
			}
		}
		return next.Call(ctx, prompt, callType)
	})
}
