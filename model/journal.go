package model

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/samarth/am"
	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/logger"
)

type journalEntry struct {
	Timestamp string   `json:"timestamp"`
	CallType  CallType `json:"call_type"`
	CallID    string   `json:"call_id"`
	Prompt    string   `json:"prompt,omitempty"`
	Response  string   `json:"response,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Journal writes every call to dir as <call_id>_INPUT.{txt,json} and
// <call_id>_OUTPUT.{txt,json}. Write failures are logged and never fail the call.
func Journal(next Caller, dir string, log *zap.SugaredLogger) Caller {
	log = logger.OrNop(log)
	return CallerFunc(func(ctx context.Context, prompt string, callType CallType) (Response, error) {
		started := time.Now().UTC().Format(time.RFC3339Nano)
		resp, err := next.Call(ctx, prompt, callType)

		callID := resp.CallID
		if callID == "" {
			callID = NewCallID(callType, time.Now())
		}

		in := journalEntry{Timestamp: started, CallType: callType, CallID: callID, Prompt: prompt}
		out := journalEntry{Timestamp: started, CallType: callType, CallID: callID, Response: resp.Text}
		raw := resp.Text
		if err != nil {
			out.Error = err.Error()
			raw = err.Error()
		}

		if werr := writeCallLog(dir, callID, "INPUT", prompt, in); werr != nil {
			log.Warnw("could not save call input log", logger.FieldCallID, callID, logger.FieldError, werr)
		}
		if werr := writeCallLog(dir, callID, "OUTPUT", raw, out); werr != nil {
			log.Warnw("could not save call output log", logger.FieldCallID, callID, logger.FieldError, werr)
		}
		return resp, err
	})
}

func writeCallLog(dir, callID, kind, raw string, entry journalEntry) error {
	if err := os.MkdirAll(dir, am.DefaultDirPermissions); err != nil {
		return errors.Mark(errors.Wrapf(err, "create %s", dir), errors.ErrPersistence)
	}
	base := filepath.Join(dir, callID+"_"+kind)

	if err := os.WriteFile(base+".txt", []byte(raw), am.DefaultFilePermissions); err != nil {
		return errors.Mark(errors.Wrap(err, "write raw log"), errors.ErrPersistence)
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode log entry")
	}
	if err := os.WriteFile(base+".json", data, am.DefaultFilePermissions); err != nil {
		return errors.Mark(errors.Wrap(err, "write log entry"), errors.ErrPersistence)
	}
	return nil
}
