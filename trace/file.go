package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/teranos/samarth/am"
	"github.com/teranos/samarth/errors"
)

// FileSink writes <dir>/<target>.json
type FileSink struct {
	Dir string
}

// NewFileSink creates a sink writing into dir
func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

// Save implements Sink
func (s *FileSink) Save(_ context.Context, t *Trace, target string) error {
	if err := os.MkdirAll(s.Dir, am.DefaultDirPermissions); err != nil {
		return errors.Mark(errors.Wrapf(err, "create trace dir %s", s.Dir), errors.ErrPersistence)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return errors.Wrap(err, "encode trace")
	}

	path := filepath.Join(s.Dir, target+".json")
	if err := os.WriteFile(path, buf.Bytes(), am.DefaultFilePermissions); err != nil {
		return errors.Mark(errors.Wrapf(err, "write %s", path), errors.ErrPersistence)
	}
	return nil
}

// Load reads a trace written by Save
func (s *FileSink) Load(target string) (*Trace, error) {
	path := filepath.Join(s.Dir, target+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("trace %s", target)
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return &t, nil
}
