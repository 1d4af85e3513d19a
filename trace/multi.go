package trace

import (
	"context"

	"github.com/teranos/samarth/errors"
)

// Multi saves to every sink and combines their errors
type Multi []Sink

// Save implements Sink. A failing sink does not stop the others.
func (m Multi) Save(ctx context.Context, t *Trace, target string) error {
	var err error
	for _, s := range m {
		if serr := s.Save(ctx, t, target); serr != nil {
			err = errors.CombineErrors(err, serr)
		}
	}
	return err
}
