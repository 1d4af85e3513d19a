package dataset

import (
	"sort"

	"github.com/teranos/samarth/errors"
)

// Registry is the read-only set of datasets available to the pipeline.
// It has no mutators; build a new one to change what is loaded.
type Registry struct {
	names  []string
	byName map[string]*Dataset
}

// NewRegistry builds a registry. Names are reported in sorted order.
func NewRegistry(datasets ...*Dataset) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Dataset, len(datasets))}
	for _, d := range datasets {
		if d == nil {
			continue
		}
		if _, dup := r.byName[d.Name()]; dup {
			return nil, errors.Newf("duplicate dataset name %q", d.Name())
		}
		r.byName[d.Name()] = d
		r.names = append(r.names, d.Name())
	}
	sort.Strings(r.names)
	return r, nil
}

// Names returns every dataset name
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of datasets
func (r *Registry) Len() int { return len(r.names) }

// Has reports whether a dataset is loaded
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Get looks a dataset up by name
func (r *Registry) Get(name string) (*Dataset, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, errors.Mark(errors.Newf("dataset %q not found", name), errors.ErrUnknownDataset)
	}
	return d, nil
}
