// Package relevance picks which datasets a question is about by keyword.
package relevance

import (
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/samarth/logger"
)

// Rule maps a dataset to the terms that make it relevant
type Rule struct {
	Dataset string
	Terms   []string
}

// DefaultRules is the built-in keyword table, in evaluation order
func DefaultRules() []Rule {
	return []Rule{
		{Dataset: "agmark_mandis_and_locations", Terms: []string{"mandi", "market", "agmark", "state", "district", "location"}},
		{Dataset: "location_hierarchy", Terms: []string{"district", "block", "state", "division", "hierarchy", "administrative"}},
		{Dataset: "district_neighbour_map_india", Terms: []string{"neighbor", "neighbour", "adjacent", "nearby", "border"}},
		{Dataset: "mandi_apmc_map", Terms: []string{"apmc", "mandi", "market"}},
		{Dataset: "agmark_crops", Terms: []string{"crop", "variety", "wheat", "rice", "paddy", "maize", "vegetable", "fruit"}},
		{Dataset: "imd_agromet_advisory_locations", Terms: []string{"weather", "imd", "climate", "advisory", "forecast"}},
	}
}

// WithKeywords appends extra terms to rules. Datasets named in order that
// have no rule yet get a new rule at the end, following order.
func WithKeywords(rules []Rule, extra map[string][]string, order []string) []Rule {
	out := make([]Rule, len(rules))
	index := make(map[string]int, len(rules))
	for i, r := range rules {
		out[i] = Rule{Dataset: r.Dataset, Terms: append([]string(nil), r.Terms...)}
		index[r.Dataset] = i
	}
	for _, name := range order {
		terms, ok := extra[name]
		if !ok {
			continue
		}
		if i, exists := index[name]; exists {
			out[i].Terms = append(out[i].Terms, terms...)
			continue
		}
		index[name] = len(out)
		out = append(out, Rule{Dataset: name, Terms: append([]string(nil), terms...)})
	}
	return out
}

// Catalog lists every loaded dataset name. Matches outside it are dropped
// and it is the fallback when nothing matches.
type Catalog interface {
	Names() []string
}

// Selector matches questions against a keyword table
type Selector struct {
	rules   []Rule
	catalog Catalog
	logger  *zap.SugaredLogger
}

// NewSelector creates a selector. Terms are matched lower-cased.
func NewSelector(rules []Rule, catalog Catalog, log *zap.SugaredLogger) *Selector {
	normalized := make([]Rule, len(rules))
	for i, r := range rules {
		terms := make([]string, 0, len(r.Terms))
		for _, t := range r.Terms {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				terms = append(terms, t)
			}
		}
		normalized[i] = Rule{Dataset: r.Dataset, Terms: terms}
	}
	return &Selector{rules: normalized, catalog: catalog, logger: logger.OrNop(log)}
}

// Select returns the loaded datasets whose terms appear in the question, in
// rule order. When nothing loaded matches it returns every dataset in the
// catalog.
func (s *Selector) Select(question string) []string {
	q := strings.ToLower(question)
	all := s.catalog.Names()
	loaded := make(map[string]bool, len(all))
	for _, name := range all {
		loaded[name] = true
	}

	var relevant, skipped []string
	for _, r := range s.rules {
		for _, term := range r.Terms {
			if strings.Contains(q, term) {
				if loaded[r.Dataset] {
					relevant = append(relevant, r.Dataset)
				} else {
					skipped = append(skipped, r.Dataset)
				}
				break
			}
		}
	}
	if len(skipped) > 0 {
		s.logger.Debugw("Matched datasets are not loaded", logger.FieldDatasets, skipped)
	}

	if len(relevant) == 0 {
		s.logger.Debugw("No loaded dataset matched, using all datasets",
			logger.FieldCount, len(all))
		return all
	}

	s.logger.Debugw("Selected datasets", logger.FieldDatasets, relevant)
	return relevant
}
