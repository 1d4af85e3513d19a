// Package citation maps dataset names to their public sources.
package citation

// Citation describes where a dataset comes from
type Citation struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Description string `json:"description"`
}

// DefaultTable returns the built-in citations keyed by dataset name
func DefaultTable() map[string]Citation {
	return map[string]Citation{
		"agmark_mandis_and_locations": {
			Name:        "Agmark Mandis and Locations Dataset",
			Source:      "Agmarknet (agmarknet.gov.in)",
			Description: "Agricultural markets (mandis) across India",
		},
		"location_hierarchy": {
			Name:        "Location Hierarchy Dataset",
			Source:      "Government administrative data",
			Description: "State-Division-District-Block hierarchy",
		},
		"district_neighbour_map_india": {
			Name:        "District Neighbour Map Dataset",
			Source:      "Geographic administrative data",
			Description: "Neighboring districts mapping",
		},
		"mandi_apmc_map": {
			Name:        "APMC Mandi Map Dataset",
			Source:      "APMC (Agricultural Produce Market Committee)",
			Description: "APMC mandi mappings",
		},
		"agmark_crops": {
			Name:        "Agmark Crops Dataset",
			Source:      "Agmarknet (agmarknet.gov.in)",
			Description: "Crop varieties and types",
		},
		"imd_agromet_advisory_locations": {
			Name:        "IMD Agromet Advisory Locations Dataset",
			Source:      "India Meteorological Department (IMD)",
			Description: "Weather advisory locations",
		},
	}
}

// Builder resolves citations from a fixed table
type Builder struct {
	table map[string]Citation
}

// NewBuilder creates a builder over DefaultTable with overrides applied on top
func NewBuilder(overrides map[string]Citation) *Builder {
	table := DefaultTable()
	for name, c := range overrides {
		table[name] = c
	}
	return &Builder{table: table}
}

// Cite returns one citation per known name, in input order. Unknown names
// are dropped; the result is never longer than names.
func (b *Builder) Cite(names []string) []Citation {
	out := make([]Citation, 0, len(names))
	for _, name := range names {
		if c, ok := b.Lookup(name); ok {
			out = append(out, c)
		}
	}
	return out
}

// Lookup returns the citation for one dataset
func (b *Builder) Lookup(name string) (Citation, bool) {
	c, ok := b.table[name]
	return c, ok
}
