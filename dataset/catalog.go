package dataset

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/teranos/samarth/errors"
)

// FallbackDescription describes a dataset the catalog says nothing about
const FallbackDescription = "Agricultural and climate data"

var defaultDescriptions = map[string]string{
	"agmark_mandis_and_locations":    "Agricultural markets (mandis) across India with location mapping",
	"location_hierarchy":             "Complete hierarchy of states, divisions, districts, and blocks",
	"district_neighbour_map_india":   "Mapping of neighboring districts for each district in India",
	"mandi_apmc_map":                 "APMC (Agricultural Produce Market Committee) mandi mappings",
	"agmark_crops":                   "Crop varieties and types available in Agmark system",
	"imd_agromet_advisory_locations": "IMD weather advisory locations and access links",
}

// CatalogCitation overrides the citation shown for a dataset
type CatalogCitation struct {
	Name        string `toml:"name"`
	Source      string `toml:"source"`
	Description string `toml:"description"`
}

// CatalogEntry is the optional metadata for one dataset
type CatalogEntry struct {
	// Description is shown by `samarth datasets`
	Description string `toml:"description"`

	// Keywords are extra relevance trigger terms
	Keywords []string `toml:"keywords"`

	// Citation replaces or adds the dataset's citation
	Citation *CatalogCitation `toml:"citation"`
}

// Catalog maps dataset names to metadata. Example:
//
//	[datasets.rainfall_2023]
//	description = "District rainfall, 2023"
//	keywords = ["rain", "rainfall", "monsoon"]
//
//	[datasets.rainfall_2023.citation]
//	name = "IMD Rainfall Dataset"
//	source = "India Meteorological Department (IMD)"
//	description = "District-wise rainfall"
type Catalog struct {
	Datasets map[string]CatalogEntry `toml:"datasets"`
}

// DefaultCatalog returns the built-in descriptions for the six known datasets
func DefaultCatalog() *Catalog {
	c := &Catalog{Datasets: make(map[string]CatalogEntry, len(defaultDescriptions))}
	for name, desc := range defaultDescriptions {
		c.Datasets[name] = CatalogEntry{Description: desc}
	}
	return c
}

// LoadCatalog decodes a TOML catalog and layers it over DefaultCatalog.
// An empty path returns the defaults.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "dataset catalog %s", path)
	}

	var file Catalog
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse dataset catalog %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.WithHint(
			errors.Newf("dataset catalog %s: unknown key %s", path, undecoded[0].String()),
			"entries support description, keywords and [citation] name/source/description",
		)
	}

	for name, entry := range file.Datasets {
		base := c.Datasets[name]
		if entry.Description != "" {
			base.Description = entry.Description
		}
		base.Keywords = append(base.Keywords, entry.Keywords...)
		if entry.Citation != nil {
			base.Citation = entry.Citation
		}
		c.Datasets[name] = base
	}
	return c, nil
}

// Describe returns a dataset's description or FallbackDescription
func (c *Catalog) Describe(name string) string {
	if c != nil {
		if e, ok := c.Datasets[name]; ok && e.Description != "" {
			return e.Description
		}
	}
	return FallbackDescription
}

// Keywords returns the extra relevance terms per dataset
func (c *Catalog) Keywords() map[string][]string {
	out := make(map[string][]string)
	if c == nil {
		return out
	}
	for name, e := range c.Datasets {
		if len(e.Keywords) > 0 {
			out[name] = append([]string(nil), e.Keywords...)
		}
	}
	return out
}

// Citations returns the citation overrides per dataset
func (c *Catalog) Citations() map[string]CatalogCitation {
	out := make(map[string]CatalogCitation)
	if c == nil {
		return out
	}
	for name, e := range c.Datasets {
		if e.Citation != nil {
			out[name] = *e.Citation
		}
	}
	return out
}
