package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCite(t *testing.T) {
	b := NewBuilder(nil)

	got := b.Cite([]string{"location_hierarchy", "made_up", "agmark_mandis_and_locations"})
	assert.Equal(t, []Citation{
		{
			Name:        "Location Hierarchy Dataset",
			Source:      "Government administrative data",
			Description: "State-Division-District-Block hierarchy",
		},
		{
			Name:        "Agmark Mandis and Locations Dataset",
			Source:      "Agmarknet (agmarknet.gov.in)",
			Description: "Agricultural markets (mandis) across India",
		},
	}, got, "input order kept, unknown names dropped")
}

func TestCite_NeverExpands(t *testing.T) {
	b := NewBuilder(nil)

	inputs := [][]string{
		nil,
		{},
		{"unknown"},
		{"agmark_crops", "agmark_crops"},
		{"agmark_crops", "mandi_apmc_map", "imd_agromet_advisory_locations", "district_neighbour_map_india"},
	}
	for _, in := range inputs {
		got := b.Cite(in)
		assert.NotNil(t, got)
		assert.LessOrEqual(t, len(got), len(in))
	}

	assert.Empty(t, b.Cite([]string{"unknown"}))
}

func TestNewBuilder_Overrides(t *testing.T) {
	rain := Citation{Name: "IMD Rainfall Dataset", Source: "India Meteorological Department (IMD)", Description: "District-wise rainfall"}
	b := NewBuilder(map[string]Citation{
		"rainfall_2023": rain,
		"agmark_crops":  {Name: "Crops", Source: "Agmarknet", Description: "Crops"},
	})

	assert.Equal(t, []Citation{rain}, b.Cite([]string{"rainfall_2023"}))

	c, ok := b.Lookup("agmark_crops")
	assert.True(t, ok)
	assert.Equal(t, "Crops", c.Name)

	_, ok = NewBuilder(nil).Lookup("rainfall_2023")
	assert.False(t, ok, "overrides do not leak into other builders")
}
