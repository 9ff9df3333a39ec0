package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Defaults(t *testing.T) {
	r := NewRegistry(nil)
	for _, tier := range AllTiers {
		assert.NotEmpty(t, r.URL(tier), "every tier has a default locator")
	}
	assert.Empty(t, r.URL(Tier(99)))
}

func TestRegistry_Overrides(t *testing.T) {
	r := NewRegistry(map[string]string{
		"PROVINCE": "https://example.test/province.geojson",
		"UNKNOWN":  "https://example.test/ignored.geojson",
		"CMA":      "",
	})

	assert.Equal(t, "https://example.test/province.geojson", r.URL(TierProvince))
	assert.Equal(t, defaultEndpoints[TierCMA], r.URL(TierCMA), "empty override is ignored")
	assert.Equal(t, defaultEndpoints[TierDA], r.URL(TierDA))
}
