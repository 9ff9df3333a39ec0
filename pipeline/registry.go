package pipeline

// defaultEndpoints maps each tier to its published 2021 boundary file in
// GeoJSON form. All endpoints are unauthenticated.
var defaultEndpoints = map[Tier]string{
	TierProvince: "https://geo.statcan.gc.ca/boundaries/2021/lpr_000b21a_e.geojson",
	TierCMA:      "https://geo.statcan.gc.ca/boundaries/2021/lcma000b21a_e.geojson",
	TierCD:       "https://geo.statcan.gc.ca/boundaries/2021/lcd_000b21a_e.geojson",
	TierCCS:      "https://geo.statcan.gc.ca/boundaries/2021/lccs000b21a_e.geojson",
	TierFSA:      "https://geo.statcan.gc.ca/boundaries/2021/lfsa000b21a_e.geojson",
	TierDA:       "https://geo.statcan.gc.ca/boundaries/2021/lda_000b21a_e.geojson",
}

// Registry is the static 1:1 mapping from LOD tier to its geometry resource
// locator. Entries can be overridden from config; unknown tiers resolve to
// the empty string.
type Registry struct {
	endpoints map[Tier]string
}

// NewRegistry returns a registry seeded with the default endpoints and any
// overrides applied on top. Override keys are tier names as produced by
// Tier.String.
func NewRegistry(overrides map[string]string) *Registry {
	endpoints := make(map[Tier]string, len(defaultEndpoints))
	for t, u := range defaultEndpoints {
		endpoints[t] = u
	}
	for name, u := range overrides {
		if u == "" {
			continue
		}
		t, err := ParseTier(name)
		if err != nil {
			continue
		}
		endpoints[t] = u
	}
	return &Registry{endpoints: endpoints}
}

// URL returns the geometry resource locator for the tier.
func (r *Registry) URL(tier Tier) string {
	return r.endpoints[tier]
}
