package pipeline

import "fmt"

// Tier identifies one level of the administrative geography hierarchy,
// ordered from coarsest (province) to finest (dissemination area).
type Tier int

const (
	TierProvince Tier = iota // provinces and territories
	TierCMA                  // census metropolitan areas
	TierCD                   // census divisions
	TierCCS                  // census consolidated subdivisions
	TierFSA                  // forward sortation areas
	TierDA                   // dissemination areas
)

// AllTiers lists every tier in hierarchy order, coarsest first.
var AllTiers = []Tier{TierProvince, TierCMA, TierCD, TierCCS, TierFSA, TierDA}

// String returns the short uppercase tier name used in config keys and URLs.
func (t Tier) String() string {
	switch t {
	case TierProvince:
		return "PROVINCE"
	case TierCMA:
		return "CMA"
	case TierCD:
		return "CD"
	case TierCCS:
		return "CCS"
	case TierFSA:
		return "FSA"
	case TierDA:
		return "DA"
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// ParseTier converts a tier name (as produced by String) back to a Tier.
func ParseTier(name string) (Tier, error) {
	for _, t := range AllTiers {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tier: %q", name)
}

// Ancestors returns the tiers coarser than t, coarsest first. Collaborators
// use these to render layered context behind the active tier.
func (t Tier) Ancestors() []Tier {
	if t <= TierProvince {
		return nil
	}
	ancestors := make([]Tier, 0, int(t))
	for _, a := range AllTiers {
		if a < t {
			ancestors = append(ancestors, a)
		}
	}
	return ancestors
}

// Product category names used by the baseline resolver and synthesizer.
const (
	CategoryHousing      = "Housing"
	CategoryLabour       = "Labour"
	CategoryDemographics = "Demographics"
)

// Product describes one statistical product from the external catalog.
// Dimensionality is how many variables compose a single visual glyph (1-3).
type Product struct {
	ID             string `json:"id" yaml:"id"`
	Title          string `json:"title" yaml:"title"`
	Category       string `json:"category" yaml:"category"`
	Variable       string `json:"variable" yaml:"variable"`
	Units          string `json:"units" yaml:"units"`
	Dimensionality int    `json:"dimensionality" yaml:"dimensionality"`
}

// EnrichedPoint is a feature's representative location plus its resolved
// statistical metrics. Once merged, points are owned by the PointStore;
// upstream batches are transient.
type EnrichedPoint struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Lat           float64            `json:"lat"`
	Lng           float64            `json:"lng"`
	Value         float64            `json:"value"`
	Trend         float64            `json:"trend"` // roughly [-1, 1]
	Metrics       map[string]float64 `json:"metrics"`
	ParentMetrics map[string]float64 `json:"parentMetrics,omitempty"`
	Tier          Tier               `json:"tier"`
	PostalCode    string             `json:"postalCode,omitempty"`
}

// Clone returns a deep copy so store snapshots cannot be mutated by readers.
func (p *EnrichedPoint) Clone() *EnrichedPoint {
	cp := *p
	cp.Metrics = make(map[string]float64, len(p.Metrics))
	for k, v := range p.Metrics {
		cp.Metrics[k] = v
	}
	if p.ParentMetrics != nil {
		cp.ParentMetrics = make(map[string]float64, len(p.ParentMetrics))
		for k, v := range p.ParentMetrics {
			cp.ParentMetrics[k] = v
		}
	}
	return &cp
}
