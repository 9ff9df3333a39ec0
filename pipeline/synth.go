package pipeline

import "math"

// The synthesizer is a simulation layer, not a statistical estimator. It
// produces spatially smooth, visually plausible per-feature variation
// anchored to a real national baseline, for use when genuine small-area
// microdata is unavailable. Values are deterministic in (lat, lng,
// category, tier, baseline).

// tierFrequency is the spatial frequency ladder: coarser tiers vary slowly
// across the map, finer tiers quickly. Monotonic with tier granularity.
var tierFrequency = map[Tier]float64{
	TierProvince: 0.5,
	TierCMA:      1.5,
	TierCD:       3.0,
	TierCCS:      6.0,
	TierFSA:      12.0,
	TierDA:       25.0,
}

// parentFrequencyRatio derives the lower-frequency parent aggregate from
// the feature-level frequency.
const parentFrequencyRatio = 0.2

// Category amplitudes: Housing products swing wider than the rest.
const (
	housingAmplitude       = 0.25
	housingParentAmplitude = 0.10
	defaultAmplitude       = 0.18
	defaultParentAmplitude = 0.05
)

// amplitudes returns the feature-level and parent-level swing for a category.
func amplitudes(category string) (feature, parent float64) {
	if category == CategoryHousing {
		return housingAmplitude, housingParentAmplitude
	}
	return defaultAmplitude, defaultParentAmplitude
}

// categorySeed derives a deterministic phase offset from the category text.
func categorySeed(category string) float64 {
	return float64(len(category)) * 13
}

// noise returns sin(lat*freq+seed)*cos(lng*freq+seed), bounded in [-1, 1].
func noise(lat, lng, freq, seed float64) float64 {
	return math.Sin(lat*freq+seed) * math.Cos(lng*freq+seed)
}

// Synthesize returns a plausible per-feature value for the product and its
// lower-amplitude parent-tier aggregate, both anchored to the baseline and
// clamped to non-negative.
func Synthesize(lat, lng float64, tier Tier, product Product, baseline float64) (value, parent float64) {
	freq := tierFrequency[tier]
	seed := categorySeed(product.Category)
	amp, parentAmp := amplitudes(product.Category)

	n := noise(lat, lng, freq, seed)
	p := noise(lat, lng, freq*parentFrequencyRatio, seed)

	value = baseline * (1 + amp*n)
	parent = baseline * (1 + parentAmp*p)
	if value < 0 {
		value = 0
	}
	if parent < 0 {
		parent = 0
	}
	return value, parent
}

// TrendFor derives the point's trend scalar, a slow spatial wave in
// [-1, 1] independent of any product.
func TrendFor(lat, lng float64) float64 {
	return noise(lat, lng, 0.8, 0)
}

// ApplyMetrics fills in the product's synthesized value on the point.
// Synthesis is idempotent: a product id already present is left untouched
// unless force is set. The first product applied also sets the point's
// primary value.
func ApplyMetrics(pt *EnrichedPoint, product Product, baseline float64, force bool) {
	if pt.Metrics == nil {
		pt.Metrics = make(map[string]float64)
	}
	if _, done := pt.Metrics[product.ID]; done && !force {
		return
	}

	value, parent := Synthesize(pt.Lat, pt.Lng, pt.Tier, product, baseline)
	pt.Metrics[product.ID] = value
	if pt.ParentMetrics == nil {
		pt.ParentMetrics = make(map[string]float64)
	}
	pt.ParentMetrics[product.ID] = parent

	if pt.Value == 0 {
		pt.Value = value
	}
}
