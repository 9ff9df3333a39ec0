package pipeline

import (
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// tierIDKeys lists the preferred attribute-bag key per tier, per the 2021
// boundary file conventions.
var tierIDKeys = map[Tier]string{
	TierProvince: "PRUID",
	TierCMA:      "CMAUID",
	TierCD:       "CDUID",
	TierCCS:      "CCSUID",
	TierFSA:      "CFSAUID",
	TierDA:       "DAUID",
}

// fallbackIDKeys are tried in priority order when the tier-preferred key is
// absent from a feature's attribute bag.
var fallbackIDKeys = []string{"DGUID", "GeoUID", "GEO_ID", "id"}

// tierNameKeys lists the display-name key per tier, with generic fallbacks.
var tierNameKeys = map[Tier]string{
	TierProvince: "PRNAME",
	TierCMA:      "CMANAME",
	TierCD:       "CDNAME",
	TierCCS:      "CCSNAME",
	TierFSA:      "CFSAUID",
	TierDA:       "DAUID",
}

var fallbackNameKeys = []string{"name", "NAME", "GEO_NAME"}

// IdentityResolver derives a stable identifier for a geometric feature.
//
// When no natural key is present, the default fallback hashes the feature's
// rounded centroid coordinates, so repeated loads of the same area resolve
// to the same synthetic id and deduplicate cleanly. Setting RandomFallback
// reproduces the historical behavior of minting a random identifier instead;
// that mode does not deduplicate across independent stream invocations and
// can produce visual duplicates on repeated loads.
type IdentityResolver struct {
	// RandomFallback switches the no-natural-key path from a deterministic
	// centroid hash to a random UUID.
	RandomFallback bool
}

// Resolve returns the feature's identifier, trying the tier-preferred key
// first, then the fixed priority list of alternates, and finally the
// synthetic fallback. centroid is the feature's (lat, lng) representative
// point, used only by the deterministic fallback.
func (ir *IdentityResolver) Resolve(f *Feature, tier Tier, centroid orb.Point) string {
	if key, ok := tierIDKeys[tier]; ok {
		if v, ok := f.StringProperty(key); ok {
			return v
		}
	}
	for _, key := range fallbackIDKeys {
		if v, ok := f.StringProperty(key); ok {
			return v
		}
	}

	if ir.RandomFallback {
		return "synth-" + uuid.NewString()
	}
	return syntheticID(tier, centroid)
}

// DisplayName returns a human-readable name for the feature, falling back
// to the resolved id when no name attribute exists.
func (ir *IdentityResolver) DisplayName(f *Feature, tier Tier, id string) string {
	if key, ok := tierNameKeys[tier]; ok {
		if v, ok := f.StringProperty(key); ok {
			return v
		}
	}
	for _, key := range fallbackNameKeys {
		if v, ok := f.StringProperty(key); ok {
			return v
		}
	}
	return id
}

// syntheticID hashes the rounded centroid so the same feature yields the
// same id on every walk. Four decimal places is roughly 11 m at the
// equator, well below the spacing of any administrative geometry.
func syntheticID(tier Tier, centroid orb.Point) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%.4f:%.4f", tier, centroid[0], centroid[1])
	return fmt.Sprintf("synth-%016x", h.Sum64())
}
