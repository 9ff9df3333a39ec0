package pipeline

import "sync"

// tierThreshold is one step of the zoom-to-tier ladder: zoom values below
// Below map to Tier. The ladder is monotonic and the ranges are
// non-overlapping, covering (-inf, +inf).
type tierThreshold struct {
	Below float64
	Tier  Tier
}

// zoomLadder maps continuous zoom to a discrete tier. Coarser tiers cover
// lower zooms; anything at or above the last threshold is DA.
var zoomLadder = []tierThreshold{
	{Below: 4.0, Tier: TierProvince},
	{Below: 6.0, Tier: TierCMA},
	{Below: 7.5, Tier: TierCD},
	{Below: 9.0, Tier: TierCCS},
	{Below: 11.0, Tier: TierFSA},
}

// TierForZoom returns the tier active at the given zoom value.
func TierForZoom(zoom float64) Tier {
	for _, step := range zoomLadder {
		if zoom < step.Below {
			return step.Tier
		}
	}
	return TierDA
}

// LODMachine tracks the active tier across zoom updates and reports
// transitions. It carries no loading state of its own; stream progress is
// signaled externally by the producer. Safe for concurrent use.
type LODMachine struct {
	mu      sync.Mutex
	current Tier
}

// NewLODMachine returns a machine positioned at the tier for the initial zoom.
func NewLODMachine(initialZoom float64) *LODMachine {
	return &LODMachine{current: TierForZoom(initialZoom)}
}

// Current returns the active tier.
func (m *LODMachine) Current() Tier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Update recomputes the tier for the zoom value and reports whether a
// transition occurred. Clearing the point store on a transition is the
// loader's job, under its own serialization; cached raw geometry is
// retained across transitions.
func (m *LODMachine) Update(zoom float64) (Tier, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := TierForZoom(zoom)
	if next == m.current {
		return m.current, false
	}
	m.current = next
	return next, true
}
