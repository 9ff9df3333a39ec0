package pipeline

import "sync"

// PointStore is the unioned, deduplicated, mutable collection of enriched
// points — the terminal artifact handed to collaborators. Point ids are
// unique within one store; merging a point with an existing id overwrites
// it in place rather than duplicating. A point's tier is immutable after
// creation; the store is cleared on tier transition so tiers' numeric data
// are never mixed.
type PointStore struct {
	mu     sync.RWMutex
	points map[string]*EnrichedPoint
	tier   Tier
	hasAny bool
}

// NewPointStore creates an empty store.
func NewPointStore() *PointStore {
	return &PointStore{
		points: make(map[string]*EnrichedPoint),
	}
}

// Tier returns the tier of the points currently held and whether the store
// holds any tier at all.
func (ps *PointStore) Tier() (Tier, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.tier, ps.hasAny
}

// Merge inserts the point, overwriting any existing point with the same id.
// Previously synthesized metrics on the existing point are preserved for
// product ids the incoming point does not carry, so repeated loads do not
// discard enrichment.
func (ps *PointStore) Merge(pt *EnrichedPoint) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if existing, ok := ps.points[pt.ID]; ok {
		for id, v := range existing.Metrics {
			if _, has := pt.Metrics[id]; !has {
				if pt.Metrics == nil {
					pt.Metrics = make(map[string]float64)
				}
				pt.Metrics[id] = v
			}
		}
		for id, v := range existing.ParentMetrics {
			if pt.ParentMetrics == nil {
				pt.ParentMetrics = make(map[string]float64)
			}
			if _, has := pt.ParentMetrics[id]; !has {
				pt.ParentMetrics[id] = v
			}
		}
	}

	ps.points[pt.ID] = pt
	ps.tier = pt.Tier
	ps.hasAny = true
}

// Get returns a copy of the point with the given id.
func (ps *PointStore) Get(id string) (*EnrichedPoint, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	pt, ok := ps.points[id]
	if !ok {
		return nil, false
	}
	return pt.Clone(), true
}

// Update applies fn to the stored point with the given id, if present.
// Used by the loader to add metrics in place without replacing the point.
func (ps *PointStore) Update(id string, fn func(*EnrichedPoint)) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	pt, ok := ps.points[id]
	if !ok {
		return false
	}
	fn(pt)
	return true
}

// Size returns the number of points held.
func (ps *PointStore) Size() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.points)
}

// Snapshot returns deep copies of all points. Readers cannot mutate store
// state through the snapshot.
func (ps *PointStore) Snapshot() []*EnrichedPoint {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	out := make([]*EnrichedPoint, 0, len(ps.points))
	for _, pt := range ps.points {
		out = append(out, pt.Clone())
	}
	return out
}

// Clear drops every point. Called on tier transition; cached raw geometry
// is unaffected.
func (ps *PointStore) Clear() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.points = make(map[string]*EnrichedPoint)
	ps.hasAny = false
}
