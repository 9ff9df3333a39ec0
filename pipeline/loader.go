package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
)

// ErrLoadInProgress is returned when a tier load is requested while another
// is still running. Loads mutate the shared point store and must never run
// in parallel, to avoid interleaved partial writes.
var ErrLoadInProgress = errors.New("tier load already in progress")

// postalLetters are the letters valid in a forward sortation area code.
const postalLetters = "ABCEGHJKLMNPRSTVXY"

// Loader drives the pipeline: it consumes the stream for the active tier,
// enriches each feature into a point, merges it into the store, and
// synthesizes metrics for the requested products. Exactly one load runs at
// a time.
type Loader struct {
	Producer  *StreamProducer
	Baselines *BaselineResolver
	Store     *PointStore
	Progress  *ProgressPublisher

	mu   sync.Mutex
	busy bool
}

// NewLoader wires a loader from its collaborators. Progress may be nil.
func NewLoader(producer *StreamProducer, baselines *BaselineResolver, store *PointStore, progress *ProgressPublisher) *Loader {
	return &Loader{
		Producer:  producer,
		Baselines: baselines,
		Store:     store,
		Progress:  progress,
	}
}

// LoadTier streams the tier's in-bounds features, merges enriched points
// into the store, and fills in synthesized metrics for every requested
// product. If the store holds points from a different tier it is cleared
// first, so tiers' numeric data are never mixed.
//
// Returns ErrLoadInProgress if another load is running. Cancelling the
// context stops the walk at the next batch boundary; points merged before
// cancellation remain in the store.
func (l *Loader) LoadTier(ctx context.Context, tier Tier, bounds Bounds, products []Product) error {
	l.mu.Lock()
	if l.busy {
		l.mu.Unlock()
		return ErrLoadInProgress
	}
	l.busy = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.busy = false
		l.mu.Unlock()
	}()

	if storeTier, ok := l.Store.Tier(); ok && storeTier != tier {
		l.Store.Clear()
		l.Progress.TierChanged(tier, 0)
	}

	// Baselines resolve once per product up front; every point in this load
	// shares the same anchors.
	baselines := make(map[string]float64, len(products))
	for _, p := range products {
		baselines[p.ID] = l.Baselines.Resolve(ctx, p)
	}

	merged := 0
	for batch := range l.Producer.Stream(ctx, tier, bounds) {
		for _, sf := range batch {
			pt := l.enrich(sf, tier, products, baselines)
			l.Store.Merge(pt)
		}
		merged += len(batch)
		l.Progress.BatchMerged(tier, len(batch), l.Store.Size())
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("tier load %s: %w", tier, err)
	}

	log.Printf("[loader] tier %s: merged %d points (%d in store)", tier, merged, l.Store.Size())
	l.Progress.LoadComplete(tier, l.Store.Size())
	return nil
}

// enrich builds the point for a streamed feature and synthesizes metrics
// for the requested products.
func (l *Loader) enrich(sf StreamedFeature, tier Tier, products []Product, baselines map[string]float64) *EnrichedPoint {
	pt := &EnrichedPoint{
		ID:      sf.ID,
		Name:    sf.Name,
		Lat:     sf.Lat,
		Lng:     sf.Lng,
		Trend:   TrendFor(sf.Lat, sf.Lng),
		Metrics: make(map[string]float64),
		Tier:    tier,
	}
	if tier == TierFSA || tier == TierDA {
		pt.PostalCode = syntheticPostalCode(sf.ID)
	}

	for _, p := range products {
		ApplyMetrics(pt, p, baselines[p.ID], false)
	}
	return pt
}

// Synthesize adds one product's metrics to every point already in the
// store, leaving points that carry the product untouched unless force is
// set. Used when the active product set grows without reloading geometry.
func (l *Loader) Synthesize(ctx context.Context, product Product, force bool) {
	baseline := l.Baselines.Resolve(ctx, product)
	for _, pt := range l.Store.Snapshot() {
		l.Store.Update(pt.ID, func(p *EnrichedPoint) {
			ApplyMetrics(p, product, baseline, force)
		})
	}
}

// syntheticPostalCode derives a stable FSA-style code from the feature id.
// It is cosmetic: real postal geography is not modeled.
func syntheticPostalCode(id string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	v := h.Sum32()

	l1 := postalLetters[v%uint32(len(postalLetters))]
	d1 := byte('0' + (v/31)%10)
	l2 := postalLetters[(v/301)%uint32(len(postalLetters))]
	return string([]byte{l1, d1, l2})
}
