package pipeline

import (
	"context"
	"encoding/json"
	"log"
	"sync"
)

// GeometryCache memoizes one fetched FeatureCollection per resource locator.
// Concurrent callers for the same uncached locator collapse onto a single
// in-flight fetch; unrelated locators proceed independently. A failed fetch
// resolves to an empty collection so callers never special-case errors, and
// the empty result is not cached so a later call can retry.
type GeometryCache struct {
	registry *Registry
	opts     []FetchOption

	mu       sync.Mutex
	cached   map[string]*FeatureCollection
	encoded  map[string][]byte
	inflight map[string]*inflightFetch
}

type inflightFetch struct {
	done chan struct{}
	fc   *FeatureCollection
	ok   bool
}

// NewGeometryCache creates a cache backed by the registry. Fetch options are
// applied to every geometry request.
func NewGeometryCache(registry *Registry, opts ...FetchOption) *GeometryCache {
	return &GeometryCache{
		registry: registry,
		opts:     opts,
		cached:   make(map[string]*FeatureCollection),
		encoded:  make(map[string][]byte),
		inflight: make(map[string]*inflightFetch),
	}
}

// FetchTier returns the tier's feature collection, fetching it at most once
// per process on success. The returned collection is shared; callers must
// treat it as read-only apart from identity injection on individual features.
func (gc *GeometryCache) FetchTier(ctx context.Context, tier Tier) *FeatureCollection {
	url := gc.registry.URL(tier)
	if url == "" {
		log.Printf("[geometry] no endpoint for tier %s", tier)
		return NewFeatureCollection()
	}

	gc.mu.Lock()
	if fc, ok := gc.cached[url]; ok {
		gc.mu.Unlock()
		return fc
	}
	if pending, ok := gc.inflight[url]; ok {
		gc.mu.Unlock()
		select {
		case <-pending.done:
			if pending.ok {
				return pending.fc
			}
			return NewFeatureCollection()
		case <-ctx.Done():
			return NewFeatureCollection()
		}
	}

	pending := &inflightFetch{done: make(chan struct{})}
	gc.inflight[url] = pending
	gc.mu.Unlock()

	fc, err := FetchCollection(ctx, url, gc.opts...)

	// Encode before the collection is published: the snapshot must predate
	// any identity injection performed by walks over the shared features.
	var snapshot []byte
	if err == nil {
		var merr error
		if snapshot, merr = json.Marshal(fc); merr != nil {
			log.Printf("[geometry] encoding snapshot for tier %s: %v", tier, merr)
		}
	}

	gc.mu.Lock()
	delete(gc.inflight, url)
	if err != nil {
		log.Printf("[geometry] fetch failed for tier %s: %v", tier, err)
		pending.ok = false
	} else {
		gc.cached[url] = fc
		if snapshot != nil {
			gc.encoded[url] = snapshot
		}
		pending.fc = fc
		pending.ok = true
	}
	gc.mu.Unlock()
	close(pending.done)

	if err != nil {
		return NewFeatureCollection()
	}
	return fc
}

// Cached returns the tier's collection if already fetched, without
// triggering a network round trip.
func (gc *GeometryCache) Cached(tier Tier) (*FeatureCollection, bool) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	fc, ok := gc.cached[gc.registry.URL(tier)]
	return fc, ok
}

// CachedJSON returns the tier's collection as it was encoded when cached,
// without triggering a fetch. Walks inject resolved identities into the
// live collection's features; the snapshot predates those writes, so it is
// safe to serve while a walk is running.
func (gc *GeometryCache) CachedJSON(tier Tier) ([]byte, bool) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	data, ok := gc.encoded[gc.registry.URL(tier)]
	return data, ok
}
