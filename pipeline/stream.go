package pipeline

import "context"

// DefaultBatchSize is the batch capacity used when none is configured.
// Observed useful range is 50-100.
const DefaultBatchSize = 50

// StreamedFeature is one qualifying feature from a tier walk: the raw
// feature plus its resolved identity and (lat, lng) centroid.
type StreamedFeature struct {
	ID      string
	Name    string
	Lat     float64
	Lng     float64
	Feature *Feature
}

// Batch is a bounded-size group of processed features emitted together.
type Batch []StreamedFeature

// StreamProducer walks a tier's cached feature collection, filters by a
// buffered viewport, and emits fixed-capacity batches on a channel.
type StreamProducer struct {
	cache          *GeometryCache
	ids            *IdentityResolver
	batchSize      int
	bufferFraction float64
}

// NewStreamProducer creates a producer over the given cache. batchSize and
// bufferFraction fall back to the package defaults when non-positive.
func NewStreamProducer(cache *GeometryCache, ids *IdentityResolver, batchSize int, bufferFraction float64) *StreamProducer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if bufferFraction <= 0 {
		bufferFraction = DefaultBufferFraction
	}
	return &StreamProducer{
		cache:          cache,
		ids:            ids,
		batchSize:      batchSize,
		bufferFraction: bufferFraction,
	}
}

// Stream walks the tier's collection and sends batches on the returned
// channel. The walk is finite and not resumable: every call starts from the
// beginning of the collection and emits batches in collection order, each
// internally filtered but never reordered.
//
// The channel is buffered to a single batch, so a send is the cooperative
// yield that lets the consumer render between batches instead of being
// blocked for the full walk. Cancellation is checked at every batch
// boundary; cancelling the context ends the walk without emitting further
// batches. A walk that finds zero qualifying features closes the channel
// without sending anything, which is completion, not failure.
func (sp *StreamProducer) Stream(ctx context.Context, tier Tier, bounds Bounds) <-chan Batch {
	out := make(chan Batch, 1)

	go func() {
		defer close(out)

		fc := sp.cache.FetchTier(ctx, tier)
		buffered := bounds.Buffered(sp.bufferFraction)

		batch := make(Batch, 0, sp.batchSize)
		for _, f := range fc.Features {
			if f == nil {
				continue
			}
			centroid, ok := Centroid(f.Geometry)
			if !ok {
				continue
			}
			if !buffered.Contains(centroid[0], centroid[1]) {
				continue
			}
			id := sp.ids.Resolve(f, tier, centroid)
			injectID(f, tier, id)
			batch = append(batch, StreamedFeature{
				ID:      id,
				Name:    sp.ids.DisplayName(f, tier, id),
				Lat:     centroid[0],
				Lng:     centroid[1],
				Feature: f,
			})

			if len(batch) == sp.batchSize {
				if !send(ctx, out, batch) {
					return
				}
				batch = make(Batch, 0, sp.batchSize)
			}
		}

		if len(batch) > 0 {
			send(ctx, out, batch)
		}
	}()

	return out
}

// send pushes a batch unless the context is cancelled first. Returns false
// on cancellation.
func send(ctx context.Context, out chan<- Batch, batch Batch) bool {
	select {
	case out <- batch:
		return true
	case <-ctx.Done():
		return false
	}
}

// injectID writes the resolved id back into the feature's attribute bag if
// it had no natural key, so later walks over the shared cached collection
// resolve the same identity. This is the only mutation raw features ever
// receive.
func injectID(f *Feature, tier Tier, id string) {
	key, ok := tierIDKeys[tier]
	if !ok {
		return
	}
	if _, has := f.StringProperty(key); has {
		return
	}
	if f.Properties == nil {
		f.Properties = make(map[string]interface{})
	}
	f.Properties[key] = id
}
