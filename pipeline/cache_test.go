package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// geometryServer serves the collection and counts requests.
func geometryServer(t *testing.T, fc *FeatureCollection, fetches *atomic.Int32) *httptest.Server {
	t.Helper()
	data, err := json.Marshal(fc)
	require.NoError(t, err)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write(data)
	}))
}

func testCache(srvURL string, opts ...FetchOption) *GeometryCache {
	registry := NewRegistry(map[string]string{"PROVINCE": srvURL})
	return NewGeometryCache(registry, opts...)
}

func TestGeometryCache_SecondCallIsCached(t *testing.T) {
	var fetches atomic.Int32
	srv := geometryServer(t, gridCollection(3), &fetches)
	defer srv.Close()

	gc := testCache(srv.URL, WithHTTPClient(srv.Client()))

	first := gc.FetchTier(context.Background(), TierProvince)
	require.Len(t, first.Features, 3)

	second := gc.FetchTier(context.Background(), TierProvince)
	assert.Same(t, first, second, "cached collection is returned as-is")
	assert.Equal(t, int32(1), fetches.Load(), "no second network round trip")
}

func TestGeometryCache_ConcurrentCallsCoalesce(t *testing.T) {
	var fetches atomic.Int32
	srv := geometryServer(t, gridCollection(5), &fetches)
	defer srv.Close()

	gc := testCache(srv.URL, WithHTTPClient(srv.Client()))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fc := gc.FetchTier(context.Background(), TierProvince)
			assert.Len(t, fc.Features, 5)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load(), "concurrent callers share one in-flight fetch")
}

func TestGeometryCache_FailureYieldsEmptyCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gc := testCache(srv.URL,
		WithHTTPClient(srv.Client()),
		WithMaxRetries(1),
		WithBaseBackoff(time.Millisecond),
	)

	fc := gc.FetchTier(context.Background(), TierProvince)
	require.NotNil(t, fc)
	assert.Empty(t, fc.Features, "failure resolves to an empty, well-formed collection")
}

func TestGeometryCache_FailureNotCached(t *testing.T) {
	var calls atomic.Int32
	fcData, err := json.Marshal(gridCollection(2))
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(fcData)
	}))
	defer srv.Close()

	gc := testCache(srv.URL,
		WithHTTPClient(srv.Client()),
		WithMaxRetries(1),
		WithBaseBackoff(time.Millisecond),
	)

	empty := gc.FetchTier(context.Background(), TierProvince)
	assert.Empty(t, empty.Features)

	retried := gc.FetchTier(context.Background(), TierProvince)
	assert.Len(t, retried.Features, 2, "a later call can still succeed")
}

func TestGeometryCache_CachedJSONIsPreInjectionSnapshot(t *testing.T) {
	var fetches atomic.Int32
	srv := geometryServer(t, gridCollection(2), &fetches)
	defer srv.Close()

	gc := testCache(srv.URL, WithHTTPClient(srv.Client()))

	_, ok := gc.CachedJSON(TierProvince)
	assert.False(t, ok, "CachedJSON must not trigger a fetch")
	assert.Equal(t, int32(0), fetches.Load())

	fc := gc.FetchTier(context.Background(), TierProvince)
	require.Len(t, fc.Features, 2)
	injectID(fc.Features[0], TierProvince, "synth-0000000000000000")
	_, has := fc.Features[0].StringProperty("PRUID")
	require.True(t, has, "the live collection carries the injected id")

	data, ok := gc.CachedJSON(TierProvince)
	require.True(t, ok)
	snap, err := ParseFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, snap.Features, 2)
	_, has = snap.Features[0].StringProperty("PRUID")
	assert.False(t, has, "the snapshot predates identity injection")
}

func TestGeometryCache_UnknownTier(t *testing.T) {
	registry := NewRegistry(nil)
	gc := NewGeometryCache(registry)

	fc := gc.FetchTier(context.Background(), Tier(42))
	assert.Empty(t, fc.Features)
}

func TestGeometryCache_Cached(t *testing.T) {
	var fetches atomic.Int32
	srv := geometryServer(t, gridCollection(1), &fetches)
	defer srv.Close()

	gc := testCache(srv.URL, WithHTTPClient(srv.Client()))

	_, ok := gc.Cached(TierProvince)
	assert.False(t, ok, "Cached must not trigger a fetch")
	assert.Equal(t, int32(0), fetches.Load())

	gc.FetchTier(context.Background(), TierProvince)
	fc, ok := gc.Cached(TierProvince)
	assert.True(t, ok)
	assert.Len(t, fc.Features, 1)
}
