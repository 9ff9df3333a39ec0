package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var popCounts = Product{
	ID:       "98100001",
	Title:    "Population Counts",
	Category: CategoryDemographics,
	Units:    "persons",
}

func TestBaselineResolver_ScalesAndCaches(t *testing.T) {
	fake := &fakeStatService{observationValue: 38929.902, scalarFactorCode: 3}
	client, done := newFakeStat(t, fake)
	defer done()

	br := NewBaselineResolver(client)

	first := br.Resolve(context.Background(), popCounts)
	assert.InDelta(t, 38929902.0, first, 1e-6, "raw value scaled by the thousands factor")

	second := br.Resolve(context.Background(), popCounts)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), fake.observationCalls.Load(), "second call is a cache hit")
	assert.Equal(t, int32(1), fake.scalarCalls.Load(), "scalar table fetched once per process")
}

func TestBaselineResolver_FallbackOnFailure(t *testing.T) {
	fake := &fakeStatService{failObservations: true, failScalarCodes: true}
	client, done := newFakeStat(t, fake)
	defer done()

	br := NewBaselineResolver(client)

	assert.Equal(t, 5000.0, br.Resolve(context.Background(), popCounts))
	assert.Equal(t, 500000.0, br.Resolve(context.Background(), Product{ID: "x", Category: CategoryHousing}))
	assert.Equal(t, 60000.0, br.Resolve(context.Background(), Product{ID: "y", Category: CategoryLabour}))
	assert.Equal(t, 100.0, br.Resolve(context.Background(), Product{ID: "z", Category: "Energy"}))
}

func TestBaselineResolver_FallbackNotCached(t *testing.T) {
	fake := &fakeStatService{observationValue: 42, scalarFactorCode: 0, failObservations: true}
	client, done := newFakeStat(t, fake)
	defer done()

	br := NewBaselineResolver(client)

	got := br.Resolve(context.Background(), popCounts)
	assert.Equal(t, 5000.0, got, "network failure falls back to the category constant")

	// Service recovers; a later call supersedes the fallback.
	fake.failObservations = false
	got = br.Resolve(context.Background(), popCounts)
	assert.Equal(t, 42.0, got)
}

func TestBaselineResolver_ScalarFailureLeavesIdentityTable(t *testing.T) {
	fake := &fakeStatService{observationValue: 777, scalarFactorCode: 3, failScalarCodes: true}
	client, done := newFakeStat(t, fake)
	defer done()

	br := NewBaselineResolver(client)

	got := br.Resolve(context.Background(), popCounts)
	assert.Equal(t, 777.0, got, "unknown code scales by 1 under the identity table")
}

func TestBaselineResolver_ConcurrentResolvesCoalesce(t *testing.T) {
	fake := &fakeStatService{observationValue: 1000, scalarFactorCode: 0}
	client, done := newFakeStat(t, fake)
	defer done()

	br := NewBaselineResolver(client)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := br.Resolve(context.Background(), popCounts)
			assert.Equal(t, 1000.0, got)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), fake.observationCalls.Load(),
		"concurrent first calls for one product share one fetch")
}

func TestFallbackBaseline(t *testing.T) {
	assert.Equal(t, 500000.0, FallbackBaseline(CategoryHousing))
	assert.Equal(t, 60000.0, FallbackBaseline(CategoryLabour))
	assert.Equal(t, 5000.0, FallbackBaseline(CategoryDemographics))
	assert.Equal(t, 100.0, FallbackBaseline("anything else"))
}
