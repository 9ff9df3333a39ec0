package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(id string, tier Tier, metrics map[string]float64) *EnrichedPoint {
	if metrics == nil {
		metrics = make(map[string]float64)
	}
	return &EnrichedPoint{ID: id, Name: id, Lat: 45, Lng: -75, Tier: tier, Metrics: metrics}
}

func TestPointStore_MergeOverwritesSameID(t *testing.T) {
	ps := NewPointStore()

	ps.Merge(point("35", TierProvince, map[string]float64{"a": 1}))
	ps.Merge(point("35", TierProvince, map[string]float64{"a": 2}))

	assert.Equal(t, 1, ps.Size(), "ids are unique within one store")
	got, ok := ps.Get("35")
	require.True(t, ok)
	assert.Equal(t, 2.0, got.Metrics["a"])
}

func TestPointStore_MergePreservesOtherMetrics(t *testing.T) {
	ps := NewPointStore()

	ps.Merge(point("35", TierProvince, map[string]float64{"a": 1, "b": 7}))
	ps.Merge(point("35", TierProvince, map[string]float64{"a": 2}))

	got, ok := ps.Get("35")
	require.True(t, ok)
	assert.Equal(t, 2.0, got.Metrics["a"])
	assert.Equal(t, 7.0, got.Metrics["b"], "metrics absent from the incoming point survive")
}

func TestPointStore_SnapshotIsolation(t *testing.T) {
	ps := NewPointStore()
	ps.Merge(point("35", TierProvince, map[string]float64{"a": 1}))

	snap := ps.Snapshot()
	require.Len(t, snap, 1)
	snap[0].Metrics["a"] = 99
	snap[0].Name = "mutated"

	got, _ := ps.Get("35")
	assert.Equal(t, 1.0, got.Metrics["a"], "readers cannot mutate store state")
	assert.Equal(t, "35", got.Name)
}

func TestPointStore_Clear(t *testing.T) {
	ps := NewPointStore()
	ps.Merge(point("a", TierCMA, nil))
	ps.Merge(point("b", TierCMA, nil))
	require.Equal(t, 2, ps.Size())

	ps.Clear()
	assert.Zero(t, ps.Size())
	_, hasTier := ps.Tier()
	assert.False(t, hasTier)
}

func TestPointStore_Update(t *testing.T) {
	ps := NewPointStore()
	ps.Merge(point("35", TierProvince, nil))

	ok := ps.Update("35", func(p *EnrichedPoint) {
		p.Metrics["x"] = 3
	})
	assert.True(t, ok)

	got, _ := ps.Get("35")
	assert.Equal(t, 3.0, got.Metrics["x"])

	assert.False(t, ps.Update("missing", func(*EnrichedPoint) {}))
}

func TestPointStore_ConcurrentAccess(t *testing.T) {
	ps := NewPointStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ps.Merge(point(string(rune('a'+n)), TierCD, map[string]float64{"v": float64(j)}))
				ps.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, ps.Size())
}
