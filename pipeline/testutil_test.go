package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
)

// rectGeometry builds a closed axis-aligned rectangle Polygon in GeoJSON
// (lng, lat) coordinate order.
func rectGeometry(west, south, east, north float64) *Geometry {
	ring := orb.Ring{
		{west, south},
		{east, south},
		{east, north},
		{west, north},
		{west, south},
	}
	return polygonGeometry(orb.Polygon{ring})
}

// rectFeature wraps rectGeometry in a Feature with the given attribute bag.
func rectFeature(west, south, east, north float64, props map[string]interface{}) *Feature {
	if props == nil {
		props = make(map[string]interface{})
	}
	return &Feature{
		Type:       "Feature",
		Geometry:   rectGeometry(west, south, east, north),
		Properties: props,
	}
}

// multiPolygonGeometry assembles a MultiPolygon from individual polygons.
func multiPolygonGeometry(polys ...orb.Polygon) *Geometry {
	raw := make([][][][2]float64, len(polys))
	for i, poly := range polys {
		rings := make([][][2]float64, len(poly))
		for j, ring := range poly {
			r := make([][2]float64, len(ring))
			for k, p := range ring {
				r[k] = [2]float64{p[0], p[1]}
			}
			rings[j] = r
		}
		raw[i] = rings
	}
	coords, _ := json.Marshal(raw)
	return &Geometry{Type: GeometryMultiPolygon, Coordinates: coords}
}

// gridCollection produces n small rectangles laid out in a row, each with a
// DGUID-style identity, all inside lat [10, 20], lng [10, 30].
func gridCollection(n int) *FeatureCollection {
	fc := NewFeatureCollection()
	for i := 0; i < n; i++ {
		lng := 10 + float64(i%100)*0.1
		lat := 10 + float64(i/100)*0.1
		fc.AddFeature(rectFeature(lng, lat, lng+0.05, lat+0.05, map[string]interface{}{
			"DGUID": fmt.Sprintf("2021A%06d", i),
		}))
	}
	return fc
}
