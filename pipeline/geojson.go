package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
)

// GeometryType represents the GeoJSON geometry type
type GeometryType string

const (
	GeometryPoint        GeometryType = "Point"
	GeometryPolygon      GeometryType = "Polygon"
	GeometryMultiPolygon GeometryType = "MultiPolygon"
)

// Geometry represents a GeoJSON geometry object. Coordinates are kept raw
// and decoded on demand because only Polygon and MultiPolygon are consumed.
type Geometry struct {
	Type        GeometryType    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Feature represents a GeoJSON feature with geometry and an open attribute bag
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   *Geometry              `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
	ID         interface{}            `json:"id,omitempty"`
}

// FeatureCollection represents a GeoJSON FeatureCollection
type FeatureCollection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

// NewFeatureCollection creates a new empty FeatureCollection
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]*Feature, 0),
	}
}

// AddFeature appends a feature to the collection
func (fc *FeatureCollection) AddFeature(f *Feature) {
	fc.Features = append(fc.Features, f)
}

// ParseFeatureCollection decodes GeoJSON bytes into a FeatureCollection.
func ParseFeatureCollection(data []byte) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing GeoJSON: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("parsing GeoJSON: unexpected type %q", fc.Type)
	}
	if fc.Features == nil {
		fc.Features = make([]*Feature, 0)
	}
	return &fc, nil
}

// StringProperty returns the named property coerced to a string. Numeric
// identifiers from upstream services arrive as float64 and are formatted
// without a fractional part.
func (f *Feature) StringProperty(key string) (string, bool) {
	if f == nil || f.Properties == nil {
		return "", false
	}
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		if val == "" {
			return "", false
		}
		return val, true
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val)), true
		}
		return fmt.Sprintf("%v", val), true
	case int:
		return fmt.Sprintf("%d", val), true
	default:
		return "", false
	}
}

// orbPolygon converts a Geometry of type Polygon to an orb.Polygon.
// Returns nil if the geometry is nil, not a Polygon, or has invalid coordinates.
func orbPolygon(geom *Geometry) orb.Polygon {
	if geom == nil || geom.Type != GeometryPolygon {
		return nil
	}
	var rings [][][2]float64
	if err := json.Unmarshal(geom.Coordinates, &rings); err != nil {
		return nil
	}
	poly := make(orb.Polygon, len(rings))
	for i, ring := range rings {
		r := make(orb.Ring, len(ring))
		for j, c := range ring {
			r[j] = orb.Point{c[0], c[1]}
		}
		poly[i] = r
	}
	return poly
}

// orbMultiPolygon converts a Geometry of type MultiPolygon to an orb.MultiPolygon.
// Returns nil if the geometry is nil, not a MultiPolygon, or has invalid coordinates.
func orbMultiPolygon(geom *Geometry) orb.MultiPolygon {
	if geom == nil || geom.Type != GeometryMultiPolygon {
		return nil
	}
	var polys [][][][2]float64
	if err := json.Unmarshal(geom.Coordinates, &polys); err != nil {
		return nil
	}
	mp := make(orb.MultiPolygon, len(polys))
	for i, rings := range polys {
		poly := make(orb.Polygon, len(rings))
		for j, ring := range rings {
			r := make(orb.Ring, len(ring))
			for k, c := range ring {
				r[k] = orb.Point{c[0], c[1]}
			}
			poly[j] = r
		}
		mp[i] = poly
	}
	return mp
}

// polygonGeometry converts an orb.Polygon back to a Geometry. Used by tests
// and by collaborators that synthesize fixture collections.
func polygonGeometry(poly orb.Polygon) *Geometry {
	rings := make([][][2]float64, len(poly))
	for i, ring := range poly {
		r := make([][2]float64, len(ring))
		for j, p := range ring {
			r[j] = [2]float64{p[0], p[1]}
		}
		rings[i] = r
	}
	coordsJSON, _ := json.Marshal(rings)
	return &Geometry{
		Type:        GeometryPolygon,
		Coordinates: coordsJSON,
	}
}
