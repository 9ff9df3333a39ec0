package pipeline

import "github.com/paulmach/orb"

// Centroid computes a representative point for a Polygon or MultiPolygon
// geometry. The bool return reports whether a centroid could be derived;
// unsupported geometry kinds yield false.
//
// The polygon rule is the arithmetic mean of the outer ring's vertices,
// not an area-weighted centroid. This is a known precision limitation kept
// deliberately: downstream glyph placement depends on this exact output.
//
// For a MultiPolygon, only the sub-polygon with the largest axis-aligned
// bounding-box area contributes; the first one encountered wins on exact
// ties. The remaining sub-polygons are discarded for centroid purposes.
//
// The returned point is (latitude, longitude) even though GeoJSON ring
// coordinates are (longitude, latitude). Consumers expect (lat, lng), so
// the axis swap must be preserved.
func Centroid(geom *Geometry) (orb.Point, bool) {
	if geom == nil {
		return orb.Point{}, false
	}

	switch geom.Type {
	case GeometryPolygon:
		poly := orbPolygon(geom)
		if len(poly) == 0 {
			return orb.Point{}, false
		}
		return ringMean(poly[0])

	case GeometryMultiPolygon:
		mp := orbMultiPolygon(geom)
		if len(mp) == 0 {
			return orb.Point{}, false
		}
		best := -1
		var bestArea float64
		for i, poly := range mp {
			if len(poly) == 0 || len(poly[0]) == 0 {
				continue
			}
			b := poly[0].Bound()
			area := (b.Max[0] - b.Min[0]) * (b.Max[1] - b.Min[1])
			if best == -1 || area > bestArea {
				best = i
				bestArea = area
			}
		}
		if best == -1 {
			return orb.Point{}, false
		}
		return ringMean(mp[best][0])

	default:
		return orb.Point{}, false
	}
}

// ringMean averages the ring's vertex coordinates and swaps axes so the
// result is (lat, lng). The closing vertex of a closed ring is excluded so
// it does not bias the mean toward one corner.
func ringMean(ring orb.Ring) (orb.Point, bool) {
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	if len(ring) == 0 {
		return orb.Point{}, false
	}
	var sumLng, sumLat float64
	for _, p := range ring {
		sumLng += p[0]
		sumLat += p[1]
	}
	n := float64(len(ring))
	return orb.Point{sumLat / n, sumLng / n}, true
}
