package pipeline

// Bounds is a viewport rectangle in degrees. No wraparound handling at the
// antimeridian is performed.
type Bounds struct {
	North float64 `json:"north" yaml:"north"`
	South float64 `json:"south" yaml:"south"`
	East  float64 `json:"east" yaml:"east"`
	West  float64 `json:"west" yaml:"west"`
}

// DefaultBufferFraction is the viewport buffer applied when none is
// configured. Buffering avoids discard/re-add flicker at tile edges.
const DefaultBufferFraction = 0.15

// Buffered returns the bounds expanded by fraction f of each axis span,
// applied independently to the latitude and longitude spans.
func (b Bounds) Buffered(f float64) Bounds {
	latSpan := b.North - b.South
	lngSpan := b.East - b.West
	return Bounds{
		North: b.North + f*latSpan,
		South: b.South - f*latSpan,
		East:  b.East + f*lngSpan,
		West:  b.West - f*lngSpan,
	}
}

// Contains reports whether the point lies within the rectangle on both axes.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.South && lat <= b.North && lng >= b.West && lng <= b.East
}

// InBounds reports whether (lat, lng) falls inside bounds after buffering
// by fraction f.
func InBounds(lat, lng float64, bounds Bounds, f float64) bool {
	return bounds.Buffered(f).Contains(lat, lng)
}
