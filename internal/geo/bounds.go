package geo

import "math"

// Bounds is a geographic window in decimal degrees. Edges are inclusive.
type Bounds struct {
	MinLat float64 `json:"lat_min"`
	MaxLat float64 `json:"lat_max"`
	MinLon float64 `json:"lon_min"`
	MaxLon float64 `json:"lon_max"`
}

// Contains reports whether (lat, lon) lies inside the window. NaN
// coordinates are never inside.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat &&
		lon >= b.MinLon && lon <= b.MaxLon
}

// Valid reports whether the window is finite and not inverted.
func (b Bounds) Valid() bool {
	for _, v := range []float64{b.MinLat, b.MaxLat, b.MinLon, b.MaxLon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon
}

// Expand returns the window grown by margin degrees on every side.
func (b Bounds) Expand(margin float64) Bounds {
	return Bounds{
		MinLat: b.MinLat - margin,
		MaxLat: b.MaxLat + margin,
		MinLon: b.MinLon - margin,
		MaxLon: b.MaxLon + margin,
	}
}

// PlanarDistance is the flat-earth distance between two points, measured in
// degrees. It is not a geodesic distance.
func PlanarDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Hypot(lat1-lat2, lon1-lon2)
}
