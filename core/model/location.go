package model

import "math"

// DefaultLocation is used when a station has no coordinates on record and
// as the reference user position for training rows.
var DefaultLocation = Location{Lat: 19.0760, Lng: 72.8777}

// Location is a geographic position in decimal degrees.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether both coordinates are finite numbers.
func (l Location) Valid() bool {
	return !math.IsNaN(l.Lat) && !math.IsInf(l.Lat, 0) &&
		!math.IsNaN(l.Lng) && !math.IsInf(l.Lng, 0)
}

// ProxyDistance returns |a.Lat-b.Lat| + |a.Lng-b.Lng|. It is a ranking proxy,
// not a geodesic distance, and models trained on it depend on this exact form.
func ProxyDistance(a, b Location) float64 {
	return math.Abs(a.Lat-b.Lat) + math.Abs(a.Lng-b.Lng)
}
