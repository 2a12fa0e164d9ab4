package models

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Panorama is one discovered panorama: the opaque remote identifier plus
// the approximate location it was reported at. The raw discovery stream may
// contain the same panoid more than once; deduplication happens later.
type Panorama struct {
	PanoID string  `json:"panoid"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// Coordinate returns the panorama's location as a Coordinate.
func (p Panorama) Coordinate() Coordinate {
	return Coordinate{Lat: p.Lat, Lon: p.Lon}
}
