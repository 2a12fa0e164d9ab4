// Package geo provides the great-circle distance metric shared by the grid
// generator and the proximity filter.
package geo

import (
	"math"

	"streetscan/internal/models"
)

// earthRadiusKm is the fixed Earth radius used throughout; changing it would
// change which records the proximity filter accepts.
const earthRadiusKm = 6373

// Distance returns the haversine great-circle distance between two
// coordinates in kilometres. It is symmetric and returns 0 for identical
// coordinates.
func Distance(p1, p2 models.Coordinate) float64 {
	lat1 := toRad(p1.Lat)
	lat2 := toRad(p2.Lat)
	dLat := toRad(p2.Lat - p1.Lat)
	dLon := toRad(p2.Lon - p1.Lon)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	// Floating rounding can push a just outside [0, 1] for antipodal or
	// near-identical points, which would make the square roots NaN.
	if a < 0 {
		a = 0
	} else if a > 1 {
		a = 1
	}

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
