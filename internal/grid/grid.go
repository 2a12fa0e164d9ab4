// Package grid generates the sample coordinates probed during discovery.
package grid

import (
	"streetscan/internal/models"
	"streetscan/pkg/geo"
)

// kmPerDegree is the coarse conversion used to size the bounding box in
// degrees. The box deliberately overshoots the circle; the haversine check
// below does the real geometry.
const kmPerDegree = 70

// Points returns sample coordinates covering a circle of radiusKm around
// center. A square bounding box of side 2*radius is subdivided into
// (resolution+1)^2 evenly spaced points and only points within radiusKm of
// the center are kept, so the returned count is at most (resolution+1)^2.
//
// A non-positive radius yields no points and a non-positive resolution
// collapses the grid to the center point; neither is an error.
func Points(center models.Coordinate, radiusKm float64, resolution int) []models.Coordinate {
	if radiusKm <= 0 {
		return nil
	}
	if resolution <= 0 {
		return []models.Coordinate{center}
	}

	delta := radiusKm / kmPerDegree
	step := 2 * delta / float64(resolution)

	points := make([]models.Coordinate, 0, (resolution+1)*(resolution+1))
	for i := 0; i <= resolution; i++ {
		lat := center.Lat + delta - float64(i)*step
		for j := 0; j <= resolution; j++ {
			lon := center.Lon - delta + float64(j)*step
			p := models.Coordinate{Lat: lat, Lon: lon}
			if geo.Distance(p, center) <= radiusKm {
				points = append(points, p)
			}
		}
	}
	return points
}
