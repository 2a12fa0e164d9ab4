// Package filter thins the raw discovery aggregate down to a spatially
// sparse record set.
package filter

import (
	"log"
	"math"
	"time"

	"streetscan/internal/models"
	"streetscan/pkg/geo"
)

// statusEvery is how often long filter runs report progress.
const statusEvery = 10 * time.Second

type roundedCoord struct {
	lat float64
	lon float64
}

func roundCoord(v float64) float64 {
	// 5 decimal digits, ~1 m of latitude.
	return math.Round(v*1e5) / 1e5
}

// ByProximity returns the subset of records such that no two retained
// records lie closer than minDistMetres. Records are processed in input
// order and checked against everything accepted so far, so the result
// depends on input order: with a nondeterministic discovery completion
// order the accepted set is not reproducible across runs. That is a
// deliberate tradeoff for simplicity, not a defect; do not introduce a
// canonical sort here without changing downstream expectations.
func ByProximity(records []models.Panorama, minDistMetres float64) []models.Panorama {
	minDistKm := minDistMetres / 1000

	var accepted []models.Panorama
	seen := make(map[roundedCoord]struct{}, len(records))
	lastStatus := time.Now()

	for i, rec := range records {
		coord := roundedCoord{lat: roundCoord(rec.Lat), lon: roundCoord(rec.Lon)}
		if _, dup := seen[coord]; dup {
			continue
		}

		if tooClose(rec, accepted, minDistKm) {
			continue
		}

		seen[coord] = struct{}{}
		accepted = append(accepted, rec)

		if time.Since(lastStatus) > statusEvery {
			log.Printf("[Status] Filtered %d / %d", i+1, len(records))
			lastStatus = time.Now()
		}
	}
	return accepted
}

func tooClose(rec models.Panorama, accepted []models.Panorama, minDistKm float64) bool {
	for _, a := range accepted {
		if geo.Distance(rec.Coordinate(), a.Coordinate()) < minDistKm {
			return true
		}
	}
	return false
}

// DedupByID collapses records sharing a panoid, keeping the first
// occurrence of each. Used when proximity filtering is disabled.
func DedupByID(records []models.Panorama) []models.Panorama {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.Panorama, 0, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.PanoID]; dup {
			continue
		}
		seen[rec.PanoID] = struct{}{}
		out = append(out, rec)
	}
	return out
}
