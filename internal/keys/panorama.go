package keys

import (
	"fmt"
	"strconv"

	"streetscan/internal/models"
)

// formatCoord renders a coordinate with the shortest decimal representation
// that round-trips, so the same record always produces the same name.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// PanoramaFile returns the canonical output filename for an assembled
// panorama. Existence of this file is the sole "already downloaded" check,
// so the format must stay stable across runs.
func PanoramaFile(p models.Panorama) string {
	return fmt.Sprintf("%s_%s_%s.jpg", formatCoord(p.Lat), formatCoord(p.Lon), p.PanoID)
}

// PanoramaObject returns the object-store key for an assembled panorama.
func PanoramaObject(p models.Panorama) string {
	return "panoramas/" + PanoramaFile(p)
}

// DiscoveryFile returns the discovery output filename. The final record
// count is encoded in the name, one file per discovery run.
func DiscoveryFile(count int) string {
	return fmt.Sprintf("panoids_%d.json", count)
}

// DiscoveryObject returns the object-store key for a discovery output file.
func DiscoveryObject(count int) string {
	return "discovery/" + DiscoveryFile(count)
}
