package streetview

import (
	"regexp"

	"streetscan/internal/models"
)

// The SingleImageSearch endpoint answers with a JSON-like payload wrapped
// in a JSONP callback. Rather than unwrap and parse the deeply nested
// arrays, panorama entries are picked out directly: an id cell followed by
// the first null,null-prefixed coordinate pair after it.
var panoRe = regexp.MustCompile(`\[[0-9]+,"(.+?)"].+?\[\[null,null,(-?[0-9]+\.[0-9]+),(-?[0-9]+\.[0-9]+)`)

// PanoidsFromResponse extracts panorama records from a raw SingleImageSearch
// response body. Records with a repeated panoid within the same response are
// collapsed to the first occurrence. An empty result is not an error; many
// sample points simply have no coverage.
func PanoidsFromResponse(body string) []models.Panorama {
	matches := panoRe.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	records := make([]models.Panorama, 0, len(matches))
	for _, m := range matches {
		panoid := m[1]
		if _, dup := seen[panoid]; dup {
			continue
		}
		lat, err := parseFloat(m[2])
		if err != nil {
			continue
		}
		lon, err := parseFloat(m[3])
		if err != nil {
			continue
		}
		seen[panoid] = struct{}{}
		records = append(records, models.Panorama{PanoID: panoid, Lat: lat, Lon: lon})
	}
	return records
}
