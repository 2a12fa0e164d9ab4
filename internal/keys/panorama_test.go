package keys

import (
	"testing"

	"streetscan/internal/models"
)

func TestPanoramaFile(t *testing.T) {
	tests := []struct {
		name string
		rec  models.Panorama
		want string
	}{
		{
			name: "typical coordinate",
			rec:  models.Panorama{PanoID: "abcdefghijklmnopqrst12", Lat: 51.7333449, Lon: 0.4734951},
			want: "51.7333449_0.4734951_abcdefghijklmnopqrst12.jpg",
		},
		{
			name: "trailing zeros dropped",
			rec:  models.Panorama{PanoID: "pano", Lat: 51.5, Lon: 0.25},
			want: "51.5_0.25_pano.jpg",
		},
		{
			name: "negative longitude",
			rec:  models.Panorama{PanoID: "pano", Lat: 40, Lon: -3.7},
			want: "40_-3.7_pano.jpg",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PanoramaFile(tt.rec); got != tt.want {
				t.Errorf("PanoramaFile() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPanoramaFileIsStableAcrossCalls(t *testing.T) {
	rec := models.Panorama{PanoID: "pano", Lat: 51.73334, Lon: 0.47349}
	if PanoramaFile(rec) != PanoramaFile(rec) {
		t.Fatal("filename changed between calls for the same record")
	}
}

func TestDiscoveryFile(t *testing.T) {
	if got := DiscoveryFile(11); got != "panoids_11.json" {
		t.Errorf("DiscoveryFile(11) = %q", got)
	}
	if got := DiscoveryFile(0); got != "panoids_0.json" {
		t.Errorf("DiscoveryFile(0) = %q", got)
	}
}

func TestObjectKeys(t *testing.T) {
	rec := models.Panorama{PanoID: "pano", Lat: 51.5, Lon: 0.25}
	if got := PanoramaObject(rec); got != "panoramas/51.5_0.25_pano.jpg" {
		t.Errorf("PanoramaObject() = %q", got)
	}
	if got := DiscoveryObject(11); got != "discovery/panoids_11.json" {
		t.Errorf("DiscoveryObject(11) = %q", got)
	}
}
