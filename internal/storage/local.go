// Package storage covers the durable ends of a run: the local destination
// store for assembled panoramas and discovery output files, plus an
// optional S3-compatible archive.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"streetscan/internal/keys"
	"streetscan/internal/models"
)

// Local is the filesystem destination store. Assembled panoramas land in
// PanoDir, intermediate tiles are staged in TileDir.
type Local struct {
	PanoDir string
	TileDir string
}

// NewLocal creates the panorama and tile staging directories if needed.
func NewLocal(panoDir, tileDir string) (*Local, error) {
	for _, dir := range []string{panoDir, tileDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return &Local{PanoDir: panoDir, TileDir: tileDir}, nil
}

// Exists reports whether the assembled panorama for rec is already in the
// destination store. This is the sole "already downloaded" check; two runs
// writing the same file concurrently are not guarded against.
func (l *Local) Exists(rec models.Panorama) bool {
	_, err := os.Stat(filepath.Join(l.PanoDir, keys.PanoramaFile(rec)))
	return err == nil
}

// PanoramaPath returns the destination path for rec's assembled image.
func (l *Local) PanoramaPath(rec models.Panorama) string {
	return filepath.Join(l.PanoDir, keys.PanoramaFile(rec))
}

// SaveDiscovery writes one discovery run's records as an indented JSON
// array into dir, encoding the record count in the filename. It returns
// the path written.
func SaveDiscovery(dir string, records []models.Panorama) (string, error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal discovery records: %w", err)
	}

	path := filepath.Join(dir, keys.DiscoveryFile(len(records)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write discovery file: %w", err)
	}
	return path, nil
}

// LoadDiscovery reads a discovery output file written by SaveDiscovery.
func LoadDiscovery(path string) ([]models.Panorama, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open discovery file: %w", err)
	}
	defer f.Close()

	var records []models.Panorama
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode discovery file %s: %w", path, err)
	}
	return records, nil
}
