// Package streetview talks the Street View wire formats: it extracts
// panorama records from the SingleImageSearch callback envelope, lays out
// the tile grid for a panorama, and assembles downloaded tiles into a
// single image.
package streetview

import (
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"

	"streetscan/internal/keys"
	"streetscan/internal/models"
)

const (
	tileZoom = 5
	tileCols = 26
	tileRows = 13
	tileSize = 512
)

// Tile is one rectangular segment of a panorama. Tiles only live between
// download and assembly and are never persisted independently.
type Tile struct {
	X        int
	Y        int
	FileName string
	URL      string
}

// TilesInfo returns the tile grid for a panorama at the fixed zoom level.
// URLs are returned as served by the endpoint; transport normalization is
// the downloader's concern.
func TilesInfo(panoid string) []Tile {
	tiles := make([]Tile, 0, tileCols*tileRows)
	for x := 0; x < tileCols; x++ {
		for y := 0; y < tileRows; y++ {
			tiles = append(tiles, Tile{
				X:        x,
				Y:        y,
				FileName: fmt.Sprintf("%s_%dx%d.jpg", panoid, x, y),
				URL: fmt.Sprintf(
					"http://cbk0.google.com/cbk?output=tile&panoid=%s&zoom=%d&x=%d&y=%d",
					panoid, tileZoom, x, y),
			})
		}
	}
	return tiles
}

// Stitch assembles downloaded tiles from tileDir into one panorama image
// written to panoDir under the canonical filename for (point, panoid).
// Any unreadable tile fails the whole assembly; the caller decides whether
// to abandon the panorama.
func Stitch(panoid string, tiles []Tile, tileDir, panoDir string, point models.Coordinate) error {
	if len(tiles) == 0 {
		return fmt.Errorf("no tiles to stitch for %s", panoid)
	}

	minX, maxX := tiles[0].X, tiles[0].X
	minY, maxY := tiles[0].Y, tiles[0].Y
	for _, tile := range tiles {
		if tile.X < minX {
			minX = tile.X
		}
		if tile.X > maxX {
			maxX = tile.X
		}
		if tile.Y < minY {
			minY = tile.Y
		}
		if tile.Y > maxY {
			maxY = tile.Y
		}
	}

	width := (maxX - minX + 1) * tileSize
	height := (maxY - minY + 1) * tileSize
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))

	for _, tile := range tiles {
		img, err := readTile(filepath.Join(tileDir, tile.FileName))
		if err != nil {
			return fmt.Errorf("tile %s: %w", tile.FileName, err)
		}
		xOffset := (tile.X - minX) * tileSize
		yOffset := (tile.Y - minY) * tileSize
		dest := image.Rect(xOffset, yOffset, xOffset+tileSize, yOffset+tileSize)
		draw.Draw(canvas, dest, img, image.Point{}, draw.Src)
	}

	rec := models.Panorama{PanoID: panoid, Lat: point.Lat, Lon: point.Lon}
	out, err := os.Create(filepath.Join(panoDir, keys.PanoramaFile(rec)))
	if err != nil {
		return fmt.Errorf("create panorama file: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, canvas, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("encode panorama: %w", err)
	}
	return nil
}

// DeleteTiles removes the intermediate tile files from the staging
// directory. Missing files are not an error; a crashed previous run may
// have cleaned some of them up already.
func DeleteTiles(tiles []Tile, tileDir string) error {
	for _, tile := range tiles {
		if err := os.Remove(filepath.Join(tileDir, tile.FileName)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete tile %s: %w", tile.FileName, err)
		}
	}
	return nil
}

func readTile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return jpeg.Decode(f)
}

// used by parse.go when converting captured coordinate strings.
func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
