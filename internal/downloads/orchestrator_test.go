package downloads

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"streetscan/internal/models"
	"streetscan/internal/storage"
	"streetscan/pkg/streetview"
)

// fakeProvider serves a small tile grid against a test server and records
// what was assembled and cleaned up.
type fakeProvider struct {
	baseURL string

	mu        sync.Mutex
	stitched  []string
	cleaned   []string
	failPanos map[string]bool
}

func (f *fakeProvider) TilesInfo(panoid string) []streetview.Tile {
	return []streetview.Tile{
		{X: 0, Y: 0, FileName: panoid + "_0x0.jpg", URL: f.baseURL + "/tile/" + panoid + "/0x0"},
		{X: 1, Y: 0, FileName: panoid + "_1x0.jpg", URL: f.baseURL + "/tile/" + panoid + "/1x0"},
	}
}

func (f *fakeProvider) Stitch(panoid string, tiles []streetview.Tile, tileDir, panoDir string, point models.Coordinate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPanos[panoid] {
		return errors.New("simulated stitch failure")
	}
	// Every tile must have been staged before assembly.
	for _, tile := range tiles {
		if _, err := os.Stat(filepath.Join(tileDir, tile.FileName)); err != nil {
			return fmt.Errorf("tile %s not staged: %w", tile.FileName, err)
		}
	}
	path := filepath.Join(panoDir, fmt.Sprintf("%v_%v_%s.jpg", point.Lat, point.Lon, panoid))
	if err := os.WriteFile(path, []byte("stitched"), 0o644); err != nil {
		return err
	}
	f.stitched = append(f.stitched, panoid)
	return nil
}

func (f *fakeProvider) DeleteTiles(tiles []streetview.Tile, tileDir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tile := range tiles {
		if err := os.Remove(filepath.Join(tileDir, tile.FileName)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	f.cleaned = append(f.cleaned, tiles[0].FileName)
	return nil
}

func (f *fakeProvider) stitchedPanos() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stitched...)
}

// newTestOrchestrator wires an orchestrator against a TLS test server whose
// handler decides per-request behavior. TLS keeps the orchestrator's
// https normalization a no-op for test URLs.
func newTestOrchestrator(t *testing.T, handler http.Handler) (*Orchestrator, *fakeProvider, *httptest.Server) {
	t.Helper()

	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	base := t.TempDir()
	store, err := storage.NewLocal(filepath.Join(base, "panoramas"), filepath.Join(base, "tiles"))
	if err != nil {
		t.Fatal(err)
	}

	provider := &fakeProvider{baseURL: server.URL, failPanos: make(map[string]bool)}
	o := NewOrchestrator(store, provider, 10)
	o.httpClient = server.Client()
	o.Workers = 4
	return o, provider, server
}

func TestRunDownloadsAndCleansUp(t *testing.T) {
	var requests atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte("tile-bytes"))
	})

	o, provider, _ := newTestOrchestrator(t, handler)
	rec := models.Panorama{PanoID: "panoPanoPanoPanoPano11", Lat: 51.5, Lon: 0.25}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Run(ctx, []models.Panorama{rec}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := provider.stitchedPanos(); len(got) != 1 || got[0] != rec.PanoID {
		t.Fatalf("expected one assembled panorama, got %v", got)
	}
	if requests.Load() != 2 {
		t.Errorf("expected 2 tile requests, got %d", requests.Load())
	}
	if !o.store.Exists(rec) {
		t.Error("assembled panorama missing from destination store")
	}

	// Staging directory must be clean afterwards.
	entries, err := os.ReadDir(o.store.TileDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("staging directory still holds %d files", len(entries))
	}
}

func TestRunSkipsExistingPanorama(t *testing.T) {
	var requests atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte("tile-bytes"))
	})

	o, provider, _ := newTestOrchestrator(t, handler)
	rec := models.Panorama{PanoID: "doneDoneDoneDoneDone11", Lat: 51.5, Lon: 0.25}

	if err := os.WriteFile(o.store.PanoramaPath(rec), []byte("already here"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Run(ctx, []models.Panorama{rec}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if requests.Load() != 0 {
		t.Errorf("existing panorama reached the network layer: %d requests", requests.Load())
	}
	if got := provider.stitchedPanos(); len(got) != 0 {
		t.Errorf("existing panorama was re-assembled: %v", got)
	}
}

func TestTileDownloadRetriesUntilSuccess(t *testing.T) {
	var failures atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// First two requests fail, everything after succeeds.
		if failures.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("tile-bytes"))
	})

	o, provider, _ := newTestOrchestrator(t, handler)
	rec := models.Panorama{PanoID: "flakyFlakyFlakyFlaky11", Lat: 51.5, Lon: 0.25}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Run(ctx, []models.Panorama{rec}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := provider.stitchedPanos(); len(got) != 1 {
		t.Fatalf("panorama not assembled despite retries: %v", got)
	}
	if failures.Load() < 4 { // 2 failures + 2 successful tiles
		t.Errorf("expected at least 4 requests, got %d", failures.Load())
	}
}

func TestAssemblyFailureDoesNotAbortSiblings(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tile-bytes"))
	})

	o, provider, _ := newTestOrchestrator(t, handler)
	bad := models.Panorama{PanoID: "badBadBadBadBadBadBa11", Lat: 51.5, Lon: 0.25}
	good := models.Panorama{PanoID: "goodGoodGoodGoodGood11", Lat: 51.6, Lon: 0.35}
	provider.failPanos[bad.PanoID] = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Run(ctx, []models.Panorama{bad, good}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := provider.stitchedPanos()
	if len(got) != 1 || got[0] != good.PanoID {
		t.Fatalf("expected only the healthy panorama to assemble, got %v", got)
	}
}

func TestRunGrowingBatches(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tile-bytes"))
	})

	o, provider, _ := newTestOrchestrator(t, handler)
	o.BatchSize = 2

	var assembled atomic.Int64
	o.OnAssembled = func(models.Panorama) { assembled.Add(1) }

	records := make([]models.Panorama, 5)
	for i := range records {
		records[i] = models.Panorama{
			PanoID: fmt.Sprintf("batchBatchBatchBatch%d1", i),
			Lat:    51.5 + float64(i)/100,
			Lon:    0.25,
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.Run(ctx, records); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := provider.stitchedPanos(); len(got) != len(records) {
		t.Fatalf("assembled %d of %d panoramas: %v", len(got), len(records), got)
	}
	if assembled.Load() != int64(len(records)) {
		t.Errorf("OnAssembled fired %d times, want %d", assembled.Load(), len(records))
	}
}
