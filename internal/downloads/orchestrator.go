// Package downloads turns filtered panorama records into assembled images
// on disk, batch by batch.
package downloads

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"streetscan/internal/models"
	"streetscan/internal/pipeline"
	"streetscan/internal/storage"
	"streetscan/pkg/streetview"
)

// Provider supplies the tile layout for a panorama and assembles and cleans
// up its tiles. The streetview package is the production implementation.
type Provider interface {
	TilesInfo(panoid string) []streetview.Tile
	Stitch(panoid string, tiles []streetview.Tile, tileDir, panoDir string, point models.Coordinate) error
	DeleteTiles(tiles []streetview.Tile, tileDir string) error
}

// StreetviewProvider adapts the streetview package to the Provider
// interface.
type StreetviewProvider struct{}

func (StreetviewProvider) TilesInfo(panoid string) []streetview.Tile {
	return streetview.TilesInfo(panoid)
}

func (StreetviewProvider) Stitch(panoid string, tiles []streetview.Tile, tileDir, panoDir string, point models.Coordinate) error {
	return streetview.Stitch(panoid, tiles, tileDir, panoDir, point)
}

func (StreetviewProvider) DeleteTiles(tiles []streetview.Tile, tileDir string) error {
	return streetview.DeleteTiles(tiles, tileDir)
}

// Orchestrator downloads the tiles of every not-yet-downloaded panorama,
// hands them to the provider for assembly, and removes the staged tiles.
// One weighted semaphore bounds all in-flight tile requests of a run, no
// matter how many panoramas are being worked on at once.
type Orchestrator struct {
	store      *storage.Local
	provider   Provider
	httpClient *http.Client
	sem        *semaphore.Weighted

	// BatchSize controls the growing record windows: first BatchSize
	// records, then 2*BatchSize, and so on.
	BatchSize int
	// Workers is the number of panoramas assembled concurrently.
	Workers int

	// OnAssembled, when set, is called after each successful assembly.
	OnAssembled func(models.Panorama)
}

// NewOrchestrator builds an orchestrator with the shared connection limit.
func NewOrchestrator(store *storage.Local, provider Provider, limit int64) *Orchestrator {
	return &Orchestrator{
		store:      store,
		provider:   provider,
		httpClient: http.DefaultClient,
		sem:        semaphore.NewWeighted(limit),
		BatchSize:  100,
		Workers:    int(limit),
	}
}

type job struct {
	rec   models.Panorama
	tiles []streetview.Tile
}

// Run processes records in growing windows so that progress lands on disk
// early and an interrupted run can be rerun cheaply: records whose output
// file already exists are skipped before any network call. The only error
// returned is the context's.
func (o *Orchestrator) Run(ctx context.Context, records []models.Panorama) error {
	if len(records) == 0 {
		return nil
	}

	for end := o.BatchSize; ; end += o.BatchSize {
		if end > len(records) {
			end = len(records)
		}
		log.Printf("Running the next batch: 1 → %d", end)
		if err := o.runBatch(ctx, records[:end]); err != nil {
			return err
		}
		if end == len(records) {
			break
		}
	}
	return ctx.Err()
}

func (o *Orchestrator) runBatch(ctx context.Context, records []models.Panorama) error {
	pending := make([]models.Panorama, 0, len(records))
	for _, rec := range records {
		if o.store.Exists(rec) {
			continue
		}
		pending = append(pending, rec)
	}
	if len(pending) == 0 {
		return ctx.Err()
	}

	in := make(chan *job, len(pending))
	for _, rec := range pending {
		in <- &job{rec: rec}
	}
	close(in)

	p := pipeline.NewPipeline(
		pipeline.NewStage(o.fetchTiles),
		pipeline.NewStage(o.assemble),
		pipeline.NewStage(o.cleanup),
	)
	p.Process(ctx, in, o.Workers)
	return ctx.Err()
}

// fetchTiles downloads every tile of one panorama into the staging
// directory. Individual tiles retry immediately and indefinitely on any
// failure; only context cancellation breaks the loop.
func (o *Orchestrator) fetchTiles(ctx context.Context, j *job) error {
	j.tiles = o.provider.TilesInfo(j.rec.PanoID)

	g, gctx := errgroup.WithContext(ctx)
	for _, tile := range j.tiles {
		tile := tile
		g.Go(func() error {
			return o.downloadTile(gctx, tile)
		})
	}
	return g.Wait()
}

func (o *Orchestrator) downloadTile(ctx context.Context, tile streetview.Tile) error {
	url := strings.Replace(tile.URL, "http://", "https://", 1)
	dest := filepath.Join(o.store.TileDir, tile.FileName)

	for {
		err := o.fetchOnce(ctx, url, dest)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("Retrying tile %s: %v", tile.FileName, err)
	}
}

func (o *Orchestrator) fetchOnce(ctx context.Context, url, dest string) error {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer o.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, body, 0o644)
}

func (o *Orchestrator) assemble(_ context.Context, j *job) error {
	err := o.provider.Stitch(j.rec.PanoID, j.tiles, o.store.TileDir, o.store.PanoDir, j.rec.Coordinate())
	if err != nil {
		return fmt.Errorf("failed to create panorama %s: %w", j.rec.PanoID, err)
	}
	if o.OnAssembled != nil {
		o.OnAssembled(j.rec)
	}
	return nil
}

func (o *Orchestrator) cleanup(_ context.Context, j *job) error {
	return o.provider.DeleteTiles(j.tiles, o.store.TileDir)
}
