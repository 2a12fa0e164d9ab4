// Package discovery queries the remote panorama index for every sample
// point of a grid and aggregates the results.
package discovery

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"streetscan/internal/models"
)

// Searcher is the remote lookup performed once per sample point.
type Searcher interface {
	Search(ctx context.Context, point models.Coordinate) ([]models.Panorama, error)
}

// Service dispatches one lookup per sample point with bounded concurrency
// and collects every record into a single aggregate. Lookups that fail are
// retried after a fixed delay; by default they are retried forever, which
// means a permanently dead endpoint blocks completion unless the caller
// cancels the context or sets MaxAttempts.
type Service struct {
	client Searcher

	// Limit bounds the number of in-flight lookups.
	Limit int
	// RetryDelay is the pause between attempts for a failing sample point.
	RetryDelay time.Duration
	// MaxAttempts caps retries per sample point; 0 retries forever.
	MaxAttempts int
	// ReportEvery is the progress reporter interval.
	ReportEvery time.Duration
}

func NewService(client Searcher) *Service {
	return &Service{
		client:      client,
		Limit:       100,
		RetryDelay:  10 * time.Second,
		ReportEvery: 10 * time.Second,
	}
}

// Discover looks up every sample point and returns all records found, in
// unspecified order. Records from overlapping sample points may repeat;
// thinning is the filter's job. The only error returned is the context's,
// when the caller cancels a run.
func (s *Service) Discover(ctx context.Context, points []models.Coordinate) ([]models.Panorama, error) {
	results := make(chan []models.Panorama)

	// Single owner of the aggregate; fetch goroutines never touch it.
	var all []models.Panorama
	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		for records := range results {
			all = append(all, records...)
		}
	}()

	var checked atomic.Int64
	reporterCtx, stopReporter := context.WithCancel(ctx)
	reporterDone := make(chan struct{})
	go s.report(reporterCtx, &checked, len(points), reporterDone)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Limit)
	for _, point := range points {
		point := point
		g.Go(func() error {
			records, err := s.searchWithRetry(gctx, point)
			if err != nil {
				return err
			}
			if len(records) > 0 {
				select {
				case results <- records:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			checked.Add(1)
			return nil
		})
	}

	err := g.Wait()
	close(results)
	<-aggDone

	// The reporter's shutdown is expected; its cancellation never surfaces
	// as a run error.
	stopReporter()
	<-reporterDone

	if err != nil {
		return all, err
	}
	log.Printf("Fetched %d total panoids", len(all))
	return all, nil
}

// searchWithRetry retries a single sample point until it succeeds, the
// attempt cap is reached, or the context is cancelled. A capped-out point
// is logged and skipped rather than failing the run.
func (s *Service) searchWithRetry(ctx context.Context, point models.Coordinate) ([]models.Panorama, error) {
	for attempt := 1; ; attempt++ {
		records, err := s.client.Search(ctx, point)
		if err == nil {
			return records, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		log.Printf("[Retrying] Error fetching panoids for (%f, %f): %v", point.Lat, point.Lon, err)

		if s.MaxAttempts > 0 && attempt >= s.MaxAttempts {
			log.Printf("[Giving up] Sample point (%f, %f) failed %d times", point.Lat, point.Lon, attempt)
			return nil, nil
		}

		select {
		case <-time.After(s.RetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Service) report(ctx context.Context, checked *atomic.Int64, total int, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.ReportEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := checked.Load(); n != 0 {
				log.Printf("[Status] Checked %d of %d test points", n, total)
			}
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.Canceled) {
				log.Printf("[Status] Reporter stopped: %v", ctx.Err())
			}
			return
		}
	}
}
