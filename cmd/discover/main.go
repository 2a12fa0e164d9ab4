package main

import (
	"context"
	"log"
	"os"
	"time"

	"streetscan/internal/config"
	"streetscan/internal/discovery"
	"streetscan/internal/env"
	"streetscan/internal/filter"
	"streetscan/internal/grid"
	"streetscan/internal/models"
	"streetscan/internal/storage"
	"streetscan/pkg/graceful"
	"streetscan/pkg/kafkaclient"
)

func main() {
	env.LoadEnv()

	cfg, err := config.ParseDiscover(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	start := time.Now()
	centre := models.Coordinate{Lat: cfg.Lat, Lon: cfg.Lon}
	points := grid.Points(centre, cfg.RadiusKm, cfg.Resolution)
	log.Printf("Gathering panoids from %d test points...", len(points))

	service := discovery.NewService(discovery.NewClient())
	service.Limit = cfg.Concurrency
	service.RetryDelay = cfg.RetryDelay
	service.MaxAttempts = cfg.MaxAttempts

	records, err := service.Discover(ctx, points)
	if err != nil {
		log.Fatalf("Discovery aborted: %v", err)
	}

	if cfg.IgnoreProximity {
		records = filter.DedupByID(records)
	} else {
		records = filter.ByProximity(records, cfg.ProximityMetres)
	}
	log.Printf("Final post-filtering panorama count: %d", len(records))

	path, err := storage.SaveDiscovery(cfg.OutputDir, records)
	if err != nil {
		log.Fatalf("Failed to write discovery file: %v", err)
	}
	log.Printf("Wrote %s", path)

	if cfg.Publish {
		broker := env.MustGetEnv("KAFKA_BROKER")
		topic := env.MustGetEnv("KAFKA_TOPIC")
		log.Printf("Publishing %d records to Kafka broker: %s on topic: %s", len(records), broker, topic)

		publisher := kafkaclient.NewPublisher(broker, topic)
		for _, rec := range records {
			if err := publisher.PublishRecord(ctx, rec); err != nil {
				log.Printf("Error publishing record '%s': %v", rec.PanoID, err)
			}
		}
		if err := publisher.Close(); err != nil {
			log.Printf("Failed to close Kafka writer: %v", err)
		}
	}

	if cfg.Archive {
		archive, err := storage.NewS3Archive(ctx)
		if err != nil {
			log.Fatal(err)
		}
		if err := archive.ArchiveDiscovery(ctx, records); err != nil {
			log.Fatalf("Failed to archive discovery file: %v", err)
		}
	}

	log.Printf("Finished discovery run, took %s", time.Since(start))
}
