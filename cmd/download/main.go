package main

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"streetscan/internal/config"
	"streetscan/internal/downloads"
	"streetscan/internal/env"
	"streetscan/internal/feed"
	"streetscan/internal/models"
	"streetscan/internal/storage"
	"streetscan/pkg/graceful"
	"streetscan/pkg/kafkaclient"
)

func main() {
	env.LoadEnv()

	cfg, err := config.ParseDownload(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	store, err := storage.NewLocal(cfg.PanoDir, cfg.TileDir)
	if err != nil {
		log.Fatal(err)
	}

	o := downloads.NewOrchestrator(store, downloads.StreetviewProvider{}, int64(cfg.Concurrency))
	o.BatchSize = cfg.BatchSize

	var archiveWG sync.WaitGroup
	var assembled chan models.Panorama
	if cfg.Archive {
		archive, err := storage.NewS3Archive(ctx)
		if err != nil {
			log.Fatal(err)
		}
		assembled = make(chan models.Panorama)
		o.OnAssembled = func(rec models.Panorama) { assembled <- rec }
		archiveWG.Add(1)
		go func() {
			defer archiveWG.Done()
			archive.ArchiveFromChannel(ctx, assembled, store.PanoramaPath)
		}()
	}

	start := time.Now()
	switch cfg.Source {
	case "kafka":
		runFromKafka(ctx, o, cfg)
	default:
		runFromFile(ctx, o, cfg)
	}

	if assembled != nil {
		close(assembled)
		archiveWG.Wait()
	}
	log.Printf("Finished download run, took %s", time.Since(start))
}

// runFromFile downloads every record of a finished discovery run.
func runFromFile(ctx context.Context, o *downloads.Orchestrator, cfg *config.Download) {
	records, err := storage.LoadDiscovery(cfg.File)
	if err != nil {
		log.Fatalf("Failed to load records: %v", err)
	}
	log.Printf("Loaded %d panorama records from %s", len(records), cfg.File)

	if err := o.Run(ctx, records); err != nil {
		log.Fatalf("Download run aborted: %v", err)
	}
}

// runFromKafka consumes the record topic and downloads in chunks as records
// arrive, so a download box can trail a live discovery run.
func runFromKafka(ctx context.Context, o *downloads.Orchestrator, cfg *config.Download) {
	broker := env.MustGetEnv("KAFKA_BROKER")
	topic := env.MustGetEnv("KAFKA_TOPIC")
	groupID := env.MustGetEnv("KAFKA_GROUP_ID")
	log.Printf("Connecting to Kafka broker: %s on topic: %s with group ID: %s", broker, topic, groupID)

	consumer := kafkaclient.NewConsumer(broker, topic, groupID)
	consumer.StartConsuming(ctx)
	defer consumer.Stop()

	iterator := feed.NewIterator[models.Panorama](consumer)
	chunk := make([]models.Panorama, 0, cfg.BatchSize)
	for rec := range iterator.Items(ctx) {
		chunk = append(chunk, rec)
		if len(chunk) < cfg.BatchSize {
			continue
		}
		if err := o.Run(ctx, chunk); err != nil {
			log.Fatalf("Download run aborted: %v", err)
		}
		chunk = chunk[:0]
	}
	if len(chunk) > 0 {
		if err := o.Run(ctx, chunk); err != nil {
			log.Fatalf("Download run aborted: %v", err)
		}
	}
}
