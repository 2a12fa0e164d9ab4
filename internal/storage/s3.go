package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"streetscan/internal/keys"
	"streetscan/internal/models"
)

// S3Archive mirrors assembled panoramas and discovery output files into an
// S3-compatible bucket. The local store stays authoritative for the
// already-downloaded check; the archive only ever adds copies.
type S3Archive struct {
	client *minio.Client
	bucket string
}

// NewS3Archive connects to the MinIO endpoint configured through the
// environment and makes sure the target bucket exists.
func NewS3Archive(ctx context.Context) (*S3Archive, error) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	bucket := os.Getenv("PANORAMA_BUCKET_NAME")
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, fmt.Errorf("missing one or more required environment variables: MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY, PANORAMA_BUCKET_NAME")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	a := &S3Archive{client: client, bucket: bucket}
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}

	log.Println("Successfully connected to MinIO endpoint:", endpoint)
	return a, nil
}

func (a *S3Archive) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", a.bucket, err)
		}
	}
	return nil
}

// ArchivePanorama uploads one assembled panorama image. An object already
// present under the canonical key is left untouched.
func (a *S3Archive) ArchivePanorama(ctx context.Context, rec models.Panorama, filePath string) error {
	objectKey := keys.PanoramaObject(rec)

	_, err := a.client.StatObject(ctx, a.bucket, objectKey, minio.StatObjectOptions{})
	if err == nil {
		log.Printf("Panorama %s already archived in bucket '%s'. Ignoring write operation.", rec.PanoID, a.bucket)
		return nil
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("failed to check for existing object: %w", err)
	}

	_, err = a.client.FPutObject(ctx, a.bucket, objectKey, filePath,
		minio.PutObjectOptions{ContentType: "image/jpeg"})
	if err != nil {
		return fmt.Errorf("failed to store panorama in S3: %w", err)
	}
	return nil
}

// ArchiveDiscovery uploads one discovery run's records as a JSON object
// keyed by the final record count, matching the local filename scheme.
func (a *S3Archive) ArchiveDiscovery(ctx context.Context, records []models.Panorama) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal discovery records: %w", err)
	}

	_, err = a.client.PutObject(
		ctx,
		a.bucket,
		keys.DiscoveryObject(len(records)),
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return fmt.Errorf("failed to store discovery file in S3: %w", err)
	}
	return nil
}

// ArchiveFromChannel uploads assembled panoramas as they arrive on the
// channel, resolving each record's local file through pathFor. Upload
// failures are logged per record and do not stop the stream.
func (a *S3Archive) ArchiveFromChannel(ctx context.Context, records <-chan models.Panorama, pathFor func(models.Panorama) string) {
	var wg sync.WaitGroup
	count := 0

	for rec := range records {
		wg.Add(1)
		count++
		go func(rec models.Panorama) {
			defer wg.Done()
			if err := a.ArchivePanorama(ctx, rec, pathFor(rec)); err != nil {
				log.Printf("Error archiving panorama '%s': %v", rec.PanoID, err)
			}
		}(rec)
	}

	wg.Wait()
	log.Printf("Finished archiving panoramas from the channel. Count %d \n", count)
}
