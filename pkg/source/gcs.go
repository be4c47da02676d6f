//go:build gcp

package source

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
)

func init() {
	extraFactories["gs"] = func(ctx context.Context) (Fetcher, error) {
		return NewGCSFetcher(ctx)
	}
}

// GCSFetcher reads gs://bucket/object documents.
type GCSFetcher struct {
	client *storage.Client
}

// NewGCSFetcher creates a client from application default credentials.
func NewGCSFetcher(ctx context.Context) (*GCSFetcher, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSFetcher{client: client}, nil
}

func (g *GCSFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := bucketKey(uri)
	if err != nil {
		return nil, err
	}
	r, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return nil, fmt.Errorf("gcs read failed for %s: %w", uri, err)
	}
	defer func() { _ = r.Close() }()
	return readLimited(r)
}
