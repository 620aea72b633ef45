package snapshot

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
)

// GCS uploads page snapshots to a Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS wraps an existing storage client. The caller owns the client's
// lifecycle.
func NewGCS(client *storage.Client, bucket, prefix string) (*GCS, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCS{client: client, bucket: bucket, prefix: prefix}, nil
}

// Save uploads the body and returns a gs:// URI.
func (g *GCS) Save(ctx context.Context, page int, fetchedAt time.Time, body []byte) (string, error) {
	path := objectPath(g.prefix, page, fetchedAt)
	w := g.client.Bucket(g.bucket).Object(path).NewWriter(ctx)
	w.ContentType = "text/html; charset=utf-8"
	if _, err := w.Write(body); err != nil {
		if closeErr := w.Close(); closeErr != nil {
			return "", fmt.Errorf("write snapshot: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, path), nil
}
