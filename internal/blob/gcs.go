package blob

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCS stores objects in a Cloud Storage bucket, normally the Firebase
// project's default bucket.
type GCS struct {
	bucket *storage.BucketHandle
	name   string
}

// NewGCS wraps a bucket handle; name is used to build public URLs.
func NewGCS(bucket *storage.BucketHandle, name string) *GCS {
	return &GCS{bucket: bucket, name: name}
}

func (g *GCS) Upload(ctx context.Context, object, contentType string, data []byte) (string, string, error) {
	w := g.bucket.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", "", fmt.Errorf("failed to write gs://%s/%s: %w", g.name, object, err)
	}
	if err := w.Close(); err != nil {
		return "", "", fmt.Errorf("failed to close GCS writer for %s: %w", object, err)
	}
	return PublicURL(g.name, object), object, nil
}

func (g *GCS) Delete(ctx context.Context, ref string) error {
	err := g.bucket.Object(ref).Delete(ctx)
	if err == nil || errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return fmt.Errorf("failed to delete gs://%s/%s: %w", g.name, ref, err)
}
