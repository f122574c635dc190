// Package blob stores uploaded images and removes superseded ones.
package blob

import (
	"context"
	"fmt"
	"net/url"
)

// Store is the Blob Store contract. Delete of a missing object succeeds.
type Store interface {
	Upload(ctx context.Context, object, contentType string, data []byte) (publicURL, ref string, err error)
	Delete(ctx context.Context, ref string) error
}

// PublicURL is the Firebase Storage download URL of object in bucket.
func PublicURL(bucket, object string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media", bucket, url.PathEscape(object))
}
