package storage

import (
	"context"
)

// ObjectStorage is the blob-storage collaborator QR images are uploaded to.
// Upload stores data under key and returns a publicly retrievable URL.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
