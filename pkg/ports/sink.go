package ports

import "context"

// BlobSink receives exported snapshots (local directory, S3 bucket).
type BlobSink interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}
