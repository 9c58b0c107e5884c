//go:build gcp

package blobstore

import (
	"context"
	"fmt"

	"github.com/99minutos/certificate-system/internal/pkg/config"
)

func newGCSStore(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	if cfg.GCSBucket == "" {
		return nil, fmt.Errorf("BLOB_GCS_BUCKET is required for gcs storage")
	}
	return NewGCSStore(ctx, GCSConfig{Bucket: cfg.GCSBucket, Prefix: cfg.GCSPrefix})
}
