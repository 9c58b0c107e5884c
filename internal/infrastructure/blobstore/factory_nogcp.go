//go:build !gcp

package blobstore

import (
	"context"
	"fmt"

	"github.com/99minutos/certificate-system/internal/pkg/config"
)

func newGCSStore(context.Context, config.BlobConfig) (Store, error) {
	return nil, fmt.Errorf("gcs storage is not enabled in this build (use -tags gcp)")
}
