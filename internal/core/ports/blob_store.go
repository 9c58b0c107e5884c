package ports

import (
	"context"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

// BlobStore is the content-addressed store holding certificate images.
// Put is idempotent by content; Get returns the exact bytes or
// domain.ErrBlobNotFound. There is no delete path.
type BlobStore interface {
	Put(ctx context.Context, data []byte) (domain.BlobReference, error)
	Get(ctx context.Context, ref domain.BlobReference) ([]byte, error)
	Exists(ctx context.Context, ref domain.BlobReference) (bool, error)
}
