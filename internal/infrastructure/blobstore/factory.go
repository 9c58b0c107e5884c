package blobstore

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/99minutos/certificate-system/internal/core/ports"
	"github.com/99minutos/certificate-system/internal/pkg/config"
)

// Type names a blob storage backend.
type Type string

const (
	TypeBadger Type = "badger"
	TypeFS     Type = "fs"
	TypeS3     Type = "s3"
	TypeGCS    Type = "gcs"
	TypeIPFS   Type = "ipfs"
)

// Store is a BlobStore that may hold resources.
type Store interface {
	ports.BlobStore
	io.Closer
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.BlobConfig, logger zerolog.Logger) (Store, error) {
	backend := Type(cfg.Backend)
	if backend == "" {
		backend = TypeBadger
	}
	logger.Info().Str("backend", string(backend)).Msg("opening blob store")

	switch backend {
	case TypeBadger:
		return OpenBadger(BadgerConfig{Dir: cfg.BadgerDir, ChunkSize: cfg.ChunkSize})
	case TypeFS:
		return NewFileStore(cfg.FSDir)
	case TypeS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("BLOB_S3_BUCKET is required for s3 storage")
		}
		return NewS3Store(ctx, S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		})
	case TypeGCS:
		return newGCSStore(ctx, cfg)
	case TypeIPFS:
		return NewIPFSStore(IPFSConfig{APIURL: cfg.IPFSAPI})
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", backend)
	}
}
