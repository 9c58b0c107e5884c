package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"
	boxochunker "github.com/ipfs/boxo/chunker"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

const (
	defaultChunkSize = 256 * 1024

	manifestPrefix = "blob:"
	chunkPrefix    = "chunk:"
)

// BadgerConfig configures the embedded store. An empty Dir runs in memory.
type BadgerConfig struct {
	Dir       string
	ChunkSize int64
}

// BadgerStore keeps blobs in an embedded badger database. A blob is split
// into fixed-size chunks keyed by their sha256; a manifest keyed by the blob
// reference lists the chunk digests in order. Chunks shared between blobs
// are stored once.
type BadgerStore struct {
	db        *badger.DB
	chunkSize int64
}

func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Dir).WithLoggingLevel(badger.WARNING)
	if cfg.Dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.WARNING)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &BadgerStore{db: db, chunkSize: chunkSize}, nil
}

func (s *BadgerStore) Put(_ context.Context, data []byte) (domain.BlobReference, error) {
	ref, err := domain.ComputeReference(data)
	if err != nil {
		return "", err
	}

	chunks, err := s.split(data)
	if err != nil {
		return "", err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(manifestKey(ref)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		manifest := make([]byte, 0, len(chunks)*sha256.Size)
		for _, c := range chunks {
			sum := sha256.Sum256(c)
			manifest = append(manifest, sum[:]...)

			key := chunkKey(sum[:])
			if _, err := txn.Get(key); err == nil {
				continue
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(key, c); err != nil {
				return err
			}
		}
		return txn.Set(manifestKey(ref), manifest)
	})
	if errors.Is(err, badger.ErrConflict) {
		// a concurrent Put of the same content committed first
		if ok, existsErr := s.Exists(context.Background(), ref); existsErr == nil && ok {
			return ref, nil
		}
	}
	if err != nil {
		return "", fmt.Errorf("badger put %s: %w", ref, err)
	}
	return ref, nil
}

func (s *BadgerStore) Get(_ context.Context, ref domain.BlobReference) ([]byte, error) {
	ref, err := parse(ref)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(manifestKey(ref))
		if err != nil {
			return err
		}
		manifest, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if len(manifest)%sha256.Size != 0 {
			return fmt.Errorf("%w: malformed manifest", ErrCorrupt)
		}
		for off := 0; off < len(manifest); off += sha256.Size {
			chunk, err := txn.Get(chunkKey(manifest[off : off+sha256.Size]))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("%w: missing chunk", ErrCorrupt)
				}
				return err
			}
			if err := chunk.Value(func(v []byte) error {
				buf.Write(v)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrBlobNotFound
		}
		return nil, fmt.Errorf("badger get %s: %w", ref, err)
	}
	return verify(ref, buf.Bytes())
}

func (s *BadgerStore) Exists(_ context.Context, ref domain.BlobReference) (bool, error) {
	ref, err := parse(ref)
	if err != nil {
		return false, err
	}
	err = s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(manifestKey(ref))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) split(data []byte) ([][]byte, error) {
	splitter := boxochunker.NewSizeSplitter(bytes.NewReader(data), s.chunkSize)
	var chunks [][]byte
	for {
		c, err := splitter.NextBytes()
		if errors.Is(err, io.EOF) {
			return chunks, nil
		}
		if err != nil {
			return nil, fmt.Errorf("chunk blob: %w", err)
		}
		chunks = append(chunks, c)
	}
}

func manifestKey(ref domain.BlobReference) []byte {
	return []byte(manifestPrefix + ref.String())
}

func chunkKey(sum []byte) []byte {
	return append([]byte(chunkPrefix), sum...)
}
