package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

// FileStore keeps one <reference>.blob file per blob under baseDir.
type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Put writes to a temp file and renames it into place, so readers never see
// a partially written blob.
func (s *FileStore) Put(_ context.Context, data []byte) (domain.BlobReference, error) {
	ref, err := domain.ComputeReference(data)
	if err != nil {
		return "", err
	}
	path := s.path(ref)
	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}

	tmp, err := os.CreateTemp(s.baseDir, ".put-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("rename blob: %w", err)
	}
	return ref, nil
}

func (s *FileStore) Get(_ context.Context, ref domain.BlobReference) ([]byte, error) {
	ref, err := parse(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrBlobNotFound
		}
		return nil, fmt.Errorf("read blob %s: %w", ref, err)
	}
	return verify(ref, data)
}

func (s *FileStore) Exists(_ context.Context, ref domain.BlobReference) (bool, error) {
	ref, err := parse(ref)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(s.path(ref))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) path(ref domain.BlobReference) string {
	return filepath.Join(s.baseDir, objectKey("", ref))
}
