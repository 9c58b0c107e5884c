// Package blobstore provides the content-addressed stores that hold
// certificate images. Every backend keys blobs by their CIDv1 reference,
// writes only when the blob is absent and re-verifies content on read, so a
// Get either returns the exact original bytes or fails.
package blobstore

import (
	"errors"
	"fmt"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

// ErrCorrupt is returned when stored bytes do not hash to their reference.
var ErrCorrupt = errors.New("blob content does not match its reference")

// objectKey is the object name used by the flat backends (fs, s3, gcs).
func objectKey(prefix string, ref domain.BlobReference) string {
	return prefix + ref.String() + ".blob"
}

// parse canonicalises ref, rejecting anything that is not a CID.
func parse(ref domain.BlobReference) (domain.BlobReference, error) {
	return domain.ParseReference(ref.String())
}

func verify(ref domain.BlobReference, data []byte) ([]byte, error) {
	if !ref.Matches(data) {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, ref)
	}
	return data, nil
}
