package domain

import (
	"bytes"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
)

// BlobReference is the content identifier returned by the blob store. It is a
// CIDv1 string, so identical bytes always produce the same reference.
type BlobReference string

func (r BlobReference) String() string { return string(r) }

var rawPrefix = cid.Prefix{
	Version:  1,
	Codec:    uint64(multicodec.Raw),
	MhType:   mh.SHA2_256,
	MhLength: -1,
}

// ComputeReference derives the reference of data: CIDv1, raw codec, sha2-256.
func ComputeReference(data []byte) (BlobReference, error) {
	c, err := rawPrefix.Sum(data)
	if err != nil {
		return "", fmt.Errorf("compute cid: %w", err)
	}
	return BlobReference(c.String()), nil
}

// ParseReference validates s as a CID and returns it in canonical string form.
func ParseReference(s string) (BlobReference, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	return BlobReference(c.String()), nil
}

// Digest returns the raw multihash digest carried by the reference.
func (r BlobReference) Digest() ([]byte, error) {
	c, err := cid.Decode(string(r))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	return decoded.Digest, nil
}

// Matches reports whether data hashes to r. Only raw-codec references can be
// checked locally; other codecs (e.g. dag-pb roots from an IPFS node) return
// true and are trusted to the node that produced them.
func (r BlobReference) Matches(data []byte) bool {
	c, err := cid.Decode(string(r))
	if err != nil {
		return false
	}
	if c.Type() != uint64(multicodec.Raw) {
		return true
	}
	sum, err := c.Prefix().Sum(data)
	if err != nil {
		return false
	}
	return bytes.Equal(sum.Hash(), c.Hash())
}
