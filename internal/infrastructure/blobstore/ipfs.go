package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ipfs/boxo/files"
	"github.com/ipfs/boxo/path"
	"github.com/ipfs/go-cid"
	"github.com/ipfs/kubo/client/rpc"
	iface "github.com/ipfs/kubo/core/coreiface"
	"github.com/ipfs/kubo/core/coreiface/options"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

const defaultIPFSTimeout = 30 * time.Second

// IPFSConfig points at a Kubo node's RPC API.
type IPFSConfig struct {
	APIURL  string
	Timeout time.Duration
	Client  *http.Client
}

// IPFSStore stores blobs on an IPFS node through the Kubo RPC client. Blobs
// are added as CIDv1 with raw leaves and pinned; the reference returned is
// the CID the node assigns. Reads use the offline API so an unknown CID fails
// instead of searching the network.
type IPFSStore struct {
	online  iface.CoreAPI
	offline iface.CoreAPI
}

func NewIPFSStore(cfg IPFSConfig) (*IPFSStore, error) {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultIPFSTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	api, err := rpc.NewURLApiWithClient(strings.TrimRight(cfg.APIURL, "/"), client)
	if err != nil {
		return nil, fmt.Errorf("ipfs rpc client: %w", err)
	}
	offline, err := api.WithOptions(options.Api.Offline(true))
	if err != nil {
		return nil, fmt.Errorf("ipfs offline api: %w", err)
	}
	return &IPFSStore{online: api, offline: offline}, nil
}

func (s *IPFSStore) Put(ctx context.Context, data []byte) (domain.BlobReference, error) {
	p, err := s.online.Unixfs().Add(ctx, files.NewBytesFile(data),
		options.Unixfs.CidVersion(1),
		options.Unixfs.RawLeaves(true),
		options.Unixfs.Pin(true),
	)
	if err != nil {
		return "", fmt.Errorf("ipfs add: %w", err)
	}
	ref, err := domain.ParseReference(p.RootCid().String())
	if err != nil {
		return "", fmt.Errorf("ipfs add: %w", err)
	}
	if !ref.Matches(data) {
		return "", fmt.Errorf("ipfs add: %w: node returned %s", ErrCorrupt, ref)
	}
	return ref, nil
}

func (s *IPFSStore) Get(ctx context.Context, ref domain.BlobReference) ([]byte, error) {
	ref, p, err := ipfsPath(ref)
	if err != nil {
		return nil, err
	}
	node, err := s.offline.Unixfs().Get(ctx, p)
	if err != nil {
		return nil, ipfsError("get", ref, err)
	}
	defer func() { _ = node.Close() }()

	f := files.ToFile(node)
	if f == nil {
		return nil, fmt.Errorf("ipfs get %s: not a file", ref)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, ipfsError("get", ref, err)
	}
	return verify(ref, data)
}

func (s *IPFSStore) Exists(ctx context.Context, ref domain.BlobReference) (bool, error) {
	ref, p, err := ipfsPath(ref)
	if err != nil {
		return false, err
	}
	if _, err := s.offline.Block().Stat(ctx, p); err != nil {
		err = ipfsError("stat", ref, err)
		if errors.Is(err, domain.ErrBlobNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *IPFSStore) Close() error { return nil }

// ipfsPath canonicalises ref and returns it with its /ipfs/ path.
func ipfsPath(ref domain.BlobReference) (domain.BlobReference, path.ImmutablePath, error) {
	canonical, err := parse(ref)
	if err != nil {
		return "", path.ImmutablePath{}, err
	}
	c, err := cid.Decode(canonical.String())
	if err != nil {
		return "", path.ImmutablePath{}, fmt.Errorf("%w: %v", domain.ErrInvalidReference, err)
	}
	return canonical, path.FromCid(c), nil
}

// ipfsError maps the node's "not found" answers to ErrBlobNotFound.
func ipfsError(op string, ref domain.BlobReference, err error) error {
	if isIPFSNotFound(err.Error()) {
		return domain.ErrBlobNotFound
	}
	return fmt.Errorf("ipfs %s %s: %w", op, ref, err)
}

func isIPFSNotFound(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "could not find")
}
