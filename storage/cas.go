package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// Store is the content-addressed blob store the publishing pipeline and the
// read models talk to.
//
// Contract:
// - Put MUST be idempotent.
// - Stored blobs MUST be immutable.
// - Blob ids MUST be derived from the bytes written (see cidutil.BlobID).
// - Get MUST return ErrNotFound when the id is absent.
type Store interface {
	Getter
	Put(ctx context.Context, data []byte) (cid.Cid, error)
	Has(ctx context.Context, id cid.Cid) bool
}

// Getter is the read half of Store.
type Getter interface {
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
}
