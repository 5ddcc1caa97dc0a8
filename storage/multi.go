package storage

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
)

// MultiStore provides ordered fallback across several stores.
//
// Reads try Stores in slice order; callers MUST supply a fixed order.
// Put writes only to the first store.
type MultiStore struct {
	Stores []Store
}

var _ Store = MultiStore{}

func (m MultiStore) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if len(m.Stores) == 0 {
		return cid.Undef, errors.New("storage: MultiStore has no stores")
	}
	return m.Stores[0].Put(ctx, data)
}

func (m MultiStore) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	for _, s := range m.Stores {
		b, err := s.Get(ctx, id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (m MultiStore) Has(ctx context.Context, id cid.Cid) bool {
	for _, s := range m.Stores {
		if s.Has(ctx, id) {
			return true
		}
	}
	return false
}
