// Package memory is an in-process blob store for tests and local runs.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/ipfs/go-cid"

	"onigiri.dev/shake/cidutil"
	"onigiri.dev/shake/storage"
)

// Store keeps blobs in a map keyed by blob id. The zero value is not usable;
// call New.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	puts  int
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

func (s *Store) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id, err := cidutil.BlobID(data)
	if err != nil {
		return cid.Undef, err
	}
	k := id.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if existing, ok := s.blobs[k]; ok {
		if !bytes.Equal(existing, data) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}
	s.blobs[k] = append([]byte(nil), data...)
	return id, nil
}

func (s *Store) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	s.mu.RLock()
	b, ok := s.blobs[id.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := append([]byte(nil), b...)
	if !cidutil.Verify(id, out) {
		return nil, storage.ErrCIDMismatch
	}
	return out, nil
}

func (s *Store) Has(ctx context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[id.String()]
	return ok
}

// Puts reports how many Put calls reached the store, including repeats.
func (s *Store) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

// Len reports the number of distinct blobs held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
