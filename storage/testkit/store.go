// Package testkit holds the conformance suite every storage.Store backend runs.
package testkit

import (
	"bytes"
	"context"
	"testing"

	"github.com/ipfs/go-cid"

	"onigiri.dev/shake/cidutil"
	"onigiri.dev/shake/storage"
)

// NewStore constructs a fresh, empty Store for a test.
// The returned Store MUST be isolated from other tests.
type NewStore func(t *testing.T) storage.Store

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := []byte("hello, shake storage")

		id, err := s.Put(ctx, want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := cidutil.BlobID(want)
		if err != nil {
			t.Fatalf("BlobID failed: %v", err)
		}
		if id != wantID {
			t.Fatalf("Put id mismatch: got %s want %s", id, wantID)
		}

		got, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		b := []byte("same bytes")

		id1, err := s.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := s.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if id1 != id2 {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("DistinctBytesDistinctIDs", func(t *testing.T) {
		s := newStore(t)
		a, err := s.Put(ctx, []byte("post body A"))
		if err != nil {
			t.Fatalf("Put(A) failed: %v", err)
		}
		b, err := s.Put(ctx, []byte("post body B"))
		if err != nil {
			t.Fatalf("Put(B) failed: %v", err)
		}
		if a == b {
			t.Fatalf("different content produced the same id %s", a)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t)
		b := []byte("missing")
		id, err := cidutil.BlobID(b)
		if err != nil {
			t.Fatalf("BlobID failed: %v", err)
		}

		if s.Has(ctx, id) {
			t.Fatalf("Has returned true for missing id")
		}
		_, err = s.Get(ctx, id)
		if !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		if _, err := s.Put(ctx, b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !s.Has(ctx, id) {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("RejectUndefID", func(t *testing.T) {
		s := newStore(t)
		var undef cid.Cid
		if s.Has(ctx, undef) {
			t.Fatalf("Has should be false for undefined id")
		}
		if _, err := s.Get(ctx, undef); err == nil {
			t.Fatalf("Get should fail for undefined id")
		}
	})
}
