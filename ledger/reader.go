package ledger

import (
	"context"
	"fmt"
)

// MaxMultiGet is the most ids one MultiGetObjects request may carry.
const MaxMultiGet = 50

// Reader is the ledger read service.
//
// Absent objects are reported in the response (ObjectResponse.NotFound), not
// as errors. Errors are reserved for transport and service failures.
type Reader interface {
	GetObject(ctx context.Context, id string) (ObjectResponse, error)
	GetOwnedObjects(ctx context.Context, q OwnedObjectsQuery) (OwnedObjectsPage, error)
	// MultiGetObjects returns one response per id, in id order.
	MultiGetObjects(ctx context.Context, ids []string) ([]ObjectResponse, error)
}

type OwnedObjectsQuery struct {
	Owner Address
	// StructType filters by full Move struct type, e.g. "0x…::user::User".
	StructType string
	Cursor     *string
	// Limit is the page size; zero lets the service choose.
	Limit int
}

type OwnedObjectsPage struct {
	Data        []ObjectResponse `json:"data"`
	NextCursor  *string          `json:"nextCursor"`
	HasNextPage bool             `json:"hasNextPage"`
}

// AllOwnedObjects follows cursors until the last page.
func AllOwnedObjects(ctx context.Context, r Reader, q OwnedObjectsQuery) ([]ObjectResponse, error) {
	var out []ObjectResponse
	for {
		page, err := r.GetOwnedObjects(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Data...)
		if !page.HasNextPage || page.NextCursor == nil {
			return out, nil
		}
		if q.Cursor != nil && *q.Cursor == *page.NextCursor {
			return nil, fmt.Errorf("ledger: owned objects cursor did not advance (%q)", *page.NextCursor)
		}
		next := *page.NextCursor
		q.Cursor = &next
	}
}

// MultiGetAll fetches ids in MaxMultiGet-sized requests and returns the
// responses in id order.
func MultiGetAll(ctx context.Context, r Reader, ids []string) ([]ObjectResponse, error) {
	out := make([]ObjectResponse, 0, len(ids))
	for start := 0; start < len(ids); start += MaxMultiGet {
		end := start + MaxMultiGet
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		got, err := r.MultiGetObjects(ctx, chunk)
		if err != nil {
			return nil, err
		}
		if len(got) != len(chunk) {
			return nil, fmt.Errorf("ledger: multi-get returned %d objects for %d ids", len(got), len(chunk))
		}
		out = append(out, got...)
	}
	return out, nil
}
