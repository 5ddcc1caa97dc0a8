// Package aggregator talks to blob publishers and aggregators over HTTP.
//
// Uploads go to a publisher with PUT /v1/blobs?epochs=N; reads are plain GETs
// against an aggregator at /v1/blobs/{blobId}. The same routes are served by
// NewHandler so any storage.Store can be exposed the same way.
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"onigiri.dev/shake/cidutil"
	"onigiri.dev/shake/storage"
)

const blobsPath = "/v1/blobs"

// Client implements storage.Store against a publisher/aggregator pair.
type Client struct {
	PublisherURL  string
	AggregatorURL string
	// Epochs is how long the publisher is asked to keep the blob; 0 omits it.
	Epochs     int
	HTTPClient *http.Client
}

var _ storage.Store = (*Client)(nil)

func New(publisherURL, aggregatorURL string) *Client {
	return &Client{
		PublisherURL:  strings.TrimRight(publisherURL, "/"),
		AggregatorURL: strings.TrimRight(aggregatorURL, "/"),
		HTTPClient:    &http.Client{Timeout: 60 * time.Second},
	}
}

// HTTPError is a non-2xx reply from a publisher or aggregator.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("aggregator: %s %s: %s", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("aggregator: %s %s: %s: %s", e.Method, e.URL, e.Status, e.Body)
}

// Unwrap lets errors.Is(err, storage.ErrNotFound) match a 404.
func (e *HTTPError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return storage.ErrNotFound
	}
	return nil
}

type blobObject struct {
	BlobID string `json:"blobId"`
	Size   int64  `json:"size,omitempty"`
}

type newlyCreated struct {
	BlobObject blobObject `json:"blobObject"`
}

type alreadyCertified struct {
	BlobID string `json:"blobId"`
}

// storeResponse is the publisher reply; exactly one branch is set.
type storeResponse struct {
	NewlyCreated     *newlyCreated     `json:"newlyCreated,omitempty"`
	AlreadyCertified *alreadyCertified `json:"alreadyCertified,omitempty"`
}

func (r storeResponse) blobID() string {
	switch {
	case r.NewlyCreated != nil:
		return r.NewlyCreated.BlobObject.BlobID
	case r.AlreadyCertified != nil:
		return r.AlreadyCertified.BlobID
	default:
		return ""
	}
}

func (c *Client) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	expected, err := cidutil.BlobID(data)
	if err != nil {
		return cid.Undef, err
	}
	if c.PublisherURL == "" {
		return cid.Undef, fmt.Errorf("aggregator: missing publisher URL")
	}

	u := c.PublisherURL + blobsPath
	if c.Epochs > 0 {
		u += "?" + url.Values{"epochs": {strconv.Itoa(c.Epochs)}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
	if err != nil {
		return cid.Undef, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return cid.Undef, err
	}
	defer resp.Body.Close()
	if err := checkStatus(req, resp); err != nil {
		return cid.Undef, err
	}

	var out storeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return cid.Undef, fmt.Errorf("aggregator: decode publisher reply: %w", err)
	}
	id, err := cid.Decode(out.blobID())
	if err != nil || !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}
	if !id.Equals(expected) {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return id, nil
}

func (c *Client) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BlobURL(id.String()), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(req, resp); err != nil {
		return nil, err
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !cidutil.Verify(id, b) {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (c *Client) Has(ctx context.Context, id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.BlobURL(id.String()), nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// BlobURL is the aggregator URL a browser or image tag can load directly.
func (c *Client) BlobURL(blobID string) string {
	return c.AggregatorURL + blobsPath + "/" + url.PathEscape(blobID)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func checkStatus(req *http.Request, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &HTTPError{
		Method:     req.Method,
		URL:        req.URL.Redacted(),
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}
