// Package jsonrpc speaks the fullnode JSON-RPC 2.0 API over HTTP.
//
// Client implements ledger.Reader and ledger.Writer; NewHandler serves the
// same methods from any Reader and Writer, which is how the development
// ledger is exposed.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/model"
)

// Client is a JSON-RPC ledger client.
//
// Connectivity failures, non-2xx replies and node error objects are returned
// as *model.Error of kind KindTransport; node error objects are also
// reachable as *RPCError.
type Client struct {
	URL        string
	HTTPClient *http.Client

	nextID atomic.Uint64
}

var (
	_ ledger.Reader = (*Client)(nil)
	_ ledger.Writer = (*Client)(nil)
)

func New(url string) *Client {
	return &Client{
		URL:        strings.TrimRight(url, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) call(ctx context.Context, method string, out any, params ...any) error {
	rawParams := make([]json.RawMessage, len(params))
	for i, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("jsonrpc: encode %s params: %w", method, err)
		}
		rawParams[i] = b
	}
	body, err := json.Marshal(request{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: rawParams})
	if err != nil {
		return fmt.Errorf("jsonrpc: encode %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return model.TransportError(method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return model.TransportError(method, fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(msg))))
	}

	var rpcResp response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return model.TransportError(method, fmt.Errorf("decode response: %w", err))
	}
	if rpcResp.Error != nil {
		return model.TransportError(method, rpcResp.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return model.TransportError(method, fmt.Errorf("decode result: %w", err))
	}
	return nil
}

func (c *Client) GetObject(ctx context.Context, id string) (ledger.ObjectResponse, error) {
	var out ledger.ObjectResponse
	err := c.call(ctx, MethodGetObject, &out, id, fullObject)
	return out, err
}

func (c *Client) GetOwnedObjects(ctx context.Context, q ledger.OwnedObjectsQuery) (ledger.OwnedObjectsPage, error) {
	query := ownedObjectsQuery{Options: fullObject}
	if q.StructType != "" {
		query.Filter = &ownedObjectsFilter{MatchAll: []structTypeFilter{{StructType: q.StructType}}}
	}
	var limit *int
	if q.Limit > 0 {
		limit = &q.Limit
	}
	var out ledger.OwnedObjectsPage
	err := c.call(ctx, MethodGetOwnedObjects, &out, q.Owner, query, q.Cursor, limit)
	return out, err
}

func (c *Client) MultiGetObjects(ctx context.Context, ids []string) ([]ledger.ObjectResponse, error) {
	var out []ledger.ObjectResponse
	if err := c.call(ctx, MethodMultiGetObjects, &out, ids, fullObject); err != nil {
		return nil, err
	}
	if len(out) != len(ids) {
		return nil, model.TransportError(MethodMultiGetObjects, fmt.Errorf("got %d objects for %d ids", len(out), len(ids)))
	}
	return out, nil
}

func (c *Client) ExecuteTransaction(ctx context.Context, txBytes []byte, signatures []string) (ledger.ExecutionResult, error) {
	var out executeResponse
	err := c.call(ctx, MethodExecuteTransaction, &out,
		base64.StdEncoding.EncodeToString(txBytes),
		signatures,
		executeOptions{ShowEffects: true, ShowObjectChanges: true},
		"WaitForLocalExecution",
	)
	if err != nil {
		return ledger.ExecutionResult{}, err
	}
	return out.result(), nil
}
