package jsonrpc

import (
	"encoding/json"
	"fmt"

	"onigiri.dev/shake/ledger"
)

// Method names served and called.
const (
	MethodGetObject          = "sui_getObject"
	MethodGetOwnedObjects    = "suix_getOwnedObjects"
	MethodMultiGetObjects    = "sui_multiGetObjects"
	MethodExecuteTransaction = "sui_executeTransactionBlock"
)

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

type request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      uint64            `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc: error %d: %s", e.Code, e.Message)
}

// objectOptions asks for everything the decoder needs.
type objectOptions struct {
	ShowType    bool `json:"showType"`
	ShowOwner   bool `json:"showOwner"`
	ShowContent bool `json:"showContent"`
}

var fullObject = objectOptions{ShowType: true, ShowOwner: true, ShowContent: true}

type structTypeFilter struct {
	StructType string `json:"StructType"`
}

type ownedObjectsFilter struct {
	MatchAll []structTypeFilter `json:"MatchAll"`
}

type ownedObjectsQuery struct {
	Filter  *ownedObjectsFilter `json:"filter,omitempty"`
	Options objectOptions       `json:"options"`
}

type executeOptions struct {
	ShowEffects       bool `json:"showEffects"`
	ShowObjectChanges bool `json:"showObjectChanges"`
}

// executeResponse is the node's transaction block response.
type executeResponse struct {
	Digest  string `json:"digest"`
	Effects struct {
		Status ledger.ExecutionStatus `json:"status"`
	} `json:"effects"`
	ObjectChanges []ledger.ObjectChange `json:"objectChanges"`
}

func toExecuteResponse(r ledger.ExecutionResult) executeResponse {
	var out executeResponse
	out.Digest = r.Digest
	out.Effects.Status = r.Status
	out.ObjectChanges = r.ObjectChanges
	return out
}

func (r executeResponse) result() ledger.ExecutionResult {
	return ledger.ExecutionResult{Digest: r.Digest, Status: r.Effects.Status, ObjectChanges: r.ObjectChanges}
}
