package jsonrpc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"onigiri.dev/shake/ledger"
)

// DefaultMaxRequestBytes caps request bodies accepted by NewHandler.
const DefaultMaxRequestBytes = 4 << 20

type HandlerOptions struct {
	MaxRequestBytes int64
	Logger          *slog.Logger
}

// NewHandler serves the ledger methods from reader and writer. A nil writer
// makes the endpoint read-only.
func NewHandler(reader ledger.Reader, writer ledger.Writer, opts HandlerOptions) http.Handler {
	if opts.MaxRequestBytes <= 0 {
		opts.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &handler{reader: reader, writer: writer, opts: opts}
}

type handler struct {
	reader ledger.Reader
	writer ledger.Writer
	opts   HandlerOptions
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxRequestBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusRequestEntityTooLarge)
		return
	}

	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		writeResponse(w, response{JSONRPC: "2.0", Error: &RPCError{Code: CodeParseError, Message: err.Error()}})
		return
	}
	resp := response{JSONRPC: "2.0", ID: req.ID}
	result, rpcErr := h.dispatch(r, req)
	if rpcErr != nil {
		if rpcErr.Code == CodeInternalError {
			h.opts.Logger.Error("jsonrpc: call failed", "method", req.Method, "err", rpcErr.Message)
		}
		resp.Error = rpcErr
	} else {
		b, err := json.Marshal(result)
		if err != nil {
			resp.Error = &RPCError{Code: CodeInternalError, Message: err.Error()}
		} else {
			resp.Result = b
		}
	}
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func param[T any](req request, i int, out *T) *RPCError {
	if i >= len(req.Params) {
		return &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("missing param %d", i)}
	}
	if err := json.Unmarshal(req.Params[i], out); err != nil {
		return &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("param %d: %v", i, err)}
	}
	return nil
}

func optParam[T any](req request, i int, out *T) *RPCError {
	if i >= len(req.Params) {
		return nil
	}
	return param(req, i, out)
}

func internal(err error) *RPCError {
	return &RPCError{Code: CodeInternalError, Message: err.Error()}
}

func (h *handler) dispatch(r *http.Request, req request) (any, *RPCError) {
	ctx := r.Context()
	switch req.Method {
	case MethodGetObject:
		var id string
		if e := param(req, 0, &id); e != nil {
			return nil, e
		}
		out, err := h.reader.GetObject(ctx, id)
		if err != nil {
			return nil, internal(err)
		}
		return out, nil

	case MethodMultiGetObjects:
		var ids []string
		if e := param(req, 0, &ids); e != nil {
			return nil, e
		}
		if len(ids) > ledger.MaxMultiGet {
			return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("at most %d ids per request", ledger.MaxMultiGet)}
		}
		out, err := h.reader.MultiGetObjects(ctx, ids)
		if err != nil {
			return nil, internal(err)
		}
		return out, nil

	case MethodGetOwnedObjects:
		var (
			owner ledger.Address
			query ownedObjectsQuery
			q     ledger.OwnedObjectsQuery
			limit *int
		)
		if e := param(req, 0, &owner); e != nil {
			return nil, e
		}
		if e := optParam(req, 1, &query); e != nil {
			return nil, e
		}
		if e := optParam(req, 2, &q.Cursor); e != nil {
			return nil, e
		}
		if e := optParam(req, 3, &limit); e != nil {
			return nil, e
		}
		q.Owner = owner
		if query.Filter != nil {
			if len(query.Filter.MatchAll) != 1 {
				return nil, &RPCError{Code: CodeInvalidParams, Message: "only a single StructType filter is supported"}
			}
			q.StructType = query.Filter.MatchAll[0].StructType
		}
		if limit != nil {
			q.Limit = *limit
		}
		out, err := h.reader.GetOwnedObjects(ctx, q)
		if err != nil {
			return nil, internal(err)
		}
		return out, nil

	case MethodExecuteTransaction:
		if h.writer == nil {
			return nil, &RPCError{Code: CodeMethodNotFound, Message: "endpoint is read-only"}
		}
		var (
			txB64 string
			sigs  []string
		)
		if e := param(req, 0, &txB64); e != nil {
			return nil, e
		}
		if e := param(req, 1, &sigs); e != nil {
			return nil, e
		}
		txBytes, err := base64.StdEncoding.DecodeString(txB64)
		if err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "transaction bytes are not base64"}
		}
		res, err := h.writer.ExecuteTransaction(ctx, txBytes, sigs)
		if err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
		}
		return toExecuteResponse(res), nil

	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}
