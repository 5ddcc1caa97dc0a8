package aggregator

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ipfs/go-cid"
	"github.com/matryer/way"

	"onigiri.dev/shake/cidutil"
	"onigiri.dev/shake/storage"
)

// DefaultMaxBlobBytes caps uploads accepted by NewHandler.
const DefaultMaxBlobBytes = 10 << 20

// HandlerOptions tunes NewHandler.
type HandlerOptions struct {
	MaxBlobBytes int64
	Logger       *slog.Logger
}

// NewHandler serves the publisher and aggregator routes from store.
func NewHandler(store storage.Store, opts HandlerOptions) http.Handler {
	if opts.MaxBlobBytes <= 0 {
		opts.MaxBlobBytes = DefaultMaxBlobBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &handler{store: store, opts: opts}

	r := way.NewRouter()
	r.HandleFunc(http.MethodPut, blobsPath, h.put)
	r.HandleFunc(http.MethodGet, blobsPath+"/:id", h.get)
	r.HandleFunc(http.MethodHead, blobsPath+"/:id", h.get)
	return r
}

type handler struct {
	store storage.Store
	opts  HandlerOptions
}

func (h *handler) put(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBlobBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "blob too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	existed := h.store.Has(ctx, blobIDOf(data))
	id, err := h.store.Put(ctx, data)
	if err != nil {
		h.opts.Logger.Error("blob upload failed", "err", err)
		writeStoreError(w, err)
		return
	}
	var out storeResponse
	if existed {
		out.AlreadyCertified = &alreadyCertified{BlobID: id.String()}
	} else {
		out.NewlyCreated = &newlyCreated{BlobObject: blobObject{BlobID: id.String(), Size: int64(len(data))}}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := cid.Decode(way.Param(r.Context(), "id"))
	if err != nil || !id.Defined() {
		http.Error(w, storage.ErrInvalidCID.Error(), http.StatusBadRequest)
		return
	}
	b, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("ETag", `"`+id.String()+`"`)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(b)
}

func blobIDOf(data []byte) cid.Cid {
	id, err := cidutil.BlobID(data)
	if err != nil {
		return cid.Undef
	}
	return id
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, storage.ErrInvalidCID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrImmutable):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
