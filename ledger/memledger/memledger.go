// Package memledger is an in-process object ledger.
//
// It serves ledger.Reader and ledger.Writer from memory: transactions are
// signature-checked, their Move calls dispatched to registered Handlers, and
// every command of a transaction is applied atomically. It exists for tests
// and local development; it has no consensus, gas or persistence.
package memledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"onigiri.dev/shake/keys"
	"onigiri.dev/shake/ledger"
)

// DefaultPageSize is the owned-objects page size when a query sets no limit.
const DefaultPageSize = 50

var (
	ErrInvalidSignature = errors.New("memledger: invalid transaction signature")
	ErrUnknownObject    = errors.New("memledger: unknown object")
)

// Object is a stored Move object. Fields is the JSON shape served to readers
// and must not be modified after it is handed to the ledger.
type Object struct {
	ID      string
	Type    string
	Owner   ledger.Owner
	Fields  map[string]any
	Version uint64

	seq uint64
}

// Handler executes one Move call inside a transaction.
type Handler func(tx *Tx, call ledger.MoveCall) error

type Ledger struct {
	// Logger receives one debug line per executed transaction.
	Logger *slog.Logger

	mu       sync.RWMutex
	objects  map[string]Object
	deleted  map[string]uint64
	handlers map[string]Handler
	now      func() time.Time
	version  uint64
	seq      uint64
}

var (
	_ ledger.Reader = (*Ledger)(nil)
	_ ledger.Writer = (*Ledger)(nil)
)

// New returns an empty ledger holding only the shared clock object.
func New() *Ledger {
	l := &Ledger{
		objects:  map[string]Object{},
		deleted:  map[string]uint64{},
		handlers: map[string]Handler{},
		now:      time.Now,
	}
	l.insert(Object{
		ID:     ledger.ClockObjectID,
		Type:   "0x2::clock::Clock",
		Owner:  ledger.SharedOwner(1),
		Fields: map[string]any{"id": UID(ledger.ClockObjectID)},
	})
	return l
}

// SetClock replaces the time source used for transaction timestamps.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Ledger) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Register binds target ("package::module::function") to h.
func (l *Ledger) Register(target string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[target] = h
}

// Put stores obj outside any transaction, assigning an id when empty.
func (l *Ledger) Put(obj Object) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if obj.ID == "" {
		obj.ID = l.freshID(fmt.Sprintf("put:%d", l.seq))
	} else if norm, err := ledger.NormalizeID(obj.ID); err == nil {
		obj.ID = norm
	}
	l.insert(obj)
	return obj.ID
}

// DeleteObject removes id as if a transaction had deleted it.
func (l *Ledger) DeleteObject(id string) error {
	id, err := ledger.NormalizeID(id)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	obj, ok := l.objects[id]
	if !ok {
		return fmt.Errorf("%w %s", ErrUnknownObject, id)
	}
	l.version++
	delete(l.objects, id)
	l.deleted[id] = obj.Version + 1
	return nil
}

// Object returns a stored object by id.
func (l *Ledger) Object(id string) (Object, bool) {
	id, err := ledger.NormalizeID(id)
	if err != nil {
		return Object{}, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	obj, ok := l.objects[id]
	return obj, ok
}

func (l *Ledger) insert(obj Object) {
	if obj.Fields == nil {
		obj.Fields = map[string]any{}
	}
	obj.Fields["id"] = UID(obj.ID)
	l.version++
	if obj.Version == 0 {
		obj.Version = l.version
	}
	l.seq++
	obj.seq = l.seq
	l.objects[obj.ID] = obj
	delete(l.deleted, obj.ID)
}

func (l *Ledger) freshID(seed string) string {
	sum := blake2b.Sum256([]byte(seed))
	return "0x" + hex.EncodeToString(sum[:])
}

func (l *Ledger) GetObject(ctx context.Context, id string) (ledger.ObjectResponse, error) {
	if err := ctx.Err(); err != nil {
		return ledger.ObjectResponse{}, err
	}
	norm, err := ledger.NormalizeID(id)
	if err != nil {
		return ledger.MissingObject(id), nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.responseLocked(norm), nil
}

func (l *Ledger) responseLocked(id string) ledger.ObjectResponse {
	if obj, ok := l.objects[id]; ok {
		return obj.Response()
	}
	if v, ok := l.deleted[id]; ok {
		return ledger.ObjectResponse{Error: &ledger.ObjectError{
			Code:     ledger.ErrCodeDeleted,
			ObjectID: id,
			Version:  strconv.FormatUint(v, 10),
		}}
	}
	return ledger.MissingObject(id)
}

func (l *Ledger) MultiGetObjects(ctx context.Context, ids []string) ([]ledger.ObjectResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ids) > ledger.MaxMultiGet {
		return nil, fmt.Errorf("memledger: multi-get of %d ids exceeds %d", len(ids), ledger.MaxMultiGet)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ledger.ObjectResponse, len(ids))
	for i, id := range ids {
		norm, err := ledger.NormalizeID(id)
		if err != nil {
			out[i] = ledger.MissingObject(id)
			continue
		}
		out[i] = l.responseLocked(norm)
	}
	return out, nil
}

func (l *Ledger) GetOwnedObjects(ctx context.Context, q ledger.OwnedObjectsQuery) (ledger.OwnedObjectsPage, error) {
	if err := ctx.Err(); err != nil {
		return ledger.OwnedObjectsPage{}, err
	}
	owner, err := ledger.ParseAddress(string(q.Owner))
	if err != nil {
		return ledger.OwnedObjectsPage{}, err
	}
	limit := q.Limit
	if limit <= 0 || limit > DefaultPageSize {
		limit = DefaultPageSize
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	var matches []Object
	for _, obj := range l.objects {
		if obj.Owner.Kind != ledger.OwnerAddress || obj.Owner.Addr != owner {
			continue
		}
		if q.StructType != "" && obj.Type != q.StructType {
			continue
		}
		matches = append(matches, obj)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].seq < matches[j].seq })

	start := 0
	if q.Cursor != nil {
		start = -1
		for i, obj := range matches {
			if obj.ID == *q.Cursor {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return ledger.OwnedObjectsPage{}, fmt.Errorf("memledger: unknown cursor %q", *q.Cursor)
		}
	}
	end := start + limit
	if end > len(matches) {
		end = len(matches)
	}
	page := ledger.OwnedObjectsPage{Data: make([]ledger.ObjectResponse, 0, end-start)}
	for _, obj := range matches[start:end] {
		page.Data = append(page.Data, obj.Response())
	}
	if end < len(matches) {
		last := matches[end-1].ID
		page.NextCursor = &last
		page.HasNextPage = true
	}
	return page, nil
}

// ExecuteTransaction verifies the sender's signature and applies every Move
// call, or none of them.
func (l *Ledger) ExecuteTransaction(ctx context.Context, txBytes []byte, signatures []string) (ledger.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return ledger.ExecutionResult{}, err
	}
	tx, err := ledger.ParseTransaction(txBytes)
	if err != nil {
		return ledger.ExecutionResult{}, err
	}
	if len(signatures) != 1 {
		return ledger.ExecutionResult{}, fmt.Errorf("%w: expected 1 signature, got %d", ErrInvalidSignature, len(signatures))
	}
	digest := ledger.IntentDigest(txBytes)
	signer, err := keys.Verify(signatures[0], digest[:])
	if err != nil {
		return ledger.ExecutionResult{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	sender, err := ledger.ParseAddress(string(tx.Sender))
	if err != nil {
		return ledger.ExecutionResult{}, err
	}
	if signer != sender {
		return ledger.ExecutionResult{}, fmt.Errorf("%w: signed by %s, sender is %s", ErrInvalidSignature, signer, sender)
	}

	txDigest := blake2b.Sum256(txBytes)
	res := ledger.ExecutionResult{Digest: hex.EncodeToString(txDigest[:])}

	l.mu.Lock()
	defer l.mu.Unlock()

	st := &Tx{l: l, sender: sender, digest: res.Digest, now: l.now(), staged: map[string]*stagedObject{}}
	for i, call := range tx.Commands {
		h, ok := l.handlers[call.Target()]
		if !ok {
			res.Status = ledger.ExecutionStatus{Status: ledger.StatusFailure, Error: fmt.Sprintf("command %d: function %s not found", i, call.Target())}
			l.logger().Debug("memledger: transaction failed", "digest", res.Digest, "error", res.Status.Error)
			return res, nil
		}
		if err := h(st, call); err != nil {
			res.Status = ledger.ExecutionStatus{Status: ledger.StatusFailure, Error: fmt.Sprintf("command %d: %v", i, err)}
			l.logger().Debug("memledger: transaction failed", "digest", res.Digest, "error", res.Status.Error)
			return res, nil
		}
	}

	res.Status = ledger.ExecutionStatus{Status: ledger.StatusSuccess}
	res.ObjectChanges = st.commit()
	l.logger().Debug("memledger: transaction executed", "digest", res.Digest, "sender", sender, "changes", len(res.ObjectChanges))
	return res, nil
}

// Response renders obj the way the read service returns it.
func (o Object) Response() ledger.ObjectResponse {
	fields, err := json.Marshal(o.Fields)
	if err != nil {
		return ledger.ObjectResponse{Error: &ledger.ObjectError{Code: "displayError", ObjectID: o.ID}}
	}
	owner, _ := json.Marshal(o.Owner)
	version := strconv.FormatUint(o.Version, 10)
	return ledger.ObjectResponse{Data: &ledger.ObjectData{
		ObjectID: o.ID,
		Version:  version,
		Digest:   o.digest(fields),
		Type:     o.Type,
		Owner:    owner,
		Content: &ledger.ObjectContent{
			DataType:          ledger.DataTypeMoveObject,
			Type:              o.Type,
			HasPublicTransfer: true,
			Fields:            fields,
		},
	}}
}

func (o Object) digest(fields []byte) string {
	h, _ := blake2b.New256(nil)
	_, _ = h.Write([]byte(o.ID))
	_, _ = h.Write([]byte(strconv.FormatUint(o.Version, 10)))
	_, _ = h.Write(fields)
	return hex.EncodeToString(h.Sum(nil))
}
