package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Object change kinds.
const (
	ChangeCreated = "created"
	ChangeMutated = "mutated"
	ChangeDeleted = "deleted"
)

// Execution statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ErrExecutionFailed is returned (wrapped) when a transaction was executed but
// aborted.
var ErrExecutionFailed = errors.New("ledger: transaction execution failed")

// Writer is the ledger write service.
type Writer interface {
	// ExecuteTransaction submits signed transaction bytes. A transaction that
	// executes but aborts is reported through ExecutionResult.Status, not err.
	ExecuteTransaction(ctx context.Context, txBytes []byte, signatures []string) (ExecutionResult, error)
}

type ExecutionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ObjectChange struct {
	Type       string          `json:"type"`
	Sender     Address         `json:"sender,omitempty"`
	ObjectID   string          `json:"objectId"`
	ObjectType string          `json:"objectType,omitempty"`
	Owner      json.RawMessage `json:"owner,omitempty"`
	Version    string          `json:"version,omitempty"`
	Digest     string          `json:"digest,omitempty"`
}

type ExecutionResult struct {
	Digest        string          `json:"digest"`
	Status        ExecutionStatus `json:"status"`
	ObjectChanges []ObjectChange  `json:"objectChanges"`
}

func (r ExecutionResult) Succeeded() bool { return r.Status.Status == StatusSuccess }

// Created returns the first created object of objectType.
func (r ExecutionResult) Created(objectType string) (ObjectChange, bool) {
	for _, c := range r.ObjectChanges {
		if c.Type == ChangeCreated && c.ObjectType == objectType {
			return c, true
		}
	}
	return ObjectChange{}, false
}

// Signer signs intent digests on behalf of one address.
type Signer interface {
	Address() Address
	// Sign returns the serialized signature over msg.
	Sign(msg []byte) (string, error)
}

// intentPrefix marks a transaction-data intent, version 0, for the ledger app.
var intentPrefix = [3]byte{0, 0, 0}

// IntentDigest is the message signers sign for txBytes.
func IntentDigest(txBytes []byte) [32]byte {
	msg := make([]byte, 0, len(intentPrefix)+len(txBytes))
	msg = append(msg, intentPrefix[:]...)
	msg = append(msg, txBytes...)
	return blake2b.Sum256(msg)
}

// SigningExecutor signs transactions with Signer and submits them to Writer.
type SigningExecutor struct {
	Signer Signer
	Writer Writer
}

// Execute sets the sender, signs and submits tx. An aborted transaction is
// returned together with an error wrapping ErrExecutionFailed.
func (e SigningExecutor) Execute(ctx context.Context, tx *Transaction) (ExecutionResult, error) {
	if e.Signer == nil || e.Writer == nil {
		return ExecutionResult{}, errors.New("ledger: SigningExecutor needs a Signer and a Writer")
	}
	tx.Sender = e.Signer.Address()
	b, err := tx.Bytes()
	if err != nil {
		return ExecutionResult{}, err
	}
	digest := IntentDigest(b)
	sig, err := e.Signer.Sign(digest[:])
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("ledger: sign: %w", err)
	}
	res, err := e.Writer.ExecuteTransaction(ctx, b, []string{sig})
	if err != nil {
		return ExecutionResult{}, err
	}
	if !res.Succeeded() {
		return res, fmt.Errorf("%w: %s", ErrExecutionFailed, res.Status.Error)
	}
	return res, nil
}
