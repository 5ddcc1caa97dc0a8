// Package threshold encrypts content so that a quorum of independent key
// servers must cooperate to decrypt it.
//
// Content is sealed under a random data key. The key is split with Shamir
// secret sharing, one share per key server, and each share is HPKE-sealed to
// its server. A reader asks servers for their shares; a server releases its
// share only if its policy approves the reader for the content identifier.
package threshold

import (
	"context"
	"errors"

	"github.com/cloudflare/circl/hpke"

	"onigiri.dev/shake/ledger"
)

// DefaultThreshold is the number of key servers that must cooperate.
const DefaultThreshold = 2

var (
	// ErrThresholdUnmet means fewer than Threshold shares could be collected.
	ErrThresholdUnmet = errors.New("threshold: not enough key server shares")
	// ErrDenied is returned by a key server whose policy rejects the reader.
	ErrDenied = errors.New("threshold: access denied by key server policy")
	// ErrMalformedObject means the ciphertext is not an EncryptedObject.
	ErrMalformedObject = errors.New("threshold: malformed encrypted object")
)

// Suite is the HPKE suite shares are sealed with.
var Suite = hpke.NewSuite(hpke.KEM_X25519_HKDF_SHA256, hpke.KDF_HKDF_SHA256, hpke.AEAD_ChaCha20Poly1305)

// Request is one encryption job.
type Request struct {
	Threshold int
	PackageID string
	ID        Identifier
	Data      []byte
}

type Encryptor interface {
	// Encrypt returns an opaque encrypted object.
	Encrypt(ctx context.Context, req Request) ([]byte, error)
}

type Decryptor interface {
	// Decrypt opens an encrypted object on behalf of reader.
	Decrypt(ctx context.Context, ciphertext []byte, reader ledger.Signer) ([]byte, error)
}

// KeyServer is one share holder.
type KeyServer interface {
	ObjectID() string
	// PublicKey is the server's marshaled HPKE public key.
	PublicKey() []byte
	// ReleaseShare opens the server's sealed share if its policy approves
	// req.Requester. It fails with ErrDenied otherwise.
	ReleaseShare(ctx context.Context, req ShareRequest) ([]byte, error)
}

// ShareRequest asks a key server for its share of one encrypted object.
type ShareRequest struct {
	PackageID string
	ID        Identifier
	Requester ledger.Address
	// Signature is the requester's serialized signature over
	// RequestMessage(PackageID, ID).
	Signature string
	Share     SealedShare
}

// RequestMessage is what a reader signs to ask for shares.
func RequestMessage(packageID string, id Identifier) []byte {
	msg := []byte("shake-threshold-request-v1\x00")
	msg = append(msg, packageID...)
	msg = append(msg, 0)
	return append(msg, id...)
}

// ShareInfo is the HPKE info binding a sealed share to its content.
func ShareInfo(packageID string, id Identifier) []byte {
	info := []byte("shake-threshold-share-v1\x00")
	info = append(info, packageID...)
	info = append(info, 0)
	return append(info, id...)
}
