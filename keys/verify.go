package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"onigiri.dev/shake/ledger"
)

var ErrBadSignature = errors.New("keys: signature verification failed")

// Verify checks a serialized signature over msg and returns the signer's
// address.
func Verify(serialized string, msg []byte) (ledger.Address, error) {
	raw, err := base64.StdEncoding.DecodeString(serialized)
	if err != nil {
		return "", fmt.Errorf("keys: signature is not base64: %w", err)
	}
	if len(raw) < 1 {
		return "", errors.New("keys: empty signature")
	}
	scheme := Scheme(raw[0])
	sigLen, pubLen, ok := scheme.sizes()
	if !ok {
		return "", fmt.Errorf("keys: unsupported signature scheme 0x%02x", raw[0])
	}
	if len(raw) != 1+sigLen+pubLen {
		return "", fmt.Errorf("keys: %s signature has length %d, want %d", scheme, len(raw), 1+sigLen+pubLen)
	}
	sig := raw[1 : 1+sigLen]
	pub := raw[1+sigLen:]

	switch scheme {
	case SchemeEd25519:
		if !ed25519.Verify(ed25519.PublicKey(pub), msg, sig) {
			return "", ErrBadSignature
		}
	case SchemeDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return "", fmt.Errorf("keys: dilithium3 public key: %w", err)
		}
		if !mode3.Verify(&pk, msg, sig) {
			return "", ErrBadSignature
		}
	}
	return Address(scheme, pub), nil
}
