package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
)

// DeriveAccountSeed deterministically derives an account seed from a root seed.
//
// The same root and account name always give the same seed, so one backed-up
// root recovers every account.
func DeriveAccountSeed(rootSeed []byte, account string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckAccount(account); err != nil {
		return nil, err
	}

	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("shake-keys-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("account:"))
	_, _ = h.Write([]byte(account))
	sum := h.Sum(nil)
	if len(sum) < ed25519.SeedSize {
		return nil, errors.New("kdf output too short")
	}
	out := make([]byte, ed25519.SeedSize)
	copy(out, sum[:ed25519.SeedSize])
	return out, nil
}
