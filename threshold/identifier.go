package threshold

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"onigiri.dev/shake/ledger"
)

// NonceSize is the length of the random suffix of an Identifier.
const NonceSize = 5

// Identifier names one encrypted content item: the policy object's id bytes
// followed by a random nonce. Key servers gate decryption per Identifier.
type Identifier []byte

// DeriveIdentifier returns a fresh identifier under policyID. Each call draws
// a new nonce, so posts sharing a policy object never share an identifier.
func DeriveIdentifier(policyID string, rand io.Reader) (Identifier, error) {
	policy, err := ledger.ParseAddress(policyID)
	if err != nil {
		return nil, fmt.Errorf("threshold: policy id: %w", err)
	}
	id := make([]byte, 0, ledger.AddressLength+NonceSize)
	id = append(id, policy.Bytes()...)
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand, nonce); err != nil {
		return nil, fmt.Errorf("threshold: nonce: %w", err)
	}
	return append(id, nonce...), nil
}

// ParseIdentifier decodes the String form.
func ParseIdentifier(s string) (Identifier, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("threshold: identifier: %w", err)
	}
	if len(b) != ledger.AddressLength+NonceSize {
		return nil, fmt.Errorf("threshold: identifier has %d bytes, want %d", len(b), ledger.AddressLength+NonceSize)
	}
	return b, nil
}

func (id Identifier) String() string { return "0x" + hex.EncodeToString(id) }

func (id Identifier) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *Identifier) UnmarshalText(b []byte) error {
	parsed, err := ParseIdentifier(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// PolicyID is the policy object the identifier was derived under.
func (id Identifier) PolicyID() ledger.Address {
	if len(id) < ledger.AddressLength {
		return ""
	}
	a, _ := ledger.AddressFromBytes(id[:ledger.AddressLength])
	return a
}

func (id Identifier) Nonce() []byte {
	if len(id) < ledger.AddressLength {
		return nil
	}
	return id[ledger.AddressLength:]
}
