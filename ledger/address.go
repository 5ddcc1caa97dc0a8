package ledger

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte length of addresses and object ids.
const AddressLength = 32

// Address is a normalized account address: "0x" followed by 64 lowercase hex
// digits. Object ids use the same form.
type Address string

// ParseAddress accepts "0x"-prefixed hex of up to 64 digits and left-pads it
// to the canonical length, so "0x6" and "0x000…006" compare equal.
func ParseAddress(s string) (Address, error) {
	norm, err := normalizeHex(s)
	if err != nil {
		return "", err
	}
	return Address(norm), nil
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// NormalizeID normalizes an object id the same way ParseAddress does.
func NormalizeID(s string) (string, error) {
	return normalizeHex(s)
}

func (a Address) String() string { return string(a) }

// Bytes returns the raw address bytes.
func (a Address) Bytes() []byte {
	b, err := hex.DecodeString(strings.TrimPrefix(string(a), "0x"))
	if err != nil {
		return nil
	}
	return b
}

func normalizeHex(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", fmt.Errorf("ledger: address %q missing 0x prefix", s)
	}
	h := strings.ToLower(s[2:])
	if h == "" || len(h) > 2*AddressLength {
		return "", fmt.Errorf("ledger: address %q has invalid length", s)
	}
	for _, c := range h {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("ledger: address %q is not hex", s)
		}
	}
	return "0x" + strings.Repeat("0", 2*AddressLength-len(h)) + h, nil
}

// AddressFromBytes formats raw bytes as an Address. b must be AddressLength long.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return "", fmt.Errorf("ledger: address must be %d bytes, got %d", AddressLength, len(b))
	}
	return Address("0x" + hex.EncodeToString(b)), nil
}
