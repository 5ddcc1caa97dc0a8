package threshold

import (
	"encoding/json"
	"fmt"
)

// ObjectVersion is the EncryptedObject format version.
const ObjectVersion = 1

// EncryptedObject is the serialized output of Client.Encrypt.
type EncryptedObject struct {
	Version    int           `json:"version"`
	PackageID  string        `json:"packageId"`
	ID         string        `json:"id"`
	Threshold  int           `json:"threshold"`
	Shares     []SealedShare `json:"shares"`
	Nonce      []byte        `json:"nonce"`
	Ciphertext []byte        `json:"ciphertext"`
}

// SealedShare is one key share, HPKE-sealed to Server.
type SealedShare struct {
	Server string `json:"server"`
	Enc    []byte `json:"enc"`
	Sealed []byte `json:"sealed"`
}

// ParseEncryptedObject decodes and sanity-checks b.
func ParseEncryptedObject(b []byte) (EncryptedObject, Identifier, error) {
	var obj EncryptedObject
	if err := json.Unmarshal(b, &obj); err != nil {
		return EncryptedObject{}, nil, fmt.Errorf("%w: %v", ErrMalformedObject, err)
	}
	if obj.Version != ObjectVersion {
		return EncryptedObject{}, nil, fmt.Errorf("%w: version %d", ErrMalformedObject, obj.Version)
	}
	id, err := ParseIdentifier(obj.ID)
	if err != nil {
		return EncryptedObject{}, nil, fmt.Errorf("%w: %v", ErrMalformedObject, err)
	}
	if obj.Threshold < 1 || obj.Threshold > len(obj.Shares) {
		return EncryptedObject{}, nil, fmt.Errorf("%w: threshold %d of %d shares", ErrMalformedObject, obj.Threshold, len(obj.Shares))
	}
	if len(obj.Ciphertext) == 0 {
		return EncryptedObject{}, nil, fmt.Errorf("%w: empty ciphertext", ErrMalformedObject)
	}
	return obj, id, nil
}
