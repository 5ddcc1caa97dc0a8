package decode

import (
	"bytes"
	"encoding/json"

	"onigiri.dev/shake/ledger"
)

// Owner extracts the owner of a present object. Anything unreadable is
// ledger.OwnerUnknown.
func Owner(resp ledger.ObjectResponse) ledger.Owner {
	if resp.Data == nil {
		return ledger.Owner{}
	}
	return ParseOwner(resp.Data.Owner)
}

// ParseOwner decodes the fullnode owner encoding.
func ParseOwner(raw json.RawMessage) ledger.Owner {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ledger.Owner{}
	}

	var tag string
	if err := json.Unmarshal(raw, &tag); err == nil {
		if tag == "Immutable" {
			return ledger.ImmutableOwner()
		}
		return ledger.Owner{}
	}

	var obj struct {
		AddressOwner *string `json:"AddressOwner"`
		ObjectOwner  *string `json:"ObjectOwner"`
		Shared       *struct {
			InitialSharedVersion json.RawMessage `json:"initial_shared_version"`
		} `json:"Shared"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ledger.Owner{}
	}
	switch {
	case obj.AddressOwner != nil:
		if a, err := ledger.ParseAddress(*obj.AddressOwner); err == nil {
			return ledger.AddressOwner(a)
		}
	case obj.ObjectOwner != nil:
		if a, err := ledger.ParseAddress(*obj.ObjectOwner); err == nil {
			return ledger.ObjectOwner(a)
		}
	case obj.Shared != nil:
		v, err := toUint64(jsonScalar(obj.Shared.InitialSharedVersion))
		if err == nil {
			return ledger.SharedOwner(v)
		}
	}
	return ledger.Owner{}
}

func jsonScalar(raw json.RawMessage) any {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}
