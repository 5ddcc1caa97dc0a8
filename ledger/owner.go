package ledger

import (
	"encoding/json"
	"strconv"
)

type OwnerKind uint8

const (
	// OwnerUnknown is an owner that could not be read. It never carries an
	// address and never compares equal to one.
	OwnerUnknown OwnerKind = iota
	OwnerAddress
	OwnerObject
	OwnerShared
	OwnerImmutable
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerAddress:
		return "AddressOwner"
	case OwnerObject:
		return "ObjectOwner"
	case OwnerShared:
		return "Shared"
	case OwnerImmutable:
		return "Immutable"
	default:
		return "Unknown"
	}
}

// Owner is the ownership of a ledger object.
type Owner struct {
	Kind OwnerKind
	// Addr is set for OwnerAddress and OwnerObject.
	Addr Address
	// InitialSharedVersion is set for OwnerShared.
	InitialSharedVersion uint64
}

func AddressOwner(a Address) Owner { return Owner{Kind: OwnerAddress, Addr: a} }

func ObjectOwner(id Address) Owner { return Owner{Kind: OwnerObject, Addr: id} }

func SharedOwner(initialVersion uint64) Owner {
	return Owner{Kind: OwnerShared, InitialSharedVersion: initialVersion}
}

func ImmutableOwner() Owner { return Owner{Kind: OwnerImmutable} }

// Address returns the owning address for address- and object-owned objects.
func (o Owner) Address() (Address, bool) {
	switch o.Kind {
	case OwnerAddress, OwnerObject:
		if o.Addr == "" {
			return "", false
		}
		return o.Addr, true
	default:
		return "", false
	}
}

// MarshalJSON writes the fullnode owner encoding.
func (o Owner) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case OwnerAddress:
		return json.Marshal(map[string]Address{"AddressOwner": o.Addr})
	case OwnerObject:
		return json.Marshal(map[string]Address{"ObjectOwner": o.Addr})
	case OwnerShared:
		return json.Marshal(map[string]any{"Shared": map[string]string{
			"initial_shared_version": strconv.FormatUint(o.InitialSharedVersion, 10),
		}})
	case OwnerImmutable:
		return json.Marshal("Immutable")
	default:
		return []byte("null"), nil
	}
}
