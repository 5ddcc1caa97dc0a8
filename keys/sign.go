package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/blake2b"

	"onigiri.dev/shake/ledger"
)

// Scheme is the signature scheme flag byte that prefixes serialized
// signatures and address preimages.
type Scheme byte

const (
	SchemeEd25519    Scheme = 0x00
	SchemeDilithium3 Scheme = 0x05
)

func (s Scheme) String() string {
	switch s {
	case SchemeEd25519:
		return "ed25519"
	case SchemeDilithium3:
		return "dilithium3"
	default:
		return fmt.Sprintf("scheme(0x%02x)", byte(s))
	}
}

// ParseScheme accepts the String form of a scheme.
func ParseScheme(name string) (Scheme, error) {
	switch name {
	case "", "ed25519":
		return SchemeEd25519, nil
	case "dilithium3":
		return SchemeDilithium3, nil
	default:
		return 0, fmt.Errorf("unsupported signature scheme %q", name)
	}
}

func (s Scheme) sizes() (sig, pub int, ok bool) {
	switch s {
	case SchemeEd25519:
		return ed25519.SignatureSize, ed25519.PublicKeySize, true
	case SchemeDilithium3:
		return mode3.SignatureSize, mode3.PublicKeySize, true
	default:
		return 0, 0, false
	}
}

// Address derives the ledger address of a public key:
// blake2b-256(flag || pubkey).
func Address(s Scheme, pub []byte) ledger.Address {
	pre := make([]byte, 0, 1+len(pub))
	pre = append(pre, byte(s))
	pre = append(pre, pub...)
	sum := blake2b.Sum256(pre)
	a, _ := ledger.AddressFromBytes(sum[:])
	return a
}

func serialize(s Scheme, sig, pub []byte) string {
	out := make([]byte, 0, 1+len(sig)+len(pub))
	out = append(out, byte(s))
	out = append(out, sig...)
	out = append(out, pub...)
	return base64.StdEncoding.EncodeToString(out)
}

// Ed25519Signer signs with an Ed25519 key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	addr ledger.Address
}

var _ ledger.Signer = (*Ed25519Signer)(nil)

func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519Signer{priv: priv, addr: Address(SchemeEd25519, pub)}, nil
}

func (s *Ed25519Signer) Address() ledger.Address { return s.addr }

func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}

// Sign returns base64(flag || signature || pubkey).
func (s *Ed25519Signer) Sign(msg []byte) (string, error) {
	sig := ed25519.Sign(s.priv, msg)
	return serialize(SchemeEd25519, sig, s.PublicKey()), nil
}

// Dilithium3Signer signs with a post-quantum Dilithium3 key.
type Dilithium3Signer struct {
	pk   *mode3.PublicKey
	sk   *mode3.PrivateKey
	addr ledger.Address
}

var _ ledger.Signer = (*Dilithium3Signer)(nil)

// NewDilithium3Signer expands a 32-byte seed into a Dilithium3 key pair.
func NewDilithium3Signer(seed []byte) (*Dilithium3Signer, error) {
	if len(seed) != mode3.SeedSize {
		return nil, fmt.Errorf("dilithium3 seed must be %d bytes, got %d", mode3.SeedSize, len(seed))
	}
	var s [mode3.SeedSize]byte
	copy(s[:], seed)
	pk, sk := mode3.NewKeyFromSeed(&s)
	return &Dilithium3Signer{pk: pk, sk: sk, addr: Address(SchemeDilithium3, pk.Bytes())}, nil
}

// GenerateDilithium3Signer returns a signer for a fresh random key pair.
func GenerateDilithium3Signer(rand io.Reader) (*Dilithium3Signer, error) {
	pk, sk, err := mode3.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return &Dilithium3Signer{pk: pk, sk: sk, addr: Address(SchemeDilithium3, pk.Bytes())}, nil
}

func (s *Dilithium3Signer) Address() ledger.Address { return s.addr }

func (s *Dilithium3Signer) Sign(msg []byte) (string, error) {
	if s.sk == nil {
		return "", errors.New("missing private key")
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.sk, msg, sig)
	return serialize(SchemeDilithium3, sig, s.pk.Bytes()), nil
}

// NewSigner builds a signer of the given scheme from a 32-byte seed.
func NewSigner(s Scheme, seed []byte) (ledger.Signer, error) {
	switch s {
	case SchemeEd25519:
		return NewEd25519Signer(seed)
	case SchemeDilithium3:
		return NewDilithium3Signer(seed)
	default:
		return nil, fmt.Errorf("unsupported signature scheme %s", s)
	}
}
