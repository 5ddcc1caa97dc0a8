package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"onigiri.dev/shake/ledger"
)

type deterministicReader struct{ b byte }

func (r *deterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
		r.b++
	}
	return len(p), nil
}

func seed(b byte) []byte {
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = b + byte(i)
	}
	return s
}

func TestEd25519Signer_VerifiesAndRecoversAddress(t *testing.T) {
	s, err := NewEd25519Signer(seed(1))
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	if !strings.HasPrefix(string(s.Address()), "0x") || len(s.Address()) != 66 {
		t.Fatalf("unexpected address %s", s.Address())
	}
	if s.Address() != Address(SchemeEd25519, s.PublicKey()) {
		t.Fatalf("address does not match public key")
	}

	digest := ledger.IntentDigest([]byte(`{"sender":"0x1"}`))
	sig, err := s.Sign(digest[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if raw[0] != byte(SchemeEd25519) || len(raw) != 1+ed25519.SignatureSize+ed25519.PublicKeySize {
		t.Fatalf("unexpected serialized layout (len %d)", len(raw))
	}

	addr, err := Verify(sig, digest[:])
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if addr != s.Address() {
		t.Fatalf("Verify address %s want %s", addr, s.Address())
	}

	other := ledger.IntentDigest([]byte("other"))
	if _, err := Verify(sig, other[:]); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestDilithium3Signer_Verifies(t *testing.T) {
	s, err := GenerateDilithium3Signer(&deterministicReader{})
	if err != nil {
		t.Fatalf("GenerateDilithium3Signer: %v", err)
	}
	msg := []byte("hello")
	sig, err := s.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	addr, err := Verify(sig, msg)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if addr != s.Address() {
		t.Fatalf("Verify address %s want %s", addr, s.Address())
	}

	fromSeed, err := NewDilithium3Signer(seed(9))
	if err != nil {
		t.Fatalf("NewDilithium3Signer: %v", err)
	}
	again, err := NewDilithium3Signer(seed(9))
	if err != nil {
		t.Fatalf("NewDilithium3Signer: %v", err)
	}
	if fromSeed.Address() != again.Address() {
		t.Fatalf("seeded dilithium3 keys must be deterministic")
	}
}

func TestSchemesGiveDistinctAddresses(t *testing.T) {
	ed, err := NewSigner(SchemeEd25519, seed(3))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	dl, err := NewSigner(SchemeDilithium3, seed(3))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	if ed.Address() == dl.Address() {
		t.Fatalf("different schemes must not share an address")
	}
}

func TestVerify_RejectsMalformed(t *testing.T) {
	cases := []string{
		"not base64!",
		"",
		base64.StdEncoding.EncodeToString([]byte{0x07, 1, 2, 3}),
		base64.StdEncoding.EncodeToString([]byte{0x00, 1, 2, 3}),
	}
	for _, c := range cases {
		if _, err := Verify(c, []byte("m")); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}
