package threshold_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"testing"

	"onigiri.dev/shake/keys"
	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/threshold"
	"onigiri.dev/shake/threshold/keyserver"
)

const (
	packageID = "0x00000000000000000000000000000000000000000000000000000000000000b1"
	policyID  = "0x00000000000000000000000000000000000000000000000000000000000000a1"
)

func reader(t *testing.T) *keys.Ed25519Signer {
	t.Helper()
	seed := make([]byte, 32)
	seed[31] = 9
	s, err := keys.NewEd25519Signer(seed)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	return s
}

func servers(t *testing.T, policies ...keyserver.Policy) []threshold.KeyServer {
	t.Helper()
	out := make([]threshold.KeyServer, 0, len(policies))
	for i, p := range policies {
		s, err := keyserver.New("0x5e"+string(rune('0'+i)), p, nil)
		if err != nil {
			t.Fatalf("keyserver.New: %v", err)
		}
		out = append(out, s)
	}
	return out
}

var deny = keyserver.PolicyFunc(func(context.Context, string, threshold.Identifier, ledger.Address) error {
	return threshold.ErrDenied
})

func TestDeriveIdentifier(t *testing.T) {
	a, err := threshold.DeriveIdentifier(policyID, rand.Reader)
	if err != nil {
		t.Fatalf("DeriveIdentifier: %v", err)
	}
	b, err := threshold.DeriveIdentifier(policyID, rand.Reader)
	if err != nil {
		t.Fatalf("DeriveIdentifier: %v", err)
	}
	if len(a) != ledger.AddressLength+threshold.NonceSize {
		t.Fatalf("identifier length %d", len(a))
	}
	if bytes.Equal(a, b) {
		t.Fatalf("identifiers under one policy must differ")
	}
	if string(a.PolicyID()) != policyID || !bytes.HasPrefix(a, ledger.Address(policyID).Bytes()) {
		t.Fatalf("policy prefix lost: %s", a)
	}
	if len(a.Nonce()) != threshold.NonceSize {
		t.Fatalf("nonce length %d", len(a.Nonce()))
	}
	parsed, err := threshold.ParseIdentifier(a.String())
	if err != nil || !bytes.Equal(parsed, a) {
		t.Fatalf("ParseIdentifier round trip: %v", err)
	}
	if _, err := threshold.DeriveIdentifier("policy", rand.Reader); err == nil {
		t.Fatalf("expected error for malformed policy id")
	}
}

func TestEncryptDecrypt_TwoOfThree(t *testing.T) {
	ctx := context.Background()
	allow := keyserver.AllowAll
	c := &threshold.Client{Servers: servers(t, allow, allow, allow)}
	id, err := threshold.DeriveIdentifier(policyID, rand.Reader)
	if err != nil {
		t.Fatalf("DeriveIdentifier: %v", err)
	}
	plain := []byte("the secret recipe")

	ct, err := c.Encrypt(ctx, threshold.Request{Threshold: threshold.DefaultThreshold, PackageID: packageID, ID: id, Data: plain})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(ct, plain) {
		t.Fatalf("ciphertext leaks plaintext")
	}

	got, err := c.Decrypt(ctx, ct, reader(t))
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("Decrypt = %q", got)
	}
}

func TestDecrypt_ToleratesOneDenialButNotTwo(t *testing.T) {
	ctx := context.Background()
	allow := keyserver.AllowAll
	id, _ := threshold.DeriveIdentifier(policyID, rand.Reader)

	oneDown := &threshold.Client{Servers: servers(t, deny, allow, allow)}
	ct, err := oneDown.Encrypt(ctx, threshold.Request{Threshold: 2, PackageID: packageID, ID: id, Data: []byte("x")})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := oneDown.Decrypt(ctx, ct, reader(t)); err != nil {
		t.Fatalf("Decrypt with one denial: %v", err)
	}

	twoDown := &threshold.Client{Servers: servers(t, deny, deny, allow)}
	ct, err = twoDown.Encrypt(ctx, threshold.Request{Threshold: 2, PackageID: packageID, ID: id, Data: []byte("x")})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	_, err = twoDown.Decrypt(ctx, ct, reader(t))
	if !errors.Is(err, threshold.ErrThresholdUnmet) || !errors.Is(err, threshold.ErrDenied) {
		t.Fatalf("expected ErrThresholdUnmet and ErrDenied, got %v", err)
	}
}

func TestEncrypt_RejectsBadThreshold(t *testing.T) {
	c := &threshold.Client{Servers: servers(t, keyserver.AllowAll)}
	id, _ := threshold.DeriveIdentifier(policyID, rand.Reader)
	for _, th := range []int{0, 2} {
		if _, err := c.Encrypt(context.Background(), threshold.Request{Threshold: th, PackageID: packageID, ID: id, Data: []byte("x")}); err == nil {
			t.Fatalf("expected error for threshold %d with one server", th)
		}
	}
}

func TestDecrypt_MalformedObject(t *testing.T) {
	c := &threshold.Client{Servers: servers(t, keyserver.AllowAll)}
	for _, in := range []string{"plain text", `{"version":9}`, `{"version":1,"id":"0x00","threshold":1}`} {
		_, err := c.Decrypt(context.Background(), []byte(in), reader(t))
		if !errors.Is(err, threshold.ErrMalformedObject) {
			t.Fatalf("%s: expected ErrMalformedObject, got %v", strings.TrimSpace(in), err)
		}
	}
}
