package keys

import (
	"crypto/ed25519"
	"testing"
)

func TestDeriveAccountSeedDeterministic(t *testing.T) {
	root := make([]byte, ed25519.SeedSize)
	for i := range root {
		root[i] = byte(i)
	}

	a, err := DeriveAccountSeed(root, "writer")
	if err != nil {
		t.Fatalf("DeriveAccountSeed: %v", err)
	}
	b, err := DeriveAccountSeed(root, "writer")
	if err != nil {
		t.Fatalf("DeriveAccountSeed: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected deterministic derivation")
	}

	c, err := DeriveAccountSeed(root, "reader")
	if err != nil {
		t.Fatalf("DeriveAccountSeed: %v", err)
	}
	if string(a) == string(c) {
		t.Fatalf("expected different accounts to derive different seeds")
	}
}

func TestDeriveAccountSeedRejectsBadInput(t *testing.T) {
	if _, err := DeriveAccountSeed([]byte("short"), "writer"); err == nil {
		t.Fatalf("expected error for short root seed")
	}
	root := make([]byte, ed25519.SeedSize)
	if _, err := DeriveAccountSeed(root, "bad/name"); err == nil {
		t.Fatalf("expected error for invalid account name")
	}
}
