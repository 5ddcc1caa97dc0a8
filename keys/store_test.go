package keys

import (
	"encoding/hex"
	"testing"
)

func TestKeyStore_RootAndAccounts(t *testing.T) {
	ks, err := CreateKeyStore(t.TempDir())
	if err != nil {
		t.Fatalf("CreateKeyStore: %v", err)
	}

	rootAddr, _, err := ks.InitializeRootKey("alice", seed(5), SchemeEd25519, false)
	if err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	if _, _, err := ks.InitializeRootKey("alice", seed(6), SchemeEd25519, false); err == nil {
		t.Fatalf("expected error when overwriting without overwrite=true")
	}

	acctAddr, _, err := ks.DeriveAccount("alice", "writer", SchemeEd25519, false)
	if err != nil {
		t.Fatalf("DeriveAccount: %v", err)
	}
	if acctAddr == rootAddr {
		t.Fatalf("account must not share the root address")
	}

	signer, err := ks.Signer("alice", "writer", SchemeEd25519)
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}
	if signer.Address() != acctAddr {
		t.Fatalf("loaded signer address %s want %s", signer.Address(), acctAddr)
	}

	list, err := ks.ListKeys()
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(list) != 1 || list[0].Name != "alice" || len(list[0].Accounts) != 1 || list[0].Accounts[0] != "writer" {
		t.Fatalf("unexpected listing: %+v", list)
	}
}

func TestKeyStore_LoadSeedPrecedence(t *testing.T) {
	ks := &KeyStore{Directory: t.TempDir()}
	if _, err := ks.LoadSeed("", "", "", ""); err == nil {
		t.Fatalf("expected error with no source")
	}
	got, err := ks.LoadSeed("0x"+hex.EncodeToString(seed(1)), "ignored", "", "")
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if string(got) != string(seed(1)) {
		t.Fatalf("hex seed not used")
	}
	if _, err := ks.LoadSeed("", "../escape", "", ""); err == nil {
		t.Fatalf("expected invalid name error")
	}
}
