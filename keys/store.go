package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"onigiri.dev/shake/ledger"
)

// KeyStore is a local-first store of signing seeds.
//
// EXPERIMENTAL: this filesystem-backed storage surface is not part of the
// stable signing API and may change.
//
// Layout under Directory:
//
//	<name>/root.key               hex root seed
//	<name>/accounts/<account>.key hex account seed derived from root
//
// Seeds are scheme-agnostic; the scheme is chosen when a signer is built.
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Name     string
	Accounts []string
}

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".shake", "keys"), nil
}

func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootKeyPath(name string) string {
	return filepath.Join(ks.Directory, name, "root.key")
}

func (ks *KeyStore) accountKeyPath(name, account string) string {
	return filepath.Join(ks.Directory, name, "accounts", account+".key")
}

func checkIdent(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	for _, char := range s {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %s", char, kind)
	}
	return nil
}

func CheckKeyName(name string) error { return checkIdent("key name", name) }

func CheckAccount(account string) error { return checkIdent("account", account) }

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

func (ks *KeyStore) saveSeed(path string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

func (ks *KeyStore) loadSeed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

func addressFor(scheme Scheme, seed []byte) (ledger.Address, error) {
	s, err := NewSigner(scheme, seed)
	if err != nil {
		return "", err
	}
	return s.Address(), nil
}

// InitializeRootKey stores seed as name's root key and returns its address
// under scheme.
func (ks *KeyStore) InitializeRootKey(name string, seed []byte, scheme Scheme, overwrite bool) (ledger.Address, string, error) {
	if err := CheckKeyName(name); err != nil {
		return "", "", err
	}
	path := ks.rootKeyPath(name)
	if err := ks.saveSeed(path, seed, overwrite); err != nil {
		return "", "", err
	}
	addr, err := addressFor(scheme, seed)
	return addr, path, err
}

// DeriveAccount derives and stores an account seed from name's root key.
func (ks *KeyStore) DeriveAccount(name, account string, scheme Scheme, overwrite bool) (ledger.Address, string, error) {
	if err := CheckKeyName(name); err != nil {
		return "", "", err
	}
	if err := CheckAccount(account); err != nil {
		return "", "", err
	}
	rootSeed, err := ks.loadSeed(ks.rootKeyPath(name))
	if err != nil {
		return "", "", err
	}
	seed, err := DeriveAccountSeed(rootSeed, account)
	if err != nil {
		return "", "", err
	}
	path := ks.accountKeyPath(name, account)
	if err := ks.saveSeed(path, seed, overwrite); err != nil {
		return "", "", err
	}
	addr, err := addressFor(scheme, seed)
	return addr, path, err
}

// LoadSeed resolves a seed from, in order: a hex string, a key file, or a
// stored name (with optional account).
func (ks *KeyStore) LoadSeed(seedHex, name, account, keyFile string) ([]byte, error) {
	if seedHex != "" {
		return ParseSeedHex(seedHex)
	}
	if keyFile != "" {
		return ks.loadSeed(keyFile)
	}
	if name != "" {
		if err := CheckKeyName(name); err != nil {
			return nil, err
		}
		if account == "" {
			return ks.loadSeed(ks.rootKeyPath(name))
		}
		if err := CheckAccount(account); err != nil {
			return nil, err
		}
		return ks.loadSeed(ks.accountKeyPath(name, account))
	}
	return nil, errors.New("no signer provided")
}

// Signer loads a stored seed and builds a signer for it.
func (ks *KeyStore) Signer(name, account string, scheme Scheme) (ledger.Signer, error) {
	seed, err := ks.LoadSeed("", name, account, "")
	if err != nil {
		return nil, err
	}
	return NewSigner(scheme, seed)
}

func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var result []KeyEntry
	for _, name := range names {
		accountEntries, aerr := os.ReadDir(filepath.Join(ks.Directory, name, "accounts"))
		var accounts []string
		if aerr == nil {
			for _, e := range accountEntries {
				if e.IsDir() {
					continue
				}
				if strings.HasSuffix(e.Name(), ".key") {
					accounts = append(accounts, strings.TrimSuffix(e.Name(), ".key"))
				}
			}
			sort.Strings(accounts)
		}
		result = append(result, KeyEntry{Name: name, Accounts: accounts})
	}
	return result, nil
}
