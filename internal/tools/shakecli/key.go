package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"io"

	"onigiri.dev/shake/keys"
	"onigiri.dev/shake/ledger"
)

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "shakecli key: local signing keys")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  shakecli key init --name <name> [--seed-hex <64hex>] [--scheme ed25519|dilithium3] [--force]")
	fmt.Fprintln(w, "  shakecli key derive --from <name> --account <account> [--scheme ...] [--force]")
	fmt.Fprintln(w, "  shakecli key list")
}

type keyFlags struct {
	dir    string
	scheme string
}

func (k *keyFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&k.dir, "keys-dir", "", "Key store directory (default ~/.shake/keys)")
	fs.StringVar(&k.scheme, "scheme", keys.SchemeEd25519.String(), "Signature scheme: ed25519|dilithium3")
}

func (k *keyFlags) open() (*keys.KeyStore, keys.Scheme, error) {
	scheme, err := keys.ParseScheme(k.scheme)
	if err != nil {
		return nil, 0, err
	}
	ks, err := keys.CreateKeyStore(k.dir)
	return ks, scheme, err
}

// signer loads name's root key, or its account key when account is set.
func (k *keyFlags) signer(name, account string) (ledger.Signer, error) {
	ks, scheme, err := k.open()
	if err != nil {
		return nil, err
	}
	return ks.Signer(name, account, scheme)
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var kf keyFlags
	var name string
	var seedHex string
	var force bool

	kf.add(fs)
	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&seedHex, "seed-hex", "", "Optional seed as 64 hex chars (for reproducible demos)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}
	ks, scheme, err := kf.open()
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 2
	}

	var seed []byte
	if seedHex != "" {
		var derr error
		seed, derr = keys.ParseSeedHex(seedHex)
		if derr != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", derr)
			return 2
		}
	} else {
		seed = make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			fmt.Fprintf(errOut, "rand: %v\n", err)
			return 1
		}
	}

	addr, rootPath, err := ks.InitializeRootKey(name, seed, scheme, force)
	if err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created root key: %s (%s)\n", addr, scheme)
	fmt.Fprintf(out, "Stored at: %s\n", rootPath)
	return 0
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var kf keyFlags
	var from string
	var account string
	var force bool

	kf.add(fs)
	fs.StringVar(&from, "from", "", "Root key name")
	fs.StringVar(&account, "account", "", "Account name (e.g. author, reader)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if from == "" {
		fmt.Fprintln(errOut, "missing --from")
		return 2
	}
	if account == "" {
		fmt.Fprintln(errOut, "missing --account")
		return 2
	}
	if err := keys.CheckKeyName(from); err != nil {
		fmt.Fprintf(errOut, "invalid --from: %v\n", err)
		return 2
	}
	if err := keys.CheckAccount(account); err != nil {
		fmt.Fprintf(errOut, "invalid --account: %v\n", err)
		return 2
	}
	ks, scheme, err := kf.open()
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 2
	}
	addr, path, err := ks.DeriveAccount(from, account, scheme, force)
	if err != nil {
		fmt.Fprintf(errOut, "derive account key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created account key: %s (%s)\n", addr, scheme)
	fmt.Fprintf(out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var kf keyFlags
	kf.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, _, err := kf.open()
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	entries, err := ks.ListKeys()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s\n", e.Name)
		for _, a := range e.Accounts {
			fmt.Fprintf(out, "  - %s\n", a)
		}
	}
	return 0
}
