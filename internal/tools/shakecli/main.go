package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"onigiri.dev/shake/blog"
	"onigiri.dev/shake/config"
	"onigiri.dev/shake/ledger/jsonrpc"
	"onigiri.dev/shake/readmodel"
	"onigiri.dev/shake/storage"
	"onigiri.dev/shake/storage/aggregator"
	"onigiri.dev/shake/storage/blobconfig"
	"onigiri.dev/shake/storage/blobregistry"

	_ "onigiri.dev/shake/storage/grpcblob"
	_ "onigiri.dev/shake/storage/ipfs"
	_ "onigiri.dev/shake/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "blob":
		return cmdBlob(args[1:], out, errOut)
	case "user":
		return cmdUser(args[1:], out, errOut)
	case "profile":
		return cmdProfile(args[1:], out, errOut)
	case "posts":
		return cmdPosts(args[1:], out, errOut)
	case "post":
		return cmdPost(args[1:], out, errOut)
	case "reviews":
		return cmdReviews(args[1:], out, errOut)
	case "publish":
		return cmdPublish(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "shakecli: read and publish shake posts from the command line")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  shakecli key init --name <name> [--seed-hex <64hex>] [--scheme ed25519|dilithium3] [--force]")
	fmt.Fprintln(w, "  shakecli key derive --from <name> --account <account> [--scheme ...] [--force]")
	fmt.Fprintln(w, "  shakecli key list")
	fmt.Fprintln(w, "  shakecli blob put --backend localfs --localfs-dir <dir> <file>")
	fmt.Fprintln(w, "  shakecli blob get --backend localfs --localfs-dir <dir> --id <blob id> [--out <file>]")
	fmt.Fprintln(w, "  shakecli blob export --address <0x…> --out <bundle.tar>")
	fmt.Fprintln(w, "  shakecli blob import --backend localfs --localfs-dir <dir> <bundle.tar>")
	fmt.Fprintln(w, "  shakecli user --address <0x…>")
	fmt.Fprintln(w, "  shakecli profile --key <name> [--account <account>] --name <display name> [--bio <text>]")
	fmt.Fprintln(w, "  shakecli posts --address <0x…>")
	fmt.Fprintln(w, "  shakecli post --id <0x…> [--body] [--key <name> [--account <account>]]")
	fmt.Fprintln(w, "  shakecli reviews --post <0x…> [--viewer <0x…>]")
	fmt.Fprintln(w, "  shakecli publish --key <name> [--account <account>] --title <title> --content-file <file> [--price <n>] [--thumbnail <file>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Ledger commands read --config (JSON), .env and SHAKE_* variables; see package config.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - blob ids are CIDv1 raw + sha2-256; identical bytes always get the same id")
	fmt.Fprintln(w, "  - paid posts need key servers; --keyserver-secret runs development key servers in process")
}

// envFlags are shared by the commands that talk to the ledger.
type envFlags struct {
	configPath string
	dotenv     string
}

func (e *envFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&e.configPath, "config", "", "Config JSON file (optional)")
	fs.StringVar(&e.dotenv, "env-file", ".env", "dotenv file with SHAKE_* overrides (skipped when missing)")
}

func (e *envFlags) load() (config.Config, error) {
	return config.Load(e.configPath, e.dotenv)
}

func types(cfg config.Config) blog.Types { return blog.Types{PackageID: cfg.PackageID} }

// openBlobs opens the configured blob store: a blobconfig file when set,
// otherwise the publisher/aggregator pair.
func openBlobs(cfg config.Config) (storage.Store, func() error, error) {
	if cfg.BlobConfig != "" {
		bc, err := blobconfig.LoadFile(cfg.BlobConfig)
		if err != nil {
			return nil, nil, err
		}
		return bc.Open(blobregistry.UsageCLI, "")
	}
	c := aggregator.New(cfg.PublisherURL, cfg.AggregatorURL)
	c.Epochs = cfg.Epochs
	return c, nil, nil
}

func builder(cfg config.Config) *readmodel.Builder {
	return &readmodel.Builder{Reader: jsonrpc.New(cfg.LedgerURL), Types: types(cfg)}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
