package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"onigiri.dev/shake/cidutil"
	"onigiri.dev/shake/storage"
	"onigiri.dev/shake/storage/blobregistry"
	"onigiri.dev/shake/storage/bundle"
)

func cmdBlob(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}
	switch args[0] {
	case "put":
		return cmdBlobPut(args[1:], out, errOut)
	case "get":
		return cmdBlobGet(args[1:], out, errOut)
	case "export":
		return cmdBlobExport(args[1:], out, errOut)
	case "import":
		return cmdBlobImport(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown blob subcommand: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

type blobFlags struct {
	backend      string
	listBackends bool
}

func (c *blobFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "localfs", "Blob store backend name")
	fs.BoolVar(&c.listBackends, "list-backends", false, "List supported backends and exit")
	blobregistry.RegisterFlags(fs, blobregistry.UsageCLI)
}

func (c *blobFlags) open() (storage.Store, func() error, error) {
	return blobregistry.Open(c.backend, blobregistry.UsageCLI)
}

func printBackends(w io.Writer) {
	for _, b := range blobregistry.List(blobregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}

func cmdBlobPut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("blob put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common blobFlags
	common.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: shakecli blob put [backend flags] <file>")
		return 2
	}

	store, closeFn, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	p := fs.Arg(0)
	b, err := os.ReadFile(p)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(p), err)
		return 1
	}
	id, err := store.Put(context.Background(), b)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, id.String())
	return 0
}

func cmdBlobGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("blob get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common blobFlags
	common.add(fs)

	var idStr string
	var outPath string
	fs.StringVar(&idStr, "id", "", "Blob id to fetch")
	fs.StringVar(&outPath, "out", "", "Output file (optional; default stdout)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if idStr == "" {
		fmt.Fprintln(errOut, "missing --id")
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: shakecli blob get [backend flags] --id <blob id> [--out <file>]")
		return 2
	}

	id, err := cidutil.ParseBlobID(idStr)
	if err != nil {
		fmt.Fprintln(errOut, storage.ErrInvalidCID)
		return 1
	}

	store, closeFn, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	b, err := store.Get(context.Background(), id)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	if outPath == "" {
		_, _ = out.Write(b)
		return 0
	}
	if err := os.WriteFile(outPath, b, 0o600); err != nil {
		fmt.Fprintf(errOut, "write %s: %v\n", outPath, err)
		return 1
	}
	return 0
}

// cmdBlobExport archives every blob an author's posts reference, read from
// the configured blob store.
func cmdBlobExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("blob export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var env envFlags
	var address string
	var outPath string
	env.add(fs)
	fs.StringVar(&address, "address", "", "Author whose posts are archived")
	fs.StringVar(&outPath, "out", "", "Bundle file to write")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	addr, ok := parseAddressFlag("address", address, errOut)
	if !ok {
		return 2
	}
	if outPath == "" {
		fmt.Fprintln(errOut, "missing --out")
		return 2
	}
	cfg, err := env.load()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	ctx := context.Background()
	posts, err := builder(cfg).FetchUserPosts(ctx, addr)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	ids, labels, err := bundle.PostLabels(posts)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	blobs, closeFn, err := openBlobs(cfg)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if err := bundle.Export(ctx, f, blobs, ids, bundle.ExportOptions{Labels: labels, IncludeIndex: true}); err != nil {
		_ = f.Close()
		fmt.Fprintln(errOut, err)
		return 1
	}
	if err := f.Close(); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "Exported %d posts to %s\n", len(posts), outPath)
	return 0
}

func cmdBlobImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("blob import", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common blobFlags
	common.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: shakecli blob import [backend flags] <bundle.tar>")
		return 2
	}
	store, closeFn, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer f.Close()
	ids, err := bundle.Import(context.Background(), f, store, bundle.ImportOptions{})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	for _, id := range ids {
		fmt.Fprintln(out, id.String())
	}
	return 0
}
