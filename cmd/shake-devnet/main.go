package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"onigiri.dev/shake/blog"
	"onigiri.dev/shake/blog/devchain"
	"onigiri.dev/shake/config"
	"onigiri.dev/shake/keys"
	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/ledger/jsonrpc"
	"onigiri.dev/shake/ledger/memledger"
	"onigiri.dev/shake/model"
	"onigiri.dev/shake/publish"
	"onigiri.dev/shake/storage"
	"onigiri.dev/shake/storage/aggregator"
	"onigiri.dev/shake/storage/memory"
)

func main() {
	local := config.Local()
	fs := flag.NewFlagSet("shake-devnet", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:9000", "JSON-RPC listen address")
	packageID := fs.String("package-id", local.PackageID, "Package id the blog contract is installed under")
	readOnly := fs.Bool("read-only", false, "Reject transaction execution")
	seed := fs.Bool("seed", false, "Create a demo user, post and review at startup")
	seedRoot := fs.String("seed-root", "shake-devnet", "Root secret the demo accounts are derived from")
	publisherURL := fs.String("publisher-url", "", "Publisher to upload demo post bodies to (default: discard)")
	verbose := fs.Bool("v", false, "Debug logging")
	_ = fs.Parse(os.Args[1:])

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	pkg, err := ledger.ParseAddress(*packageID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "--package-id: %v\n", err)
		os.Exit(2)
	}
	types := blog.Types{PackageID: string(pkg)}

	l := memledger.New()
	l.Logger = logger
	devchain.Install(l, types)

	if *seed {
		var blobs storage.Store = memory.New()
		if *publisherURL != "" {
			blobs = aggregator.New(*publisherURL, *publisherURL)
		}
		root := sha256.Sum256([]byte(*seedRoot))
		if err := seedDemo(context.Background(), l, types, root[:], blobs, logger); err != nil {
			fmt.Fprintf(os.Stderr, "seed: %v\n", err)
			os.Exit(1)
		}
	}

	var writer ledger.Writer = l
	if *readOnly {
		writer = nil
	}
	srv := &http.Server{
		Addr:              *listen,
		Handler:           jsonrpc.NewHandler(l, writer, jsonrpc.HandlerOptions{Logger: logger}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(os.Stderr, "shake-devnet listening on %s (package=%s)\n", *listen, types.PackageID)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func demoAccount(root []byte, name string, types blog.Types, l *memledger.Ledger) (*devchain.Account, error) {
	s, err := keys.DeriveAccountSeed(root, name)
	if err != nil {
		return nil, err
	}
	signer, err := keys.NewEd25519Signer(s)
	if err != nil {
		return nil, err
	}
	return devchain.NewAccount(types, signer, l), nil
}

// seedDemo publishes one free post by "author" and a review of it by
// "reader", who also votes on it.
func seedDemo(ctx context.Context, l *memledger.Ledger, types blog.Types, root []byte, blobs storage.Store, logger *slog.Logger) error {
	author, err := demoAccount(root, "author", types, l)
	if err != nil {
		return err
	}
	reader, err := demoAccount(root, "reader", types, l)
	if err != nil {
		return err
	}

	userID, err := author.CreateUser(ctx, blog.Profile{Name: "demo-author", Bio: "Seeded by shake-devnet"})
	if err != nil {
		return err
	}
	if _, err := reader.CreateUser(ctx, blog.Profile{Name: "demo-reader"}); err != nil {
		return err
	}

	p := &publish.Pipeline{Store: blobs, Types: types, Logger: logger}
	res, _, err := p.Publish(ctx, publish.Draft{
		UserObjectID: userID,
		Title:        "Hello from devnet",
		Content:      "This post was created when the ledger started.",
	}, author.Exec)
	if err != nil {
		return err
	}

	obj, ok := l.Object(res.PostID)
	if !ok {
		return fmt.Errorf("seeded post %s vanished", res.PostID)
	}
	metaID, _ := obj.Fields["post_metadata_id"].(string)
	reviewID, err := reader.CreateReview(ctx, metaID, "Nice first post.")
	if err != nil {
		return err
	}
	if err := author.Vote(ctx, reviewID, model.VoteHelpful); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "seeded author=%s reader=%s post=%s review=%s\n", author.Address(), reader.Address(), res.PostID, reviewID)
	return nil
}
