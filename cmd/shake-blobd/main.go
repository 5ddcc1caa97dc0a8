package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"onigiri.dev/shake/storage"
	"onigiri.dev/shake/storage/aggregator"
	"onigiri.dev/shake/storage/blobconfig"
	"onigiri.dev/shake/storage/blobregistry"
	"onigiri.dev/shake/storage/grpcblob"

	_ "onigiri.dev/shake/storage/ipfs"
	_ "onigiri.dev/shake/storage/localfs"
	_ "onigiri.dev/shake/storage/memory"
)

func main() {
	fs := flag.NewFlagSet("shake-blobd", flag.ExitOnError)
	listenGRPC := fs.String("listen", "127.0.0.1:7777", "gRPC listen address (empty disables)")
	listenHTTP := fs.String("http", "127.0.0.1:31417", "publisher/aggregator HTTP listen address (empty disables)")
	backend := fs.String("backend", "localfs", "Blob store backend name")
	configPath := fs.String("blob-config", "", "Blob store config JSON (overrides --backend)")
	maxBlob := fs.Int64("max-blob-bytes", aggregator.DefaultMaxBlobBytes, "Largest upload accepted over HTTP")
	verbose := fs.Bool("v", false, "Debug logging")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")

	blobregistry.RegisterFlags(fs, blobregistry.UsageDaemon)

	_ = fs.Parse(os.Args[1:])
	if *listBackends {
		for _, b := range blobregistry.List(blobregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(os.Stdout, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\n", b.Name, b.Description)
		}
		return
	}
	if *listenGRPC == "" && *listenHTTP == "" {
		fmt.Fprintln(os.Stderr, "shake-blobd: nothing to serve; set --listen or --http")
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, closeFn, err := openStore(*configPath, *backend)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if closeFn != nil {
		defer closeFn()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if *listenGRPC != "" {
		lis, err := net.Listen("tcp", *listenGRPC)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		s := grpc.NewServer()
		grpcblob.RegisterBlobsServer(s, &grpcblob.Server{Store: store})
		fmt.Fprintf(os.Stderr, "shake-blobd gRPC listening on %s\n", lis.Addr().String())
		g.Go(func() error { return s.Serve(lis) })
		g.Go(func() error {
			<-ctx.Done()
			s.GracefulStop()
			return nil
		})
	}
	if *listenHTTP != "" {
		srv := &http.Server{
			Addr:              *listenHTTP,
			Handler:           aggregator.NewHandler(store, aggregator.HandlerOptions{MaxBlobBytes: *maxBlob, Logger: logger}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		fmt.Fprintf(os.Stderr, "shake-blobd HTTP listening on %s\n", *listenHTTP)
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(configPath, backend string) (storage.Store, func() error, error) {
	if configPath == "" {
		return blobregistry.Open(backend, blobregistry.UsageDaemon)
	}
	cfg, err := blobconfig.LoadFile(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg.Open(blobregistry.UsageDaemon, "")
}
