package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/crypto/hkdf"

	"onigiri.dev/shake/blog"
	"onigiri.dev/shake/config"
	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/ledger/jsonrpc"
	"onigiri.dev/shake/publish"
	"onigiri.dev/shake/threshold"
	"onigiri.dev/shake/threshold/keyserver"
)

// devKeyFlags runs the configured key servers in process, each with a key
// pair derived from a shared secret. Every invocation with the same secret
// gets the same servers, which is enough to publish and read paid posts
// against a development ledger.
type devKeyFlags struct {
	secret string
}

func (d *devKeyFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&d.secret, "keyserver-secret", "", "Secret development key servers derive their keys from")
}

func devKeyServers(secret string, ids []string) ([]threshold.KeyServer, error) {
	servers := make([]threshold.KeyServer, 0, len(ids))
	for _, id := range ids {
		rnd := hkdf.New(sha256.New, []byte(secret), nil, []byte("shake-devkeyserver:"+id))
		s, err := keyserver.New(id, keyserver.AllowAll, rnd)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	return servers, nil
}

func (d *devKeyFlags) client(cfg config.Config) (*threshold.Client, error) {
	if d.secret == "" {
		return nil, errors.New("paid posts need key servers: pass --keyserver-secret")
	}
	if len(cfg.KeyServers) == 0 {
		return nil, errors.New("paid posts need key servers: set key_servers or SHAKE_KEY_SERVERS")
	}
	servers, err := devKeyServers(d.secret, cfg.KeyServers)
	if err != nil {
		return nil, err
	}
	return &threshold.Client{Servers: servers}, nil
}

func cmdProfile(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var env envFlags
	var kf keyFlags
	var keyName, account, name, bio, image string
	env.add(fs)
	kf.add(fs)
	fs.StringVar(&keyName, "key", "", "Signing key name")
	fs.StringVar(&account, "account", "", "Account under --key")
	fs.StringVar(&name, "name", "", "Display name")
	fs.StringVar(&bio, "bio", "", "Short bio (optional)")
	fs.StringVar(&image, "image", "", "Profile image blob id (optional)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if keyName == "" || name == "" {
		fmt.Fprintln(errOut, "missing --key or --name")
		return 2
	}
	cfg, err := env.load()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	signer, err := kf.signer(keyName, account)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}

	tx := &ledger.Transaction{}
	if err := types(cfg).CreateUser(tx, blog.Profile{Name: name, ProfileImageID: image, Bio: bio}); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	exec := ledger.SigningExecutor{Signer: signer, Writer: jsonrpc.New(cfg.LedgerURL)}
	res, err := exec.Execute(context.Background(), tx)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	created, ok := res.Created(types(cfg).User())
	if !ok {
		fmt.Fprintf(errOut, "transaction %s created no user\n", res.Digest)
		return 1
	}
	fmt.Fprintf(out, "Created user %s for %s\n", created.ObjectID, signer.Address())
	return 0
}

func cmdPublish(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var env envFlags
	var kf keyFlags
	var dev devKeyFlags
	var keyName, account, title, contentFile, thumbnail string
	var price uint64
	var verbose bool
	env.add(fs)
	kf.add(fs)
	dev.add(fs)
	fs.StringVar(&keyName, "key", "", "Signing key name")
	fs.StringVar(&account, "account", "", "Account under --key")
	fs.StringVar(&title, "title", "", "Post title")
	fs.StringVar(&contentFile, "content-file", "", "File holding the post body")
	fs.StringVar(&thumbnail, "thumbnail", "", "Thumbnail image file (optional)")
	fs.Uint64Var(&price, "price", 0, "Price; non-zero publishes an encrypted paid post")
	fs.BoolVar(&verbose, "v", false, "Log every pipeline transition")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if keyName == "" {
		fmt.Fprintln(errOut, "missing --key")
		return 2
	}
	if contentFile == "" {
		fmt.Fprintln(errOut, "missing --content-file")
		return 2
	}
	content, err := os.ReadFile(contentFile)
	if err != nil {
		fmt.Fprintf(errOut, "read content: %v\n", err)
		return 1
	}
	cfg, err := env.load()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	signer, err := kf.signer(keyName, account)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	blobs, closeFn, err := openBlobs(cfg)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	ctx := context.Background()
	user, found, err := builder(cfg).FetchUser(ctx, signer.Address())
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if !found {
		fmt.Fprintf(errOut, "%s has no user profile; run shakecli profile first\n", signer.Address())
		return 1
	}

	p := &publish.Pipeline{
		Store:     blobs,
		Types:     types(cfg),
		PolicyID:  cfg.PolicyID,
		Threshold: cfg.Threshold,
		Logger:    logger,
	}
	if price > 0 {
		client, err := dev.client(cfg)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		client.Logger = logger
		p.Encryptor = client
	}

	draft := publish.Draft{UserObjectID: user.ID, Title: title, Content: string(content), Price: price}
	if err := publish.Validate(draft); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if thumbnail != "" {
		img, err := os.ReadFile(thumbnail)
		if err != nil {
			fmt.Fprintf(errOut, "read thumbnail: %v\n", err)
			return 1
		}
		if draft.ThumbnailBlobID, err = p.UploadThumbnail(ctx, img); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
	}

	exec := ledger.SigningExecutor{Signer: signer, Writer: jsonrpc.New(cfg.LedgerURL)}
	res, a, err := p.Publish(ctx, draft, exec)
	if err != nil {
		fmt.Fprintf(errOut, "publish failed in %s: %v\n", a.History[len(a.History)-2], err)
		return 1
	}
	if err := writeJSON(out, res); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}
