package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/model"
	"onigiri.dev/shake/reviews"
)

func parseAddressFlag(name, v string, errOut io.Writer) (ledger.Address, bool) {
	if v == "" {
		fmt.Fprintf(errOut, "missing --%s\n", name)
		return "", false
	}
	addr, err := ledger.ParseAddress(v)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --%s: %v\n", name, err)
		return "", false
	}
	return addr, true
}

func cmdUser(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("user", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var env envFlags
	var address string
	env.add(fs)
	fs.StringVar(&address, "address", "", "Account address")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	addr, ok := parseAddressFlag("address", address, errOut)
	if !ok {
		return 2
	}
	cfg, err := env.load()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	user, found, err := builder(cfg).FetchUser(context.Background(), addr)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if !found {
		fmt.Fprintf(errOut, "no user profile for %s\n", addr)
		return 1
	}
	if err := writeJSON(out, user); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdPosts(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("posts", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var env envFlags
	var address string
	env.add(fs)
	fs.StringVar(&address, "address", "", "Author address")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	addr, ok := parseAddressFlag("address", address, errOut)
	if !ok {
		return 2
	}
	cfg, err := env.load()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	posts, err := builder(cfg).FetchUserPosts(context.Background(), addr)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if posts == nil {
		posts = []model.Post{}
	}
	if err := writeJSON(out, posts); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

type postView struct {
	model.Post
	Body *string `json:"body,omitempty"`
}

func cmdPost(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var env envFlags
	var kf keyFlags
	var dev devKeyFlags
	var id string
	var withBody bool
	var keyName string
	var account string
	env.add(fs)
	kf.add(fs)
	dev.add(fs)
	fs.StringVar(&id, "id", "", "Post object id")
	fs.BoolVar(&withBody, "body", false, "Fetch (and for paid posts decrypt) the post body")
	fs.StringVar(&keyName, "key", "", "Reader key name (paid posts)")
	fs.StringVar(&account, "account", "", "Reader account under --key")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if id == "" {
		fmt.Fprintln(errOut, "missing --id")
		return 2
	}
	cfg, err := env.load()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	ctx := context.Background()
	b := builder(cfg)
	post, err := b.FetchPost(ctx, id)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	view := postView{Post: post}

	if withBody {
		blobs, closeFn, err := openBlobs(cfg)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		if closeFn != nil {
			defer closeFn()
		}
		b.Blobs = blobs

		var reader ledger.Signer
		if post.IsPaid() {
			if keyName == "" {
				fmt.Fprintln(errOut, "paid post: --key is required to read the body")
				return 2
			}
			reader, err = kf.signer(keyName, account)
			if err != nil {
				fmt.Fprintf(errOut, "keys: %v\n", err)
				return 1
			}
			client, err := dev.client(cfg)
			if err != nil {
				fmt.Fprintln(errOut, err)
				return 2
			}
			b.Decryptor = client
		}

		body, err := b.ReadPost(ctx, post, reader)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		s := string(body)
		view.Body = &s
	}

	if err := writeJSON(out, view); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdReviews(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("reviews", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var env envFlags
	var postID string
	var viewerStr string
	env.add(fs)
	fs.StringVar(&postID, "post", "", "Post object id")
	fs.StringVar(&viewerStr, "viewer", "", "Viewer address; marks their review and checks their votes")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if postID == "" {
		fmt.Fprintln(errOut, "missing --post")
		return 2
	}
	var viewer *ledger.Address
	if viewerStr != "" {
		addr, ok := parseAddressFlag("viewer", viewerStr, errOut)
		if !ok {
			return 2
		}
		viewer = &addr
	}
	cfg, err := env.load()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	ctx := context.Background()
	b := builder(cfg)
	post, err := b.FetchPost(ctx, postID)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	var ids []string
	if post.Metadata != nil {
		ids = post.Metadata.ReviewIDs
	}
	r := &reviews.Reconstructor{Reader: b.Reader, Users: b}
	if err := writeJSON(out, r.FetchPostReviews(ctx, ids, viewer)); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}
