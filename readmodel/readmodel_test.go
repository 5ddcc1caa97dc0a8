package readmodel

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"onigiri.dev/shake/blog"
	"onigiri.dev/shake/blog/devchain"
	"onigiri.dev/shake/cidutil"
	"onigiri.dev/shake/keys"
	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/ledger/memledger"
	"onigiri.dev/shake/model"
	"onigiri.dev/shake/storage/aggregator"
	"onigiri.dev/shake/storage/memory"
	"onigiri.dev/shake/threshold"
	"onigiri.dev/shake/threshold/keyserver"
)

var types = blog.Types{PackageID: "0x00000000000000000000000000000000000000000000000000000000000000b1"}

func signer(t *testing.T, b byte) *keys.Ed25519Signer {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = b
	}
	s, err := keys.NewEd25519Signer(seed)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	return s
}

type fixture struct {
	l      *memledger.Ledger
	b      *Builder
	author *devchain.Account
	userID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := memledger.New()
	l.SetClock(func() time.Time { return time.UnixMilli(1700000000000) })
	devchain.Install(l, types)
	author := devchain.NewAccount(types, signer(t, 1), l)
	userID, err := author.CreateUser(context.Background(), blog.Profile{Name: "chef", Bio: "cooks"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return &fixture{l: l, b: &Builder{Reader: l, Types: types, Blobs: memory.New()}, author: author, userID: userID}
}

func (f *fixture) post(t *testing.T, title string, price *uint64) string {
	t.Helper()
	id, err := f.author.CreatePost(context.Background(), blog.NewPost{
		UserObjectID:  f.userID,
		Title:         title,
		ContentBlobID: cidutil.BlobIDString([]byte(title)),
		Price:         price,
	})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	return id
}

func TestFetchUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, found, err := f.b.FetchUser(ctx, f.author.Address())
	if err != nil || !found {
		t.Fatalf("FetchUser: found=%v err=%v", found, err)
	}
	if u.ID != f.userID || u.Username != "chef" || u.Bio == nil || *u.Bio != "cooks" || u.ProfileImageID != nil {
		t.Fatalf("unexpected user %+v", u)
	}

	_, found, err = f.b.FetchUser(ctx, signer(t, 9).Address())
	if err != nil || found {
		t.Fatalf("stranger: found=%v err=%v", found, err)
	}

	byID, err := f.b.FetchUserByID(ctx, f.userID)
	if err != nil || byID.ID != u.ID {
		t.Fatalf("FetchUserByID: %+v %v", byID, err)
	}
	_, err = f.b.FetchUserByID(ctx, "0xdead")
	if !model.IsKind(err, model.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestDecodeUser_LegacyLayout(t *testing.T) {
	l := memledger.New()
	image := "bafkreiimage"
	id := l.Put(memledger.Object{
		Type:   types.User(),
		Owner:  ledger.AddressOwner(signer(t, 1).Address()),
		Fields: map[string]any{"username": "old", "image": image},
	})
	obj, _ := l.Object(id)
	u, err := DecodeUser(obj.Response())
	if err != nil {
		t.Fatalf("DecodeUser: %v", err)
	}
	if u.Username != "old" || u.ProfileImageID == nil || *u.ProfileImageID != image || u.Bio != nil {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestFetchUserPosts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.post(t, "one", nil)
	second := f.post(t, "two", nil)

	posts, err := f.b.FetchUserPosts(ctx, f.author.Address())
	if err != nil {
		t.Fatalf("FetchUserPosts: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != first || posts[1].ID != second {
		t.Fatalf("unexpected posts %+v", posts)
	}
	for _, p := range posts {
		if p.Author != f.author.Address() {
			t.Fatalf("author = %s", p.Author)
		}
		if p.Metadata != nil {
			t.Fatalf("list posts carry no metadata")
		}
	}

	none, err := f.b.FetchUserPosts(ctx, signer(t, 9).Address())
	if err != nil || len(none) != 0 {
		t.Fatalf("stranger posts = %v %v", none, err)
	}
}

func TestFetchPost_WithMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	price := uint64(3)
	id := f.post(t, "Rice", &price)

	p, err := f.b.FetchPost(ctx, id)
	if err != nil {
		t.Fatalf("FetchPost: %v", err)
	}
	if p.Author != f.author.Address() || p.Title != "Rice" || p.ThumbnailBlobID != nil {
		t.Fatalf("unexpected post %+v", p)
	}
	if !p.CreatedAt.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("created at %v", p.CreatedAt)
	}
	if p.Metadata == nil || p.Metadata.Price != 3 || len(p.Metadata.ReviewIDs) != 0 || !p.IsPaid() {
		t.Fatalf("unexpected metadata %+v", p.Metadata)
	}
}

func TestFetchPost_DeletedMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.post(t, "Soup", nil)
	p, err := f.b.FetchPost(ctx, id)
	if err != nil || p.Metadata == nil {
		t.Fatalf("FetchPost: %+v %v", p, err)
	}

	if err := f.l.DeleteObject(p.Metadata.ID); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	p, err = f.b.FetchPost(ctx, id)
	if err != nil {
		t.Fatalf("FetchPost after metadata delete: %v", err)
	}
	if p.Metadata != nil || p.Title != "Soup" {
		t.Fatalf("expected post without metadata, got %+v", p)
	}
}

func TestFetchPost_MetadataOfAnotherPost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first, err := f.b.FetchPost(ctx, f.post(t, "a", nil))
	if err != nil {
		t.Fatalf("FetchPost: %v", err)
	}
	id := f.l.Put(memledger.Object{
		Type:  types.Post(),
		Owner: ledger.AddressOwner(f.author.Address()),
		Fields: map[string]any{
			"title":             "b",
			"post_blob_id":      "blob",
			"thumbnail_blob_id": nil,
			"created_at":        "1",
			"post_metadata_id":  first.Metadata.ID,
		},
	})
	p, err := f.b.FetchPost(ctx, id)
	if err != nil || p.Metadata != nil {
		t.Fatalf("expected unlinked metadata to be dropped: %+v %v", p.Metadata, err)
	}
}

func TestFetchPost_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	shared := f.l.Put(memledger.Object{
		Type:  types.Post(),
		Owner: ledger.SharedOwner(1),
		Fields: map[string]any{
			"title":        "shared",
			"post_blob_id": "blob",
			"created_at":   "1",
		},
	})
	if _, err := f.b.FetchPost(ctx, shared); !model.IsKind(err, model.KindInvalidOwner) {
		t.Fatalf("expected InvalidOwner, got %v", err)
	}

	broken := f.l.Put(memledger.Object{
		Type:   types.Post(),
		Owner:  ledger.AddressOwner(f.author.Address()),
		Fields: map[string]any{"post_blob_id": "blob", "created_at": "1"},
	})
	_, err := f.b.FetchPost(ctx, broken)
	var me *model.Error
	if !errors.As(err, &me) || me.Kind != model.KindDecode || me.Field != "title" {
		t.Fatalf("expected decode error on title, got %v", err)
	}

	if _, err := f.b.FetchPost(ctx, "0xdead"); !model.IsKind(err, model.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestFetchPostContent(t *testing.T) {
	ctx := context.Background()
	blobs := memory.New()
	b := &Builder{Blobs: blobs}
	id, err := blobs.Put(ctx, []byte("body"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := b.FetchPostContent(ctx, id.String())
	if err != nil || string(got) != "body" {
		t.Fatalf("FetchPostContent = %q %v", got, err)
	}
	if _, err := b.FetchPostContent(ctx, cidutil.BlobIDString([]byte("absent"))); !model.IsKind(err, model.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := b.FetchPostContent(ctx, "not-a-cid"); !model.IsKind(err, model.KindDecode) {
		t.Fatalf("expected Decode, got %v", err)
	}
}

func TestFetchPostContent_AggregatorFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	b := &Builder{Blobs: aggregator.New(srv.URL, srv.URL)}

	_, err := b.FetchPostContent(context.Background(), cidutil.BlobIDString([]byte("x")))
	if !model.IsKind(err, model.KindTransport) {
		t.Fatalf("expected Transport, got %v", err)
	}
	var httpErr *aggregator.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected *aggregator.HTTPError 503 in chain, got %v", err)
	}
}

func TestReadPost_PaidDecryptsForApprovedReader(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	subscriber, stranger := signer(t, 2), signer(t, 3)

	policy := keyserver.Allowlist{subscriber.Address(): true}
	var servers []threshold.KeyServer
	for _, id := range []string{"0x5e1", "0x5e2", "0x5e3"} {
		s, err := keyserver.New(id, policy, nil)
		if err != nil {
			t.Fatalf("keyserver.New: %v", err)
		}
		servers = append(servers, s)
	}
	tc := &threshold.Client{Servers: servers}
	f.b.Decryptor = tc

	ident, err := threshold.DeriveIdentifier("0xa1", rand.Reader)
	if err != nil {
		t.Fatalf("DeriveIdentifier: %v", err)
	}
	ct, err := tc.Encrypt(ctx, threshold.Request{Threshold: 2, PackageID: types.PackageID, ID: ident, Data: []byte("premium")})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	blobID, err := f.b.Blobs.(*memory.Store).Put(ctx, ct)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	price := uint64(10)
	postID, err := f.author.CreatePost(ctx, blog.NewPost{UserObjectID: f.userID, Title: "Paid", ContentBlobID: blobID.String(), Price: &price})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	post, err := f.b.FetchPost(ctx, postID)
	if err != nil {
		t.Fatalf("FetchPost: %v", err)
	}

	got, err := f.b.ReadPost(ctx, post, subscriber)
	if err != nil || string(got) != "premium" {
		t.Fatalf("ReadPost = %q %v", got, err)
	}
	if _, err := f.b.ReadPost(ctx, post, stranger); !errors.Is(err, threshold.ErrDenied) {
		t.Fatalf("expected ErrDenied for stranger, got %v", err)
	}
}
