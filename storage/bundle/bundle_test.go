package bundle_test

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ipfs/go-cid"

	"onigiri.dev/shake/cidutil"
	"onigiri.dev/shake/model"
	"onigiri.dev/shake/storage"
	"onigiri.dev/shake/storage/bundle"
	"onigiri.dev/shake/storage/localfs"
	"onigiri.dev/shake/storage/memory"
)

func put(t *testing.T, s storage.Store, data string) cid.Cid {
	t.Helper()
	id, err := s.Put(context.Background(), []byte(data))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	return id
}

func TestBundle_ExportIsDeterministic(t *testing.T) {
	ctx := context.Background()
	src := memory.New()
	id1 := put(t, src, "hello")
	id2 := put(t, src, "world")

	var a, b bytes.Buffer
	if err := bundle.Export(ctx, &a, src, []cid.Cid{id2, id1, id2}, bundle.ExportOptions{IncludeIndex: true}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := bundle.Export(ctx, &b, src, []cid.Cid{id1, id2}, bundle.ExportOptions{IncludeIndex: true}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("expected deterministic bundle bytes")
	}
}

func TestBundle_PostsRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := memory.New()
	body := put(t, src, "rice, salt, nori")
	thumb := put(t, src, "\x89PNG")
	thumbStr := thumb.String()
	posts := []model.Post{
		{ID: "0xp1", ContentBlobID: body.String(), ThumbnailBlobID: &thumbStr},
		{ID: "0xp2", ContentBlobID: body.String()},
	}

	ids, labels, err := bundle.PostLabels(posts)
	if err != nil {
		t.Fatalf("PostLabels: %v", err)
	}
	if len(labels) != 3 || !labels["0xp1/thumbnail"].Equals(thumb) || !labels["0xp2/content"].Equals(body) {
		t.Fatalf("unexpected labels %v", labels)
	}

	var buf bytes.Buffer
	if err := bundle.Export(ctx, &buf, src, ids, bundle.ExportOptions{Labels: labels, IncludeIndex: true}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	// The index lists both blobs once and all three labels.
	tr := tar.NewReader(bytes.NewReader(buf.Bytes()))
	var idx struct {
		Blobs  []json.RawMessage `json:"blobs"`
		Labels []json.RawMessage `json:"labels"`
	}
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar: %v", err)
		}
		if h.Name == "index.json" {
			if err := json.NewDecoder(tr).Decode(&idx); err != nil {
				t.Fatalf("index: %v", err)
			}
		}
	}
	if len(idx.Blobs) != 2 || len(idx.Labels) != 3 {
		t.Fatalf("index has %d blobs, %d labels", len(idx.Blobs), len(idx.Labels))
	}

	dst, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	got, err := bundle.Import(ctx, bytes.NewReader(buf.Bytes()), dst, bundle.ImportOptions{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("imported %d blobs", len(got))
	}
	b, err := dst.Get(ctx, body)
	if err != nil || string(b) != "rice, salt, nori" {
		t.Fatalf("Get = %q %v", b, err)
	}
}

func TestBundle_ExportMissingBlob(t *testing.T) {
	id, err := cidutil.BlobID([]byte("absent"))
	if err != nil {
		t.Fatalf("BlobID: %v", err)
	}
	err = bundle.Export(context.Background(), io.Discard, memory.New(), []cid.Cid{id}, bundle.ExportOptions{})
	if !storage.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBundle_ImportRejectsMismatch(t *testing.T) {
	good := []byte("good")
	other, err := cidutil.BlobID([]byte("other"))
	if err != nil {
		t.Fatalf("BlobID: %v", err)
	}

	// Named after "other" but holding "good".
	raw := makeTar(t, "blobs/"+other.String(), good)
	if _, err := bundle.Import(context.Background(), bytes.NewReader(raw), memory.New(), bundle.ImportOptions{}); !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("expected ErrCIDMismatch, got %v", err)
	}
}

func TestBundle_ImportUnknownEntries(t *testing.T) {
	raw := makeTar(t, "notes.txt", []byte("hi"))
	if _, err := bundle.Import(context.Background(), bytes.NewReader(raw), memory.New(), bundle.ImportOptions{}); err == nil {
		t.Fatalf("expected unknown entry to fail")
	}
	got, err := bundle.Import(context.Background(), bytes.NewReader(raw), memory.New(), bundle.ImportOptions{IgnoreUnknown: true})
	if err != nil || len(got) != 0 {
		t.Fatalf("IgnoreUnknown: %v %v", got, err)
	}

	escape := makeTar(t, "blobs/../../etc/passwd", []byte("x"))
	if _, err := bundle.Import(context.Background(), bytes.NewReader(escape), memory.New(), bundle.ImportOptions{IgnoreUnknown: true}); err == nil {
		t.Fatalf("expected parent-relative path to fail")
	}
}

func makeTar(t *testing.T, name string, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	h := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  time.Unix(0, 0).UTC(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(h); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
