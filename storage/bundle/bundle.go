// Package bundle archives blobs as a deterministic TAR file so an author's
// post bodies and thumbnails can be moved between blob stores.
//
// Layout:
//
//	blobs/<blob id>   one regular file per blob
//	index.json        optional; lists blob sizes and labels, ignored on import
package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"onigiri.dev/shake/cidutil"
	"onigiri.dev/shake/model"
	"onigiri.dev/shake/storage"
)

// FormatVersion is the index.json schema version.
const FormatVersion = 1

const (
	blobDir   = "blobs/"
	indexName = "index.json"
)

var modTime = time.Unix(0, 0).UTC()

// ExportOptions controls Export.
type ExportOptions struct {
	// Labels names blobs in index.json, for example "<post id>/content".
	Labels map[string]cid.Cid
	// IncludeIndex writes index.json after the blobs.
	IncludeIndex bool
}

// PostLabels returns the blob ids referenced by posts together with labels
// naming their role. Paid bodies are archived as stored, still encrypted.
func PostLabels(posts []model.Post) ([]cid.Cid, map[string]cid.Cid, error) {
	var ids []cid.Cid
	labels := map[string]cid.Cid{}
	add := func(label, s string) error {
		id, err := cidutil.ParseBlobID(s)
		if err != nil {
			return fmt.Errorf("bundle: %s: %w", label, err)
		}
		ids = append(ids, id)
		labels[label] = id
		return nil
	}
	for _, p := range posts {
		if err := add(p.ID+"/content", p.ContentBlobID); err != nil {
			return nil, nil, err
		}
		if p.ThumbnailBlobID != nil && *p.ThumbnailBlobID != "" {
			if err := add(p.ID+"/thumbnail", *p.ThumbnailBlobID); err != nil {
				return nil, nil, err
			}
		}
	}
	return ids, labels, nil
}

// Export writes the blobs named by ids, read from src, to w. Entries are
// sorted by blob id and headers are normalized, so the same ids always
// produce the same bytes. Every blob is checked against its id.
func Export(ctx context.Context, w io.Writer, src storage.Getter, ids []cid.Cid, opts ExportOptions) error {
	if src == nil {
		return errors.New("bundle: nil blob store")
	}

	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	names := make([]string, 0, len(uniq))
	for s := range uniq {
		names = append(names, s)
	}
	sort.Strings(names)

	tw := tar.NewWriter(w)
	fail := func(err error) error {
		_ = tw.Close()
		return err
	}

	blobs := make([]indexBlob, 0, len(names))
	for _, s := range names {
		id := uniq[s]
		b, err := src.Get(ctx, id)
		if err != nil {
			return fail(fmt.Errorf("bundle: get %s: %w", s, err))
		}
		if !cidutil.Verify(id, b) {
			return fail(storage.ErrCIDMismatch)
		}
		if err := writeFile(tw, blobDir+s, b); err != nil {
			return fail(err)
		}
		blobs = append(blobs, indexBlob{ID: s, Size: len(b)})
	}

	if opts.IncludeIndex {
		idx := index{Version: FormatVersion, Blobs: blobs}
		keys := make([]string, 0, len(opts.Labels))
		for k := range opts.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := opts.Labels[k]
			if k == "" {
				return fail(errors.New("bundle: empty label"))
			}
			if _, ok := uniq[v.String()]; !ok {
				return fail(fmt.Errorf("bundle: label %s points outside the bundle", k))
			}
			idx.Labels = append(idx.Labels, indexLabel{Name: k, ID: v.String()})
		}
		b, err := json.Marshal(idx)
		if err != nil {
			return fail(err)
		}
		if err := writeFile(tw, indexName, append(b, '\n')); err != nil {
			return fail(err)
		}
	}

	return tw.Close()
}

// ImportOptions controls Import.
type ImportOptions struct {
	// IgnoreUnknown skips entries outside the layout instead of failing.
	IgnoreUnknown bool
}

// Import copies every blob in the bundle read from r into dst and returns
// their ids in bundle order. A blob whose bytes do not match its file name
// aborts the import.
func Import(ctx context.Context, r io.Reader, dst storage.Store, opts ImportOptions) ([]cid.Cid, error) {
	if dst == nil {
		return nil, errors.New("bundle: nil blob store")
	}

	tr := tar.NewReader(r)
	seen := map[string]bool{}
	var out []cid.Cid
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		h, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		name := cleanPath(h.Name)
		if name == "" {
			return out, fmt.Errorf("bundle: invalid entry path %q", h.Name)
		}

		switch {
		case h.Typeflag != tar.TypeReg:
			if opts.IgnoreUnknown {
				continue
			}
			return out, fmt.Errorf("bundle: unexpected entry type %v (%s)", h.Typeflag, name)
		case name == indexName:
			continue
		case !strings.HasPrefix(name, blobDir):
			if opts.IgnoreUnknown {
				continue
			}
			return out, fmt.Errorf("bundle: unknown entry %s", name)
		}

		id, err := cidutil.ParseBlobID(strings.TrimPrefix(name, blobDir))
		if err != nil {
			return out, storage.ErrInvalidCID
		}
		if seen[id.String()] {
			return out, fmt.Errorf("bundle: duplicate blob %s", id)
		}
		seen[id.String()] = true

		payload, err := io.ReadAll(tr)
		if err != nil {
			return out, err
		}
		if !cidutil.Verify(id, payload) {
			return out, storage.ErrCIDMismatch
		}
		got, err := dst.Put(ctx, payload)
		if err != nil {
			return out, err
		}
		if !got.Equals(id) {
			return out, storage.ErrCIDMismatch
		}
		out = append(out, id)
	}
}

type index struct {
	Version int          `json:"version"`
	Blobs   []indexBlob  `json:"blobs"`
	Labels  []indexLabel `json:"labels,omitempty"`
}

type indexBlob struct {
	ID   string `json:"id"`
	Size int    `json:"size"`
}

type indexLabel struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  modTime,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

// cleanPath rejects absolute, empty and parent-relative names.
func cleanPath(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = strings.TrimPrefix(name, "./")
	if name == "" || strings.HasPrefix(name, "/") {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
