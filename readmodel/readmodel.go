// Package readmodel rebuilds users and posts from ledger objects.
//
// Nothing is cached: every call reads the ledger again.
package readmodel

import (
	"context"
	"fmt"
	"log/slog"

	"onigiri.dev/shake/blog"
	"onigiri.dev/shake/decode"
	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/model"
	"onigiri.dev/shake/storage"
	"onigiri.dev/shake/threshold"
)

// Builder assembles read models from a ledger Reader.
type Builder struct {
	Reader ledger.Reader
	Types  blog.Types
	// Blobs serves post bodies. Only FetchPostContent and ReadPost need it.
	Blobs storage.Getter
	// Decryptor opens paid post bodies in ReadPost.
	Decryptor threshold.Decryptor
	Logger    *slog.Logger
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// FetchUser returns the first User object owned by addr. found is false, with
// a nil error, when addr owns none.
func (b *Builder) FetchUser(ctx context.Context, addr ledger.Address) (user model.User, found bool, err error) {
	page, err := b.Reader.GetOwnedObjects(ctx, ledger.OwnedObjectsQuery{
		Owner:      addr,
		StructType: b.Types.User(),
		Limit:      1,
	})
	if err != nil {
		return model.User{}, false, err
	}
	for _, resp := range page.Data {
		if resp.NotFound() {
			continue
		}
		u, err := DecodeUser(resp)
		if err != nil {
			return model.User{}, false, err
		}
		return u, true, nil
	}
	return model.User{}, false, nil
}

// FetchUserByID returns the User object id. An absent object is a
// KindNotFound error.
func (b *Builder) FetchUserByID(ctx context.Context, id string) (model.User, error) {
	resp, err := b.Reader.GetObject(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	return DecodeUser(resp)
}

// FetchUserPosts returns every Post owned by addr, in ledger order. Ownership
// is authorship, so Author is addr.
func (b *Builder) FetchUserPosts(ctx context.Context, addr ledger.Address) ([]model.Post, error) {
	objs, err := ledger.AllOwnedObjects(ctx, b.Reader, ledger.OwnedObjectsQuery{
		Owner:      addr,
		StructType: b.Types.Post(),
	})
	if err != nil {
		return nil, err
	}
	posts := make([]model.Post, 0, len(objs))
	for _, resp := range objs {
		f, err := decode.Object(resp)
		if err != nil {
			return nil, err
		}
		p, _, err := decodePost(f)
		if err != nil {
			return nil, err
		}
		p.Author = addr
		posts = append(posts, p)
	}
	return posts, nil
}

// FetchPost returns a post with its author and metadata.
//
// The post's owner is its author; an owner that is not an address fails with
// KindInvalidOwner. Metadata is read in a second, separate fetch: if it is
// gone or no longer linked to the post by then, the post is returned without
// metadata.
func (b *Builder) FetchPost(ctx context.Context, id string) (model.Post, error) {
	resp, err := b.Reader.GetObject(ctx, id)
	if err != nil {
		return model.Post{}, err
	}
	f, err := decode.Object(resp)
	if err != nil {
		return model.Post{}, err
	}
	owner := decode.Owner(resp)
	author, ok := owner.Address()
	if !ok {
		return model.Post{}, &model.Error{
			Kind:     model.KindInvalidOwner,
			ObjectID: f.ObjectID(),
			Message:  fmt.Sprintf("post owner is %s", owner.Kind),
		}
	}
	post, metaID, err := decodePost(f)
	if err != nil {
		return model.Post{}, err
	}
	post.Author = author

	meta, err := b.fetchMetadata(ctx, post.ID, metaID)
	switch {
	case err == nil:
		post.Metadata = meta
	case model.IsKind(err, model.KindMetadataUnavailable):
		b.logger().Warn("post metadata unavailable", "post", post.ID, "err", err)
	default:
		return model.Post{}, err
	}
	return post, nil
}

func (b *Builder) fetchMetadata(ctx context.Context, postID, metaID string) (*model.PostMetadata, error) {
	unavailable := func(msg string, cause error) error {
		return &model.Error{Kind: model.KindMetadataUnavailable, ObjectID: postID, Field: "post_metadata_id", Message: msg, Cause: cause}
	}
	if metaID == "" {
		return nil, unavailable("post has no metadata link", nil)
	}
	resp, err := b.Reader.GetObject(ctx, metaID)
	if err != nil {
		return nil, err
	}
	if resp.NotFound() {
		return nil, unavailable("metadata object "+metaID+" is gone", model.NotFound(metaID))
	}
	f, err := decode.Object(resp)
	if err != nil {
		return nil, err
	}
	meta, linkedPost, err := decodeMetadata(f)
	if err != nil {
		return nil, err
	}
	if linkedPost != "" && linkedPost != postID {
		return nil, unavailable("metadata "+metaID+" belongs to post "+linkedPost, nil)
	}
	return &meta, nil
}

// DecodeUser decodes a User object. The profile fields accept both the
// name/profile_image_id and the username/image layouts.
func DecodeUser(resp ledger.ObjectResponse) (model.User, error) {
	f, err := decode.Object(resp)
	if err != nil {
		return model.User{}, err
	}
	id, err := f.UID()
	if err != nil {
		return model.User{}, err
	}
	name, err := firstString(f, "name", "username")
	if err != nil {
		return model.User{}, err
	}
	image, err := firstOptString(f, "profile_image_id", "image")
	if err != nil {
		return model.User{}, err
	}
	bio, err := f.OptString("bio")
	if err != nil {
		return model.User{}, err
	}
	return model.User{ID: id, Username: name, ProfileImageID: image, Bio: bio}, nil
}

func firstString(f decode.Fields, names ...string) (string, error) {
	for _, n := range names {
		if f.Has(n) {
			return f.String(n)
		}
	}
	return f.String(names[0])
}

func firstOptString(f decode.Fields, names ...string) (*string, error) {
	for _, n := range names {
		if f.Has(n) {
			return f.OptString(n)
		}
	}
	return nil, nil
}

// decodePost returns the post and the id of its metadata object ("" when the
// post carries no link).
func decodePost(f decode.Fields) (model.Post, string, error) {
	var p model.Post
	var err error
	if p.ID, err = f.UID(); err != nil {
		return model.Post{}, "", err
	}
	if p.Title, err = f.String("title"); err != nil {
		return model.Post{}, "", err
	}
	if p.ContentBlobID, err = f.String("post_blob_id"); err != nil {
		return model.Post{}, "", err
	}
	if p.ThumbnailBlobID, err = f.OptString("thumbnail_blob_id"); err != nil {
		return model.Post{}, "", err
	}
	if p.CreatedAt, err = f.UnixMillis("created_at"); err != nil {
		return model.Post{}, "", err
	}
	var metaID string
	if f.Has("post_metadata_id") {
		if metaID, err = f.ID("post_metadata_id"); err != nil {
			return model.Post{}, "", err
		}
	}
	return p, metaID, nil
}

// decodeMetadata returns the metadata and the post it points back to.
func decodeMetadata(f decode.Fields) (model.PostMetadata, string, error) {
	var m model.PostMetadata
	var err error
	if m.ID, err = f.UID(); err != nil {
		return model.PostMetadata{}, "", err
	}
	price, err := f.OptUint64("price")
	if err != nil {
		return model.PostMetadata{}, "", err
	}
	if price != nil {
		m.Price = *price
	}
	if m.ReviewIDs, err = f.VecSet("reviews"); err != nil {
		return model.PostMetadata{}, "", err
	}
	var postID string
	if f.Has("post_id") {
		if postID, err = f.ID("post_id"); err != nil {
			return model.PostMetadata{}, "", err
		}
	}
	return m, postID, nil
}
