package readmodel

import (
	"context"
	"errors"

	"onigiri.dev/shake/cidutil"
	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/model"
	"onigiri.dev/shake/storage"
)

// FetchPostContent reads a post body from the blob store. A blob the store
// does not hold is a KindNotFound error; any other store failure is
// KindTransport with the store's error (e.g. *aggregator.HTTPError) as cause.
func (b *Builder) FetchPostContent(ctx context.Context, blobID string) ([]byte, error) {
	if b.Blobs == nil {
		return nil, errors.New("readmodel: no blob store configured")
	}
	id, err := cidutil.ParseBlobID(blobID)
	if err != nil {
		return nil, &model.Error{Kind: model.KindDecode, Field: "post_blob_id", Message: "invalid blob id " + blobID, Cause: err}
	}
	data, err := b.Blobs.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, &model.Error{Kind: model.KindNotFound, ObjectID: blobID, Message: "blob not found", Cause: err}
		}
		return nil, model.TransportError("fetch blob "+blobID, err)
	}
	return data, nil
}

// ReadPost returns the readable body of post. Paid posts are decrypted on
// behalf of reader, who must be approved by the key servers.
func (b *Builder) ReadPost(ctx context.Context, post model.Post, reader ledger.Signer) ([]byte, error) {
	data, err := b.FetchPostContent(ctx, post.ContentBlobID)
	if err != nil {
		return nil, err
	}
	if !post.IsPaid() {
		return data, nil
	}
	if b.Decryptor == nil {
		return nil, errors.New("readmodel: paid post needs a decryptor")
	}
	if reader == nil {
		return nil, model.ValidationError("reader", "paid posts need a reader to decrypt")
	}
	return b.Decryptor.Decrypt(ctx, data, reader)
}
