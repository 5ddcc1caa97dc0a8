// Package publish turns a draft into a Post on the ledger.
//
// A paid draft is threshold-encrypted under a fresh content identifier before
// upload; a free draft is uploaded as is. The uploaded body's blob id goes
// into a create_post transaction, which the caller's Executor signs and
// submits. Nothing is retried: resubmitting a signed transaction is the
// caller's decision.
package publish

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"onigiri.dev/shake/blog"
	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/model"
	"onigiri.dev/shake/storage"
	"onigiri.dev/shake/threshold"
)

// ErrNoPostCreated means a transaction succeeded without creating a Post.
var ErrNoPostCreated = errors.New("publish: transaction created no post")

// Draft is the author's input. Price 0 publishes a free post.
type Draft struct {
	UserObjectID    string
	ThumbnailBlobID string
	Title           string
	Content         string
	Price           uint64
}

func (d Draft) Paid() bool { return d.Price > 0 }

// Validate checks d without touching the network.
func Validate(d Draft) error {
	switch {
	case strings.TrimSpace(d.Title) == "":
		return model.ValidationError("title", "title is required")
	case strings.TrimSpace(d.Content) == "":
		return model.ValidationError("content", "content is required")
	case strings.TrimSpace(d.UserObjectID) == "":
		return model.ValidationError("userObjectId", "a user profile is required to publish")
	}
	return nil
}

// Executor signs and submits a transaction. ledger.SigningExecutor is one.
type Executor interface {
	Execute(ctx context.Context, tx *ledger.Transaction) (ledger.ExecutionResult, error)
}

// Attempt is one run of the pipeline over a draft.
type Attempt struct {
	Draft Draft
	// History lists every state entered, starting with Idle.
	History []State

	// Identifier is set for paid drafts once encryption starts.
	Identifier    threshold.Identifier
	ContentBlobID string
	Tx            *ledger.Transaction
	Digest        string
	PostID        string
	Err           error

	observer Observer
	logger   *slog.Logger
}

func (a *Attempt) State() State { return a.History[len(a.History)-1] }

func (a *Attempt) enter(s State) {
	from := a.State()
	a.History = append(a.History, s)
	a.logger.Debug("publish transition", "from", from, "to", s, "title", a.Draft.Title)
	if a.observer != nil {
		a.observer.Transition(a, from, s)
	}
}

func (a *Attempt) fail(err error) error {
	a.Err = err
	a.enter(Failed)
	a.logger.Error("publish failed", "title", a.Draft.Title, "err", err)
	return err
}

// Result is what a confirmed attempt reports back for navigation.
type Result struct {
	PostID        string               `json:"postId"`
	Digest        string               `json:"digest"`
	ContentBlobID string               `json:"contentBlobId"`
	Identifier    threshold.Identifier `json:"identifier,omitempty"`
}

type Pipeline struct {
	Store     storage.Store
	Encryptor threshold.Encryptor
	Types     blog.Types
	// PolicyID is the policy object content identifiers are derived under.
	PolicyID string
	// Threshold defaults to threshold.DefaultThreshold.
	Threshold int
	// Rand defaults to crypto/rand.
	Rand     io.Reader
	Observer Observer
	Logger   *slog.Logger
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Pipeline) threshold() int {
	if p.Threshold > 0 {
		return p.Threshold
	}
	return threshold.DefaultThreshold
}

func (p *Pipeline) rand() io.Reader {
	if p.Rand != nil {
		return p.Rand
	}
	return rand.Reader
}

// Prepare validates d, encrypts it when paid, uploads it and builds the
// create_post transaction. The returned attempt is in TransactionBuilt on
// success and Failed otherwise; it is never nil.
func (p *Pipeline) Prepare(ctx context.Context, d Draft) (*Attempt, error) {
	a := &Attempt{Draft: d, History: []State{Idle}, observer: p.Observer, logger: p.logger()}
	if err := Validate(d); err != nil {
		return a, a.fail(err)
	}
	if p.Store == nil {
		return a, a.fail(errors.New("publish: no blob store configured"))
	}

	body := []byte(d.Content)
	if d.Paid() {
		a.enter(Encrypting)
		ct, err := p.encrypt(ctx, a, body)
		if err != nil {
			return a, a.fail(err)
		}
		body = ct
	}

	a.enter(Uploading)
	id, err := p.Store.Put(ctx, body)
	if err != nil {
		return a, a.fail(model.TransportError("upload post body", err))
	}
	a.ContentBlobID = id.String()

	var price *uint64
	if d.Paid() {
		price = &d.Price
	}
	tx := &ledger.Transaction{}
	p.Types.CreatePost(tx, blog.NewPost{
		UserObjectID:    d.UserObjectID,
		ThumbnailBlobID: d.ThumbnailBlobID,
		Title:           d.Title,
		ContentBlobID:   a.ContentBlobID,
		Price:           price,
	})
	a.Tx = tx
	a.enter(TransactionBuilt)
	return a, nil
}

func (p *Pipeline) encrypt(ctx context.Context, a *Attempt, body []byte) ([]byte, error) {
	if p.Encryptor == nil {
		return nil, errors.New("publish: paid post needs an encryptor")
	}
	id, err := threshold.DeriveIdentifier(p.PolicyID, p.rand())
	if err != nil {
		return nil, err
	}
	a.Identifier = id
	ct, err := p.Encryptor.Encrypt(ctx, threshold.Request{
		Threshold: p.threshold(),
		PackageID: p.Types.PackageID,
		ID:        id,
		Data:      body,
	})
	if err != nil {
		return nil, fmt.Errorf("publish: encrypt: %w", err)
	}
	return ct, nil
}

// Submit signs and submits a prepared attempt through exec and reports the
// new post's id.
func (p *Pipeline) Submit(ctx context.Context, a *Attempt, exec Executor) (Result, error) {
	if a == nil || a.State() != TransactionBuilt {
		return Result{}, fmt.Errorf("publish: attempt is not ready to submit")
	}
	if exec == nil {
		return Result{}, a.fail(errors.New("publish: no executor to submit with"))
	}
	a.enter(Submitted)
	res, err := exec.Execute(ctx, a.Tx)
	a.Digest = res.Digest
	if err != nil {
		return Result{}, a.fail(err)
	}
	created, ok := res.Created(p.Types.Post())
	if !ok {
		return Result{}, a.fail(fmt.Errorf("%w (digest %s)", ErrNoPostCreated, res.Digest))
	}
	a.PostID = created.ObjectID
	a.enter(Confirmed)
	p.logger().Info("post published", "post", a.PostID, "digest", a.Digest, "paid", a.Draft.Paid())
	return Result{
		PostID:        a.PostID,
		Digest:        a.Digest,
		ContentBlobID: a.ContentBlobID,
		Identifier:    a.Identifier,
	}, nil
}

// Publish runs Prepare and Submit. The attempt is returned in every case so
// callers can inspect how far it got.
func (p *Pipeline) Publish(ctx context.Context, d Draft, exec Executor) (Result, *Attempt, error) {
	a, err := p.Prepare(ctx, d)
	if err != nil {
		return Result{}, a, err
	}
	res, err := p.Submit(ctx, a, exec)
	return res, a, err
}

// UploadThumbnail stores an image and returns its blob id.
func (p *Pipeline) UploadThumbnail(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", model.ValidationError("thumbnail", "image is empty")
	}
	if p.Store == nil {
		return "", errors.New("publish: no blob store configured")
	}
	id, err := p.Store.Put(ctx, image)
	if err != nil {
		return "", model.TransportError("upload thumbnail", err)
	}
	return id.String(), nil
}
