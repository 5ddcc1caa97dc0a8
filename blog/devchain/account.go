package devchain

import (
	"context"
	"fmt"

	"onigiri.dev/shake/blog"
	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/model"
)

// Account drives the contract as one signer. It is used to seed development
// ledgers and by tests.
type Account struct {
	Types blog.Types
	Exec  ledger.SigningExecutor
}

func NewAccount(types blog.Types, signer ledger.Signer, w ledger.Writer) *Account {
	return &Account{Types: types, Exec: ledger.SigningExecutor{Signer: signer, Writer: w}}
}

func (a *Account) Address() ledger.Address { return a.Exec.Signer.Address() }

func (a *Account) run(ctx context.Context, build func(tx *ledger.Transaction) error, created string) (string, error) {
	var tx ledger.Transaction
	if err := build(&tx); err != nil {
		return "", err
	}
	res, err := a.Exec.Execute(ctx, &tx)
	if err != nil {
		return "", err
	}
	if created == "" {
		return "", nil
	}
	c, ok := res.Created(created)
	if !ok {
		return "", fmt.Errorf("devchain: transaction %s created no %s", res.Digest, created)
	}
	return c.ObjectID, nil
}

// CreateUser returns the new User object id.
func (a *Account) CreateUser(ctx context.Context, p blog.Profile) (string, error) {
	return a.run(ctx, func(tx *ledger.Transaction) error { return a.Types.CreateUser(tx, p) }, a.Types.User())
}

// CreatePost returns the new Post object id.
func (a *Account) CreatePost(ctx context.Context, p blog.NewPost) (string, error) {
	return a.run(ctx, func(tx *ledger.Transaction) error {
		a.Types.CreatePost(tx, p)
		return nil
	}, a.Types.Post())
}

// CreateReview returns the new Review object id.
func (a *Account) CreateReview(ctx context.Context, metadataID, content string) (string, error) {
	return a.run(ctx, func(tx *ledger.Transaction) error { return a.Types.CreateReview(tx, metadataID, content) }, a.Types.Review())
}

func (a *Account) Vote(ctx context.Context, reviewID string, v model.Vote) error {
	_, err := a.run(ctx, func(tx *ledger.Transaction) error { return a.Types.VoteForReview(tx, reviewID, v) }, "")
	return err
}
