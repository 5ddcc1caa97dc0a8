// Package blog binds the on-ledger blog contract: its type tags and the Move
// calls that create users, posts, reviews and votes.
package blog

import (
	"strings"

	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/model"
)

const (
	ModuleUser = "user"
	ModuleBlog = "blog"

	FuncCreateUser    = "create_user"
	FuncCreatePost    = "create_post"
	FuncCreateReview  = "create_review"
	FuncVoteForReview = "vote_for_review"
)

// Types names the contract's Move types for one published package.
type Types struct {
	PackageID string
}

func (t Types) User() string         { return t.PackageID + "::user::User" }
func (t Types) Post() string         { return t.PackageID + "::blog::Post" }
func (t Types) PostMetadata() string { return t.PackageID + "::blog::PostMetadata" }
func (t Types) Review() string       { return t.PackageID + "::blog::Review" }
func (t Types) Reaction() string     { return t.PackageID + "::blog::Reaction" }

// Target is the full call target of fn in module.
func (t Types) Target(module, fn string) string {
	return t.PackageID + "::" + module + "::" + fn
}

func (t Types) call(module, fn string, args ...ledger.Argument) ledger.MoveCall {
	return ledger.MoveCall{Package: t.PackageID, Module: module, Function: fn, Arguments: args}
}

// Profile is the input of CreateUser.
type Profile struct {
	Name           string
	ProfileImageID string
	Bio            string
}

// CreateUser adds a user::create_user call. The new User is owned by the
// transaction sender.
func (t Types) CreateUser(tx *ledger.Transaction, p Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return model.ValidationError("name", "name is required")
	}
	tx.Add(t.call(ModuleUser, FuncCreateUser,
		ledger.PureString(p.Name),
		ledger.PureString(p.ProfileImageID),
		ledger.PureString(p.Bio),
	))
	return nil
}

// NewPost is the input of CreatePost. A nil Price publishes a free post.
type NewPost struct {
	UserObjectID    string
	ThumbnailBlobID string
	Title           string
	ContentBlobID   string
	Price           *uint64
}

// CreatePost adds a blog::create_post call creating a Post owned by the
// sender and its shared PostMetadata.
func (t Types) CreatePost(tx *ledger.Transaction, p NewPost) {
	tx.Add(t.call(ModuleBlog, FuncCreatePost,
		ledger.Object(p.UserObjectID),
		ledger.PureString(p.ThumbnailBlobID),
		ledger.PureString(p.Title),
		ledger.PureString(p.ContentBlobID),
		ledger.PureOptionU64(p.Price),
		ledger.Object(ledger.ClockObjectID),
	))
}

// CreateReview adds a blog::create_review call on a post's metadata object.
func (t Types) CreateReview(tx *ledger.Transaction, metadataID, content string) error {
	if strings.TrimSpace(content) == "" {
		return model.ValidationError("content", "review content is required")
	}
	tx.Add(t.call(ModuleBlog, FuncCreateReview,
		ledger.Object(metadataID),
		ledger.PureString(content),
		ledger.Object(ledger.ClockObjectID),
	))
	return nil
}

// VoteForReview adds a blog::vote_for_review call. The sender's previous vote
// on the review, if any, is replaced.
func (t Types) VoteForReview(tx *ledger.Transaction, reviewID string, v model.Vote) error {
	if v == model.VoteNone {
		return model.ValidationError("reaction", "a reaction is required")
	}
	tx.Add(t.call(ModuleBlog, FuncVoteForReview,
		ledger.Object(reviewID),
		ledger.PureString(v.Tag()),
	))
	return nil
}
