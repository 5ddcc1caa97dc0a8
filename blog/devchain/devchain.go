// Package devchain runs the blog contract on a memledger.Ledger.
//
// The handlers keep the object layout the read models expect from the real
// contract: owned User and Post objects, shared PostMetadata and Review
// objects, vote tallies and per-voter votes as VecMaps.
package devchain

import (
	"fmt"

	"onigiri.dev/shake/blog"
	"onigiri.dev/shake/decode"
	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/ledger/memledger"
	"onigiri.dev/shake/model"
)

// Abort codes.
const (
	EWrongType uint64 = iota + 1
	ENotClock
	EUnknownReaction
	EAlreadyVoted
	EEmptyContent
)

const idType = "0x2::object::ID"

// Install registers the contract's entry functions for types.PackageID.
func Install(l *memledger.Ledger, types blog.Types) {
	c := contract{types: types}
	l.Register(types.Target(blog.ModuleUser, blog.FuncCreateUser), c.createUser)
	l.Register(types.Target(blog.ModuleBlog, blog.FuncCreatePost), c.createPost)
	l.Register(types.Target(blog.ModuleBlog, blog.FuncCreateReview), c.createReview)
	l.Register(types.Target(blog.ModuleBlog, blog.FuncVoteForReview), c.voteForReview)
}

type contract struct {
	types blog.Types
}

func abort(fn string, code uint64, format string, args ...any) error {
	return &memledger.Abort{Function: fn, Code: code, Message: fmt.Sprintf(format, args...)}
}

func (c contract) input(tx *memledger.Tx, fn, id, typ string) (memledger.Object, error) {
	obj, err := tx.Input(id)
	if err != nil {
		return memledger.Object{}, err
	}
	if obj.Type != typ {
		return memledger.Object{}, abort(fn, EWrongType, "object %s is %s, want %s", obj.ID, obj.Type, typ)
	}
	return obj, nil
}

func checkClock(fn string, arg ledger.Argument) error {
	id, err := ledger.NormalizeID(arg.Object)
	if err != nil || id != ledger.ClockObjectID {
		return abort(fn, ENotClock, "expected the clock object, got %q", arg.Object)
	}
	return nil
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (c contract) createUser(tx *memledger.Tx, call ledger.MoveCall) error {
	args, err := memledger.Args(call, 3)
	if err != nil {
		return err
	}
	var name, image, bio string
	for i, dst := range []*string{&name, &image, &bio} {
		if *dst, err = args[i].AsString(); err != nil {
			return err
		}
	}
	tx.Create(c.types.User(), ledger.AddressOwner(tx.Sender()), map[string]any{
		"name":             name,
		"profile_image_id": optional(image),
		"bio":              optional(bio),
	})
	return nil
}

func (c contract) createPost(tx *memledger.Tx, call ledger.MoveCall) error {
	const fn = blog.FuncCreatePost
	args, err := memledger.Args(call, 6)
	if err != nil {
		return err
	}
	if _, err := c.input(tx, fn, args[0].Object, c.types.User()); err != nil {
		return err
	}
	var thumbnail, title, contentBlob string
	for i, dst := range []*string{&thumbnail, &title, &contentBlob} {
		if *dst, err = args[i+1].AsString(); err != nil {
			return err
		}
	}
	price, err := args[4].AsOptionU64()
	if err != nil {
		return err
	}
	if err := checkClock(fn, args[5]); err != nil {
		return err
	}

	post := map[string]any{
		"thumbnail_blob_id": optional(thumbnail),
		"title":             title,
		"post_blob_id":      contentBlob,
		"created_at":        memledger.U64(uint64(tx.Now().UnixMilli())),
	}
	postID := tx.Create(c.types.Post(), ledger.AddressOwner(tx.Sender()), post)
	metaID := tx.Create(c.types.PostMetadata(), ledger.SharedOwner(1), metadataFields(postID, price, nil))
	post["post_metadata_id"] = metaID
	return tx.Update(postID, post)
}

func metadataFields(postID string, price *uint64, reviews []string) map[string]any {
	return map[string]any{
		"post_id": postID,
		"price":   memledger.OptionU64(price),
		"reviews": memledger.VecSet(idType, reviews),
	}
}

func (c contract) createReview(tx *memledger.Tx, call ledger.MoveCall) error {
	const fn = blog.FuncCreateReview
	args, err := memledger.Args(call, 3)
	if err != nil {
		return err
	}
	meta, err := c.input(tx, fn, args[0].Object, c.types.PostMetadata())
	if err != nil {
		return err
	}
	content, err := args[1].AsString()
	if err != nil {
		return err
	}
	if content == "" {
		return abort(fn, EEmptyContent, "empty review")
	}
	if err := checkClock(fn, args[2]); err != nil {
		return err
	}

	f, err := decode.Object(meta.Response())
	if err != nil {
		return err
	}
	postID, err := f.ID("post_id")
	if err != nil {
		return err
	}
	price, err := f.OptUint64("price")
	if err != nil {
		return err
	}
	reviews, err := f.VecSet("reviews")
	if err != nil {
		return err
	}

	reviewID := tx.Create(c.types.Review(), ledger.SharedOwner(1), map[string]any{
		"post_metadata_id":  meta.ID,
		"content":           content,
		"reviewer":          string(tx.Sender()),
		"created_at":        memledger.U64(uint64(tx.Now().UnixMilli())),
		"review_vote_count": c.tally(0, 0),
		"review_votes":      c.votes(nil),
	})
	return tx.Update(meta.ID, metadataFields(postID, price, append(reviews, reviewID)))
}

func (c contract) tally(helpful, notHelpful uint64) map[string]any {
	return memledger.VecMap(c.types.Reaction(), "u64", []memledger.MapEntry{
		{Key: memledger.Variant(model.VoteHelpful.Tag()), Value: memledger.U64(helpful)},
		{Key: memledger.Variant(model.VoteNotHelpful.Tag()), Value: memledger.U64(notHelpful)},
	})
}

type vote struct {
	voter string
	vote  model.Vote
}

func (c contract) votes(vs []vote) map[string]any {
	entries := make([]memledger.MapEntry, len(vs))
	for i, v := range vs {
		entries[i] = memledger.MapEntry{Key: v.voter, Value: memledger.Variant(v.vote.Tag())}
	}
	return memledger.VecMap("address", c.types.Reaction(), entries)
}

func (c contract) voteForReview(tx *memledger.Tx, call ledger.MoveCall) error {
	const fn = blog.FuncVoteForReview
	args, err := memledger.Args(call, 2)
	if err != nil {
		return err
	}
	review, err := c.input(tx, fn, args[0].Object, c.types.Review())
	if err != nil {
		return err
	}
	tag, err := args[1].AsString()
	if err != nil {
		return err
	}
	v, ok := model.ParseVote(tag)
	if !ok {
		return abort(fn, EUnknownReaction, "unknown reaction %q", tag)
	}

	f, err := decode.Object(review.Response())
	if err != nil {
		return err
	}
	counts := map[model.Vote]uint64{}
	tallyEntries, err := f.VecMap("review_vote_count")
	if err != nil {
		return err
	}
	for _, e := range tallyEntries {
		t, _ := decode.Variant(e.Key)
		k, ok := model.ParseVote(t)
		if !ok {
			continue
		}
		n, err := decode.Uint64Value(e.Value)
		if err != nil {
			return err
		}
		counts[k] = n
	}
	voteEntries, err := f.VecMap("review_votes")
	if err != nil {
		return err
	}
	sender := string(tx.Sender())
	var all []vote
	replaced := false
	for _, e := range voteEntries {
		voter, _ := e.Key.(string)
		t, _ := decode.Variant(e.Value)
		prev, _ := model.ParseVote(t)
		if voter == sender {
			if prev == v {
				return abort(fn, EAlreadyVoted, "%s already voted %s", sender, v)
			}
			if counts[prev] > 0 {
				counts[prev]--
			}
			prev = v
			replaced = true
		}
		all = append(all, vote{voter: voter, vote: prev})
	}
	if !replaced {
		all = append(all, vote{voter: sender, vote: v})
	}
	counts[v]++

	fields := make(map[string]any, len(review.Fields))
	for k, val := range review.Fields {
		fields[k] = val
	}
	fields["review_vote_count"] = c.tally(counts[model.VoteHelpful], counts[model.VoteNotHelpful])
	fields["review_votes"] = c.votes(all)
	return tx.Update(review.ID, fields)
}
