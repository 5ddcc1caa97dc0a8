// Package reviews reconstructs a post's reviews, their vote tallies and the
// viewer's own vote from review objects on the ledger.
package reviews

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"onigiri.dev/shake/decode"
	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/model"
)

// DefaultConcurrency bounds concurrent reviewer lookups.
const DefaultConcurrency = 4

// UserFetcher resolves a reviewer's profile. *readmodel.Builder implements it.
type UserFetcher interface {
	FetchUser(ctx context.Context, addr ledger.Address) (model.User, bool, error)
}

type Reconstructor struct {
	Reader ledger.Reader
	Users  UserFetcher
	Logger *slog.Logger
	// Concurrency defaults to DefaultConcurrency.
	Concurrency int
}

func (r *Reconstructor) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Reconstructor) concurrency() int {
	if r.Concurrency > 0 {
		return r.Concurrency
	}
	return DefaultConcurrency
}

// FetchPostReviews returns the reviews ids name, in the order given.
//
// viewer, when set, marks the viewer's own reviews and fills in the viewer's
// vote; it never changes which reviews are returned. A review that fails to
// decode is left out; a failure to read the batch at all yields an empty
// result. Neither is returned as an error.
func (r *Reconstructor) FetchPostReviews(ctx context.Context, ids []string, viewer *ledger.Address) []model.Review {
	if len(ids) == 0 {
		return []model.Review{}
	}
	resps, err := ledger.MultiGetAll(ctx, r.Reader, ids)
	if err != nil {
		r.logger().Error("review batch fetch failed", "reviews", len(ids), "err", err)
		return []model.Review{}
	}

	raws := make([]rawReview, 0, len(resps))
	for i, resp := range resps {
		raw, err := decodeReview(resp)
		if err != nil {
			r.logger().Warn("dropping review", "review", ids[i], "err", err)
			continue
		}
		if viewer != nil {
			raw.review.CurrentUserVote = r.viewerVote(raw, *viewer)
		}
		raws = append(raws, raw)
	}

	authors := r.resolveAuthors(ctx, raws)
	out := make([]model.Review, 0, len(raws))
	for _, raw := range raws {
		rv := raw.review
		rv.Author = model.AuthorFromUser(authors[raw.reviewer])
		rv.IsCurrentUserReview = viewer != nil && *viewer == raw.reviewer
		out = append(out, rv)
	}
	return out
}

// resolveAuthors looks each distinct reviewer up once. Reviewers that cannot
// be resolved map to nil.
func (r *Reconstructor) resolveAuthors(ctx context.Context, raws []rawReview) map[ledger.Address]*model.User {
	var addrs []ledger.Address
	seen := make(map[ledger.Address]bool, len(raws))
	for _, raw := range raws {
		if !seen[raw.reviewer] {
			seen[raw.reviewer] = true
			addrs = append(addrs, raw.reviewer)
		}
	}
	authors := make(map[ledger.Address]*model.User, len(addrs))
	if r.Users == nil {
		return authors
	}

	// One slot per address; merged after Wait.
	slots := make([]*model.User, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency())
	for i, addr := range addrs {
		g.Go(func() error {
			u, found, err := r.Users.FetchUser(gctx, addr)
			switch {
			case err != nil:
				r.logger().Warn("reviewer lookup failed, showing anonymous", "reviewer", addr, "err", err)
			case !found:
				r.logger().Debug("reviewer has no profile", "reviewer", addr)
			default:
				slots[i] = &u
			}
			return nil
		})
	}
	_ = g.Wait()
	for i, addr := range addrs {
		authors[addr] = slots[i]
	}
	return authors
}

type rawReview struct {
	review   model.Review
	reviewer ledger.Address
	fields   decode.Fields
}

func decodeReview(resp ledger.ObjectResponse) (rawReview, error) {
	f, err := decode.Object(resp)
	if err != nil {
		return rawReview{}, err
	}
	var rv model.Review
	if rv.ID, err = f.UID(); err != nil {
		return rawReview{}, err
	}
	if rv.Content, err = f.String("content"); err != nil {
		return rawReview{}, err
	}
	if rv.Content == "" {
		return rawReview{}, model.DecodeError(f.ObjectID(), "content", "empty")
	}
	reviewer, err := f.Address("reviewer")
	if err != nil {
		return rawReview{}, err
	}
	if rv.CreatedAt, err = f.UnixMillis("created_at"); err != nil {
		return rawReview{}, err
	}
	if rv.HelpfulCount, rv.NotHelpfulCount, err = tally(f); err != nil {
		return rawReview{}, err
	}
	return rawReview{review: rv, reviewer: reviewer, fields: f}, nil
}

// tally reads review_vote_count. Reactions other than Helpful and NotHelpful
// are skipped. An absent map counts as no votes.
func tally(f decode.Fields) (helpful, notHelpful uint64, err error) {
	if !f.Has("review_vote_count") {
		return 0, 0, nil
	}
	entries, err := f.VecMap("review_vote_count")
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		tag, ok := decode.Variant(e.Key)
		if !ok {
			return 0, 0, model.DecodeError(f.ObjectID(), e.Path+".key", "expected reaction variant")
		}
		v, ok := model.ParseVote(tag)
		if !ok {
			continue
		}
		n, err := decode.Uint64Value(e.Value)
		if err != nil {
			return 0, 0, model.DecodeError(f.ObjectID(), e.Path+".value", err.Error())
		}
		if v == model.VoteHelpful {
			helpful = n
		} else {
			notHelpful = n
		}
	}
	return helpful, notHelpful, nil
}

// viewerVote looks viewer up in review_votes. Voter keys are unique, so
// entries with unreadable keys are skipped rather than spoiling the lookup.
// A vote the tally does not count reads as VoteNone.
func (r *Reconstructor) viewerVote(raw rawReview, viewer ledger.Address) model.Vote {
	f := raw.fields
	if !f.Has("review_votes") {
		return model.VoteNone
	}
	entries, err := f.VecMap("review_votes")
	if err != nil {
		r.logger().Warn("unreadable review_votes, viewer vote unknown", "review", raw.review.ID, "err", err)
		return model.VoteNone
	}
	for _, e := range entries {
		s, ok := e.Key.(string)
		if !ok {
			continue
		}
		voter, err := ledger.ParseAddress(s)
		if err != nil || voter != viewer {
			continue
		}
		tag, _ := decode.Variant(e.Value)
		v, ok := model.ParseVote(tag)
		if !ok {
			// A reaction kind this client does not know about.
			return model.VoteNone
		}
		if !counted(raw.review, v) {
			r.logger().Warn("viewer vote not counted in tally", "review", raw.review.ID, "vote", v)
			return model.VoteNone
		}
		return v
	}
	return model.VoteNone
}

func counted(rv model.Review, v model.Vote) bool {
	switch v {
	case model.VoteHelpful:
		return rv.HelpfulCount > 0
	case model.VoteNotHelpful:
		return rv.NotHelpfulCount > 0
	}
	return true
}
