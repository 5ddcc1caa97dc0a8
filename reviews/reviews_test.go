package reviews

import (
	"context"
	"errors"
	"sync"
	"testing"

	"onigiri.dev/shake/blog"
	"onigiri.dev/shake/blog/devchain"
	"onigiri.dev/shake/keys"
	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/ledger/memledger"
	"onigiri.dev/shake/model"
	"onigiri.dev/shake/readmodel"
)

var types = blog.Types{PackageID: "0x00000000000000000000000000000000000000000000000000000000000000b1"}

var (
	addrX = ledger.MustParseAddress("0xaaa")
	addrV = ledger.MustParseAddress("0xbbb")
)

type vote struct {
	voter ledger.Address
	tag   string
}

func tallyFields(counts map[string]uint64, order ...string) map[string]any {
	entries := make([]memledger.MapEntry, 0, len(order))
	for _, tag := range order {
		entries = append(entries, memledger.MapEntry{Key: memledger.Variant(tag), Value: memledger.U64(counts[tag])})
	}
	return memledger.VecMap(types.Reaction(), "u64", entries)
}

func votesFields(vs ...vote) map[string]any {
	entries := make([]memledger.MapEntry, len(vs))
	for i, v := range vs {
		entries[i] = memledger.MapEntry{Key: string(v.voter), Value: memledger.Variant(v.tag)}
	}
	return memledger.VecMap("address", types.Reaction(), entries)
}

func putReview(l *memledger.Ledger, reviewer ledger.Address, content string, tally map[string]any, votes map[string]any) string {
	return l.Put(memledger.Object{
		Type:  types.Review(),
		Owner: ledger.SharedOwner(1),
		Fields: map[string]any{
			"content":           content,
			"reviewer":          string(reviewer),
			"created_at":        "1700000000000",
			"review_vote_count": tally,
			"review_votes":      votes,
		},
	})
}

type fakeUsers struct {
	mu    sync.Mutex
	calls map[ledger.Address]int
	users map[ledger.Address]model.User
	fail  map[ledger.Address]bool
}

func (f *fakeUsers) FetchUser(_ context.Context, addr ledger.Address) (model.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[ledger.Address]int{}
	}
	f.calls[addr]++
	if f.fail[addr] {
		return model.User{}, false, model.TransportError("suix_getOwnedObjects", errors.New("connection reset"))
	}
	u, ok := f.users[addr]
	return u, ok, nil
}

func TestFetchPostReviews_Scenario(t *testing.T) {
	l := memledger.New()
	a := putReview(l, addrX, "great",
		tallyFields(map[string]uint64{"Helpful": 3, "NotHelpful": 1}, "Helpful", "NotHelpful"),
		votesFields(vote{addrX, "Helpful"}))
	b := putReview(l, addrV, "mine",
		tallyFields(map[string]uint64{"Helpful": 0, "NotHelpful": 0}, "Helpful", "NotHelpful"),
		votesFields())

	users := &fakeUsers{users: map[ledger.Address]model.User{addrX: {ID: "0x1", Username: "x"}}}
	r := &Reconstructor{Reader: l, Users: users}
	viewer := addrV
	got := r.FetchPostReviews(context.Background(), []string{a, b}, &viewer)

	if len(got) != 2 || got[0].ID != a || got[1].ID != b {
		t.Fatalf("unexpected reviews %+v", got)
	}
	if got[0].IsCurrentUserReview || got[0].CurrentUserVote != model.VoteNone {
		t.Fatalf("A: current=%v vote=%v", got[0].IsCurrentUserReview, got[0].CurrentUserVote)
	}
	if got[0].HelpfulCount != 3 || got[0].NotHelpfulCount != 1 {
		t.Fatalf("A tally = %d/%d", got[0].HelpfulCount, got[0].NotHelpfulCount)
	}
	if got[0].Author.Name != "x" {
		t.Fatalf("A author = %+v", got[0].Author)
	}
	if !got[1].IsCurrentUserReview || got[1].CurrentUserVote != model.VoteNone {
		t.Fatalf("B: current=%v vote=%v", got[1].IsCurrentUserReview, got[1].CurrentUserVote)
	}
	if got[1].Author.Name != model.AnonymousName {
		t.Fatalf("B author should be anonymous, got %+v", got[1].Author)
	}
}

func TestFetchPostReviews_TalliesAndViewerVote(t *testing.T) {
	l := memledger.New()
	cases := []struct {
		name    string
		tally   map[string]any
		votes   map[string]any
		helpful uint64
		not     uint64
		vote    model.Vote
	}{
		{
			name:    "reversed order",
			tally:   tallyFields(map[string]uint64{"Helpful": 7, "NotHelpful": 2}, "NotHelpful", "Helpful"),
			votes:   votesFields(vote{addrX, "NotHelpful"}, vote{addrV, "Helpful"}),
			helpful: 7, not: 2, vote: model.VoteHelpful,
		},
		{
			name:    "unknown reaction ignored",
			tally:   tallyFields(map[string]uint64{"Helpful": 1, "Funny": 9, "NotHelpful": 4}, "Helpful", "Funny", "NotHelpful"),
			votes:   votesFields(vote{addrV, "NotHelpful"}),
			helpful: 1, not: 4, vote: model.VoteNotHelpful,
		},
		{
			name:    "viewer voted with unknown reaction",
			tally:   tallyFields(map[string]uint64{"Helpful": 1}, "Helpful"),
			votes:   votesFields(vote{addrV, "Funny"}),
			helpful: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := putReview(l, addrX, "c", tc.tally, tc.votes)
			viewer := addrV
			got := (&Reconstructor{Reader: l}).FetchPostReviews(context.Background(), []string{id}, &viewer)
			if len(got) != 1 {
				t.Fatalf("got %d reviews", len(got))
			}
			rv := got[0]
			if rv.HelpfulCount != tc.helpful || rv.NotHelpfulCount != tc.not || rv.CurrentUserVote != tc.vote {
				t.Fatalf("got %d/%d vote=%s", rv.HelpfulCount, rv.NotHelpfulCount, rv.CurrentUserVote)
			}
		})
	}
}

func TestFetchPostReviews_NoViewer(t *testing.T) {
	l := memledger.New()
	id := putReview(l, addrV, "c",
		tallyFields(map[string]uint64{"Helpful": 1}, "Helpful"),
		votesFields(vote{addrV, "Helpful"}))
	got := (&Reconstructor{Reader: l}).FetchPostReviews(context.Background(), []string{id}, nil)
	if len(got) != 1 || got[0].IsCurrentUserReview || got[0].CurrentUserVote != model.VoteNone {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestFetchPostReviews_ViewerDoesNotChangeResultSet(t *testing.T) {
	l := memledger.New()
	badKey := memledger.VecMap("address", types.Reaction(), []memledger.MapEntry{
		{Key: "not-an-address", Value: memledger.Variant("NotHelpful")},
		{Key: string(addrV), Value: memledger.Variant("Helpful")},
	})
	cases := []struct {
		name  string
		tally map[string]any
		votes any
		vote  model.Vote
	}{
		{"vote not counted", tallyFields(map[string]uint64{"Helpful": 0}, "Helpful"), votesFields(vote{addrV, "Helpful"}), model.VoteNone},
		{"unreadable voter key", tallyFields(map[string]uint64{"Helpful": 1}, "Helpful"), badKey, model.VoteHelpful},
		{"voter map wrong shape", tallyFields(map[string]uint64{"Helpful": 1}, "Helpful"), "garbage", model.VoteNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := l.Put(memledger.Object{Type: types.Review(), Owner: ledger.SharedOwner(1), Fields: map[string]any{
				"content":           "c",
				"reviewer":          string(addrX),
				"created_at":        "1",
				"review_vote_count": tc.tally,
				"review_votes":      tc.votes,
			}})
			r := &Reconstructor{Reader: l}
			anon := r.FetchPostReviews(context.Background(), []string{id}, nil)
			viewer := addrV
			seen := r.FetchPostReviews(context.Background(), []string{id}, &viewer)
			if len(anon) != 1 || len(seen) != 1 {
				t.Fatalf("anonymous sees %d reviews, viewer sees %d", len(anon), len(seen))
			}
			if seen[0].CurrentUserVote != tc.vote {
				t.Fatalf("vote = %s, want %s", seen[0].CurrentUserVote, tc.vote)
			}
		})
	}
}

func TestFetchPostReviews_DropsMalformed(t *testing.T) {
	l := memledger.New()
	good := tallyFields(map[string]uint64{"Helpful": 1, "NotHelpful": 0}, "Helpful", "NotHelpful")
	ids := []string{
		putReview(l, addrX, "one", good, votesFields()),
		putReview(l, addrX, "two", good, votesFields()),
		putReview(l, addrX, "three", good, votesFields()),
	}
	broken := []map[string]any{
		{"content": "no reviewer", "created_at": "1"},
		{"reviewer": string(addrX), "created_at": "1"},
		{"content": "bad count", "reviewer": string(addrX), "created_at": "1",
			"review_vote_count": memledger.VecMap(types.Reaction(), "u64", []memledger.MapEntry{
				{Key: memledger.Variant("Helpful"), Value: "many"},
			})},
	}
	viewer := addrV
	for _, fields := range broken {
		bad := l.Put(memledger.Object{Type: types.Review(), Owner: ledger.SharedOwner(1), Fields: fields})
		batch := []string{ids[0], bad, ids[1], ids[2]}
		got := (&Reconstructor{Reader: l}).FetchPostReviews(context.Background(), batch, &viewer)
		if len(got) != len(ids) {
			t.Fatalf("%v: expected %d reviews, got %d", fields["content"], len(ids), len(got))
		}
		for i := range ids {
			if got[i].ID != ids[i] {
				t.Fatalf("order changed: %v", got)
			}
		}
	}

	missing := (&Reconstructor{Reader: l}).FetchPostReviews(context.Background(), []string{ids[0], "0xdead"}, nil)
	if len(missing) != 1 {
		t.Fatalf("missing review should be dropped, got %d", len(missing))
	}
}

type downReader struct{ ledger.Reader }

func (downReader) MultiGetObjects(context.Context, []string) ([]ledger.ObjectResponse, error) {
	return nil, model.TransportError("sui_multiGetObjects", errors.New("dial tcp: connection refused"))
}

func TestFetchPostReviews_BatchFailureIsEmpty(t *testing.T) {
	got := (&Reconstructor{Reader: downReader{}}).FetchPostReviews(context.Background(), []string{"0x1", "0x2"}, nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestFetchPostReviews_ResolvesEachReviewerOnce(t *testing.T) {
	l := memledger.New()
	addrY := ledger.MustParseAddress("0xccc")
	tally := tallyFields(nil, "Helpful")
	var ids []string
	for _, who := range []ledger.Address{addrX, addrY, addrX, addrX, addrY, addrV} {
		ids = append(ids, putReview(l, who, "c", tally, votesFields()))
	}
	users := &fakeUsers{
		users: map[ledger.Address]model.User{addrX: {Username: "x"}, addrY: {Username: "y"}},
		fail:  map[ledger.Address]bool{addrV: true},
	}
	got := (&Reconstructor{Reader: l, Users: users, Concurrency: 2}).FetchPostReviews(context.Background(), ids, nil)
	if len(got) != len(ids) {
		t.Fatalf("got %d reviews", len(got))
	}
	for addr, n := range users.calls {
		if n != 1 {
			t.Fatalf("%s resolved %d times", addr, n)
		}
	}
	if len(users.calls) != 3 {
		t.Fatalf("expected 3 lookups, got %v", users.calls)
	}
	want := []string{"x", "y", "x", "x", "y", model.AnonymousName}
	for i, rv := range got {
		if rv.Author.Name != want[i] {
			t.Fatalf("review %d author %q want %q", i, rv.Author.Name, want[i])
		}
	}
}

func TestFetchPostReviews_OnDevchain(t *testing.T) {
	ctx := context.Background()
	l := memledger.New()
	devchain.Install(l, types)
	account := func(b byte) *devchain.Account {
		seed := make([]byte, 32)
		seed[0] = b
		s, err := keys.NewEd25519Signer(seed)
		if err != nil {
			t.Fatalf("NewEd25519Signer: %v", err)
		}
		return devchain.NewAccount(types, s, l)
	}
	author, critic, fan := account(1), account(2), account(3)

	userID, err := author.CreateUser(ctx, blog.Profile{Name: "chef"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := critic.CreateUser(ctx, blog.Profile{Name: "critic", ProfileImageID: "bafkreicritic"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	postID, err := author.CreatePost(ctx, blog.NewPost{UserObjectID: userID, Title: "t", ContentBlobID: "c"})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	rm := &readmodel.Builder{Reader: l, Types: types}
	post, err := rm.FetchPost(ctx, postID)
	if err != nil {
		t.Fatalf("FetchPost: %v", err)
	}
	reviewID, err := critic.CreateReview(ctx, post.Metadata.ID, "solid")
	if err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	if err := fan.Vote(ctx, reviewID, model.VoteHelpful); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if err := author.Vote(ctx, reviewID, model.VoteNotHelpful); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if post, err = rm.FetchPost(ctx, postID); err != nil {
		t.Fatalf("FetchPost: %v", err)
	}

	viewer := fan.Address()
	got := (&Reconstructor{Reader: l, Users: rm}).FetchPostReviews(ctx, post.Metadata.ReviewIDs, &viewer)
	if len(got) != 1 {
		t.Fatalf("got %d reviews", len(got))
	}
	rv := got[0]
	if rv.Content != "solid" || rv.HelpfulCount != 1 || rv.NotHelpfulCount != 1 || rv.CurrentUserVote != model.VoteHelpful {
		t.Fatalf("unexpected review %+v", rv)
	}
	if rv.Author.Name != "critic" || rv.Author.Image == nil || *rv.Author.Image != "bafkreicritic" {
		t.Fatalf("unexpected author %+v", rv.Author)
	}
	if rv.IsCurrentUserReview {
		t.Fatalf("fan did not write the review")
	}
}
