package devchain

import (
	"context"
	"errors"
	"testing"

	"onigiri.dev/shake/blog"
	"onigiri.dev/shake/decode"
	"onigiri.dev/shake/keys"
	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/ledger/memledger"
	"onigiri.dev/shake/model"
)

var types = blog.Types{PackageID: "0x00000000000000000000000000000000000000000000000000000000000000b1"}

func account(t *testing.T, l *memledger.Ledger, b byte) *Account {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = b
	}
	s, err := keys.NewEd25519Signer(seed)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	return NewAccount(types, s, l)
}

func fields(t *testing.T, l *memledger.Ledger, id string) decode.Fields {
	t.Helper()
	resp, err := l.GetObject(context.Background(), id)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	f, err := decode.Object(resp)
	if err != nil {
		t.Fatalf("decode.Object(%s): %v", id, err)
	}
	return f
}

func TestContract_PostReviewVote(t *testing.T) {
	ctx := context.Background()
	l := memledger.New()
	Install(l, types)
	author, reader := account(t, l, 1), account(t, l, 2)

	userID, err := author.CreateUser(ctx, blog.Profile{Name: "chef"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	price := uint64(5)
	postID, err := author.CreatePost(ctx, blog.NewPost{UserObjectID: userID, Title: "Rice", ContentBlobID: "blob", Price: &price})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	post := fields(t, l, postID)
	metaID, err := post.ID("post_metadata_id")
	if err != nil {
		t.Fatalf("post_metadata_id: %v", err)
	}
	if thumb, err := post.OptString("thumbnail_blob_id"); err != nil || thumb != nil {
		t.Fatalf("thumbnail = %v %v", thumb, err)
	}

	reviewID, err := reader.CreateReview(ctx, metaID, "tasty")
	if err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	meta := fields(t, l, metaID)
	if ids, err := meta.VecSet("reviews"); err != nil || len(ids) != 1 || ids[0] != reviewID {
		t.Fatalf("reviews = %v %v", ids, err)
	}
	if p, err := meta.OptUint64("price"); err != nil || p == nil || *p != 5 {
		t.Fatalf("price = %v %v", p, err)
	}

	if err := author.Vote(ctx, reviewID, model.VoteHelpful); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if err := author.Vote(ctx, reviewID, model.VoteHelpful); !errors.Is(err, ledger.ErrExecutionFailed) {
		t.Fatalf("expected repeated vote to abort, got %v", err)
	}
	if err := author.Vote(ctx, reviewID, model.VoteNotHelpful); err != nil {
		t.Fatalf("Vote change: %v", err)
	}

	review := fields(t, l, reviewID)
	counts, err := review.VecMap("review_vote_count")
	if err != nil {
		t.Fatalf("review_vote_count: %v", err)
	}
	want := map[string]uint64{"Helpful": 0, "NotHelpful": 1}
	for _, e := range counts {
		tag, _ := decode.Variant(e.Key)
		n, err := decode.Uint64Value(e.Value)
		if err != nil || n != want[tag] {
			t.Fatalf("%s = %d %v", tag, n, err)
		}
	}
	votes, err := review.VecMap("review_votes")
	if err != nil || len(votes) != 1 || votes[0].Key != string(author.Address()) {
		t.Fatalf("review_votes = %+v %v", votes, err)
	}
}

func TestContract_PostRequiresOwnUser(t *testing.T) {
	ctx := context.Background()
	l := memledger.New()
	Install(l, types)
	owner, other := account(t, l, 1), account(t, l, 2)

	userID, err := owner.CreateUser(ctx, blog.Profile{Name: "owner"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	_, err = other.CreatePost(ctx, blog.NewPost{UserObjectID: userID, Title: "x", ContentBlobID: "y"})
	if !errors.Is(err, ledger.ErrExecutionFailed) {
		t.Fatalf("expected failure posting with someone else's user, got %v", err)
	}
}
