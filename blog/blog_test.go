package blog

import (
	"testing"

	"onigiri.dev/shake/ledger"
	"onigiri.dev/shake/model"
)

var types = Types{PackageID: "0xb1"}

func TestCreatePost_Arguments(t *testing.T) {
	var tx ledger.Transaction
	price := uint64(100)
	types.CreatePost(&tx, NewPost{
		UserObjectID:    "0xuser",
		ThumbnailBlobID: "thumb",
		Title:           "Title",
		ContentBlobID:   "content",
		Price:           &price,
	})
	if len(tx.Commands) != 1 {
		t.Fatalf("expected one command, got %d", len(tx.Commands))
	}
	c := tx.Commands[0]
	if c.Target() != types.Target(ModuleBlog, FuncCreatePost) {
		t.Fatalf("target = %s", c.Target())
	}
	if len(c.Arguments) != 6 || c.Arguments[0].Object != "0xuser" || c.Arguments[5].Object != ledger.ClockObjectID {
		t.Fatalf("unexpected arguments %+v", c.Arguments)
	}
	got, err := c.Arguments[4].AsOptionU64()
	if err != nil || got == nil || *got != 100 {
		t.Fatalf("price = %v %v", got, err)
	}

	var free ledger.Transaction
	types.CreatePost(&free, NewPost{UserObjectID: "0xuser", Title: "t", ContentBlobID: "c"})
	if got, err := free.Commands[0].Arguments[4].AsOptionU64(); err != nil || got != nil {
		t.Fatalf("free post price = %v %v", got, err)
	}
}

func TestCreateReview_RequiresContent(t *testing.T) {
	var tx ledger.Transaction
	err := types.CreateReview(&tx, "0xmeta", "   \n")
	if !model.IsKind(err, model.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(tx.Commands) != 0 {
		t.Fatalf("invalid review must not add a command")
	}
	if err := types.CreateReview(&tx, "0xmeta", "solid recipe"); err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
}

func TestVoteForReview(t *testing.T) {
	var tx ledger.Transaction
	if err := types.VoteForReview(&tx, "0xr", model.VoteNone); !model.IsKind(err, model.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := types.VoteForReview(&tx, "0xr", model.VoteNotHelpful); err != nil {
		t.Fatalf("VoteForReview: %v", err)
	}
	tag, err := tx.Commands[0].Arguments[1].AsString()
	if err != nil || tag != "NotHelpful" {
		t.Fatalf("reaction = %q %v", tag, err)
	}
}

func TestTypes(t *testing.T) {
	if types.User() != "0xb1::user::User" || types.Post() != "0xb1::blog::Post" {
		t.Fatalf("unexpected type tags %s %s", types.User(), types.Post())
	}
}
