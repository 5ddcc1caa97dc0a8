package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSnapshot_Post_JSONShape(t *testing.T) {
	thumb := "bafkthumb"
	p := Post{
		ID:              "0xpost",
		Author:          "0xauthor",
		Title:           "Hello",
		ThumbnailBlobID: &thumb,
		ContentBlobID:   "bafkcontent",
		CreatedAt:       time.UnixMilli(1700000000000).UTC(),
		Metadata:        &PostMetadata{ID: "0xmeta", Price: 5, ReviewIDs: []string{"0xr1"}},
	}

	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}

	const want = "{\n" +
		"  \"id\": \"0xpost\",\n" +
		"  \"author\": \"0xauthor\",\n" +
		"  \"title\": \"Hello\",\n" +
		"  \"thumbnailBlobId\": \"bafkthumb\",\n" +
		"  \"contentBlobId\": \"bafkcontent\",\n" +
		"  \"createdAt\": \"2023-11-14T22:13:20Z\",\n" +
		"  \"metadata\": {\n" +
		"    \"id\": \"0xmeta\",\n" +
		"    \"price\": 5,\n" +
		"    \"reviewIds\": [\n" +
		"      \"0xr1\"\n" +
		"    ]\n" +
		"  }\n" +
		"}"

	if string(b) != want {
		t.Fatalf("snapshot mismatch:\n%s", string(b))
	}
}

func TestSnapshot_Review_JSONShape(t *testing.T) {
	r := Review{
		ID:                  "0xr1",
		Content:             "useful",
		Author:              ReviewAuthor{Name: AnonymousName},
		CreatedAt:           time.UnixMilli(0).UTC(),
		HelpfulCount:        3,
		NotHelpfulCount:     1,
		IsCurrentUserReview: false,
		CurrentUserVote:     VoteNotHelpful,
	}

	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}

	const want = "{\n" +
		"  \"id\": \"0xr1\",\n" +
		"  \"content\": \"useful\",\n" +
		"  \"author\": {\n" +
		"    \"name\": \"Anonymous\"\n" +
		"  },\n" +
		"  \"createdAt\": \"1970-01-01T00:00:00Z\",\n" +
		"  \"helpfulCount\": 3,\n" +
		"  \"notHelpfulCount\": 1,\n" +
		"  \"isCurrentUserReview\": false,\n" +
		"  \"currentUserVote\": \"NotHelpful\"\n" +
		"}"

	if string(b) != want {
		t.Fatalf("snapshot mismatch:\n%s", string(b))
	}
}

func TestVote_ParseAndJSON(t *testing.T) {
	if v, ok := ParseVote("Helpful"); !ok || v != VoteHelpful {
		t.Fatalf("ParseVote(Helpful) = %v, %v", v, ok)
	}
	if _, ok := ParseVote("Funny"); ok {
		t.Fatalf("unknown tag must not parse")
	}

	var v Vote
	if err := json.Unmarshal([]byte(`"None"`), &v); err != nil || v != VoteNone {
		t.Fatalf("unmarshal None: %v %v", v, err)
	}
	if err := json.Unmarshal([]byte(`"Helpful"`), &v); err != nil || v != VoteHelpful {
		t.Fatalf("unmarshal Helpful: %v %v", v, err)
	}
	if err := json.Unmarshal([]byte(`"Funny"`), &v); err == nil {
		t.Fatalf("expected error for unknown vote")
	}
}

func TestAuthorFromUser(t *testing.T) {
	if got := AuthorFromUser(nil); got.Name != AnonymousName || got.Image != nil {
		t.Fatalf("nil user: %+v", got)
	}
	img := "bafkimg"
	got := AuthorFromUser(&User{ID: "0xu", Username: "ana", ProfileImageID: &img})
	if got.Name != "ana" || got.Image == nil || *got.Image != img {
		t.Fatalf("unexpected author: %+v", got)
	}
}
