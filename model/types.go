package model

import (
	"time"

	"onigiri.dev/shake/ledger"
)

// AnonymousName is the review author name used when the reviewer has no
// resolvable profile.
const AnonymousName = "Anonymous"

type User struct {
	ID             string  `json:"id"`
	Username       string  `json:"username"`
	ProfileImageID *string `json:"profileImageId,omitempty"`
	Bio            *string `json:"bio,omitempty"`
}

// Post is a published post. Metadata is only populated by detail fetches.
type Post struct {
	ID              string         `json:"id"`
	Author          ledger.Address `json:"author"`
	Title           string         `json:"title"`
	ThumbnailBlobID *string        `json:"thumbnailBlobId,omitempty"`
	ContentBlobID   string         `json:"contentBlobId"`
	CreatedAt       time.Time      `json:"createdAt"`
	Metadata        *PostMetadata  `json:"metadata,omitempty"`
}

// IsPaid reports whether the post carries metadata with a non-zero price.
func (p Post) IsPaid() bool {
	return p.Metadata != nil && !p.Metadata.IsFree()
}

type PostMetadata struct {
	ID    string `json:"id"`
	Price uint64 `json:"price"`
	// ReviewIDs is in display order.
	ReviewIDs []string `json:"reviewIds"`
}

func (m PostMetadata) IsFree() bool { return m.Price == 0 }

type ReviewAuthor struct {
	Name  string  `json:"name"`
	Image *string `json:"image,omitempty"`
}

// AuthorFromUser snapshots u as a review author. A nil user yields the
// anonymous author.
func AuthorFromUser(u *User) ReviewAuthor {
	if u == nil {
		return ReviewAuthor{Name: AnonymousName}
	}
	name := u.Username
	if name == "" {
		name = AnonymousName
	}
	return ReviewAuthor{Name: name, Image: u.ProfileImageID}
}

type Review struct {
	ID                  string       `json:"id"`
	Content             string       `json:"content"`
	Author              ReviewAuthor `json:"author"`
	CreatedAt           time.Time    `json:"createdAt"`
	HelpfulCount        uint64       `json:"helpfulCount"`
	NotHelpfulCount     uint64       `json:"notHelpfulCount"`
	IsCurrentUserReview bool         `json:"isCurrentUserReview"`
	CurrentUserVote     Vote         `json:"currentUserVote"`
}
