package model

import (
	"encoding/json"
	"fmt"
)

// Vote is a reader's reaction to a review.
type Vote uint8

const (
	VoteNone Vote = iota
	VoteHelpful
	VoteNotHelpful
)

// ParseVote maps a ledger reaction tag to a Vote. Unknown tags return false;
// callers ignore them so new reaction kinds do not break older readers.
func ParseVote(tag string) (Vote, bool) {
	switch tag {
	case "Helpful":
		return VoteHelpful, true
	case "NotHelpful":
		return VoteNotHelpful, true
	default:
		return VoteNone, false
	}
}

// Tag is the ledger reaction tag, empty for VoteNone.
func (v Vote) Tag() string {
	switch v {
	case VoteHelpful:
		return "Helpful"
	case VoteNotHelpful:
		return "NotHelpful"
	default:
		return ""
	}
}

func (v Vote) String() string {
	if v == VoteNone {
		return "None"
	}
	return v.Tag()
}

func (v Vote) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *Vote) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "None" || s == "" {
		*v = VoteNone
		return nil
	}
	parsed, ok := ParseVote(s)
	if !ok {
		return fmt.Errorf("model: unknown vote %q", s)
	}
	*v = parsed
	return nil
}
