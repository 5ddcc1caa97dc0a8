package model

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures surfaced by the read and publish paths.
type Kind string

const (
	// KindDecode is a malformed or missing object field. Fatal to that fetch.
	KindDecode Kind = "DECODE"
	// KindNotFound is an absent object.
	KindNotFound Kind = "NOT_FOUND"
	// KindInvalidOwner is an object whose owner is not an address where
	// authorship is required.
	KindInvalidOwner Kind = "INVALID_OWNER"
	// KindMetadataUnavailable is a post whose metadata object is gone.
	KindMetadataUnavailable Kind = "METADATA_UNAVAILABLE"
	// KindValidation is a publish input rejected before any network call.
	KindValidation Kind = "VALIDATION"
	// KindTransport is a network or service failure.
	KindTransport Kind = "TRANSPORT"
)

// Error is a stable error with a machine-readable kind.
//
// ObjectID and Field locate the failure when known; Field is a dotted path
// into the object's fields (e.g. "review_vote_count.contents[1].key").
type Error struct {
	Kind     Kind   `json:"kind"`
	ObjectID string `json:"objectId,omitempty"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
	Cause    error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.ObjectID != "" {
		fmt.Fprintf(&b, " object=%s", e.ObjectID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field=%s", e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func DecodeError(objectID, field, message string) *Error {
	return &Error{Kind: KindDecode, ObjectID: objectID, Field: field, Message: message}
}

func NotFound(objectID string) *Error {
	return &Error{Kind: KindNotFound, ObjectID: objectID, Message: "object not found"}
}

func ValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func TransportError(message string, cause error) *Error {
	return &Error{Kind: KindTransport, Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
