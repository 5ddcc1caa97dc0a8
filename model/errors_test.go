package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_KindThroughWrapping(t *testing.T) {
	base := DecodeError("0xabc", "reviews.contents", "expected array")
	wrapped := fmt.Errorf("fetch post: %w", base)

	if !IsKind(wrapped, KindDecode) {
		t.Fatalf("expected KindDecode, got %q", KindOf(wrapped))
	}
	if IsKind(wrapped, KindNotFound) {
		t.Fatalf("unexpected KindNotFound")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors have no kind")
	}
	if IsKind(nil, KindDecode) {
		t.Fatalf("nil error has no kind")
	}

	want := "DECODE object=0xabc field=reviews.contents: expected array"
	if base.Error() != want {
		t.Fatalf("Error() = %q want %q", base.Error(), want)
	}
}

func TestError_UnwrapCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := TransportError("sui_getObject", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain")
	}
}
