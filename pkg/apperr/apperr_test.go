package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	if got := KindOf(New(Forbidden, "nope")); got != Forbidden {
		t.Fatalf("KindOf = %v, want Forbidden", got)
	}
	if got := KindOf(errors.New("plain")); got != Transient {
		t.Fatalf("unclassified error: KindOf = %v, want Transient", got)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(Expired, "window closed")
	outer := fmt.Errorf("edit message: %w", inner)

	if !Is(outer, Expired) {
		t.Fatal("kind lost through fmt.Errorf wrapping")
	}
	if Is(outer, Forbidden) {
		t.Fatal("Is matched the wrong kind")
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(Transient, "store", nil); err != nil {
		t.Fatalf("Wrap(nil) = %v, want nil", err)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(Transient, "redis", cause)

	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause not reachable via errors.Is")
	}
}
