package mirrorerr

import (
	"errors"
	"testing"
)

func TestWrapNilIsNil(t *testing.T) {
	if err := Wrap(KindIO, nil); err != nil {
		t.Fatalf("Wrap(_, nil) = %v, want nil", err)
	}
}

func TestWrapUnwrapsToCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindNetwork, cause)
	if !errors.Is(err, cause) {
		t.Fatalf("Wrap() does not unwrap to cause")
	}
	if got := err.Error(); got != "network_error: boom" {
		t.Fatalf("Error() = %q, want %q", got, "network_error: boom")
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := Wrap(KindMissingDeltaBase, ErrMissingDeltaBase)
	if !Is(err, KindMissingDeltaBase) {
		t.Fatalf("Is() = false, want true")
	}
	if Is(err, KindDeltaCycle) {
		t.Fatalf("Is() matched wrong kind")
	}
	if Is(errors.New("plain"), KindIO) {
		t.Fatalf("Is() matched a non-MirrorError")
	}
}

func TestIsFalseForPlainSentinel(t *testing.T) {
	if Is(ErrDotGitPresent, KindDotGitPresent) {
		t.Fatalf("Is() matched a bare sentinel, but Is only matches *MirrorError")
	}
}
