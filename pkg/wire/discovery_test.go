package wire

import (
	"testing"

	"github.com/coldtrail/gitmirror/pkg/mirrorerr"
)

func TestParseDiscoveryFindsTipAndAgent(t *testing.T) {
	tip := "a94a8fe5ccb19ba61c4c0873d391e987982fbbd3"[:40]
	body := []byte("0000" + tip + " refs/heads/main\x00agent=git/2.40.0\n")
	got, err := ParseDiscovery(body, "main")
	if err != nil {
		t.Fatalf("ParseDiscovery() error = %v", err)
	}
	if string(got.Tip) != tip {
		t.Fatalf("Tip = %s, want %s", got.Tip, tip)
	}
	if got.Agent != "git/2.40.0" {
		t.Fatalf("Agent = %q, want %q", got.Agent, "git/2.40.0")
	}
}

func TestParseDiscoveryMissingBranch(t *testing.T) {
	tip := "a94a8fe5ccb19ba61c4c0873d391e987982fbbd3"[:40]
	body := []byte(tip + " refs/heads/main\n")
	_, err := ParseDiscovery(body, "develop")
	if !mirrorerr.Is(err, mirrorerr.KindBranchNotFound) {
		t.Fatalf("ParseDiscovery() error = %v, want KindBranchNotFound", err)
	}
}
