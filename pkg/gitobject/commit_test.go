package gitobject

import (
	"testing"

	"github.com/coldtrail/gitmirror/pkg/objecthash"
)

func TestParseCommitTreeExtractsFirstLine(t *testing.T) {
	treeHash := objecthash.Of(objecthash.TypeTree, []byte("some tree bytes"))
	payload := []byte("tree " + string(treeHash) + "\nauthor someone <a@b.c> 0 +0000\n\nmessage\n")

	got, err := ParseCommitTree(payload)
	if err != nil {
		t.Fatalf("ParseCommitTree() error = %v", err)
	}
	if got != treeHash {
		t.Fatalf("ParseCommitTree() = %s, want %s", got, treeHash)
	}
}

func TestParseCommitTreeRejectsMissingTreeLine(t *testing.T) {
	if _, err := ParseCommitTree([]byte("author someone\n")); err == nil {
		t.Fatalf("ParseCommitTree() error = nil, want error")
	}
}

func TestParseCommitTreeRejectsNoNewline(t *testing.T) {
	if _, err := ParseCommitTree([]byte("tree abc")); err == nil {
		t.Fatalf("ParseCommitTree() error = nil, want error")
	}
}
