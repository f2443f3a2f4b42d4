// Package gitobject parses the payloads of tree and commit objects once
// they have been decoded out of the pack and resolved to their final
// bytes.
package gitobject

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/coldtrail/gitmirror/pkg/mirrorerr"
	"github.com/coldtrail/gitmirror/pkg/objecthash"
)

// Mode constants for the tree-entry modes the worktree writer acts on.
const (
	ModeDir        = "40000"
	ModeFile       = "100644"
	ModeExecutable = "100755"
	ModeSymlink    = "120000"
	ModeGitlink    = "160000"
)

// TreeEntry is one record of a parsed tree: an octal mode, a name, and the
// child object's hash.
type TreeEntry struct {
	Mode string
	Name string
	Hash objecthash.Hash
}

// ParseTree decodes a tree object's payload: a sequence of records
// "<octal-mode> SP <name> NUL <20-byte-hash>", returned in the order they
// appear in the payload.
func ParseTree(payload []byte) ([]TreeEntry, error) {
	var entries []TreeEntry
	pos := 0
	for pos < len(payload) {
		sp := bytes.IndexByte(payload[pos:], ' ')
		if sp < 0 {
			return nil, mirrorerr.Wrap(mirrorerr.KindMalformedTree, fmt.Errorf("missing mode separator at offset %d", pos))
		}
		mode := string(payload[pos : pos+sp])
		pos += sp + 1

		nul := bytes.IndexByte(payload[pos:], 0)
		if nul < 0 {
			return nil, mirrorerr.Wrap(mirrorerr.KindMalformedTree, fmt.Errorf("missing name terminator at offset %d", pos))
		}
		name := string(payload[pos : pos+nul])
		pos += nul + 1

		if pos+objecthash.Size > len(payload) {
			return nil, mirrorerr.Wrap(mirrorerr.KindMalformedTree, fmt.Errorf("truncated hash for entry %q", name))
		}
		hash, err := objecthash.FromSlice(payload[pos : pos+objecthash.Size])
		if err != nil {
			return nil, mirrorerr.Wrap(mirrorerr.KindMalformedTree, err)
		}
		pos += objecthash.Size

		if _, err := strconv.ParseUint(mode, 8, 32); err != nil {
			return nil, mirrorerr.Wrap(mirrorerr.KindMalformedTree, fmt.Errorf("malformed mode %q for entry %q: %w", mode, name, err))
		}

		entries = append(entries, TreeEntry{Mode: mode, Name: name, Hash: hash})
	}
	return entries, nil
}
