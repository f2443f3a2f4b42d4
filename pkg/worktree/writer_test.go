package worktree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/coldtrail/gitmirror/pkg/gitobject"
	"github.com/coldtrail/gitmirror/pkg/manifest"
	"github.com/coldtrail/gitmirror/pkg/objecthash"
	"github.com/coldtrail/gitmirror/pkg/packfile"
)

func mustInsert(t *testing.T, store *packfile.Store, typ objecthash.ObjectType, payload []byte) objecthash.Hash {
	t.Helper()
	h := objecthash.Of(typ, payload)
	if err := store.Insert(&packfile.Object{Type: typ, Hash: h, Payload: payload, PackOffset: int64(store.Len()) + 1000}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return h
}

func treePayload(t *testing.T, entries []gitobject.TreeEntry) []byte {
	t.Helper()
	var out []byte
	for _, e := range entries {
		out = append(out, []byte(e.Mode+" "+e.Name)...)
		out = append(out, 0)
		raw, err := e.Hash.Bytes()
		if err != nil {
			t.Fatalf("Hash.Bytes() error = %v", err)
		}
		out = append(out, raw[:]...)
	}
	return out
}

func TestWriteSingleBlob(t *testing.T) {
	store := packfile.New()
	blobHash := mustInsert(t, store, objecthash.TypeBlob, []byte("Hello\n"))
	treeHash := mustInsert(t, store, objecthash.TypeTree, treePayload(t, []gitobject.TreeEntry{
		{Mode: gitobject.ModeFile, Name: "hello.txt", Hash: blobHash},
	}))

	dir := t.TempDir()
	entries, err := Write(store, treeHash, dir, nil, nil)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, "hello.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "Hello\n" {
		t.Fatalf("content = %q, want %q", data, "Hello\n")
	}
	info, err := os.Stat(filepath.Join(dir, "hello.txt"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("perm = %o, want 0644", info.Mode().Perm())
	}
}

func TestWriteSymlink(t *testing.T) {
	store := packfile.New()
	targetBlob := mustInsert(t, store, objecthash.TypeBlob, []byte("hello.txt"))
	helloBlob := mustInsert(t, store, objecthash.TypeBlob, []byte("hi"))
	treeHash := mustInsert(t, store, objecthash.TypeTree, treePayload(t, []gitobject.TreeEntry{
		{Mode: gitobject.ModeFile, Name: "hello.txt", Hash: helloBlob},
		{Mode: gitobject.ModeSymlink, Name: "link", Hash: targetBlob},
	}))

	dir := t.TempDir()
	if _, err := Write(store, treeHash, dir, nil, nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	target, err := os.Readlink(filepath.Join(dir, "link"))
	if err != nil {
		t.Fatalf("Readlink() error = %v", err)
	}
	if target != "hello.txt" {
		t.Fatalf("symlink target = %q, want %q", target, "hello.txt")
	}
}

func TestWriteSkipsUnchangedFileAgainstPriorManifest(t *testing.T) {
	store := packfile.New()
	blobHash := mustInsert(t, store, objecthash.TypeBlob, []byte("unchanged"))
	treeHash := mustInsert(t, store, objecthash.TypeTree, treePayload(t, []gitobject.TreeEntry{
		{Mode: gitobject.ModeFile, Name: "f.txt", Hash: blobHash},
	}))

	prior := manifest.New("deadbeef")
	prior.Put(gitobject.ModeFile, blobHash, "f.txt")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("stale-but-recorded-as-current"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	entries, err := Write(store, treeHash, dir, prior, nil)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if entries["f.txt"].Hash != blobHash {
		t.Fatalf("entries[f.txt].Hash = %s, want %s", entries["f.txt"].Hash, blobHash)
	}
	data, err := os.ReadFile(filepath.Join(dir, "f.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "stale-but-recorded-as-current" {
		t.Fatalf("file was rewritten despite matching manifest entry")
	}
}

func TestWriteEmptyTreeProducesEmptyWorktree(t *testing.T) {
	store := packfile.New()
	treeHash := mustInsert(t, store, objecthash.TypeTree, nil)

	dir := t.TempDir()
	entries, err := Write(store, treeHash, dir, nil, nil)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("len(entries) = %d, want 0", len(entries))
	}
}
