package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/coldtrail/gitmirror/pkg/gitobject"
	"github.com/coldtrail/gitmirror/pkg/mirrorerr"
	"github.com/coldtrail/gitmirror/pkg/objecthash"
)

// Scan walks root and records the identity of every regular file
// (content hash) and symlink (mode only, per spec: the writer overwrites
// symlinks unconditionally, so their target is never hashed here). It
// aborts with mirrorerr.KindDotGitPresent if any ".git" subdirectory is
// found anywhere beneath root, refusing to coexist with another client's
// metadata.
func Scan(root string) (map[string]Entry, error) {
	entries := make(map[string]Entry)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if d.Name() == ".git" {
				return mirrorerr.Wrap(mirrorerr.KindDotGitPresent, fmt.Errorf("%w: %s", mirrorerr.ErrDotGitPresent, path))
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("manifest: scan %s: %w", path, err)
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			entries[rel] = Entry{Mode: gitobject.ModeSymlink, Path: rel}
		case info.Mode().IsRegular():
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("manifest: read %s: %w", path, err)
			}
			mode := gitobject.ModeFile
			if info.Mode()&0o111 != 0 {
				mode = gitobject.ModeExecutable
			}
			entries[rel] = Entry{Mode: mode, Hash: objecthash.Of(objecthash.TypeBlob, data), Path: rel}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Divergence lists a path that the manifest recorded but that is absent
// or mismatched on disk.
type Divergence struct {
	Path   string
	Reason string
}

// Compare reports every manifest entry that the scan did not reproduce
// identically. Symlinks, which Scan records without a hash, are compared
// by mode only.
func Compare(m *Manifest, scanned map[string]Entry) []Divergence {
	var divergences []Divergence
	for path, want := range m.Entries {
		got, ok := scanned[path]
		if !ok {
			divergences = append(divergences, Divergence{Path: path, Reason: "missing"})
			continue
		}
		if got.Mode != want.Mode || (got.Hash != "" && got.Hash != want.Hash) {
			divergences = append(divergences, Divergence{Path: path, Reason: "modified"})
		}
	}
	return divergences
}

// BlobLookup adapts a scan result into a delta.LocalLookup: given a base
// hash the resolver could not find in the pack, it re-reads the matching
// local file (if any) and returns its bytes as a blob.
func BlobLookup(root string, scanned map[string]Entry) func(objecthash.Hash) ([]byte, objecthash.ObjectType, bool) {
	byHash := make(map[objecthash.Hash]string, len(scanned))
	for path, e := range scanned {
		if e.Hash != "" {
			byHash[e.Hash] = path
		}
	}
	return func(h objecthash.Hash) ([]byte, objecthash.ObjectType, bool) {
		path, ok := byHash[h]
		if !ok {
			return nil, "", false
		}
		data, err := os.ReadFile(filepath.Join(root, path))
		if err != nil {
			return nil, "", false
		}
		return data, objecthash.TypeBlob, true
	}
}
