// Package worktree materializes a resolved tree onto the filesystem,
// recursing through subtrees, writing blobs and symlinks, and skipping
// gitlinks, while recording every emitted path into a new manifest.
package worktree

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/coldtrail/gitmirror/pkg/gitobject"
	"github.com/coldtrail/gitmirror/pkg/manifest"
	"github.com/coldtrail/gitmirror/pkg/mirrorerr"
	"github.com/coldtrail/gitmirror/pkg/objecthash"
	"github.com/coldtrail/gitmirror/pkg/packfile"
)

// Progress is called once per file or symlink written, at verbosity
// level 1, and once per tree visited, at verbosity level 2. Files skipped
// as unchanged are not reported, and the writer removes no files.
type Progress func(level int, path string)

// Write recursively materializes the tree rooted at rootHash under dir,
// consulting prior (the previous run's manifest, or nil on a clone) to
// skip files whose recorded hash already matches, and returns the new
// manifest built from every path visited.
func Write(store *packfile.Store, rootHash objecthash.Hash, dir string, prior *manifest.Manifest, progress Progress) (map[string]manifest.Entry, error) {
	w := &writer{store: store, dir: dir, prior: prior, progress: progress, out: make(map[string]manifest.Entry)}
	if err := w.walk(rootHash, ""); err != nil {
		return nil, err
	}
	return w.out, nil
}

type writer struct {
	store    *packfile.Store
	dir      string
	prior    *manifest.Manifest
	progress Progress
	out      map[string]manifest.Entry
}

func (w *writer) report(level int, path string) {
	if w.progress != nil {
		w.progress(level, path)
	}
}

func (w *writer) walk(treeHash objecthash.Hash, relPrefix string) error {
	w.report(2, relPrefix)
	obj, ok := w.store.ByHash(treeHash)
	if !ok {
		return mirrorerr.Wrap(mirrorerr.KindMalformedTree, fmt.Errorf("tree %s not found in store", treeHash))
	}
	entries, err := gitobject.ParseTree(obj.Payload)
	if err != nil {
		return err
	}

	for _, e := range entries {
		rel := e.Name
		if relPrefix != "" {
			rel = relPrefix + "/" + e.Name
		}
		full := filepath.Join(w.dir, rel)

		switch e.Mode {
		case gitobject.ModeDir:
			if err := os.MkdirAll(full, 0o755); err != nil {
				return mirrorerr.Wrap(mirrorerr.KindIO, fmt.Errorf("mkdir %s: %w", full, err))
			}
			if err := w.walk(e.Hash, rel); err != nil {
				return err
			}
		case gitobject.ModeFile, gitobject.ModeExecutable:
			if err := w.writeBlob(full, rel, e); err != nil {
				return err
			}
		case gitobject.ModeSymlink:
			if err := w.writeSymlink(full, rel, e); err != nil {
				return err
			}
		case gitobject.ModeGitlink:
			// Submodules are out of scope; the entry is recorded nowhere.
		default:
			return mirrorerr.Wrap(mirrorerr.KindMalformedTree, fmt.Errorf("unsupported tree entry mode %q for %q", e.Mode, rel))
		}
	}
	return nil
}

func (w *writer) writeBlob(full, rel string, e gitobject.TreeEntry) error {
	if w.prior != nil {
		if prev, ok := w.prior.Entries[rel]; ok && prev.Mode == e.Mode && prev.Hash == e.Hash {
			w.out[rel] = manifest.Entry{Mode: e.Mode, Hash: e.Hash, Path: rel}
			return nil
		}
	}

	blob, ok := w.store.ByHash(e.Hash)
	if !ok {
		return mirrorerr.Wrap(mirrorerr.KindMalformedTree, fmt.Errorf("blob %s not found in store for %q", e.Hash, rel))
	}

	perm := os.FileMode(0o644)
	if e.Mode == gitobject.ModeExecutable {
		perm = 0o755
	}

	// Open with the target permission as the creation mode, so a new
	// file never exists with default permissions; the Chmod after Close
	// then sets the exact mode on files that already existed or whose
	// creation mode the umask narrowed.
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return mirrorerr.Wrap(mirrorerr.KindIO, fmt.Errorf("open %s: %w", full, err))
	}
	if _, err := f.Write(blob.Payload); err != nil {
		f.Close()
		return mirrorerr.Wrap(mirrorerr.KindIO, fmt.Errorf("write %s: %w", full, err))
	}
	if err := f.Close(); err != nil {
		return mirrorerr.Wrap(mirrorerr.KindIO, fmt.Errorf("close %s: %w", full, err))
	}
	if err := os.Chmod(full, perm); err != nil {
		return mirrorerr.Wrap(mirrorerr.KindIO, fmt.Errorf("chmod %s: %w", full, err))
	}

	w.out[rel] = manifest.Entry{Mode: e.Mode, Hash: e.Hash, Path: rel}
	w.report(1, rel)
	return nil
}

func (w *writer) writeSymlink(full, rel string, e gitobject.TreeEntry) error {
	blob, ok := w.store.ByHash(e.Hash)
	if !ok {
		return mirrorerr.Wrap(mirrorerr.KindMalformedTree, fmt.Errorf("symlink target blob %s not found for %q", e.Hash, rel))
	}
	target := string(blob.Payload)

	if _, err := os.Lstat(full); err == nil {
		if err := os.Remove(full); err != nil {
			return mirrorerr.Wrap(mirrorerr.KindIO, fmt.Errorf("remove existing %s: %w", full, err))
		}
	}
	if err := os.Symlink(target, full); err != nil {
		return mirrorerr.Wrap(mirrorerr.KindIO, fmt.Errorf("symlink %s -> %s: %w", full, target, err))
	}

	w.out[rel] = manifest.Entry{Mode: e.Mode, Hash: e.Hash, Path: rel}
	w.report(1, rel)
	return nil
}
