// Package manifest implements the persisted record of a prior mirror run
// (tip hash plus per-file mode/hash/path rows) and the local-directory
// scan used to detect drift and to supply thin-pack delta bases.
package manifest

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/coldtrail/gitmirror/pkg/objecthash"
)

// Entry is one tracked path's recorded state.
type Entry struct {
	Mode string
	Hash objecthash.Hash
	Path string
}

// Manifest is the tip commit this run produced plus the per-path state of
// every file it materialized.
type Manifest struct {
	Tip     objecthash.Hash
	Entries map[string]Entry
}

// New returns an empty manifest for the given tip.
func New(tip objecthash.Hash) *Manifest {
	return &Manifest{Tip: tip, Entries: make(map[string]Entry)}
}

// Put records (or overwrites) the state of a tracked path.
func (m *Manifest) Put(mode string, hash objecthash.Hash, path string) {
	m.Entries[path] = Entry{Mode: mode, Hash: hash, Path: path}
}

// Load parses a manifest file. A missing file is not an error: it returns
// (nil, nil), signalling to the caller that the next run must clone.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		return nil, fmt.Errorf("manifest: %s is empty", path)
	}
	tip := objecthash.Hash(strings.TrimSpace(sc.Text()))
	if !tip.Valid() {
		return nil, fmt.Errorf("manifest: %s has malformed tip hash %q", path, tip)
	}

	m := New(tip)
	lineNo := 1
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			return nil, fmt.Errorf("manifest: %s:%d malformed row %q", path, lineNo, line)
		}
		hash := objecthash.Hash(fields[1])
		if !hash.Valid() {
			return nil, fmt.Errorf("manifest: %s:%d malformed hash %q", path, lineNo, fields[1])
		}
		m.Put(fields[0], hash, fields[2])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}
	return m, nil
}

// Save serializes m in sorted-by-path order and atomically replaces path:
// it writes to a sibling temp file first, then renames over the old
// manifest, so an interrupted run leaves the previous manifest intact.
func (m *Manifest) Save(path string) error {
	paths := make([]string, 0, len(m.Entries))
	for p := range m.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", m.Tip)
	for _, p := range paths {
		e := m.Entries[p]
		fmt.Fprintf(&b, "%s\t%s\t%s\n", e.Mode, e.Hash, e.Path)
	}

	tmpPath := path + ".new"
	if err := os.WriteFile(tmpPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("manifest: rename %s to %s: %w", tmpPath, path, err)
	}
	return nil
}
