package session

import (
	"context"
	"fmt"
	"os"

	"github.com/coldtrail/gitmirror/pkg/delta"
	"github.com/coldtrail/gitmirror/pkg/gitobject"
	"github.com/coldtrail/gitmirror/pkg/manifest"
	"github.com/coldtrail/gitmirror/pkg/mirrorerr"
	"github.com/coldtrail/gitmirror/pkg/objecthash"
	"github.com/coldtrail/gitmirror/pkg/packfile"
	"github.com/coldtrail/gitmirror/pkg/wire"
	"github.com/coldtrail/gitmirror/pkg/worktree"
)

// Clone runs the no-manifest session shape: discover the tip, request a
// single want with no shallow-boundary history, unpack, resolve, write
// the whole worktree, and persist a fresh manifest.
func Clone(ctx context.Context, o *Options) error {
	if err := os.MkdirAll(o.WorkDirectory, 0o755); err != nil {
		return mirrorerr.Wrap(mirrorerr.KindIO, err)
	}
	if err := os.MkdirAll(o.TargetDirectory, 0o755); err != nil {
		return mirrorerr.Wrap(mirrorerr.KindIO, err)
	}

	tip := o.Want
	if tip == "" {
		disc, err := o.discover(ctx)
		if err != nil {
			return err
		}
		tip = disc.Tip
	}
	o.report(2, fmt.Sprintf("clone: tip %s", tip))

	pack, err := o.obtainPack(ctx, wire.FetchArgs{Want: tip})
	if err != nil {
		return err
	}

	store, err := unpack(pack, nil)
	if err != nil {
		return err
	}

	newManifest, err := writeTree(o, store, tip, nil)
	if err != nil {
		return err
	}
	return newManifest.Save(o.manifestPath())
}

// Pull runs the manifest-present incremental session shape: no-op when
// the advertised tip already matches the manifest, otherwise an
// incremental fetch with a have/want pair, falling back to the local
// scan to resolve thin-pack ref-delta bases missing from the pack.
func Pull(ctx context.Context, o *Options) error {
	prior, err := manifest.Load(o.manifestPath())
	if err != nil {
		return mirrorerr.Wrap(mirrorerr.KindIO, err)
	}
	if prior == nil || o.Clone {
		return Clone(ctx, o)
	}

	oldTip := prior.Tip
	newTip := o.Want
	if newTip == "" {
		disc, err := o.discover(ctx)
		if err != nil {
			return err
		}
		newTip = disc.Tip
	}

	if newTip == oldTip {
		o.report(1, "pull: already up to date")
		return nil
	}
	o.report(2, fmt.Sprintf("pull: %s -> %s", oldTip, newTip))

	have := o.Have
	if have == "" {
		have = oldTip
	}

	pack, err := o.obtainPack(ctx, wire.FetchArgs{Want: newTip, Have: have, OldTip: oldTip, ThinPack: true})
	if err != nil {
		return err
	}

	scanned, err := manifest.Scan(o.TargetDirectory)
	if err != nil {
		return err
	}
	lookup := manifest.BlobLookup(o.TargetDirectory, scanned)

	store, err := unpack(pack, lookup)
	if err != nil {
		return err
	}

	newManifest, err := writeTree(o, store, newTip, prior)
	if err != nil {
		return err
	}
	return newManifest.Save(o.manifestPath())
}

// Verify scans the worktree and compares it against the manifest with no
// network activity, failing on any missing or modified file.
func Verify(ctx context.Context, o *Options) error {
	prior, err := manifest.Load(o.manifestPath())
	if err != nil {
		return mirrorerr.Wrap(mirrorerr.KindIO, err)
	}
	if prior == nil {
		return mirrorerr.Wrap(mirrorerr.KindIO, fmt.Errorf("verify: no manifest at %s", o.manifestPath()))
	}

	scanned, err := manifest.Scan(o.TargetDirectory)
	if err != nil {
		return err
	}

	divergences := manifest.Compare(prior, scanned)
	for _, d := range divergences {
		o.report(1, fmt.Sprintf("verify: %s: %s", d.Reason, d.Path))
	}
	if len(divergences) > 0 {
		return mirrorerr.Wrap(mirrorerr.KindModifiedLocalFile, fmt.Errorf("%w: %d path(s) diverge from manifest", mirrorerr.ErrModifiedLocalFile, len(divergences)))
	}
	return nil
}

// obtainPack fetches a pack over the network, or, when UsePack is set,
// reads back the raw pack bytes a KeepPack run saved; those bytes go
// straight to the pack reader with no HTTP or pkt-line decoding.
func (o *Options) obtainPack(ctx context.Context, args wire.FetchArgs) ([]byte, error) {
	if o.UsePack {
		return o.loadCachedPack()
	}
	return o.fetchPack(ctx, args)
}

// unpack parses the pack bytes and resolves every delta entry, falling
// back to lookup for ref-delta bases the pack itself doesn't contain.
func unpack(pack []byte, lookup delta.LocalLookup) (*packfile.Store, error) {
	store, err := packfile.Read(pack)
	if err != nil {
		return nil, err
	}
	if err := delta.Resolve(store, lookup); err != nil {
		return nil, err
	}
	return store, nil
}

// writeTree resolves the commit at tip to its root tree and materializes
// it under o.TargetDirectory.
func writeTree(o *Options, store *packfile.Store, tip objecthash.Hash, prior *manifest.Manifest) (*manifest.Manifest, error) {
	commit, ok := store.ByHash(tip)
	if !ok {
		return nil, mirrorerr.Wrap(mirrorerr.KindMalformedCommit, fmt.Errorf("commit %s not found in fetched pack", tip))
	}
	rootTree, err := gitobject.ParseCommitTree(commit.Payload)
	if err != nil {
		return nil, err
	}

	var progress worktree.Progress
	if o.Progress != nil {
		progress = func(level int, path string) { o.report(level, path) }
	}
	entries, err := worktree.Write(store, rootTree, o.TargetDirectory, prior, progress)
	if err != nil {
		return nil, err
	}

	m := manifest.New(tip)
	m.Entries = entries
	return m, nil
}
