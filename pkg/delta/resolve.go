// Package delta resolves ofs-delta and ref-delta pack entries against
// their bases, replaying copy/insert instructions to produce concrete
// objects.
package delta

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/coldtrail/gitmirror/pkg/mirrorerr"
	"github.com/coldtrail/gitmirror/pkg/objecthash"
	"github.com/coldtrail/gitmirror/pkg/packfile"
)

// LocalLookup resolves a ref-delta base hash that is absent from the pack
// itself, used by the thin-pack fallback: on first miss the session asks
// its local scan for a blob with that hash.
type LocalLookup func(hash objecthash.Hash) ([]byte, objecthash.ObjectType, bool)

// Resolve walks every delta entry in store (in insertion order) and
// replaces it in place with its materialized concrete object. lookup may
// be nil; it is only consulted when a ref-delta's base hash is not found
// in the store, which Resolve reports as mirrorerr.KindMissingDeltaBase
// when lookup is nil or also misses.
func Resolve(store *packfile.Store, lookup LocalLookup) error {
	edges, err := collectEdges(store)
	if err != nil {
		return err
	}

	order, err := topoOrder(store, edges)
	if err != nil {
		return err
	}

	for _, idx := range order {
		obj := store.At(idx)
		if !obj.IsDelta() {
			continue
		}
		base, baseType, err := resolveBase(store, obj, lookup)
		if err != nil {
			return err
		}
		resolved, err := materialize(obj, base, baseType)
		if err != nil {
			return err
		}
		store.Replace(idx, resolved)
	}
	return nil
}

// edge records, for the delta object at index `from`, where its base is:
// either another in-pack index (baseIdx, with haveIdx set) or a hash to
// resolve outside the pack (baseHash).
type edge struct {
	from      int
	baseIdx   int
	haveIdx   bool
	baseHash  objecthash.Hash
}

func collectEdges(store *packfile.Store) ([]edge, error) {
	var edges []edge
	for i := 0; i < store.Len(); i++ {
		obj := store.At(i)
		switch obj.Type {
		case objecthash.TypeOfsDelta:
			baseIdx, ok := store.IndexOf(obj.BaseOffset)
			if !ok {
				return nil, mirrorerr.Wrap(mirrorerr.KindMissingDeltaBase, fmt.Errorf("%w: ofs-delta at offset %d references missing base offset %d", mirrorerr.ErrMissingDeltaBase, obj.PackOffset, obj.BaseOffset))
			}
			edges = append(edges, edge{from: i, baseIdx: baseIdx, haveIdx: true})
		case objecthash.TypeRefDelta:
			if baseObj, ok := store.ByHash(obj.BaseHash); ok {
				baseIdx, _ := store.IndexOf(baseObj.PackOffset)
				edges = append(edges, edge{from: i, baseIdx: baseIdx, haveIdx: true})
			} else {
				edges = append(edges, edge{from: i, baseHash: obj.BaseHash})
			}
		}
	}
	return edges, nil
}

// topoOrder returns store indices in an order where every delta's base
// (when the base is itself in the pack) precedes the delta, detecting
// cycles via an explicit visited/in-progress bookkeeping rather than
// native recursion.
func topoOrder(store *packfile.Store, edges []edge) ([]int, error) {
	baseOf := make(map[int]int, len(edges))
	for _, e := range edges {
		if e.haveIdx {
			baseOf[e.from] = e.baseIdx
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make([]int, store.Len())
	var order []int

	for i := 0; i < store.Len(); i++ {
		if state[i] != unvisited {
			continue
		}
		// Iterative walk down the base chain using an explicit stack,
		// never native recursion, per the no-unbounded-call-stack rule.
		stack := []int{i}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			if state[cur] == done {
				stack = stack[:len(stack)-1]
				continue
			}
			if state[cur] == visiting {
				state[cur] = done
				order = append(order, cur)
				stack = stack[:len(stack)-1]
				continue
			}
			state[cur] = visiting
			base, ok := baseOf[cur]
			if !ok {
				continue
			}
			if state[base] == visiting {
				return nil, mirrorerr.Wrap(mirrorerr.KindDeltaCycle, fmt.Errorf("%w: entry at pack offset %d", mirrorerr.ErrDeltaCycle, store.At(cur).PackOffset))
			}
			if state[base] == unvisited {
				stack = append(stack, base)
			}
		}
	}
	return order, nil
}

func resolveBase(store *packfile.Store, obj *packfile.Object, lookup LocalLookup) ([]byte, objecthash.ObjectType, error) {
	if obj.Type == objecthash.TypeOfsDelta {
		base, ok := store.ByPackOffset(obj.BaseOffset)
		if !ok {
			return nil, "", mirrorerr.Wrap(mirrorerr.KindMissingDeltaBase, fmt.Errorf("%w: ofs-delta base offset %d", mirrorerr.ErrMissingDeltaBase, obj.BaseOffset))
		}
		return base.Payload, base.Type, nil
	}

	if base, ok := store.ByHash(obj.BaseHash); ok {
		return base.Payload, base.Type, nil
	}
	if lookup != nil {
		if payload, t, ok := lookup(obj.BaseHash); ok {
			store.InsertBlob(obj.BaseHash, payload)
			return payload, t, nil
		}
	}
	return nil, "", mirrorerr.Wrap(mirrorerr.KindMissingDeltaBase, fmt.Errorf("%w: ref-delta base hash %s", mirrorerr.ErrMissingDeltaBase, obj.BaseHash))
}

// materialize replays a delta's copy/insert instruction stream against
// base, returning the resulting concrete object.
func materialize(delta *packfile.Object, base []byte, baseType objecthash.ObjectType) (*packfile.Object, error) {
	r := bufio.NewReader(bytes.NewReader(delta.Payload))

	sourceSize, err := objecthash.ReadVarint(r)
	if err != nil {
		return nil, mirrorerr.Wrap(mirrorerr.KindDeltaBaseMismatch, fmt.Errorf("read delta source size: %w", err))
	}
	if sourceSize != uint64(len(base)) {
		return nil, mirrorerr.Wrap(mirrorerr.KindDeltaBaseMismatch, fmt.Errorf("delta source size %d does not match base length %d", sourceSize, len(base)))
	}
	targetSize, err := objecthash.ReadVarint(r)
	if err != nil {
		return nil, mirrorerr.Wrap(mirrorerr.KindDeltaSizeMismatch, fmt.Errorf("read delta target size: %w", err))
	}

	out := make([]byte, 0, targetSize)
	for {
		cmd, err := r.ReadByte()
		if err != nil {
			break
		}
		if cmd == 0x00 {
			return nil, mirrorerr.Wrap(mirrorerr.KindInvalidDeltaInst, fmt.Errorf("reserved delta instruction 0x00"))
		}
		if cmd&0x80 != 0 {
			offset, err := objecthash.ReadPackedInt(r, cmd&0x0f, 4)
			if err != nil {
				return nil, mirrorerr.Wrap(mirrorerr.KindInvalidDeltaInst, fmt.Errorf("read copy offset: %w", err))
			}
			length, err := objecthash.ReadPackedInt(r, (cmd>>4)&0x07, 3)
			if err != nil {
				return nil, mirrorerr.Wrap(mirrorerr.KindInvalidDeltaInst, fmt.Errorf("read copy length: %w", err))
			}
			if length == 0 {
				length = 0x10000
			}
			end := uint64(offset) + uint64(length)
			if end > uint64(len(base)) {
				return nil, mirrorerr.Wrap(mirrorerr.KindDeltaOutOfRange, fmt.Errorf("copy [%d,%d) exceeds base length %d", offset, end, len(base)))
			}
			out = append(out, base[offset:end]...)
		} else {
			n := int(cmd & 0x7f)
			if n == 0 {
				return nil, mirrorerr.Wrap(mirrorerr.KindInvalidDeltaInst, fmt.Errorf("reserved zero-length insert instruction"))
			}
			lit := make([]byte, n)
			if _, err := io.ReadFull(r, lit); err != nil {
				return nil, mirrorerr.Wrap(mirrorerr.KindInvalidDeltaInst, fmt.Errorf("read %d literal bytes: %w", n, err))
			}
			out = append(out, lit...)
		}
	}

	if uint64(len(out)) != targetSize {
		return nil, mirrorerr.Wrap(mirrorerr.KindDeltaSizeMismatch, fmt.Errorf("reconstructed %d bytes, target size %d", len(out), targetSize))
	}

	return &packfile.Object{
		Type:       baseType,
		Hash:       objecthash.Of(baseType, out),
		Payload:    out,
		PackOffset: delta.PackOffset,
	}, nil
}
