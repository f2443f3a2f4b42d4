package packfile

import (
	"fmt"

	"github.com/coldtrail/gitmirror/pkg/mirrorerr"
	"github.com/coldtrail/gitmirror/pkg/objecthash"
)

// Object is one decoded pack entry. Concrete objects (commit/tree/blob/tag)
// carry a Hash; ofs_delta and ref_delta entries carry no hash until the
// resolver replaces them in the store with a concrete object.
type Object struct {
	Type       objecthash.ObjectType
	Hash       objecthash.Hash
	Payload    []byte
	PackOffset int64

	// Set only on Type == TypeOfsDelta.
	BaseOffset int64
	// Set only on Type == TypeRefDelta.
	BaseHash objecthash.Hash
}

// IsDelta reports whether the object is a transient delta entry rather
// than a concrete, hashable one.
func (o *Object) IsDelta() bool {
	return o.Type == objecthash.TypeOfsDelta || o.Type == objecthash.TypeRefDelta
}

// Store is the in-memory object pool for a single invocation: an
// insertion-ordered slice plus a hash index and a pack-offset index. It is
// never persisted; it is created fresh by the pack reader and discarded
// after the tree walker has finished reading from it.
type Store struct {
	objects    []*Object
	byHash     map[objecthash.Hash]int
	byPackOff  map[int64]int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byHash:    make(map[objecthash.Hash]int),
		byPackOff: make(map[int64]int),
	}
}

// Insert appends obj and indexes it. Re-inserting an object whose hash is
// already present is a no-op (idempotent insert); that check runs first,
// so such an object is never tested against the pack-offset index.
// Otherwise, an object whose pack offset is already indexed is an error,
// since pack offsets must be unique within one pack.
func (s *Store) Insert(obj *Object) error {
	if obj.Hash != "" {
		if _, ok := s.byHash[obj.Hash]; ok {
			return nil
		}
	}
	if _, ok := s.byPackOff[obj.PackOffset]; ok {
		return mirrorerr.Wrap(mirrorerr.KindIO, fmt.Errorf("%w: offset %d", mirrorerr.ErrDuplicatePackOffset, obj.PackOffset))
	}
	idx := len(s.objects)
	s.objects = append(s.objects, obj)
	if obj.Hash != "" {
		s.byHash[obj.Hash] = idx
	}
	s.byPackOff[obj.PackOffset] = idx
	return nil
}

// Replace swaps the object at idx for a resolved concrete object, updating
// the hash index. Used by the delta resolver once a delta has been
// materialized into a concrete object occupying the same slot.
func (s *Store) Replace(idx int, obj *Object) {
	old := s.objects[idx]
	if old.Hash != "" {
		delete(s.byHash, old.Hash)
	}
	s.objects[idx] = obj
	if obj.Hash != "" {
		s.byHash[obj.Hash] = idx
	}
}

// ByHash looks up a concrete object by content hash.
func (s *Store) ByHash(h objecthash.Hash) (*Object, bool) {
	idx, ok := s.byHash[h]
	if !ok {
		return nil, false
	}
	return s.objects[idx], true
}

// ByPackOffset looks up an object (delta or concrete) by its entry's
// starting byte offset within the pack.
func (s *Store) ByPackOffset(off int64) (*Object, bool) {
	idx, ok := s.byPackOff[off]
	if !ok {
		return nil, false
	}
	return s.objects[idx], true
}

// IndexOf returns the insertion index of the object with the given pack
// offset, needed by the resolver to call Replace.
func (s *Store) IndexOf(off int64) (int, bool) {
	idx, ok := s.byPackOff[off]
	return idx, ok
}

// Len returns the number of objects currently in the store.
func (s *Store) Len() int { return len(s.objects) }

// At returns the object at insertion index i.
func (s *Store) At(i int) *Object { return s.objects[i] }

// InsertBlob adds a concrete blob object directly (used by the thin-pack
// local-scan fallback, which has no pack offset of its own). The blob is
// indexed under a synthetic negative offset so it never collides with a
// real pack entry.
func (s *Store) InsertBlob(hash objecthash.Hash, payload []byte) {
	if _, ok := s.byHash[hash]; ok {
		return
	}
	off := int64(-1 - len(s.objects))
	idx := len(s.objects)
	s.objects = append(s.objects, &Object{
		Type:       objecthash.TypeBlob,
		Hash:       hash,
		Payload:    payload,
		PackOffset: off,
	})
	s.byHash[hash] = idx
	s.byPackOff[off] = idx
}
