// Package objecthash implements the content hash used throughout
// gitmirror, plus the small set of variable-length integer codecs the
// pack and delta formats depend on.
package objecthash

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// Size is the length in bytes of the raw (binary) hash.
const Size = 20

// HexSize is the length of the lowercase-hex encoding of a hash.
const HexSize = Size * 2

// Hash is a 20-byte content hash, stored as a lowercase hex string so it
// can be used directly as a map key and compared with the standard order
// operators.
type Hash string

// ObjectType names one of the four persistent object kinds, or one of the
// two transient delta kinds that only exist mid-pack-decode.
type ObjectType string

const (
	TypeCommit   ObjectType = "commit"
	TypeTree     ObjectType = "tree"
	TypeBlob     ObjectType = "blob"
	TypeTag      ObjectType = "tag"
	TypeOfsDelta ObjectType = "ofs_delta"
	TypeRefDelta ObjectType = "ref_delta"
)

// Of computes the content hash of a concrete object: sha1 of the header
// "<type> <len>\0" concatenated with payload.
func Of(t ObjectType, payload []byte) Hash {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", t, len(payload))
	h.Write(payload)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// OfBytes computes the raw sha1 of data with no envelope, used for the pack
// trailer checksum.
func OfBytes(data []byte) [Size]byte {
	return sha1.Sum(data)
}

// Bytes decodes a hex-encoded Hash to its raw 20-byte form.
func (h Hash) Bytes() ([Size]byte, error) {
	var out [Size]byte
	if len(h) != HexSize {
		return out, fmt.Errorf("objecthash: hash %q has length %d, want %d", h, len(h), HexSize)
	}
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		return out, fmt.Errorf("objecthash: malformed hash %q: %w", h, err)
	}
	copy(out[:], raw)
	return out, nil
}

// FromBytes hex-encodes a raw 20-byte hash.
func FromBytes(raw [Size]byte) Hash {
	return Hash(hex.EncodeToString(raw[:]))
}

// FromSlice hex-encodes an arbitrary-length raw hash slice; it errors if
// the slice is not exactly Size bytes long.
func FromSlice(raw []byte) (Hash, error) {
	if len(raw) != Size {
		return "", fmt.Errorf("objecthash: raw hash has length %d, want %d", len(raw), Size)
	}
	return Hash(hex.EncodeToString(raw)), nil
}

// Valid reports whether h is a syntactically valid 40-character lowercase
// hex hash.
func (h Hash) Valid() bool {
	_, err := h.Bytes()
	return err == nil && strings.ToLower(string(h)) == string(h)
}
