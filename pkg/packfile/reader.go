package packfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/coldtrail/gitmirror/pkg/mirrorerr"
	"github.com/coldtrail/gitmirror/pkg/objecthash"
)

const (
	packMagic          = "PACK"
	supportedPackVersion = 2
	packHeaderSize     = 12
	trailerSize        = objecthash.Size
)

// packTypeToObject maps the pack's 3-bit entry type code to an ObjectType.
// Codes 0 and 5 are reserved and rejected.
var packTypeToObject = map[byte]objecthash.ObjectType{
	1: objecthash.TypeCommit,
	2: objecthash.TypeTree,
	3: objecthash.TypeBlob,
	4: objecthash.TypeTag,
	6: objecthash.TypeOfsDelta,
	7: objecthash.TypeRefDelta,
}

// Read parses a complete pack (header through trailing checksum) from
// data and inserts every decoded entry into a fresh Store. Delta entries
// are inserted without a hash; the caller is expected to run the delta
// resolver afterward.
func Read(data []byte) (*Store, error) {
	if len(data) < packHeaderSize+trailerSize {
		return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("pack too short: %d bytes", len(data)))
	}
	if string(data[:4]) != packMagic {
		return nil, mirrorerr.Wrap(mirrorerr.KindUnsupportedPackVer, fmt.Errorf("missing PACK magic"))
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != supportedPackVersion {
		return nil, mirrorerr.Wrap(mirrorerr.KindUnsupportedPackVer, fmt.Errorf("unsupported pack version %d", version))
	}
	count := binary.BigEndian.Uint32(data[8:12])

	body := data[:len(data)-trailerSize]
	wantSum := data[len(data)-trailerSize:]
	gotSum := objecthash.OfBytes(body)
	if !bytes.Equal(gotSum[:], wantSum) {
		return nil, mirrorerr.Wrap(mirrorerr.KindPackChecksum, fmt.Errorf("pack checksum mismatch"))
	}

	store := New()
	pos := int64(packHeaderSize)
	for i := uint32(0); i < count; i++ {
		obj, consumed, err := readEntry(data, pos)
		if err != nil {
			return nil, err
		}
		if err := store.Insert(obj); err != nil {
			return nil, err
		}
		pos += consumed
	}
	return store, nil
}

// readEntry decodes one pack entry starting at pos, returning the object
// and the number of bytes the entry occupied (header + delta base field +
// compressed payload).
func readEntry(data []byte, pos int64) (*Object, int64, error) {
	start := pos
	if int(pos) >= len(data) {
		return nil, 0, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("truncated pack at entry header offset %d", pos))
	}

	b := data[pos]
	pos++
	typeCode := (b >> 4) & 0x7
	size := uint64(b & 0x0f)
	shift := uint(4)
	for b&0x80 != 0 {
		if int(pos) >= len(data) {
			return nil, 0, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("truncated entry size varint at offset %d", pos))
		}
		b = data[pos]
		pos++
		size |= uint64(b&0x7f) << shift
		shift += 7
	}

	objType, ok := packTypeToObject[typeCode]
	if !ok {
		return nil, 0, mirrorerr.Wrap(mirrorerr.KindInvalidObjectType, fmt.Errorf("reserved pack entry type code %d at offset %d", typeCode, start))
	}

	obj := &Object{Type: objType, PackOffset: start}

	switch objType {
	case objecthash.TypeOfsDelta:
		dist, n, err := readOfsDeltaDistance(data, pos)
		if err != nil {
			return nil, 0, err
		}
		obj.BaseOffset = start - dist
		pos += n
	case objecthash.TypeRefDelta:
		if int(pos)+objecthash.Size > len(data) {
			return nil, 0, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("truncated ref-delta base hash at offset %d", pos))
		}
		h, err := objecthash.FromSlice(data[pos : pos+objecthash.Size])
		if err != nil {
			return nil, 0, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, err)
		}
		obj.BaseHash = h
		pos += objecthash.Size
	}

	payload, consumed, err := inflateAt(data, pos, size)
	if err != nil {
		return nil, 0, err
	}
	pos += consumed
	obj.Payload = payload

	if !obj.IsDelta() {
		obj.Hash = objecthash.Of(objType, payload)
	}

	return obj, pos - start, nil
}

// readOfsDeltaDistance reads the big-endian, length-prefixed ofs-delta
// distance starting at pos, returning the distance and the number of
// bytes consumed.
func readOfsDeltaDistance(data []byte, pos int64) (int64, int64, error) {
	if int(pos) >= len(data) {
		return 0, 0, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("truncated ofs-delta distance at offset %d", pos))
	}
	start := pos
	b := data[pos]
	pos++
	value := uint64(b & 0x7f)
	for b&0x80 != 0 {
		if int(pos) >= len(data) {
			return 0, 0, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("truncated ofs-delta distance at offset %d", pos))
		}
		b = data[pos]
		pos++
		value = ((value + 1) << 7) | uint64(b&0x7f)
	}
	return int64(value), pos - start, nil
}

// inflateAt decompresses the zlib stream starting at pos and checks the
// result against the declared uncompressed size. zlib.Reader reports no
// consumed-byte count directly, so the remaining length of the bytes.Reader
// it reads from, after Close, gives the exact number of input bytes the
// stream occupied.
func inflateAt(data []byte, pos int64, declaredSize uint64) ([]byte, int64, error) {
	sub := bytes.NewReader(data[pos:])
	zr, err := zlib.NewReader(sub)
	if err != nil {
		return nil, 0, mirrorerr.Wrap(mirrorerr.KindInflateFailure, fmt.Errorf("open zlib stream at offset %d: %w", pos, err))
	}

	payload, err := io.ReadAll(zr)
	if err != nil {
		zr.Close()
		return nil, 0, mirrorerr.Wrap(mirrorerr.KindInflateFailure, fmt.Errorf("inflate at offset %d: %w", pos, err))
	}
	if err := zr.Close(); err != nil {
		return nil, 0, mirrorerr.Wrap(mirrorerr.KindInflateFailure, fmt.Errorf("close zlib stream at offset %d: %w", pos, err))
	}
	if uint64(len(payload)) != declaredSize {
		return nil, 0, mirrorerr.Wrap(mirrorerr.KindInflateSizeMismatch, fmt.Errorf("inflated %d bytes, declared %d at offset %d", len(payload), declaredSize, pos))
	}
	consumed := int64(len(data[pos:])) - int64(sub.Len())
	return payload, consumed, nil
}
