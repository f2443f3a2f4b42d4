package objecthash

import (
	"fmt"
	"io"
)

// ReadVarint decodes the pack/delta variable-length integer encoding: groups
// of 7 bits, least-significant group first, continuation signalled by the
// high bit of each byte. It is used for a delta payload's source and target
// sizes; the pack reader decodes an entry's declared size inline, since
// that value's first 4 bits share the type/size header byte.
func ReadVarint(r io.ByteReader) (uint64, error) {
	var value uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("objecthash: read varint: %w", err)
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("objecthash: varint too large")
		}
	}
}

// ReadPackedInt decodes a delta copy instruction's per-byte-present encoding:
// bitfield is scanned LSB first; for each set bit one byte is read from r and
// placed into the corresponding byte position (0 = least significant) of the
// returned 32-bit value. Bits that are clear leave their byte position zero.
func ReadPackedInt(r io.ByteReader, bitfield byte, numBits int) (uint32, error) {
	var value uint32
	for i := 0; i < numBits; i++ {
		if bitfield&(1<<uint(i)) == 0 {
			continue
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("objecthash: read packed int byte %d: %w", i, err)
		}
		value |= uint32(b) << uint(8*i)
	}
	return value, nil
}

// ReadOfsDeltaDistance decodes the pack's big-endian, length-prefixed
// OFS_DELTA backward distance: value = (value+1)<<7 | (byte & 0x7f) for each
// continuation byte, starting from zero before the first byte.
func ReadOfsDeltaDistance(r io.ByteReader) (uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("objecthash: read ofs-delta distance: %w", err)
	}
	value := uint64(b & 0x7f)
	for b&0x80 != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("objecthash: read ofs-delta distance: %w", err)
		}
		value = ((value + 1) << 7) | uint64(b&0x7f)
	}
	return value, nil
}
