package wire

import (
	"fmt"

	"github.com/coldtrail/gitmirror/pkg/mirrorerr"
)

// FlushPkt and the delimiter pkt-lines are zero-payload frames identified
// entirely by their 4-hex length prefix.
const (
	pktFlushLen     = "0000"
	pktDelimLen     = "0001"
	pktRespEndLen   = "0003"
)

// EncodePktLine frames payload as "<4-hex-len>" ++ payload, where len
// includes the 4 header bytes themselves.
func EncodePktLine(payload []byte) []byte {
	n := len(payload) + 4
	out := make([]byte, 4, n)
	copy(out, fmt.Sprintf("%04x", n))
	return append(out, payload...)
}

// FlushPkt is the encoded "0000" flush marker.
func FlushPkt() []byte { return []byte(pktFlushLen) }

// DelimPkt is the encoded "0001" delimiter marker used by protocol v2 to
// separate command/capability lines from argument lines.
func DelimPkt() []byte { return []byte(pktDelimLen) }

// pktLine is one decoded frame: either a marker (Flush/Delim/ResponseEnd,
// with Payload nil) or a data frame.
type pktLine struct {
	Marker  byte // 0 = data, 'F' = flush, 'D' = delim, 'E' = response-end
	Payload []byte
}

// readPktLines splits all of buf into a sequence of pkt-lines; a trailing
// partial frame is an error.
func readPktLines(buf []byte) ([]pktLine, error) {
	var lines []pktLine
	pos := 0
	for pos < len(buf) {
		if pos+4 > len(buf) {
			return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("truncated pkt-line length at offset %d", pos))
		}
		lenHex := string(buf[pos : pos+4])
		var n int
		if _, err := fmt.Sscanf(lenHex, "%04x", &n); err != nil {
			return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("malformed pkt-line length %q: %w", lenHex, err))
		}
		switch n {
		case 0:
			lines = append(lines, pktLine{Marker: 'F'})
			pos += 4
			continue
		case 1:
			lines = append(lines, pktLine{Marker: 'D'})
			pos += 4
			continue
		case 2, 3:
			lines = append(lines, pktLine{Marker: 'E'})
			pos += 4
			continue
		}
		if n < 4 {
			return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("invalid pkt-line length %d", n))
		}
		end := pos + n
		if end > len(buf) {
			return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("pkt-line length %d exceeds remaining buffer", n))
		}
		lines = append(lines, pktLine{Payload: buf[pos+4 : end]})
		pos = end
	}
	return lines, nil
}

// DecodedFetch is the result of demultiplexing a fetch response body: the
// raw pack bytes (reassembled from side-band-64k data frames, or, if no
// side-band is in play, the concatenated data pkt-line payloads when they
// begin with "PACK") plus any capability/ack lines seen
// before the pack began.
type DecodedFetch struct {
	Pack     []byte
	PreLines [][]byte
}

// DecodeFetchResponse walks the pkt-lines in body. Any line whose first
// payload byte is a side-band-64k channel marker (0x01 data, 0x02
// progress, 0x03 error) is demultiplexed accordingly; lines with no
// channel marker (capability/ack lines seen before the pack section
// begins) are collected verbatim.
func DecodeFetchResponse(body []byte) (*DecodedFetch, error) {
	lines, err := readPktLines(body)
	if err != nil {
		return nil, err
	}
	out := &DecodedFetch{}
	sawPack := false
	for _, l := range lines {
		if l.Marker != 0 {
			continue
		}
		if len(l.Payload) == 0 {
			continue
		}
		ch := l.Payload[0]
		rest := l.Payload[1:]
		switch ch {
		case 0x01:
			out.Pack = append(out.Pack, rest...)
			sawPack = true
		case 0x02:
			// progress text, discarded per the transport contract
		case 0x03:
			return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("remote reported error: %s", string(rest)))
		default:
			if sawPack {
				continue
			}
			out.PreLines = append(out.PreLines, l.Payload)
		}
	}
	if !sawPack && len(out.Pack) == 0 {
		// No side-band in play: treat the whole non-marker payload
		// stream as the pack body directly (some servers omit
		// side-band-64k when the client doesn't request it).
		var raw []byte
		for _, l := range lines {
			if l.Marker == 0 {
				raw = append(raw, l.Payload...)
			}
		}
		if len(raw) >= 4 && string(raw[:4]) == "PACK" {
			out.Pack = raw
			out.PreLines = nil
		}
	}
	return out, nil
}
