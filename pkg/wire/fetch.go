package wire

import (
	"bytes"
	"fmt"

	"github.com/coldtrail/gitmirror/pkg/objecthash"
)

// FetchArgs describes the shallow/incremental want-list a session needs
// to request: exactly one want, an optional have for incremental pulls,
// and the shallow boundary lines protocol v2 expects.
type FetchArgs struct {
	Agent     string
	Want      objecthash.Hash
	Have      objecthash.Hash // empty for a clone
	OldTip    objecthash.Hash // shallow boundary on the previous pull, empty for a clone
	ThinPack  bool
}

// BuildFetchBody assembles a protocol-v2 "command=fetch" request body:
// command and capability lines, a delimiter, then option/shallow/want/have
// lines, terminated by "done" and a flush — matching the external
// interface's fetch request shape exactly.
func BuildFetchBody(a FetchArgs) []byte {
	var buf bytes.Buffer
	buf.Write(EncodePktLine([]byte("command=fetch\n")))
	if a.Agent != "" {
		buf.Write(EncodePktLine([]byte(fmt.Sprintf("agent=%s\n", a.Agent))))
	}
	buf.Write(DelimPkt())

	buf.Write(EncodePktLine([]byte("no-progress\n")))
	buf.Write(EncodePktLine([]byte("ofs-delta\n")))
	if a.ThinPack {
		buf.Write(EncodePktLine([]byte("thin-pack\n")))
	}
	if a.OldTip != "" {
		buf.Write(EncodePktLine([]byte(fmt.Sprintf("shallow %s\n", a.OldTip))))
		buf.Write(EncodePktLine([]byte("deepen 1\n")))
	}
	buf.Write(EncodePktLine([]byte(fmt.Sprintf("shallow %s\n", a.Want))))
	buf.Write(EncodePktLine([]byte(fmt.Sprintf("want %s\n", a.Want))))
	if a.Have != "" {
		buf.Write(EncodePktLine([]byte(fmt.Sprintf("have %s\n", a.Have))))
	}
	buf.Write(EncodePktLine([]byte("done\n")))
	buf.Write(FlushPkt())
	return buf.Bytes()
}
