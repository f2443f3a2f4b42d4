package wire

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/coldtrail/gitmirror/pkg/mirrorerr"
	"github.com/coldtrail/gitmirror/pkg/objecthash"
)

// agentRe matches an "agent=<string>" capability token, terminated by a
// space, newline, or NUL, whichever comes first.
var agentRe = regexp.MustCompile(`agent=([^ \n\x00]+)`)

// DiscoveryResult is what the core needs out of an info/refs advertisement:
// the requested branch's tip and the server's advertised agent string, if
// any.
type DiscoveryResult struct {
	Tip   objecthash.Hash
	Agent string
}

// ParseDiscovery scans a smart-protocol ref advertisement body for the
// 40-hex hash immediately preceding " refs/heads/<branch>\n" and for an
// "agent=" capability token. NULs are normalized to newlines before
// scanning, matching how pkt-line payloads pack capabilities after a NUL
// on the first advertised ref line.
func ParseDiscovery(body []byte, branch string) (*DiscoveryResult, error) {
	normalized := bytes.ReplaceAll(body, []byte{0}, []byte("\n"))

	marker := []byte(" refs/heads/" + branch + "\n")
	idx := bytes.Index(normalized, marker)
	if idx < 0 {
		return nil, mirrorerr.Wrap(mirrorerr.KindBranchNotFound, fmt.Errorf("%w: branch %q", mirrorerr.ErrBranchNotFound, branch))
	}
	if idx < objecthash.HexSize {
		return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("advertisement truncated before tip hash"))
	}
	hexHash := normalized[idx-objecthash.HexSize : idx]
	tip := objecthash.Hash(hexHash)
	if !tip.Valid() {
		return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("malformed tip hash %q", hexHash))
	}

	res := &DiscoveryResult{Tip: tip}
	if m := agentRe.FindSubmatch(normalized); m != nil {
		res.Agent = string(m[1])
	}
	return res, nil
}
