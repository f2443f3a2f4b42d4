package gitobject

import (
	"bytes"
	"fmt"

	"github.com/coldtrail/gitmirror/pkg/mirrorerr"
	"github.com/coldtrail/gitmirror/pkg/objecthash"
)

// ParseCommitTree extracts the root tree hash from a commit object's
// payload: the first line must be "tree <40-hex>\n". No other commit
// field is consumed.
func ParseCommitTree(payload []byte) (objecthash.Hash, error) {
	nl := bytes.IndexByte(payload, '\n')
	if nl < 0 {
		return "", mirrorerr.Wrap(mirrorerr.KindMalformedCommit, fmt.Errorf("commit payload has no newline"))
	}
	line := payload[:nl]
	const prefix = "tree "
	if !bytes.HasPrefix(line, []byte(prefix)) {
		return "", mirrorerr.Wrap(mirrorerr.KindMalformedCommit, fmt.Errorf("commit payload does not begin with %q", prefix))
	}
	hexHash := line[len(prefix):]
	if len(hexHash) != objecthash.HexSize {
		return "", mirrorerr.Wrap(mirrorerr.KindMalformedCommit, fmt.Errorf("malformed tree hash length %d", len(hexHash)))
	}
	h := objecthash.Hash(hexHash)
	if !h.Valid() {
		return "", mirrorerr.Wrap(mirrorerr.KindMalformedCommit, fmt.Errorf("malformed tree hash %q", hexHash))
	}
	return h, nil
}
