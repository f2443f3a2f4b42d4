package session

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coldtrail/gitmirror/pkg/manifest"
	"github.com/coldtrail/gitmirror/pkg/objecthash"
	"github.com/coldtrail/gitmirror/pkg/wire"
)

// sequenceDialer serves one canned HTTP response per successive Dial call,
// standing in for a live upload-pack server across discovery and fetch.
type sequenceDialer struct {
	t         *testing.T
	responses [][]byte
	calls     int
}

func (d *sequenceDialer) Dial(ctx context.Context, host string, port int, useTLS bool) (net.Conn, error) {
	if d.calls >= len(d.responses) {
		d.t.Fatalf("sequenceDialer: unexpected dial #%d", d.calls+1)
	}
	resp := d.responses[d.calls]
	d.calls++

	client, server := net.Pipe()
	go func() {
		defer server.Close()
		// Drain and discard the request.
		br := bufio.NewReader(server)
		for {
			line, err := br.ReadString('\n')
			if err != nil || strings.TrimRight(line, "\r\n") == "" {
				break
			}
		}
		server.Write(resp)
	}()
	return client, nil
}

func httpResponse(body []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/1.1 200 OK\r\nContent-Length: %d\r\n\r\n", len(body))
	b.Write(body)
	return b.Bytes()
}

func writeEntryHeader(buf *bytes.Buffer, typeCode byte, size int) {
	first := byte(typeCode<<4) & 0x70
	low := byte(size & 0x0f)
	rem := size >> 4
	if rem == 0 {
		buf.WriteByte(first | low)
		return
	}
	buf.WriteByte(0x80 | first | low)
	for rem > 0 {
		b := byte(rem & 0x7f)
		rem >>= 7
		if rem > 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
	}
}

func buildPack(t *testing.T, entries [][2]interface{}) []byte {
	t.Helper()
	var body bytes.Buffer
	body.WriteString("PACK")
	binary.Write(&body, binary.BigEndian, uint32(2))
	binary.Write(&body, binary.BigEndian, uint32(len(entries)))

	for _, e := range entries {
		typeCode := e[0].(byte)
		payload := e[1].([]byte)
		writeEntryHeader(&body, typeCode, len(payload))
		var compressed bytes.Buffer
		zw := zlib.NewWriter(&compressed)
		zw.Write(payload)
		zw.Close()
		body.Write(compressed.Bytes())
	}

	sum := objecthash.OfBytes(body.Bytes())
	body.Write(sum[:])
	return body.Bytes()
}

// sidebandPackBody frames pack bytes as a single side-band-64k data pkt-line
// followed by a flush, matching a real git-upload-pack response.
func sidebandPackBody(pack []byte) []byte {
	var buf bytes.Buffer
	buf.Write(wire.EncodePktLine(append([]byte{0x01}, pack...)))
	buf.Write(wire.FlushPkt())
	return buf.Bytes()
}

func discoveryBody(tip objecthash.Hash, branch string) []byte {
	return []byte(string(tip) + " refs/heads/" + branch + "\x00agent=git/2.40.0\n")
}

func TestCloneSingleBlobEndToEnd(t *testing.T) {
	blob := []byte("Hello\n")
	treePayload := append([]byte("100644 hello.txt"), 0)
	blobHash := objecthash.Of(objecthash.TypeBlob, blob)
	rawBlobHash, _ := blobHash.Bytes()
	treePayload = append(treePayload, rawBlobHash[:]...)

	treeHash := objecthash.Of(objecthash.TypeTree, treePayload)
	commitPayload := []byte("tree " + string(treeHash) + "\nauthor a <a@b> 0 +0000\n\nmsg\n")
	pack := buildPack(t, [][2]interface{}{
		{byte(3), blob},
		{byte(2), treePayload},
		{byte(1), commitPayload},
	})
	commitHash := objecthash.Of(objecthash.TypeCommit, commitPayload)

	dialer := &sequenceDialer{t: t, responses: [][]byte{
		httpResponse(discoveryBody(commitHash, "main")),
		httpResponse(sidebandPackBody(pack)),
	}}

	dir := t.TempDir()
	opts := &Options{
		Host:            "example.test",
		Port:            443,
		RepositoryPath:  "/repo",
		Branch:          "main",
		TargetDirectory: filepath.Join(dir, "work"),
		WorkDirectory:   filepath.Join(dir, "state"),
		Dialer:          dialer,
	}

	if err := Clone(context.Background(), opts); err != nil {
		t.Fatalf("Clone() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(opts.TargetDirectory, "hello.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "Hello\n" {
		t.Fatalf("content = %q, want %q", data, "Hello\n")
	}

	if _, err := os.Stat(opts.manifestPath()); err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
}

func TestPullNoOpWhenTipUnchanged(t *testing.T) {
	dir := t.TempDir()
	opts := &Options{
		Host:            "example.test",
		Port:            443,
		RepositoryPath:  "/repo",
		Branch:          "main",
		TargetDirectory: filepath.Join(dir, "work"),
		WorkDirectory:   filepath.Join(dir, "state"),
	}
	if err := os.MkdirAll(opts.WorkDirectory, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	tip := objecthash.Of(objecthash.TypeCommit, []byte("whatever"))
	m := manifest.New(tip)
	if err := m.Save(opts.manifestPath()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	dialer := &sequenceDialer{t: t, responses: [][]byte{
		httpResponse(discoveryBody(tip, "main")),
	}}
	opts.Dialer = dialer

	if err := Pull(context.Background(), opts); err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if dialer.calls != 1 {
		t.Fatalf("dialer.calls = %d, want 1 (discovery only, no fetch POST)", dialer.calls)
	}
}
