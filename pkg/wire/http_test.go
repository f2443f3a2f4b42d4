package wire

import (
	"bytes"
	"strings"
	"testing"
)

func TestReadResponseContentLength(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"
	resp, err := ReadResponse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadResponse() error = %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != "hello" {
		t.Fatalf("Body = %q, want %q", resp.Body, "hello")
	}
}

func TestReadResponseChunkedSplittingPackMagic(t *testing.T) {
	// The 4-byte "PACK" magic is split across two chunks: "PA" then "CK".
	raw := "HTTP/1.1 200 OK\r\n" +
		"Transfer-Encoding: chunked\r\n\r\n" +
		"2\r\nPA\r\n" +
		"2\r\nCK\r\n" +
		"0\r\n\r\n"
	resp, err := ReadResponse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadResponse() error = %v", err)
	}
	if string(resp.Body) != "PACK" {
		t.Fatalf("Body = %q, want %q", resp.Body, "PACK")
	}
}

func TestReadResponseChunkedMultipleChunks(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n" +
		"Transfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n" +
		"6\r\n world\r\n" +
		"0\r\n\r\n"
	resp, err := ReadResponse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadResponse() error = %v", err)
	}
	if string(resp.Body) != "hello world" {
		t.Fatalf("Body = %q, want %q", resp.Body, "hello world")
	}
}

func TestRequestWriteIncludesContentLength(t *testing.T) {
	req := &Request{
		Method: "POST",
		Path:   "/repo/git-upload-pack",
		Host:   "example.com",
		Body:   []byte("abc"),
	}
	var buf bytes.Buffer
	if err := req.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Content-Length: 3\r\n") {
		t.Fatalf("request missing Content-Length header: %q", buf.String())
	}
	if !strings.HasSuffix(buf.String(), "abc") {
		t.Fatalf("request body missing: %q", buf.String())
	}
}
