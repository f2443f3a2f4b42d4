package wire

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/coldtrail/gitmirror/pkg/mirrorerr"
)

// Request describes the one HTTP/1.1 request shape the core issues: a GET
// discovery request or a POST fetch request. It is built and written by
// this package rather than net/http, since the wire-level bytes (and their
// chunked/pkt-line decode) belong to the core.
type Request struct {
	Method      string
	Path        string
	Host        string
	Headers     map[string]string
	Body        []byte
}

// Write serializes req onto w using a bare CRLF-terminated HTTP/1.1
// request line plus headers, identical in shape to what net/http would
// send, but assembled by hand so the whole request/response cycle stays
// inside this package.
func (req *Request) Write(w io.Writer) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", req.Method, req.Path)
	fmt.Fprintf(&b, "Host: %s\r\n", req.Host)
	for k, v := range req.Headers {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	if len(req.Body) > 0 {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(req.Body))
	}
	b.WriteString("\r\n")
	b.Write(req.Body)
	_, err := w.Write(b.Bytes())
	if err != nil {
		return mirrorerr.Wrap(mirrorerr.KindNetwork, fmt.Errorf("write request: %w", err))
	}
	return nil
}

// Response holds a parsed HTTP/1.1 response: status, headers, and the
// fully decoded body (Content-Length or chunked transfer-encoding applied).
type Response struct {
	StatusCode int
	Headers    textproto.MIMEHeader
	Body       []byte
}

// ReadResponse parses an HTTP/1.1 response from r: the status line, the
// header block up to the blank line, and then the body, decoding chunked
// transfer-encoding by hand so that frames split across chunk boundaries
// (pkt-lines, the PACK magic, anything) are tolerated correctly.
func ReadResponse(r io.Reader) (*Response, error) {
	br := bufio.NewReader(r)
	tp := textproto.NewReader(br)

	statusLine, err := tp.ReadLine()
	if err != nil {
		return nil, mirrorerr.Wrap(mirrorerr.KindNetwork, fmt.Errorf("read status line: %w", err))
	}
	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 {
		return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("malformed status line %q", statusLine))
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("malformed status code %q: %w", parts[1], err))
	}

	headers, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("read headers: %w", err))
	}

	var body []byte
	if strings.EqualFold(headers.Get("Transfer-Encoding"), "chunked") {
		body, err = decodeChunked(br)
		if err != nil {
			return nil, err
		}
	} else if cl := headers.Get("Content-Length"); cl != "" {
		n, perr := strconv.Atoi(cl)
		if perr != nil {
			return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("malformed content-length %q: %w", cl, perr))
		}
		body = make([]byte, n)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, mirrorerr.Wrap(mirrorerr.KindNetwork, fmt.Errorf("read body: %w", err))
		}
	} else {
		body, err = io.ReadAll(br)
		if err != nil {
			return nil, mirrorerr.Wrap(mirrorerr.KindNetwork, fmt.Errorf("read body: %w", err))
		}
	}

	return &Response{StatusCode: code, Headers: headers, Body: body}, nil
}

// decodeChunked repeatedly parses "<hex-size>\r\n<size bytes>\r\n" chunks
// until a zero-size terminator, returning the concatenated chunk bodies.
// Because it reads from a buffered reader that blocks for more input as
// needed, a chunk boundary that splits a protocol frame inside the body
// never produces a truncated read here — the caller only sees complete
// chunks, already reassembled.
func decodeChunked(br *bufio.Reader) ([]byte, error) {
	var out bytes.Buffer
	for {
		sizeLine, err := br.ReadString('\n')
		if err != nil {
			return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("read chunk size: %w", err))
		}
		sizeLine = strings.TrimRight(sizeLine, "\r\n")
		if semi := strings.IndexByte(sizeLine, ';'); semi >= 0 {
			sizeLine = sizeLine[:semi]
		}
		size, err := strconv.ParseInt(strings.TrimSpace(sizeLine), 16, 64)
		if err != nil {
			return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("malformed chunk size %q: %w", sizeLine, err))
		}
		if size == 0 {
			// Trailer headers (if any) followed by the final CRLF.
			for {
				line, err := br.ReadString('\n')
				if err != nil {
					return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("read chunk trailer: %w", err))
				}
				if strings.TrimRight(line, "\r\n") == "" {
					break
				}
			}
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, br, size); err != nil {
			return nil, mirrorerr.Wrap(mirrorerr.KindNetwork, fmt.Errorf("read chunk body: %w", err))
		}
		// Each chunk body is followed by a CRLF before the next size line.
		crlf := make([]byte, 2)
		if _, err := io.ReadFull(br, crlf); err != nil {
			return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("read chunk terminator: %w", err))
		}
	}
}
