package wire

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
)

// Dialer opens a raw bidirectional byte stream to a host:port pair. It is
// the external collaborator boundary: gitmirror's own code starts at the
// bytes a Dialer hands back, never at net/http's response parsing.
type Dialer interface {
	Dial(ctx context.Context, host string, port int, useTLS bool) (net.Conn, error)
}

// NetDialer is the default Dialer, using the standard library's net and
// crypto/tls packages to open the socket.
type NetDialer struct {
	TLSConfig *tls.Config
}

func (d *NetDialer) Dial(ctx context.Context, host string, port int, useTLS bool) (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	if !useTLS {
		conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("wire: dial %s: %w", addr, err)
		}
		return conn, nil
	}
	cfg := d.TLSConfig
	if cfg == nil {
		cfg = &tls.Config{ServerName: host}
	}
	conn, err := (&tls.Dialer{Config: cfg}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("wire: tls dial %s: %w", addr, err)
	}
	return conn, nil
}
