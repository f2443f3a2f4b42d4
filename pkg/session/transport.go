package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/coldtrail/gitmirror/pkg/mirrorerr"
	"github.com/coldtrail/gitmirror/pkg/wire"
)

func (o *Options) dialer() wire.Dialer {
	if o.Dialer != nil {
		return o.Dialer
	}
	return &wire.NetDialer{}
}

// discover issues the info/refs discovery request and returns the
// server's advertised tip for Branch and its agent string.
func (o *Options) discover(ctx context.Context) (*wire.DiscoveryResult, error) {
	path := fmt.Sprintf("%s/info/refs?service=git-upload-pack", o.RepositoryPath)
	req := &wire.Request{
		Method: "GET",
		Path:   path,
		Host:   o.Host,
		Headers: map[string]string{
			"User-Agent": o.agent(),
		},
	}
	resp, err := o.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	return wire.ParseDiscovery(resp.Body, o.Branch)
}

// fetchPack issues the git-upload-pack fetch request and returns the raw
// pack bytes.
func (o *Options) fetchPack(ctx context.Context, args wire.FetchArgs) ([]byte, error) {
	args.Agent = o.agent()
	body := wire.BuildFetchBody(args)
	req := &wire.Request{
		Method: "POST",
		Path:   o.RepositoryPath + "/git-upload-pack",
		Host:   o.Host,
		Headers: map[string]string{
			"User-Agent":       o.agent(),
			"Accept":           "application/x-git-upload-pack-result",
			"Content-Type":     "application/x-git-upload-pack-request",
			"Git-Protocol":     "version=2",
		},
		Body: body,
	}
	resp, err := o.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	decoded, err := wire.DecodeFetchResponse(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(decoded.Pack) == 0 {
		return nil, mirrorerr.Wrap(mirrorerr.KindProtocolFraming, fmt.Errorf("fetch response contained no pack data"))
	}
	if o.KeepPack {
		if err := os.WriteFile(o.packCachePath(), decoded.Pack, 0o644); err != nil {
			return nil, mirrorerr.Wrap(mirrorerr.KindIO, fmt.Errorf("keep_pack: write %s: %w", o.packCachePath(), err))
		}
	}
	return decoded.Pack, nil
}

// loadCachedPack reads back a pack previously persisted by KeepPack, for
// UsePack, bypassing the network entirely.
func (o *Options) loadCachedPack() ([]byte, error) {
	data, err := os.ReadFile(o.packCachePath())
	if err != nil {
		return nil, mirrorerr.Wrap(mirrorerr.KindIO, fmt.Errorf("use_pack: read %s: %w", o.packCachePath(), err))
	}
	return data, nil
}

func (o *Options) roundTrip(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	conn, err := o.dialer().Dial(ctx, o.Host, o.Port, o.UseTLS)
	if err != nil {
		return nil, mirrorerr.Wrap(mirrorerr.KindNetwork, err)
	}
	defer conn.Close()

	if err := req.Write(conn); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil && err != io.EOF {
		// Some servers close the connection right after the final byte
		// of a Content-Length body; ReadResponse below still succeeds
		// against whatever was buffered before the read error surfaced.
		if buf.Len() == 0 {
			return nil, mirrorerr.Wrap(mirrorerr.KindNetwork, fmt.Errorf("read response: %w", err))
		}
	}
	return wire.ReadResponse(bytes.NewReader(buf.Bytes()))
}
