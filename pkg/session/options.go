// Package session orchestrates the wire-to-worktree pipeline: discovery,
// want-list construction, pack fetch, unpack, delta resolution, tree
// materialization, and manifest commit, choreographed as Clone, Pull, or
// Verify.
package session

import (
	"github.com/coldtrail/gitmirror/pkg/objecthash"
	"github.com/coldtrail/gitmirror/pkg/wire"
)

// Options is the typed configuration record the core consumes; nothing
// in this package parses a configuration file — that is cmd/gitmirror's
// job.
type Options struct {
	Host            string
	Port            int
	UseTLS          bool
	RepositoryPath  string
	Branch          string
	TargetDirectory string
	WorkDirectory   string

	// Want, when non-empty, is used as the tip and discovery is skipped.
	// Have, when non-empty, replaces the manifest's tip in Pull's have line.
	Have objecthash.Hash
	Want objecthash.Hash

	// Clone forces a full fetch even when a manifest is present.
	Clone bool

	// KeepPack persists the raw fetched pack bytes to WorkDirectory/pack.
	// UsePack skips the network fetch and replays that file instead.
	KeepPack bool
	UsePack  bool

	// Verbosity: 0 quiet, 1 path changes, >=2 diagnostic trace.
	Verbosity int
	Progress  func(level int, msg string)

	// Dialer overrides the default net/tls dialer; nil uses wire.NetDialer.
	Dialer wire.Dialer

	// UserAgent is sent as the User-Agent header and as the protocol-v2
	// agent capability.
	UserAgent string
}

func (o *Options) report(level int, msg string) {
	if o.Progress != nil && level <= o.Verbosity {
		o.Progress(level, msg)
	}
}

func (o *Options) manifestPath() string {
	return o.WorkDirectory + "/manifest"
}

func (o *Options) packCachePath() string {
	return o.WorkDirectory + "/pack"
}

func (o *Options) agent() string {
	if o.UserAgent != "" {
		return o.UserAgent
	}
	return "gitmirror/1.0"
}
