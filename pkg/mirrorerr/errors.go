// Package mirrorerr declares the error taxonomy shared across gitmirror's
// wire-to-worktree pipeline: a small set of sentinel errors callers can
// match with errors.Is, plus a Kind wrapper that carries one of them
// alongside the underlying cause.
package mirrorerr

import "errors"

// Kind identifies which stage of the pipeline raised an error, independent
// of the wrapped cause's message text.
type Kind string

const (
	KindNetwork             Kind = "network_error"
	KindProtocolFraming     Kind = "protocol_framing"
	KindBranchNotFound      Kind = "branch_not_found"
	KindUnsupportedPackVer  Kind = "unsupported_pack_version"
	KindInvalidObjectType   Kind = "invalid_object_type"
	KindInflateFailure      Kind = "inflate_failure"
	KindInflateSizeMismatch Kind = "inflate_size_mismatch"
	KindPackChecksum        Kind = "pack_checksum_mismatch"
	KindMissingDeltaBase    Kind = "missing_delta_base"
	KindDeltaBaseMismatch   Kind = "delta_base_mismatch"
	KindDeltaSizeMismatch   Kind = "delta_size_mismatch"
	KindDeltaOutOfRange     Kind = "delta_out_of_range"
	KindInvalidDeltaInst    Kind = "invalid_delta_instruction"
	KindDeltaCycle          Kind = "delta_cycle"
	KindMalformedTree       Kind = "malformed_tree"
	KindMalformedCommit     Kind = "malformed_commit"
	KindDotGitPresent       Kind = "dot_git_present"
	KindModifiedLocalFile   Kind = "modified_local_file"
	KindIO                  Kind = "io_error"
)

// Sentinel errors, matched with errors.Is against the Err field of a
// *MirrorError or directly if a component returns them bare.
var (
	ErrBranchNotFound      = errors.New("branch not found in ref advertisement")
	ErrMissingDeltaBase    = errors.New("delta base not found")
	ErrDeltaCycle          = errors.New("delta chain forms a cycle")
	ErrDotGitPresent       = errors.New("target directory contains a .git subdirectory")
	ErrModifiedLocalFile   = errors.New("local file diverges from manifest")
	ErrDuplicatePackOffset = errors.New("duplicate pack offset")
)

// MirrorError pairs a Kind with the underlying error so callers can branch
// on Kind without parsing message text, while %w still unwraps to the
// original cause.
type MirrorError struct {
	Kind Kind
	Err  error
}

func (e *MirrorError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *MirrorError) Unwrap() error { return e.Err }

// Wrap builds a *MirrorError tagging err with kind. It returns nil if err
// is nil, so it is safe to use as `return mirrorerr.Wrap(KindIO, err)`.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &MirrorError{Kind: kind, Err: err}
}

// Is reports whether err is a *MirrorError of the given kind, or wraps one.
func Is(err error, kind Kind) bool {
	var me *MirrorError
	if errors.As(err, &me) {
		return me.Kind == kind
	}
	return false
}
