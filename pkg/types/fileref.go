package types

import (
	"context"
	"path"
	"strings"
)

// ChainDelimiter separates archive boundaries in the observable path that
// full-path rules are applied to. It cannot occur in member names produced
// by the supported container formats' directory separators, so chain
// boundaries stay distinguishable from directories inside a member.
const ChainDelimiter = "!"

// FetchFunc obtains the full byte content of a file. It is deferred so the
// size gate can decide before any transfer happens.
type FetchFunc func(ctx context.Context) ([]byte, error)

// FileRef is a lightweight record on the work queue pointing at a file to
// be analyzed, without its bytes.
//
// For files observed directly, FullPath is the path on the host and
// ArchiveChain is empty. For archive members, FullPath remains the host
// path of the outermost container and ArchiveChain holds the member paths
// inside each successive container, outermost first.
type FileRef struct {
	Host         Host
	FullPath     string
	ArchiveChain []string
	Size         int64
	Fetch        FetchFunc
}

// Depth returns the archive nesting depth of the reference; zero for files
// observed directly on the host.
func (r FileRef) Depth() int {
	return len(r.ArchiveChain)
}

// ObservablePath is the subject full-path rules run against: the host path
// with archive boundaries joined by ChainDelimiter, e.g.
// "/backups/secrets.zip!etc/passwd".
func (r FileRef) ObservablePath() string {
	if len(r.ArchiveChain) == 0 {
		return r.FullPath
	}
	return r.FullPath + ChainDelimiter + strings.Join(r.ArchiveChain, ChainDelimiter)
}

// Name is the subject file-name rules run against: the basename of the
// innermost element.
func (r FileRef) Name() string {
	if n := len(r.ArchiveChain); n > 0 {
		return path.Base(r.ArchiveChain[n-1])
	}
	return path.Base(r.FullPath)
}

// DisplayChain renders the nested container path for persistence and
// reports, e.g. "secrets.zip/id_rsa". Empty when the file was observed
// directly.
func (r FileRef) DisplayChain() string {
	if len(r.ArchiveChain) == 0 {
		return ""
	}
	parts := append([]string{path.Base(r.FullPath)}, r.ArchiveChain...)
	return strings.Join(parts, "/")
}

// Member derives a reference for an archive member nested under r.
func (r FileRef) Member(memberPath string, size int64, fetch FetchFunc) FileRef {
	chain := make([]string, len(r.ArchiveChain), len(r.ArchiveChain)+1)
	copy(chain, r.ArchiveChain)
	return FileRef{
		Host:         r.Host,
		FullPath:     r.FullPath,
		ArchiveChain: append(chain, memberPath),
		Size:         size,
		Fetch:        fetch,
	}
}
