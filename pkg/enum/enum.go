// Package enum contains the per-protocol enumeration drivers. A driver
// walks one host's tree and emits file references onto the work queue;
// bytes are only transferred when the analyzer invokes a reference's
// fetcher.
package enum

import (
	"context"
	"errors"

	"github.com/huntlab/filehound/pkg/types"
)

// ErrFtpUnsupported is returned when an FTP server does not advertise the
// MLSD extension, which the driver requires for machine-readable listings.
var ErrFtpUnsupported = errors.New("ftp server does not support MLSD")

// EmitFunc receives file references during enumeration. Returning an
// error stops the walk.
type EmitFunc func(types.FileRef) error

// Driver walks a remote or local tree and emits file references. A driver
// owns its network session and must close it on cancellation; emission
// order within a driver is depth-first.
//
// Emitted fetchers may be invoked after Enumerate has returned, while the
// work queue drains. Drivers keeping a session open for their fetchers
// implement io.Closer; the coordinator closes them once analysis is done.
type Driver interface {
	// Host identifies the endpoint this driver enumerates.
	Host() types.Host

	// Enumerate walks the tree rooted at the driver's configured roots.
	// A nil return means the walk finished cleanly and the host may be
	// marked complete.
	Enumerate(ctx context.Context, emit EmitFunc) error
}

// Credentials carries what the enumeration contract needs for protocol
// login. NTHash enables SMB pass-the-hash; all fields empty means an
// anonymous/null session.
type Credentials struct {
	Username string
	Password string
	Domain   string
	NTHash   string
}
