package enum

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	"github.com/vmware/go-nfs-client/nfs"
	"github.com/vmware/go-nfs-client/nfs/rpc"

	"github.com/huntlab/filehound/pkg/types"
)

// NFSDriver enumerates one NFSv3 export through a userspace client; no
// mount(2) privileges are needed. UID and GID are sent with AUTH_UNIX but
// carry no security weight; they are informational for servers that log
// them.
type NFSDriver struct {
	Address string
	Export  string
	UID     uint32
	GID     uint32
	Roots   []string

	mu     sync.Mutex
	mount  *nfs.Mount
	target *nfs.Target
}

func (d *NFSDriver) Host() types.Host {
	return types.Host{Protocol: types.ProtocolNFS, Address: d.Address, Port: 2049, Share: d.Export}
}

func (d *NFSDriver) Enumerate(ctx context.Context, emit EmitFunc) error {
	mount, err := nfs.DialMount(d.Address)
	if err != nil {
		return fmt.Errorf("dialing mountd on %s: %w", d.Host(), err)
	}

	hostname, _ := os.Hostname()
	auth := rpc.NewAuthUnix(hostname, d.UID, d.GID)
	target, err := mount.Mount(d.Export, auth.Auth())
	if err != nil {
		mount.Close()
		return fmt.Errorf("mounting %s: %w", d.Host(), err)
	}

	d.mu.Lock()
	d.mount, d.target = mount, target
	d.mu.Unlock()

	// Fetchers may still run after Enumerate returns; the coordinator
	// calls Close once the queue has drained. Cancellation tears the
	// mount down early.
	stop := context.AfterFunc(ctx, func() { d.Close() })
	defer stop()

	roots := d.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}
	for _, root := range roots {
		if err := d.walk(ctx, root, emit); err != nil {
			return err
		}
	}
	return nil
}

// Close unmounts the export and closes the mount session. Safe to call
// more than once.
func (d *NFSDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.target != nil {
		d.target.Close()
		d.target = nil
	}
	if d.mount != nil {
		d.mount.Close()
		d.mount = nil
	}
	return nil
}

func (d *NFSDriver) mounted() *nfs.Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target
}

func (d *NFSDriver) walk(ctx context.Context, dir string, emit EmitFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := d.mounted()
	if target == nil {
		return ctx.Err()
	}

	entries, err := target.ReadDirPlus(dir)
	if err != nil {
		return nil // unreadable directory, continue with siblings
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		if name == "." || name == ".." {
			continue
		}
		full := path.Join(dir, name)
		switch {
		case entry.IsDir():
			if err := d.walk(ctx, full, emit); err != nil {
				return err
			}
		case entry.Mode().IsRegular():
			ref := types.FileRef{
				Host:     d.Host(),
				FullPath: full,
				Size:     entry.Size(),
				Fetch:    d.fetch(full),
			}
			if err := emit(ref); err != nil {
				return err
			}
		default:
			// symlinks and special nodes are skipped
		}
	}
	return nil
}

func (d *NFSDriver) fetch(full string) types.FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := d.mounted()
		if target == nil {
			return nil, fmt.Errorf("opening %s: session closed", full)
		}
		f, err := target.Open(full)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", full, err)
		}
		defer f.Close()
		return io.ReadAll(f)
	}
}
