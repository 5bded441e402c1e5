package enum

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/huntlab/filehound/pkg/types"
)

// FTPDriver enumerates an FTP service. Listings use the MLSD extension;
// servers that do not advertise it are rejected with ErrFtpUnsupported
// because LIST output is not machine-parseable across implementations.
type FTPDriver struct {
	Address     string
	Port        int
	Credentials Credentials
	ExplicitTLS bool
	Roots       []string

	mu   sync.Mutex // the control connection handles one command at a time
	conn *ftp.ServerConn
}

func (d *FTPDriver) Host() types.Host {
	return types.Host{Protocol: types.ProtocolFTP, Address: d.Address, Port: d.Port}
}

func (d *FTPDriver) Enumerate(ctx context.Context, emit EmitFunc) error {
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(30 * time.Second),
	}
	if d.ExplicitTLS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: d.Address}))
	}

	conn, err := ftp.Dial(fmt.Sprintf("%s:%d", d.Address, d.Port), opts...)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", d.Host(), err)
	}
	d.conn = conn

	user, pass := d.Credentials.Username, d.Credentials.Password
	if user == "" {
		user, pass = "anonymous", "anonymous"
	}
	if err := conn.Login(user, pass); err != nil {
		return fmt.Errorf("logging in to %s: %w", d.Host(), err)
	}

	if !conn.IsTimePreciseInList() {
		return fmt.Errorf("%s: %w", d.Host(), ErrFtpUnsupported)
	}

	// The session stays open after Enumerate returns so queued fetchers
	// can still retrieve bytes; the coordinator calls Close when the run
	// is drained. Cancellation closes it early.
	stop := context.AfterFunc(ctx, func() { d.Close() })
	defer stop()

	roots := d.Roots
	if len(roots) == 0 {
		roots = []string{"/"}
	}
	for _, root := range roots {
		if err := d.walk(ctx, root, emit); err != nil {
			return err
		}
	}
	return nil
}

func (d *FTPDriver) walk(ctx context.Context, dir string, emit EmitFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	if d.conn == nil {
		d.mu.Unlock()
		return ctx.Err()
	}
	entries, err := d.conn.List(dir)
	d.mu.Unlock()
	if err != nil {
		// Unreadable directory; continue with siblings.
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		full := path.Join(dir, entry.Name)
		switch entry.Type {
		case ftp.EntryTypeFolder:
			if entry.Name == "." || entry.Name == ".." {
				continue
			}
			if err := d.walk(ctx, full, emit); err != nil {
				return err
			}
		case ftp.EntryTypeFile:
			ref := types.FileRef{
				Host:     d.Host(),
				FullPath: full,
				Size:     int64(entry.Size),
				Fetch:    d.fetch(full),
			}
			if err := emit(ref); err != nil {
				return err
			}
		default:
			// links and special entries are skipped
		}
	}
	return nil
}

// Close quits the control connection. Safe to call more than once.
func (d *FTPDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Quit()
	d.conn = nil
	return err
}

func (d *FTPDriver) fetch(full string) types.FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.conn == nil {
			return nil, fmt.Errorf("retrieving %s: session closed", full)
		}
		resp, err := d.conn.Retr(full)
		if err != nil {
			return nil, fmt.Errorf("retrieving %s: %w", full, err)
		}
		defer resp.Close()
		return io.ReadAll(resp)
	}
}
