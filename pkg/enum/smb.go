package enum

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"path"
	"strings"
	"sync"

	"github.com/hirochachacha/go-smb2"

	"github.com/huntlab/filehound/pkg/types"
)

// SMBDriver enumerates one SMB share. Authentication supports three
// modes: user and password, user and NTLM hash (pass-the-hash), and the
// anonymous null session when no credentials are given.
type SMBDriver struct {
	Address     string
	Port        int
	ShareName   string
	Credentials Credentials
	Roots       []string

	mu      sync.Mutex
	conn    net.Conn
	session *smb2.Session
	share   *smb2.Share
}

func (d *SMBDriver) Host() types.Host {
	return types.Host{Protocol: types.ProtocolSMB, Address: d.Address, Port: d.Port, Share: d.ShareName}
}

// initiator builds the NTLM authenticator for the configured mode.
func (d *SMBDriver) initiator() (*smb2.NTLMInitiator, error) {
	init := &smb2.NTLMInitiator{
		User:     d.Credentials.Username,
		Domain:   d.Credentials.Domain,
		Password: d.Credentials.Password,
	}
	if d.Credentials.NTHash != "" {
		hash, err := hex.DecodeString(d.Credentials.NTHash)
		if err != nil || len(hash) != 16 {
			return nil, fmt.Errorf("invalid NT hash %q", d.Credentials.NTHash)
		}
		init.Password = ""
		init.Hash = hash
	}
	return init, nil
}

// dial establishes the TCP connection and SMB session.
func (d *SMBDriver) dial(ctx context.Context) (*smb2.Session, net.Conn, error) {
	init, err := d.initiator()
	if err != nil {
		return nil, nil, err
	}
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", d.Address, d.Port))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", d.Host(), err)
	}
	dialer := &smb2.Dialer{Initiator: init}
	session, err := dialer.DialContext(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("smb session with %s: %w", d.Host(), err)
	}
	return session, conn, nil
}

func (d *SMBDriver) Enumerate(ctx context.Context, emit EmitFunc) error {
	session, conn, err := d.dial(ctx)
	if err != nil {
		return err
	}
	share, err := session.Mount(d.ShareName)
	if err != nil {
		session.Logoff()
		conn.Close()
		return fmt.Errorf("mounting %s: %w", d.Host(), err)
	}

	d.mu.Lock()
	d.conn, d.session, d.share = conn, session, share.WithContext(ctx)
	d.mu.Unlock()

	// Fetchers may still run after Enumerate returns; the coordinator
	// calls Close once the queue has drained. Cancellation tears the
	// session down early.
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

// Close unmounts the share and tears down the session. Safe to call more
// than once.
func (d *SMBDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.share != nil {
		d.share.Umount()
		d.share = nil
	}
	if d.session != nil {
		d.session.Logoff()
		d.session = nil
	}
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
	return nil
}

// ListShares connects and returns the share names the credentials can
// see, with administrative shares filtered out.
func (d *SMBDriver) ListShares(ctx context.Context) ([]string, error) {
	session, conn, err := d.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	defer session.Logoff()

	names, err := session.ListSharenames()
	if err != nil {
		return nil, fmt.Errorf("listing shares on %s: %w", d.Host(), err)
	}
	var out []string
	for _, name := range names {
		if strings.HasSuffix(name, "$") {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

func (d *SMBDriver) mounted() *smb2.Share {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.share
}

func (d *SMBDriver) walk(ctx context.Context, dir string, emit EmitFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	share := d.mounted()
	if share == nil {
		return ctx.Err()
	}

	entries, err := share.ReadDir(dir)
	if err != nil {
		return nil // unreadable directory, continue with siblings
	}
	for _, info := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		full := path.Join(dir, info.Name())
		switch {
		case info.IsDir():
			if err := d.walk(ctx, full, emit); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			ref := types.FileRef{
				Host:     d.Host(),
				FullPath: full,
				Size:     info.Size(),
				Fetch:    d.fetch(full),
			}
			if err := emit(ref); err != nil {
				return err
			}
		default:
			// reparse points and special files are skipped
		}
	}
	return nil
}

func (d *SMBDriver) fetch(full string) types.FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		share := d.mounted()
		if share == nil {
			return nil, fmt.Errorf("opening %s: session closed", full)
		}
		f, err := share.Open(full)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", full, err)
		}
		defer f.Close()
		return io.ReadAll(f)
	}
}
