package types

import (
	"fmt"
	"time"
)

// Protocol identifies the service a host is enumerated over.
type Protocol string

const (
	ProtocolLocal Protocol = "local"
	ProtocolFTP   Protocol = "ftp"
	ProtocolNFS   Protocol = "nfs"
	ProtocolSMB   Protocol = "smb"
)

// Host is a single protocol endpoint within a workspace. Share carries the
// SMB share or NFS export name and is empty for FTP and local collection.
type Host struct {
	Protocol Protocol
	Address  string
	Port     int
	Share    string
}

// String renders the endpoint for logs and reports, e.g.
// "smb://10.0.0.5:445/finance" or "local://127.0.0.1".
func (h Host) String() string {
	s := fmt.Sprintf("%s://%s", h.Protocol, h.Address)
	if h.Port > 0 {
		s = fmt.Sprintf("%s:%d", s, h.Port)
	}
	if h.Share != "" {
		s += "/" + h.Share
	}
	return s
}

// Workspace is the named scope for one collection engagement.
type Workspace struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}
