package types

import "testing"

func TestFileRef_Direct(t *testing.T) {
	ref := FileRef{FullPath: "/srv/data/notes.txt"}

	if got := ref.ObservablePath(); got != "/srv/data/notes.txt" {
		t.Errorf("ObservablePath = %q", got)
	}
	if got := ref.Name(); got != "notes.txt" {
		t.Errorf("Name = %q", got)
	}
	if got := ref.DisplayChain(); got != "" {
		t.Errorf("DisplayChain = %q, want empty", got)
	}
	if got := ref.Depth(); got != 0 {
		t.Errorf("Depth = %d", got)
	}
}

func TestFileRef_Member(t *testing.T) {
	outer := FileRef{FullPath: "/backups/secrets.zip"}
	member := outer.Member("id_rsa", 1675, nil)

	if got := member.ObservablePath(); got != "/backups/secrets.zip!id_rsa" {
		t.Errorf("ObservablePath = %q", got)
	}
	if got := member.DisplayChain(); got != "secrets.zip/id_rsa" {
		t.Errorf("DisplayChain = %q", got)
	}
	if got := member.Name(); got != "id_rsa" {
		t.Errorf("Name = %q", got)
	}
	if got := member.Depth(); got != 1 {
		t.Errorf("Depth = %d", got)
	}
}

func TestFileRef_NestedMember(t *testing.T) {
	outer := FileRef{FullPath: "/x/outer.zip"}
	inner := outer.Member("inner.tar", 2048, nil)
	leaf := inner.Member("creds/secret.key", 64, nil)

	if got := leaf.ObservablePath(); got != "/x/outer.zip!inner.tar!creds/secret.key" {
		t.Errorf("ObservablePath = %q", got)
	}
	if got := leaf.DisplayChain(); got != "outer.zip/inner.tar/creds/secret.key" {
		t.Errorf("DisplayChain = %q", got)
	}
	if got := leaf.Name(); got != "secret.key" {
		t.Errorf("Name = %q", got)
	}
	if got := leaf.Depth(); got != 2 {
		t.Errorf("Depth = %d", got)
	}

	// Deriving leaf must not have mutated the intermediate chain.
	if got := inner.Depth(); got != 1 {
		t.Errorf("inner Depth = %d after deriving leaf", got)
	}
}

func TestHost_String(t *testing.T) {
	cases := []struct {
		host Host
		want string
	}{
		{Host{Protocol: ProtocolLocal, Address: "127.0.0.1"}, "local://127.0.0.1"},
		{Host{Protocol: ProtocolFTP, Address: "10.0.0.5", Port: 21}, "ftp://10.0.0.5:21"},
		{Host{Protocol: ProtocolSMB, Address: "10.0.0.5", Port: 445, Share: "finance"}, "smb://10.0.0.5:445/finance"},
	}
	for _, tc := range cases {
		if got := tc.host.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}
