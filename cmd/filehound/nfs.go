package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huntlab/filehound/pkg/enum"
)

var (
	nfsHost   string
	nfsExport string
	nfsUID    uint32
	nfsGID    uint32
	nfsRoots  []string
)

var nfsCmd = &cobra.Command{
	Use:   "nfs",
	Short: "Hunt an NFS export",
	Long:  "Hunt an NFSv3 export through a userspace client. The uid/gid sent with AUTH_UNIX are informational only.",
	RunE:  runNFS,
}

func init() {
	nfsCmd.Flags().StringVar(&nfsHost, "host", "", "Target NFS service address")
	nfsCmd.Flags().StringVar(&nfsExport, "export", "", "Export path to mount")
	nfsCmd.Flags().Uint32Var(&nfsUID, "uid", 0, "UID to present")
	nfsCmd.Flags().Uint32Var(&nfsGID, "gid", 0, "GID to present")
	nfsCmd.Flags().StringSliceVar(&nfsRoots, "root", nil, "Directories to enumerate within the export (default: export root)")
	addCollectFlags(nfsCmd)
}

func runNFS(cmd *cobra.Command, args []string) error {
	if nfsHost == "" || nfsExport == "" {
		return fmt.Errorf("%w: --host and --export are required", errUsage)
	}
	driver := &enum.NFSDriver{
		Address: nfsHost,
		Export:  nfsExport,
		UID:     nfsUID,
		GID:     nfsGID,
		Roots:   nfsRoots,
	}
	return runCollection(cmd, []enum.Driver{driver})
}
