package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huntlab/filehound/pkg/enum"
)

var (
	localSameFilesystem bool
	localFollowSymlinks bool
)

var localCmd = &cobra.Command{
	Use:   "local <path>...",
	Short: "Hunt a local directory tree",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLocal,
}

func init() {
	localCmd.Flags().BoolVar(&localSameFilesystem, "same-filesystem", false, "Do not cross filesystem boundaries")
	localCmd.Flags().BoolVar(&localFollowSymlinks, "follow-symlinks", false, "Descend into symlinked directories")
	addCollectFlags(localCmd)
}

func runLocal(cmd *cobra.Command, args []string) error {
	for _, root := range args {
		if root == "" {
			return fmt.Errorf("%w: empty path", errUsage)
		}
	}
	driver := &enum.LocalDriver{
		Roots:          args,
		SameFilesystem: localSameFilesystem,
		FollowSymlinks: localFollowSymlinks,
	}
	return runCollection(cmd, []enum.Driver{driver})
}
