package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	quiet      bool
	configPath string
	database   string
	workspace  string
)

// errUsage marks argument errors so main can map them to exit code 2.
var errUsage = errors.New("invalid arguments")

var rootCmd = &cobra.Command{
	Use:   "filehound",
	Short: "Filehound - sensitive file hunter",
	Long: `Filehound walks file-sharing services (FTP, NFS, SMB) or local directory
trees, descends into archives, and classifies every file it reaches against
a prioritized set of match rules. Matches are deduplicated by content and
persisted for later review.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		if quiet {
			level = slog.LevelError
		}
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		slog.SetDefault(slog.New(handler))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to rule configuration file (default: built-in rules)")
	rootCmd.PersistentFlags().StringVar(&database, "database", "filehound.db", "SQLite path or postgres:// URL")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace name")

	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(localCmd)
	rootCmd.AddCommand(ftpCmd)
	rootCmd.AddCommand(nfsCmd)
	rootCmd.AddCommand(smbCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command with the process context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
