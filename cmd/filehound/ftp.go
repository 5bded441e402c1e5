package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/huntlab/filehound/pkg/enum"
)

var (
	ftpHost     string
	ftpPort     int
	ftpUser     string
	ftpPassword string
	ftpAskPass  bool
	ftpTLS      bool
	ftpRoots    []string
)

var ftpCmd = &cobra.Command{
	Use:   "ftp",
	Short: "Hunt an FTP service",
	Long:  "Hunt an FTP service. The server must support the MLSD extension for machine-readable directory listings.",
	RunE:  runFTP,
}

func init() {
	ftpCmd.Flags().StringVar(&ftpHost, "host", "", "Target FTP service address")
	ftpCmd.Flags().IntVar(&ftpPort, "port", 21, "Target FTP service port")
	ftpCmd.Flags().StringVarP(&ftpUser, "username", "u", "", "User for authentication (default: anonymous)")
	ftpCmd.Flags().StringVarP(&ftpPassword, "password", "p", "", "Password of the given user")
	ftpCmd.Flags().BoolVarP(&ftpAskPass, "prompt-password", "P", false, "Prompt for the password")
	ftpCmd.Flags().BoolVar(&ftpTLS, "tls", false, "Use explicit TLS")
	ftpCmd.Flags().StringSliceVar(&ftpRoots, "root", nil, "Directories to enumerate (default: /)")
	addCollectFlags(ftpCmd)
}

func runFTP(cmd *cobra.Command, args []string) error {
	if ftpHost == "" {
		return fmt.Errorf("%w: --host is required", errUsage)
	}
	password := ftpPassword
	if ftpAskPass {
		p, err := promptSecret("password: ")
		if err != nil {
			return err
		}
		password = p
	}
	driver := &enum.FTPDriver{
		Address:     ftpHost,
		Port:        ftpPort,
		Credentials: enum.Credentials{Username: ftpUser, Password: password},
		ExplicitTLS: ftpTLS,
		Roots:       ftpRoots,
	}
	return runCollection(cmd, []enum.Driver{driver})
}

// promptSecret reads a line from the terminal without echo.
func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return string(b), nil
}
