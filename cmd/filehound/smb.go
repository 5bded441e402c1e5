package main

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/huntlab/filehound/pkg/enum"
)

var (
	smbHost    string
	smbPort    int
	smbShares  []string
	smbShow    bool
	smbUser    string
	smbDomain  string
	smbPass    string
	smbAskPass bool
	smbHash    string
)

var hashRe = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

var smbCmd = &cobra.Command{
	Use:   "smb",
	Short: "Hunt SMB shares",
	Long: `Hunt SMB shares. Authentication modes: user and password, user and NTLM
hash (pass-the-hash), or an anonymous null session when no credentials are
given.`,
	RunE: runSMB,
}

func init() {
	smbCmd.Flags().StringVar(&smbHost, "host", "", "Target SMB service address")
	smbCmd.Flags().IntVar(&smbPort, "port", 445, "Target SMB service port")
	smbCmd.Flags().StringSliceVar(&smbShares, "shares", nil, "Shares to enumerate (default: all non-administrative shares)")
	smbCmd.Flags().BoolVar(&smbShow, "show", false, "Only list share names, do not enumerate")
	smbCmd.Flags().StringVarP(&smbUser, "username", "u", "", "User for authentication")
	smbCmd.Flags().StringVarP(&smbDomain, "domain", "d", "", "Domain for authentication")
	smbCmd.Flags().StringVarP(&smbPass, "password", "p", "", "Password of the given user")
	smbCmd.Flags().BoolVarP(&smbAskPass, "prompt-password", "P", false, "Prompt for the password")
	smbCmd.Flags().StringVar(&smbHash, "hash", "", "NT hash for pass-the-hash (32 hex characters)")
	addCollectFlags(smbCmd)
}

func runSMB(cmd *cobra.Command, args []string) error {
	if smbHost == "" {
		return fmt.Errorf("%w: --host is required", errUsage)
	}
	if (smbPass != "" || smbAskPass || smbHash != "") && smbUser == "" {
		return fmt.Errorf("%w: credentials require --username", errUsage)
	}
	if smbPass != "" && smbHash != "" {
		return fmt.Errorf("%w: --password and --hash are mutually exclusive", errUsage)
	}
	if smbHash != "" && !hashRe.MatchString(smbHash) {
		return fmt.Errorf("%w: invalid NT hash %q", errUsage, smbHash)
	}
	password := smbPass
	if smbAskPass {
		p, err := promptSecret("password: ")
		if err != nil {
			return err
		}
		password = p
	}

	creds := enum.Credentials{
		Username: smbUser,
		Password: password,
		Domain:   smbDomain,
		NTHash:   strings.ToLower(smbHash),
	}

	shares := smbShares
	if len(shares) == 0 || smbShow {
		probe := &enum.SMBDriver{Address: smbHost, Port: smbPort, Credentials: creds}
		listed, err := probe.ListShares(cmd.Context())
		if err != nil {
			return err
		}
		if smbShow {
			for _, name := range listed {
				fmt.Println(name)
			}
			return nil
		}
		shares = listed
	}

	var drivers []enum.Driver
	for _, share := range shares {
		drivers = append(drivers, &enum.SMBDriver{
			Address:     smbHost,
			Port:        smbPort,
			ShareName:   share,
			Credentials: creds,
		})
	}
	return runCollection(cmd, drivers)
}
