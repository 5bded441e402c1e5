package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/huntlab/filehound/pkg/store"
	"github.com/huntlab/filehound/pkg/types"
)

var reviewAll bool

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review collected findings interactively",
	Long: `Walk the workspace's findings ordered by rule priority and record a
relevant/irrelevant verdict per file. Commands: n(ext), p(rev),
1 = irrelevant, 2 = relevant, c <comment>, q(uit).`,
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().BoolVar(&reviewAll, "all", false, "Include already reviewed findings")
}

func runReview(cmd *cobra.Command, args []string) error {
	if workspace == "" {
		return fmt.Errorf("%w: -w <workspace> is required", errUsage)
	}

	st, err := store.Open(database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	ws, err := st.GetWorkspace(ctx, workspace)
	if err != nil {
		return err
	}
	findings, err := st.ListFindings(ctx, ws.ID, !reviewAll)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		fmt.Println("nothing to review")
		return nil
	}

	heading := color.New(color.Bold)
	meta := color.New(color.FgHiBlue)

	idx := 0
	show := func() {
		f := findings[idx]
		heading.Printf("[%d/%d] %s\n", idx+1, len(findings), f.Category)
		fmt.Printf("  host:      %s\n", f.Host)
		fmt.Printf("  path:      %s\n", f.FullPath)
		if f.ArchiveChain != "" {
			fmt.Printf("  chain:     %s\n", f.ArchiveChain)
		}
		meta.Printf("  relevance: %s  accuracy: %s  priority: %d\n", f.Relevance, f.Accuracy, f.Priority)
		fmt.Printf("  size: %d  mime: %s  verdict: %s\n", f.Size, f.MimeHint, f.Verdict)
		if f.Comment != "" {
			fmt.Printf("  comment:   %s\n", f.Comment)
		}
	}

	show()
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		f := &findings[idx]
		switch {
		case line == "q":
			return nil
		case line == "n":
			if idx < len(findings)-1 {
				idx++
			}
			show()
		case line == "p":
			if idx > 0 {
				idx--
			}
			show()
		case line == "1", line == "2":
			verdict := types.VerdictIrrelevant
			if line == "2" {
				verdict = types.VerdictRelevant
			}
			if err := st.SetVerdict(ctx, f.FileID, verdict, f.Comment); err != nil {
				return err
			}
			f.Verdict = verdict
			if idx < len(findings)-1 {
				idx++
			}
			show()
		case strings.HasPrefix(line, "c "):
			f.Comment = strings.TrimSpace(strings.TrimPrefix(line, "c "))
			if err := st.SetVerdict(ctx, f.FileID, f.Verdict, f.Comment); err != nil {
				return err
			}
			show()
		case line == "":
		default:
			fmt.Println("commands: n, p, 1 (irrelevant), 2 (relevant), c <comment>, q")
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}
