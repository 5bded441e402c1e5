package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/huntlab/filehound/pkg/store"
)

var reportOutput string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export findings as CSV",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "-", "Output path (- for stdout)")
}

func runReport(cmd *cobra.Command, args []string) error {
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
	findings, err := st.ListFindings(ctx, ws.ID, false)
	if err != nil {
		return err
	}

	out := os.Stdout
	if reportOutput != "-" {
		f, err := os.Create(reportOutput)
		if err != nil {
			return fmt.Errorf("creating report: %w", err)
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	header := []string{"host", "full_path", "archive_chain", "category", "relevance", "accuracy", "priority", "pattern", "sha256", "size", "mime", "verdict", "comment"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, f := range findings {
		row := []string{
			f.Host,
			f.FullPath,
			f.ArchiveChain,
			f.Category,
			f.Relevance.String(),
			f.Accuracy.String(),
			strconv.Itoa(f.Priority),
			f.Pattern,
			f.SHA256,
			strconv.FormatInt(f.Size, 10),
			f.MimeHint,
			f.Verdict.String(),
			f.Comment,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
