package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/huntlab/filehound"
	"github.com/huntlab/filehound/pkg/enum"
	"github.com/huntlab/filehound/pkg/types"
)

var (
	collectWorkers    int
	collectQueueDepth int
)

func addCollectFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&collectWorkers, "workers", 0, "Analyzer pool size (default: CPU count)")
	cmd.Flags().IntVar(&collectQueueDepth, "queue-depth", 0, "Work queue depth (default: 4x pool size)")
}

// runCollection executes drivers against the flagged workspace and prints
// the operator summary.
func runCollection(cmd *cobra.Command, drivers []enum.Driver) error {
	if workspace == "" {
		return fmt.Errorf("%w: -w <workspace> is required", errUsage)
	}

	result, err := filehound.Run(cmd.Context(), drivers, filehound.Options{
		ConfigPath: configPath,
		Database:   database,
		Workspace:  workspace,
		Workers:    collectWorkers,
		QueueDepth: collectQueueDepth,
		Logger:     slog.Default(),
	})
	if result != nil && !quiet {
		printSummary(result)
	}
	return err
}

func printSummary(r *filehound.RunResult) {
	heading := color.New(color.Bold)
	high := color.New(color.FgHiRed)
	medium := color.New(color.FgYellow)
	low := color.New(color.FgHiBlue)
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}

	heading.Println("collection summary")
	fmt.Printf("  hosts enumerated:      %d\n", r.Summary.Hosts)
	fmt.Printf("  files inspected:       %d\n", r.Stats.Inspected)
	fmt.Printf("  unique contents:       %d\n", r.Summary.UniqueContents)
	fmt.Printf("  paths recorded:        %d\n", r.Summary.Paths)
	fmt.Printf("  duplicates short-cut:  %d\n", r.Stats.Deduplicated)
	fmt.Printf("  size-gated:            %d\n", r.Stats.Gated)
	fmt.Printf("  failed:                %d\n", r.Stats.Failed)

	heading.Println("matches by relevance")
	fmt.Printf("  high:   %s\n", high.Sprint(r.Summary.ByRelevance[types.RelevanceHigh]))
	fmt.Printf("  medium: %s\n", medium.Sprint(r.Summary.ByRelevance[types.RelevanceMedium]))
	fmt.Printf("  low:    %s\n", low.Sprint(r.Summary.ByRelevance[types.RelevanceLow]))
}
