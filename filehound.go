// Package filehound provides the collection engine: it wires the rule
// set, the dedup store, the enumeration drivers and the analyzer pool
// into one run.
//
// # Basic Usage
//
// Collect a local directory tree into a workspace:
//
//	drivers := []enum.Driver{&enum.LocalDriver{Roots: []string{"/srv/share"}}}
//	result, err := filehound.Run(ctx, drivers, filehound.Options{
//	    Database:  "hunt.db",
//	    Workspace: "acme-q3",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d unique contents stored\n", result.Summary.UniqueContents)
package filehound

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/huntlab/filehound/pkg/analyzer"
	"github.com/huntlab/filehound/pkg/config"
	"github.com/huntlab/filehound/pkg/coord"
	"github.com/huntlab/filehound/pkg/enum"
	"github.com/huntlab/filehound/pkg/store"
)

// Options configures a collection run.
type Options struct {
	// ConfigPath points at a rule configuration file. Empty uses the
	// embedded defaults.
	ConfigPath string

	// Database is a SQLite path or a postgres:// URL.
	Database string

	// Workspace names the engagement all state is scoped to.
	Workspace string

	// Workers sets the analyzer pool size; 0 means the CPU count.
	Workers int

	// QueueDepth sets the work-queue capacity; 0 means 4x the pool.
	QueueDepth int

	// Logger receives structured progress and per-file error records.
	// Nil uses slog.Default().
	Logger *slog.Logger
}

// RunResult carries the operator-facing outcome of a run.
type RunResult struct {
	Summary *store.Summary
	Stats   analyzer.StatsSnapshot
}

// Run executes one collection: every driver enumerates its host into the
// shared analyzer pool, and the run summary is computed from the store
// afterwards. The partial workspace is preserved on error.
func Run(ctx context.Context, drivers []enum.Driver, opts Options) (*RunResult, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	set, err := cfg.CompileRules()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if err := st.Init(ctx); err != nil {
		return nil, err
	}
	ws, err := st.AddWorkspace(ctx, opts.Workspace)
	if err != nil {
		return nil, fmt.Errorf("adding workspace: %w", err)
	}
	ruleIDs, err := st.SnapshotRules(ctx, ws.ID, set)
	if err != nil {
		return nil, fmt.Errorf("snapshotting rules: %w", err)
	}

	a := analyzer.New(cfg, set, st, ws.ID, ruleIDs, log)
	co := coord.New(a, st, ws.ID, log,
		coord.WithWorkers(opts.Workers),
		coord.WithQueueDepth(opts.QueueDepth))

	runErr := co.Run(ctx, drivers)

	summary, serr := st.Summarize(ctx, ws.ID)
	if serr != nil {
		summary = &store.Summary{}
	}
	result := &RunResult{Summary: summary, Stats: a.Stats()}
	if runErr != nil {
		return result, runErr
	}
	return result, nil
}
