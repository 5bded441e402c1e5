package coord

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huntlab/filehound/pkg/analyzer"
	"github.com/huntlab/filehound/pkg/config"
	"github.com/huntlab/filehound/pkg/enum"
	"github.com/huntlab/filehound/pkg/rules"
	"github.com/huntlab/filehound/pkg/store"
	"github.com/huntlab/filehound/pkg/types"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxFileSizeBytes:    1 << 20,
		MaxArchiveSizeBytes: 4 << 20,
		MaxArchiveDepth:     8,
		SupportedArchives:   []string{"zip"},
		MatchRules: []rules.Descriptor{
			{SearchLocation: "file_content", SearchPattern: `password\s*=\s*\S+`, Category: "Generic Password Pattern", Relevance: "high", Accuracy: "low"},
		},
	}
}

func newRig(t *testing.T) (*Coordinator, *analyzer.Analyzer, store.Store, int64) {
	t.Helper()
	cfg := testConfig()
	set, err := rules.Compile(cfg.MatchRules)
	require.NoError(t, err)

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.Init(ctx))
	ws, err := st.AddWorkspace(ctx, "test")
	require.NoError(t, err)
	ids, err := st.SnapshotRules(ctx, ws.ID, set)
	require.NoError(t, err)

	a := analyzer.New(cfg, set, st, ws.ID, ids, slog.Default())
	co := New(a, st, ws.ID, slog.Default(), WithWorkers(4))
	return co, a, st, ws.ID
}

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "creds.txt"), []byte("password=hunter2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "copy.txt"), []byte("password=hunter2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "boring.txt"), []byte("nothing\n"), 0o644))
	return root
}

func TestRun_EndToEnd(t *testing.T) {
	co, _, st, ws := newRig(t)
	root := writeTree(t)

	driver := &enum.LocalDriver{Roots: []string{root}}
	require.NoError(t, co.Run(context.Background(), []enum.Driver{driver}))

	sum, err := st.Summarize(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.UniqueContents)
	assert.Equal(t, 2, sum.Paths)

	// Clean exit marks the host complete.
	done, err := st.HostCompleted(context.Background(), ws, driver.Host())
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRun_IdempotentResume(t *testing.T) {
	co, a, st, ws := newRig(t)
	root := writeTree(t)
	driver := &enum.LocalDriver{Roots: []string{root}}

	require.NoError(t, co.Run(context.Background(), []enum.Driver{driver}))
	first, err := st.ListFindings(context.Background(), ws, false)
	require.NoError(t, err)

	// A completed host is skipped entirely on re-run.
	inspectedBefore := a.Stats().Inspected
	require.NoError(t, co.Run(context.Background(), []enum.Driver{driver}))
	assert.Equal(t, inspectedBefore, a.Stats().Inspected)

	second, err := st.ListFindings(context.Background(), ws, false)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
}

type failingDriver struct {
	host types.Host
}

func (d *failingDriver) Host() types.Host { return d.host }

func (d *failingDriver) Enumerate(ctx context.Context, emit enum.EmitFunc) error {
	return errors.New("login refused")
}

func TestRun_DriverFailureLeavesHostIncomplete(t *testing.T) {
	co, _, st, ws := newRig(t)
	root := writeTree(t)

	bad := &failingDriver{host: types.Host{Protocol: types.ProtocolFTP, Address: "10.0.0.9", Port: 21}}
	good := &enum.LocalDriver{Roots: []string{root}}

	// One driver failing does not abort the others.
	require.NoError(t, co.Run(context.Background(), []enum.Driver{bad, good}))

	done, err := st.HostCompleted(context.Background(), ws, bad.Host())
	require.NoError(t, err)
	assert.False(t, done)

	done, err = st.HostCompleted(context.Background(), ws, good.Host())
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRun_AllDriversFailed(t *testing.T) {
	co, _, _, _ := newRig(t)

	drivers := []enum.Driver{
		&failingDriver{host: types.Host{Protocol: types.ProtocolFTP, Address: "10.0.0.9", Port: 21}},
		&failingDriver{host: types.Host{Protocol: types.ProtocolSMB, Address: "10.0.0.10", Port: 445}},
	}
	err := co.Run(context.Background(), drivers)
	assert.ErrorIs(t, err, ErrAllDriversFailed)
}

func TestRun_Cancellation(t *testing.T) {
	co, _, _, _ := newRig(t)
	root := writeTree(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := co.Run(ctx, []enum.Driver{&enum.LocalDriver{Roots: []string{root}}})
	assert.ErrorIs(t, err, context.Canceled)
}
