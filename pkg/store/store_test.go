package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huntlab/filehound/pkg/rules"
	"github.com/huntlab/filehound/pkg/types"
)

func newTestStore(t *testing.T) (Store, int64) {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.Init(ctx))
	ws, err := st.AddWorkspace(ctx, "test")
	require.NoError(t, err)
	return st, ws.ID
}

func testRuleSet(t *testing.T) *rules.Set {
	t.Helper()
	set, err := rules.Compile([]rules.Descriptor{
		{SearchLocation: "file_content", SearchPattern: `password\s*=`, Category: "Generic Password Pattern", Relevance: "high", Accuracy: "low"},
		{SearchLocation: "file_name", SearchPattern: `^.*\.bak$`, Category: "Backup File", Relevance: "low", Accuracy: "low"},
	})
	require.NoError(t, err)
	return set
}

func TestAddWorkspace_Idempotent(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	a, err := st.AddWorkspace(ctx, "acme")
	require.NoError(t, err)
	b, err := st.AddWorkspace(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	all, err := st.Workspaces(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2) // "test" from setup plus "acme"
}

func TestGetWorkspace_Missing(t *testing.T) {
	st, _ := newTestStore(t)
	_, err := st.GetWorkspace(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHostCompletion(t *testing.T) {
	st, ws := newTestStore(t)
	ctx := context.Background()
	host := types.Host{Protocol: types.ProtocolFTP, Address: "10.0.0.5", Port: 21}

	done, err := st.HostCompleted(ctx, ws, host)
	require.NoError(t, err)
	assert.False(t, done, "unknown host must read as not completed")

	id1, err := st.AddHost(ctx, ws, host)
	require.NoError(t, err)
	id2, err := st.AddHost(ctx, ws, host)
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "AddHost must be get-or-create")

	done, err = st.HostCompleted(ctx, ws, host)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, st.MarkHostComplete(ctx, ws, host))
	done, err = st.HostCompleted(ctx, ws, host)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestSnapshotRules(t *testing.T) {
	st, ws := newTestStore(t)
	ctx := context.Background()
	set := testRuleSet(t)

	ids, err := st.SnapshotRules(ctx, ws, set)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	// Snapshotting again maps to the same rows.
	again, err := st.SnapshotRules(ctx, ws, set)
	require.NoError(t, err)
	assert.Equal(t, ids, again)
}

func TestUpsertFileContent_DedupBySHA(t *testing.T) {
	st, ws := newTestStore(t)
	ctx := context.Background()
	set := testRuleSet(t)
	ids, err := st.SnapshotRules(ctx, ws, set)
	require.NoError(t, err)

	contentRule := set.View(types.LocationFileContent)[0]
	nameRule := set.View(types.LocationFileName)[0]

	first, err := st.UpsertFileContent(ctx, ws, UpsertFile{
		SHA256:   "aa11",
		Size:     17,
		Content:  []byte("password=hunter2\n"),
		Category: contentRule.Category,
		RuleID:   ids[contentRule],
	})
	require.NoError(t, err)

	// A later caller with the same hash converges on the first row; its
	// own rule and category are discarded.
	second, err := st.UpsertFileContent(ctx, ws, UpsertFile{
		SHA256:   "aa11",
		Size:     17,
		Content:  []byte("password=hunter2\n"),
		Category: nameRule.Category,
		RuleID:   ids[nameRule],
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, contentRule.Category, second.Category)
	assert.Equal(t, ids[contentRule], second.RuleID)
}

func TestLookupFile(t *testing.T) {
	st, ws := newTestStore(t)
	ctx := context.Background()

	missing, err := st.LookupFile(ctx, ws, "deadbeef")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = st.UpsertFileContent(ctx, ws, UpsertFile{SHA256: "deadbeef", Size: 4, Content: []byte("data")})
	require.NoError(t, err)

	found, err := st.LookupFile(ctx, ws, "deadbeef")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(4), found.Size)
}

func TestGatedFiles_NoShaCollision(t *testing.T) {
	st, ws := newTestStore(t)
	ctx := context.Background()

	// Two gated files have no hash; they must not collide on the unique
	// constraint.
	a, err := st.UpsertFileContent(ctx, ws, UpsertFile{Size: 1 << 30})
	require.NoError(t, err)
	b, err := st.UpsertFileContent(ctx, ws, UpsertFile{Size: 2 << 30})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestLookupGatedFile(t *testing.T) {
	st, ws := newTestStore(t)
	ctx := context.Background()
	host := types.Host{Protocol: types.ProtocolLocal, Address: "127.0.0.1"}
	hostID, err := st.AddHost(ctx, ws, host)
	require.NoError(t, err)

	missing, err := st.LookupGatedFile(ctx, ws, hostID, "/big/backup.bak", "")
	require.NoError(t, err)
	assert.Nil(t, missing)

	f, err := st.UpsertFileContent(ctx, ws, UpsertFile{Size: 10 << 20, Category: "Backup File"})
	require.NoError(t, err)
	require.NoError(t, st.AddPathRecord(ctx, AddPath{HostID: hostID, FileID: f.ID, FullPath: "/big/backup.bak"}))

	found, err := st.LookupGatedFile(ctx, ws, hostID, "/big/backup.bak", "")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, f.ID, found.ID)
}

func TestAddPathRecord_NeverCoalesced(t *testing.T) {
	st, ws := newTestStore(t)
	ctx := context.Background()
	host := types.Host{Protocol: types.ProtocolLocal, Address: "127.0.0.1"}
	hostID, err := st.AddHost(ctx, ws, host)
	require.NoError(t, err)

	set := testRuleSet(t)
	ids, err := st.SnapshotRules(ctx, ws, set)
	require.NoError(t, err)
	rule := set.View(types.LocationFileContent)[0]

	f, err := st.UpsertFileContent(ctx, ws, UpsertFile{
		SHA256: "cc33", Size: 5, Content: []byte("passw"), Category: rule.Category, RuleID: ids[rule],
	})
	require.NoError(t, err)

	for _, p := range []string{"/a/creds.txt", "/b/creds.txt", "/a/creds.txt"} {
		require.NoError(t, st.AddPathRecord(ctx, AddPath{HostID: hostID, FileID: f.ID, FullPath: p, RuleID: ids[rule]}))
	}

	findings, err := st.ListFindings(ctx, ws, false)
	require.NoError(t, err)
	assert.Len(t, findings, 3, "one finding per path observation")
}

func TestListFindings_Ordering(t *testing.T) {
	st, ws := newTestStore(t)
	ctx := context.Background()
	host := types.Host{Protocol: types.ProtocolLocal, Address: "127.0.0.1"}
	hostID, err := st.AddHost(ctx, ws, host)
	require.NoError(t, err)

	set := testRuleSet(t)
	ids, err := st.SnapshotRules(ctx, ws, set)
	require.NoError(t, err)
	contentRule := set.View(types.LocationFileContent)[0]
	nameRule := set.View(types.LocationFileName)[0]

	low, err := st.UpsertFileContent(ctx, ws, UpsertFile{SHA256: "01", Size: 1, Category: nameRule.Category, RuleID: ids[nameRule]})
	require.NoError(t, err)
	high, err := st.UpsertFileContent(ctx, ws, UpsertFile{SHA256: "02", Size: 1, Category: contentRule.Category, RuleID: ids[contentRule]})
	require.NoError(t, err)

	require.NoError(t, st.AddPathRecord(ctx, AddPath{HostID: hostID, FileID: low.ID, FullPath: "/z/old.bak", RuleID: ids[nameRule]}))
	require.NoError(t, st.AddPathRecord(ctx, AddPath{HostID: hostID, FileID: high.ID, FullPath: "/a/creds.txt", RuleID: ids[contentRule]}))

	findings, err := st.ListFindings(ctx, ws, false)
	require.NoError(t, err)
	require.Len(t, findings, 2)

	// Highest priority first regardless of insertion order.
	assert.Equal(t, "Generic Password Pattern", findings[0].Category)
	assert.Equal(t, "Backup File", findings[1].Category)
	assert.Greater(t, findings[0].Priority, findings[1].Priority)
}

func TestSetVerdict(t *testing.T) {
	st, ws := newTestStore(t)
	ctx := context.Background()
	host := types.Host{Protocol: types.ProtocolLocal, Address: "127.0.0.1"}
	hostID, err := st.AddHost(ctx, ws, host)
	require.NoError(t, err)

	set := testRuleSet(t)
	ids, err := st.SnapshotRules(ctx, ws, set)
	require.NoError(t, err)
	rule := set.View(types.LocationFileName)[0]

	f, err := st.UpsertFileContent(ctx, ws, UpsertFile{SHA256: "ee55", Size: 1, Category: rule.Category, RuleID: ids[rule]})
	require.NoError(t, err)
	require.NoError(t, st.AddPathRecord(ctx, AddPath{HostID: hostID, FileID: f.ID, FullPath: "/x.bak", RuleID: ids[rule]}))

	require.NoError(t, st.SetVerdict(ctx, f.ID, types.VerdictRelevant, "confirmed creds"))

	pending, err := st.ListFindings(ctx, ws, true)
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := st.ListFindings(ctx, ws, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, types.VerdictRelevant, all[0].Verdict)
	assert.Equal(t, "confirmed creds", all[0].Comment)
}

func TestSummarize(t *testing.T) {
	st, ws := newTestStore(t)
	ctx := context.Background()
	host := types.Host{Protocol: types.ProtocolLocal, Address: "127.0.0.1"}
	hostID, err := st.AddHost(ctx, ws, host)
	require.NoError(t, err)

	set := testRuleSet(t)
	ids, err := st.SnapshotRules(ctx, ws, set)
	require.NoError(t, err)
	contentRule := set.View(types.LocationFileContent)[0]

	f, err := st.UpsertFileContent(ctx, ws, UpsertFile{SHA256: "ff66", Size: 1, Content: []byte("x"), Category: contentRule.Category, RuleID: ids[contentRule]})
	require.NoError(t, err)
	require.NoError(t, st.AddPathRecord(ctx, AddPath{HostID: hostID, FileID: f.ID, FullPath: "/a", RuleID: ids[contentRule]}))
	require.NoError(t, st.AddPathRecord(ctx, AddPath{HostID: hostID, FileID: f.ID, FullPath: "/b", RuleID: ids[contentRule]}))

	sum, err := st.Summarize(ctx, ws)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Hosts)
	assert.Equal(t, 2, sum.Paths)
	assert.Equal(t, 1, sum.UniqueContents)
	assert.Equal(t, 1, sum.ByRelevance[types.RelevanceHigh])
}
