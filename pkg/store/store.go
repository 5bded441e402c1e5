// Package store persists collection state: workspaces, hosts, the rule
// snapshot, deduplicated file contents and their observed paths. It is the
// only shared mutable resource of a collection run; the backing engine is
// swappable between an embedded SQLite file and a PostgreSQL server.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/huntlab/filehound/pkg/rules"
	"github.com/huntlab/filehound/pkg/types"
)

// ErrDatabase marks unrecoverable database loss. The coordinator aborts
// the run when it sees it; everything else is retried or skipped.
var ErrDatabase = errors.New("unrecoverable database error")

// ErrNotFound is returned by lookups that require a row to exist.
var ErrNotFound = errors.New("not found")

// IsFatal reports whether an error means the database is lost and the run
// must abort.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// UpsertFile carries the attributes of a first content sighting.
// SHA256 is empty for size-gated files, which also have nil Content.
type UpsertFile struct {
	SHA256   string
	Size     int64
	Content  []byte
	MimeHint string
	Category string
	RuleID   int64
}

// AddPath records one observation of a file at a location. ArchiveChain is
// the display chain ("secrets.zip/id_rsa") or empty for direct sightings.
type AddPath struct {
	HostID       int64
	FileID       int64
	FullPath     string
	ArchiveChain string
	RuleID       int64
}

// Summary is the operator-facing result of a run.
type Summary struct {
	Hosts          int
	Paths          int
	UniqueContents int
	ByRelevance    map[types.Relevance]int
}

// Store is the dedup-store contract. UpsertFileContent is idempotent per
// (workspace, sha256): concurrent callers converge on a single row and the
// earliest committer's rule and category win. AddPathRecord is never
// coalesced.
type Store interface {
	Init(ctx context.Context) error
	Drop(ctx context.Context) error
	Close() error

	AddWorkspace(ctx context.Context, name string) (*types.Workspace, error)
	GetWorkspace(ctx context.Context, name string) (*types.Workspace, error)
	Workspaces(ctx context.Context) ([]types.Workspace, error)

	AddHost(ctx context.Context, workspaceID int64, h types.Host) (int64, error)
	HostCompleted(ctx context.Context, workspaceID int64, h types.Host) (bool, error)
	MarkHostComplete(ctx context.Context, workspaceID int64, h types.Host) error

	// SnapshotRules writes the rule set used by this run and returns the
	// database id of every rule.
	SnapshotRules(ctx context.Context, workspaceID int64, set *rules.Set) (map[*rules.Rule]int64, error)

	// LookupFile returns the file stored for the hash, or nil when the
	// hash is unseen in the workspace.
	LookupFile(ctx context.Context, workspaceID int64, sha256 string) (*types.File, error)

	// LookupGatedFile finds a previously stored content-less file for the
	// same observed location, so re-runs do not multiply gated rows.
	LookupGatedFile(ctx context.Context, workspaceID, hostID int64, fullPath, archiveChain string) (*types.File, error)

	UpsertFileContent(ctx context.Context, workspaceID int64, f UpsertFile) (*types.File, error)
	AddPathRecord(ctx context.Context, p AddPath) error

	ListFindings(ctx context.Context, workspaceID int64, pendingOnly bool) ([]types.Finding, error)
	SetVerdict(ctx context.Context, fileID int64, v types.Verdict, comment string) error
	Summarize(ctx context.Context, workspaceID int64) (*Summary, error)
}

// Open dispatches on the data source name: "postgres://" URLs open the
// PostgreSQL backend, everything else is treated as a SQLite file path
// (":memory:" included).
func Open(dsn string) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return openPostgres(dsn)
	}
	return openSQLite(dsn)
}

// retry attempts fn up to 3 times with exponential backoff. Constraint
// violations and context cancellation are not retried; the caller decides
// how to converge.
func retry(ctx context.Context, fn func() error) error {
	const attempts = 3
	backoff := 100 * time.Millisecond

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return err
}

// isTransient recognizes lock contention and connection drops worth
// retrying.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if isUniqueViolation(err) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"database is locked", "database table is locked", "busy", "connection reset", "connection refused", "broken pipe", "i/o timeout"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// isUniqueViolation recognizes unique-constraint collisions from both
// backends.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
