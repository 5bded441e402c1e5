package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/huntlab/filehound/pkg/rules"
	"github.com/huntlab/filehound/pkg/types"
)

// dbStore implements Store over database/sql for both backends. Queries
// are written with ? placeholders and rebound to $n for PostgreSQL; key
// generation uses RETURNING, which both engines support.
type dbStore struct {
	db       *sql.DB
	postgres bool
}

func (s *dbStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *dbStore) exec(ctx context.Context, query string, args ...any) error {
	return retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, s.rebind(query), args...)
		return err
	})
}

func (s *dbStore) Init(ctx context.Context) error {
	schema := sqliteSchema
	if s.postgres {
		schema = postgresSchema
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: creating schema: %v", ErrDatabase, err)
		}
	}
	return nil
}

func (s *dbStore) Drop(ctx context.Context) error {
	for _, stmt := range dropStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: dropping schema: %v", ErrDatabase, err)
		}
	}
	return nil
}

func (s *dbStore) Close() error {
	return s.db.Close()
}

func (s *dbStore) AddWorkspace(ctx context.Context, name string) (*types.Workspace, error) {
	err := s.exec(ctx, `
		INSERT INTO workspace (name, created_at) VALUES (?, ?)
		ON CONFLICT (name) DO NOTHING
	`, name, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("inserting workspace: %w", err)
	}
	return s.GetWorkspace(ctx, name)
}

func (s *dbStore) GetWorkspace(ctx context.Context, name string) (*types.Workspace, error) {
	var w types.Workspace
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, name, created_at FROM workspace WHERE name = ?
	`), name).Scan(&w.ID, &w.Name, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workspace %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying workspace: %w", err)
	}
	return &w, nil
}

func (s *dbStore) Workspaces(ctx context.Context) ([]types.Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM workspace ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying workspaces: %w", err)
	}
	defer rows.Close()

	var out []types.Workspace
	for rows.Next() {
		var w types.Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning workspace: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *dbStore) AddHost(ctx context.Context, workspaceID int64, h types.Host) (int64, error) {
	err := s.exec(ctx, `
		INSERT INTO host (workspace_id, protocol, address, port, share)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (workspace_id, protocol, address, port, share) DO NOTHING
	`, workspaceID, string(h.Protocol), h.Address, h.Port, h.Share)
	if err != nil {
		return 0, fmt.Errorf("inserting host: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id FROM host
		WHERE workspace_id = ? AND protocol = ? AND address = ? AND port = ? AND share = ?
	`), workspaceID, string(h.Protocol), h.Address, h.Port, h.Share).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("querying host: %w", err)
	}
	return id, nil
}

func (s *dbStore) HostCompleted(ctx context.Context, workspaceID int64, h types.Host) (bool, error) {
	var completed bool
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT completed FROM host
		WHERE workspace_id = ? AND protocol = ? AND address = ? AND port = ? AND share = ?
	`), workspaceID, string(h.Protocol), h.Address, h.Port, h.Share).Scan(&completed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying host completion: %w", err)
	}
	return completed, nil
}

func (s *dbStore) MarkHostComplete(ctx context.Context, workspaceID int64, h types.Host) error {
	err := s.exec(ctx, `
		UPDATE host SET completed = TRUE
		WHERE workspace_id = ? AND protocol = ? AND address = ? AND port = ? AND share = ?
	`, workspaceID, string(h.Protocol), h.Address, h.Port, h.Share)
	if err != nil {
		return fmt.Errorf("marking host complete: %w", err)
	}
	return nil
}

func (s *dbStore) SnapshotRules(ctx context.Context, workspaceID int64, set *rules.Set) (map[*rules.Rule]int64, error) {
	ids := make(map[*rules.Rule]int64, len(set.All))
	for _, r := range set.All {
		err := s.exec(ctx, `
			INSERT INTO match_rule (workspace_id, search_location, search_pattern, category, relevance, accuracy, priority)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (workspace_id, search_location, search_pattern) DO NOTHING
		`, workspaceID, r.Location.String(), r.Pattern, r.Category, r.Relevance.String(), r.Accuracy.String(), r.Priority)
		if err != nil {
			return nil, fmt.Errorf("inserting rule: %w", err)
		}

		var id int64
		err = s.db.QueryRowContext(ctx, s.rebind(`
			SELECT id FROM match_rule
			WHERE workspace_id = ? AND search_location = ? AND search_pattern = ?
		`), workspaceID, r.Location.String(), r.Pattern).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("querying rule: %w", err)
		}
		ids[r] = id
	}
	return ids, nil
}

func (s *dbStore) LookupFile(ctx context.Context, workspaceID int64, sha256 string) (*types.File, error) {
	var (
		f       types.File
		ruleID  sql.NullInt64
		verdict string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, sha256, size, mime, category, rule_id, verdict, comment
		FROM file WHERE workspace_id = ? AND sha256 = ?
	`), workspaceID, sha256).Scan(&f.ID, &f.SHA256, &f.Size, &f.MimeHint, &f.Category, &ruleID, &verdict, &f.Comment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up file: %w", err)
	}
	f.RuleID = ruleID.Int64
	f.Verdict = parseVerdict(verdict)
	return &f, nil
}

func (s *dbStore) LookupGatedFile(ctx context.Context, workspaceID, hostID int64, fullPath, archiveChain string) (*types.File, error) {
	var f types.File
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT f.id, f.size, f.category
		FROM file f
		JOIN path p ON p.file_id = f.id
		WHERE f.workspace_id = ? AND f.sha256 IS NULL
		  AND p.host_id = ? AND p.full_path = ? AND p.archive_chain = ?
		LIMIT 1
	`), workspaceID, hostID, fullPath, archiveChain).Scan(&f.ID, &f.Size, &f.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up gated file: %w", err)
	}
	return &f, nil
}

func (s *dbStore) UpsertFileContent(ctx context.Context, workspaceID int64, uf UpsertFile) (*types.File, error) {
	var sha any
	if uf.SHA256 != "" {
		sha = uf.SHA256
	}
	var ruleID any
	if uf.RuleID != 0 {
		ruleID = uf.RuleID
	}

	var id int64
	err := retry(ctx, func() error {
		return s.db.QueryRowContext(ctx, s.rebind(`
			INSERT INTO file (workspace_id, sha256, size, content, mime, category, rule_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (workspace_id, sha256) DO NOTHING
			RETURNING id
		`), workspaceID, sha, uf.Size, uf.Content, uf.MimeHint, uf.Category, ruleID).Scan(&id)
	})
	switch {
	case err == nil:
		return &types.File{
			ID:       id,
			SHA256:   uf.SHA256,
			Size:     uf.Size,
			MimeHint: uf.MimeHint,
			Category: uf.Category,
			RuleID:   uf.RuleID,
		}, nil
	case errors.Is(err, sql.ErrNoRows), isUniqueViolation(err):
		// A concurrent writer committed this hash first; converge on its
		// row. The earliest committer's rule and category stand.
		if uf.SHA256 == "" {
			return nil, fmt.Errorf("inserting gated file: %w", err)
		}
		existing, lerr := s.LookupFile(ctx, workspaceID, uf.SHA256)
		if lerr != nil {
			return nil, lerr
		}
		if existing == nil {
			return nil, fmt.Errorf("file vanished after conflict: %w", ErrNotFound)
		}
		return existing, nil
	default:
		return nil, fmt.Errorf("inserting file: %w", err)
	}
}

func (s *dbStore) AddPathRecord(ctx context.Context, p AddPath) error {
	var ruleID any
	if p.RuleID != 0 {
		ruleID = p.RuleID
	}
	err := s.exec(ctx, `
		INSERT INTO path (host_id, file_id, full_path, archive_chain, rule_id, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.HostID, p.FileID, p.FullPath, p.ArchiveChain, ruleID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting path: %w", err)
	}
	return nil
}

func (s *dbStore) ListFindings(ctx context.Context, workspaceID int64, pendingOnly bool) ([]types.Finding, error) {
	query := `
		SELECT f.id, COALESCE(f.sha256, ''), f.size, f.mime, f.category,
		       r.relevance, r.accuracy, r.priority, r.search_pattern,
		       h.protocol, h.address, h.port, h.share,
		       p.full_path, p.archive_chain, f.verdict, f.comment
		FROM file f
		JOIN path p ON p.file_id = f.id
		JOIN host h ON h.id = p.host_id
		JOIN match_rule r ON r.id = COALESCE(p.rule_id, f.rule_id)
		WHERE f.workspace_id = ?`
	if pendingOnly {
		query += ` AND f.verdict = 'pending'`
	}
	query += ` ORDER BY r.priority DESC, f.category, p.full_path, p.archive_chain`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}
	defer rows.Close()

	var out []types.Finding
	for rows.Next() {
		var (
			fd                           types.Finding
			relevance, accuracy, verdict string
			host                         types.Host
			protocol                     string
		)
		err := rows.Scan(&fd.FileID, &fd.SHA256, &fd.Size, &fd.MimeHint, &fd.Category,
			&relevance, &accuracy, &fd.Priority, &fd.Pattern,
			&protocol, &host.Address, &host.Port, &host.Share,
			&fd.FullPath, &fd.ArchiveChain, &verdict, &fd.Comment)
		if err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		host.Protocol = types.Protocol(protocol)
		fd.Host = host.String()
		fd.Relevance, _ = types.ParseRelevance(relevance)
		fd.Accuracy, _ = types.ParseAccuracy(accuracy)
		fd.Verdict = parseVerdict(verdict)
		out = append(out, fd)
	}
	return out, rows.Err()
}

func (s *dbStore) SetVerdict(ctx context.Context, fileID int64, v types.Verdict, comment string) error {
	err := s.exec(ctx, `
		UPDATE file SET verdict = ?, comment = ? WHERE id = ?
	`, v.String(), comment, fileID)
	if err != nil {
		return fmt.Errorf("updating verdict: %w", err)
	}
	err = s.exec(ctx, `
		INSERT INTO review (file_id, verdict, comment, created_at) VALUES (?, ?, ?, ?)
	`, fileID, v.String(), comment, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting review: %w", err)
	}
	return nil
}

func (s *dbStore) Summarize(ctx context.Context, workspaceID int64) (*Summary, error) {
	sum := &Summary{ByRelevance: make(map[types.Relevance]int)}

	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*) FROM host WHERE workspace_id = ?
	`), workspaceID).Scan(&sum.Hosts)
	if err != nil {
		return nil, fmt.Errorf("counting hosts: %w", err)
	}

	err = s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*) FROM path p JOIN file f ON f.id = p.file_id WHERE f.workspace_id = ?
	`), workspaceID).Scan(&sum.Paths)
	if err != nil {
		return nil, fmt.Errorf("counting paths: %w", err)
	}

	err = s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*) FROM file WHERE workspace_id = ? AND sha256 IS NOT NULL
	`), workspaceID).Scan(&sum.UniqueContents)
	if err != nil {
		return nil, fmt.Errorf("counting contents: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT r.relevance, COUNT(*)
		FROM file f JOIN match_rule r ON r.id = f.rule_id
		WHERE f.workspace_id = ?
		GROUP BY r.relevance
	`), workspaceID)
	if err != nil {
		return nil, fmt.Errorf("counting matches: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rel string
		var n int
		if err := rows.Scan(&rel, &n); err != nil {
			return nil, fmt.Errorf("scanning match count: %w", err)
		}
		if parsed, perr := types.ParseRelevance(rel); perr == nil {
			sum.ByRelevance[parsed] = n
		}
	}
	return sum, rows.Err()
}

func parseVerdict(s string) types.Verdict {
	switch s {
	case "relevant":
		return types.VerdictRelevant
	case "irrelevant":
		return types.VerdictIrrelevant
	}
	return types.VerdictPending
}
