package store

// DDL per backend. The two engines agree on DML (both accept
// "ON CONFLICT DO NOTHING"); only column types and key generation differ.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS workspace (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS host (
		id INTEGER PRIMARY KEY,
		workspace_id INTEGER NOT NULL REFERENCES workspace(id) ON DELETE CASCADE,
		protocol TEXT NOT NULL,
		address TEXT NOT NULL,
		port INTEGER NOT NULL,
		share TEXT NOT NULL DEFAULT '',
		completed INTEGER NOT NULL DEFAULT 0,
		UNIQUE(workspace_id, protocol, address, port, share)
	)`,
	`CREATE TABLE IF NOT EXISTS match_rule (
		id INTEGER PRIMARY KEY,
		workspace_id INTEGER NOT NULL REFERENCES workspace(id) ON DELETE CASCADE,
		search_location TEXT NOT NULL,
		search_pattern TEXT NOT NULL,
		category TEXT NOT NULL,
		relevance TEXT NOT NULL,
		accuracy TEXT NOT NULL,
		priority INTEGER NOT NULL,
		UNIQUE(workspace_id, search_location, search_pattern)
	)`,
	`CREATE TABLE IF NOT EXISTS file (
		id INTEGER PRIMARY KEY,
		workspace_id INTEGER NOT NULL REFERENCES workspace(id) ON DELETE CASCADE,
		sha256 TEXT,
		size INTEGER NOT NULL,
		content BLOB,
		mime TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		rule_id INTEGER REFERENCES match_rule(id),
		verdict TEXT NOT NULL DEFAULT 'pending',
		comment TEXT NOT NULL DEFAULT '',
		UNIQUE(workspace_id, sha256)
	)`,
	`CREATE TABLE IF NOT EXISTS path (
		id INTEGER PRIMARY KEY,
		host_id INTEGER NOT NULL REFERENCES host(id) ON DELETE CASCADE,
		file_id INTEGER NOT NULL REFERENCES file(id) ON DELETE CASCADE,
		full_path TEXT NOT NULL,
		archive_chain TEXT NOT NULL DEFAULT '',
		rule_id INTEGER REFERENCES match_rule(id),
		observed_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_path_file_id ON path(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_file_sha256 ON file(workspace_id, sha256)`,
	`CREATE TABLE IF NOT EXISTS review (
		id INTEGER PRIMARY KEY,
		file_id INTEGER NOT NULL REFERENCES file(id) ON DELETE CASCADE,
		verdict TEXT NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS workspace (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS host (
		id BIGSERIAL PRIMARY KEY,
		workspace_id BIGINT NOT NULL REFERENCES workspace(id) ON DELETE CASCADE,
		protocol TEXT NOT NULL,
		address TEXT NOT NULL,
		port INTEGER NOT NULL,
		share TEXT NOT NULL DEFAULT '',
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE(workspace_id, protocol, address, port, share)
	)`,
	`CREATE TABLE IF NOT EXISTS match_rule (
		id BIGSERIAL PRIMARY KEY,
		workspace_id BIGINT NOT NULL REFERENCES workspace(id) ON DELETE CASCADE,
		search_location TEXT NOT NULL,
		search_pattern TEXT NOT NULL,
		category TEXT NOT NULL,
		relevance TEXT NOT NULL,
		accuracy TEXT NOT NULL,
		priority INTEGER NOT NULL,
		UNIQUE(workspace_id, search_location, search_pattern)
	)`,
	`CREATE TABLE IF NOT EXISTS file (
		id BIGSERIAL PRIMARY KEY,
		workspace_id BIGINT NOT NULL REFERENCES workspace(id) ON DELETE CASCADE,
		sha256 TEXT,
		size BIGINT NOT NULL,
		content BYTEA,
		mime TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		rule_id BIGINT REFERENCES match_rule(id),
		verdict TEXT NOT NULL DEFAULT 'pending',
		comment TEXT NOT NULL DEFAULT '',
		UNIQUE(workspace_id, sha256)
	)`,
	`CREATE TABLE IF NOT EXISTS path (
		id BIGSERIAL PRIMARY KEY,
		host_id BIGINT NOT NULL REFERENCES host(id) ON DELETE CASCADE,
		file_id BIGINT NOT NULL REFERENCES file(id) ON DELETE CASCADE,
		full_path TEXT NOT NULL,
		archive_chain TEXT NOT NULL DEFAULT '',
		rule_id BIGINT REFERENCES match_rule(id),
		observed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_path_file_id ON path(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_file_sha256 ON file(workspace_id, sha256)`,
	`CREATE TABLE IF NOT EXISTS review (
		id BIGSERIAL PRIMARY KEY,
		file_id BIGINT NOT NULL REFERENCES file(id) ON DELETE CASCADE,
		verdict TEXT NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

var dropStatements = []string{
	`DROP TABLE IF EXISTS review`,
	`DROP TABLE IF EXISTS path`,
	`DROP TABLE IF EXISTS file`,
	`DROP TABLE IF EXISTS match_rule`,
	`DROP TABLE IF EXISTS host`,
	`DROP TABLE IF EXISTS workspace`,
}
