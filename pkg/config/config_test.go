package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Greater(t, cfg.MaxFileSizeBytes, int64(0))
	assert.Greater(t, cfg.MaxArchiveSizeBytes, int64(0))
	assert.Equal(t, DefaultMaxArchiveDepth, cfg.MaxArchiveDepth)
	assert.NotEmpty(t, cfg.SupportedArchives)
	assert.NotEmpty(t, cfg.MatchRules)

	// The embedded rules must all compile.
	set, err := cfg.CompileRules()
	require.NoError(t, err)
	assert.Len(t, set.All, len(cfg.MatchRules))
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hunt.yaml")
	content := `
max_file_size_bytes: 1024
max_archive_size_bytes: 4096
supported_archives: [ZIP, .tar, zip, ""]
match_rules:
  - search_location: file_name
    search_pattern: '^.*\.bak$'
    category: Backup File
    relevance: low
    accuracy: low
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(1024), cfg.MaxFileSizeBytes)
	assert.Equal(t, int64(4096), cfg.MaxArchiveSizeBytes)
	// Lowercased, dot-stripped, deduplicated, empties dropped.
	assert.Equal(t, []string{"zip", "tar"}, cfg.SupportedArchives)
	assert.Len(t, cfg.MatchRules, 1)
}

func TestLoad_BadThresholds(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name    string
		content string
	}{
		{"negative file size", "max_file_size_bytes: -1"},
		{"negative archive size", "max_archive_size_bytes: -5"},
		{"zero depth", "max_archive_depth: 0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))
			_, err := Load(path)
			assert.ErrorIs(t, err, ErrBadThreshold)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestIsArchive(t *testing.T) {
	cfg := &Config{SupportedArchives: []string{"zip", "tar.gz", "7z"}}

	assert.True(t, cfg.IsArchive("/data/backup.zip"))
	assert.True(t, cfg.IsArchive("/data/BACKUP.ZIP"))
	assert.True(t, cfg.IsArchive("dump.tar.gz"))
	assert.True(t, cfg.IsArchive("x.7z"))
	assert.False(t, cfg.IsArchive("notes.txt"))
	assert.False(t, cfg.IsArchive("zip"))
}
