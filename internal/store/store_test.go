package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pragmaValue(t *testing.T, s *Store, name string) string {
	t.Helper()
	var value string
	require.NoError(t, s.db.QueryRow("PRAGMA "+name).Scan(&value))
	return value
}

func TestOpenAppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	for _, p := range pragmas {
		assert.Equal(t, p.reads, pragmaValue(t, s, p.name), p.name)
	}
}

func TestOpenSetsUserVersion(t *testing.T) {
	s := createTestStore(t)
	assert.Equal(t, "2", pragmaValue(t, s, "user_version"))
}

func TestOpenMigratesOldDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	// A v0 log: runs without start_clock and no per-job index.
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE runs (
		id TEXT PRIMARY KEY, program_hash TEXT NOT NULL, engine_version TEXT NOT NULL,
		trace_version TEXT NOT NULL, tick INTEGER NOT NULL, program TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO runs VALUES ('old', 'h', 'e', '1', 1000, '[]')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "2", pragmaValue(t, s, "user_version"))
	run, err := s.ReadRun(context.Background(), "old")
	require.NoError(t, err)
	assert.Zero(t, run.StartClock)
}

func TestOpenCreatesTables(t *testing.T) {
	s := createTestStore(t)

	for _, table := range []string{"runs", "registrations", "firings"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}

	var idx string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_firings_job'",
	).Scan(&idx)
	require.NoError(t, err)
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	s1, err := Open(path)
	require.NoError(t, err)
	createTestRun(t, s1, "run-1")
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	runs, err := s2.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}

func TestOpenBadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	assert.Error(t, err)
}

func TestCloseNil(t *testing.T) {
	var s Store
	assert.NoError(t, s.Close())
}
