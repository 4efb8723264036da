package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollbackMigration_UnknownNameReturnsError(t *testing.T) {
	s := newTestStore(t)
	err := s.RollbackMigration("0099_nope")
	assert.Error(t, err)
}

func TestRollbackMigration_NotAppliedReturnsError(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RollbackMigration("0001_init"))

	err := s.RollbackMigration("0001_init")
	assert.Error(t, err)
}

func TestRollbackMigration_RefusedWhenLaterMigrationIsApplied(t *testing.T) {
	s := newTestStore(t)

	orig := migrations
	t.Cleanup(func() { migrations = orig })
	later := Migration{
		Name: "0002_test_only",
		Up:   `CREATE TABLE IF NOT EXISTS test_only (id INTEGER PRIMARY KEY);`,
		Down: `DROP TABLE IF EXISTS test_only;`,
	}
	migrations = append(migrations, later)
	require.NoError(t, applyOne(s.db, later))

	err := s.RollbackMigration("0001_init")
	require.Error(t, err)

	var found int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM _migrations WHERE name = ?`, "0001_init").Scan(&found))
	assert.Equal(t, 1, found, "rollback must not have been applied")
}

func TestRollbackMigration_ReversesUpAndUnrecordsIt(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RollbackMigration("0001_init"))

	var tableCount int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'nodes'`).Scan(&tableCount)
	require.NoError(t, err)
	assert.Equal(t, 0, tableCount)

	var migrationCount int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM _migrations WHERE name = ?`, "0001_init").Scan(&migrationCount))
	assert.Equal(t, 0, migrationCount)
}
