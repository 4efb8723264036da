package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_InMemoryAppliesMigrationsAndSeed(t *testing.T) {
	s := newTestStore(t)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM _migrations`).Scan(&count))
	require.GreaterOrEqual(t, count, 1)
}

func TestPing_Succeeds(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestPing_FailsAfterClose(t *testing.T) {
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.Error(t, s.Ping(context.Background()))
}
