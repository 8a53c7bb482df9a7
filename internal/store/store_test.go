package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, DriverNone, "")
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, "", "")
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, "SQLite", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.Close() //nolint:errcheck

	runs, err := s.ListRuns(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestOpen_BadPostgresDSN(t *testing.T) {
	_, err := Open(context.Background(), DriverPostgres, "postgres://%zz")
	require.Error(t, err)
}
