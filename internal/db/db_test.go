package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "data", "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.Migrate(context.Background()))
	return d
}

func TestMigrateIsIdempotent(t *testing.T) {
	d := openTest(t)
	require.NoError(t, d.Migrate(context.Background()))
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	d := openTest(t)

	_, err := d.GetSetting(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, d.SetSetting(ctx, "k", "v1"))
	require.NoError(t, d.SetSetting(ctx, "k", "v2"))
	v, err := d.GetSetting(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}
