package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/modpack-installer/internal/db"
)

func TestTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	d, err := db.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.Migrate(ctx))

	assert.ErrorIs(t, CheckToken(ctx, d, "anything"), ErrNoToken)

	token, err := NewToken()
	require.NoError(t, err)
	require.NoError(t, SetToken(ctx, d, token))

	assert.NoError(t, CheckToken(ctx, d, token))
	assert.ErrorIs(t, CheckToken(ctx, d, token+"x"), ErrInvalidCredentials)
	assert.ErrorIs(t, CheckToken(ctx, d, ""), ErrInvalidCredentials)

	assert.Error(t, SetToken(ctx, d, "short"))
}
