package targets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/modpack-installer/internal/db"
)

func openDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.Migrate(context.Background()))
	return d
}

func TestValidate(t *testing.T) {
	ok := Target{Name: "survival", Host: "10.0.0.5", SSHUser: "mc", RootDir: "/srv/minecraft/"}
	require.NoError(t, Validate(&ok))
	assert.Equal(t, 22, ok.Port)
	assert.Equal(t, "minecraft", ok.Unit)
	assert.Equal(t, "/srv/minecraft", ok.RootDir)

	bad := []Target{
		{Name: "", Host: "h", SSHUser: "u", RootDir: "/srv"},
		{Name: "a", Host: "bad host", SSHUser: "u", RootDir: "/srv"},
		{Name: "a", Host: "h", SSHUser: "", RootDir: "/srv"},
		{Name: "a", Host: "h", SSHUser: "u", RootDir: "/"},
		{Name: "a", Host: "h", SSHUser: "u", RootDir: "srv"},
		{Name: "a", Host: "h", SSHUser: "u", RootDir: "/srv", Unit: "mc; reboot"},
	}
	for _, b := range bad {
		assert.Error(t, Validate(&b), "%+v", b)
	}
}

func TestCreateResolveList(t *testing.T) {
	ctx := context.Background()
	d := openDB(t)

	created, err := Create(ctx, d, Target{Name: "atm9", Host: "mc.example.com", SSHUser: "mc", RootDir: "/srv/atm9", RCONPort: 25575, RCONPassword: "pw"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	byName, err := Resolve(ctx, d, "atm9")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
	assert.Equal(t, "pw", byName.RCONPassword)

	_, err = Resolve(ctx, d, "999")
	assert.ErrorIs(t, err, db.ErrNotFound)

	list, err := List(ctx, d)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	g := byName.Gateway("/keys/id")
	assert.Equal(t, "mc.example.com:25575", g.RCONAddr)
	assert.Equal(t, "/srv/atm9", g.Root)

	require.NoError(t, Delete(ctx, d, created.ID))
	assert.ErrorIs(t, Delete(ctx, d, created.ID), db.ErrNotFound)
}
