package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/modpack-installer/internal/gateway"
	"github.com/example/modpack-installer/internal/modpack"
)

func sample() modpack.InstalledRecord {
	return modpack.InstalledRecord{
		Provider:    modpack.Modrinth,
		ModpackID:   "1KVo5zza",
		ModpackName: "Fabulously Optimized",
		VersionID:   "v1",
		VersionName: "5.0.0",
		InstalledAt: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestSaveThenGet(t *testing.T) {
	ctx := context.Background()
	fs := gateway.NewMemory()

	require.NoError(t, Save(ctx, fs, sample()))
	got := Get(ctx, fs)
	require.NotNil(t, got)
	assert.Equal(t, sample(), *got)
}

func TestGetInvalidRecords(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"malformed":     `{"provider":`,
		"missing field": `{"provider":"modrinth","modpack_id":"a","modpack_name":"b","version_id":"c","version_name":"d"}`,
		"empty field":   `{"provider":"modrinth","modpack_id":"","modpack_name":"b","version_id":"c","version_name":"d","installed_at":"2024-01-01T00:00:00Z"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			fs := gateway.NewMemory()
			fs.Put("/"+FileName, []byte(body))
			assert.Nil(t, Get(ctx, fs))
		})
	}

	assert.Nil(t, Get(ctx, gateway.NewMemory()), "missing file")
}

func TestHasUpdate(t *testing.T) {
	ctx := context.Background()
	fs := gateway.NewMemory()
	assert.False(t, HasUpdate(ctx, fs, "v2"), "nothing installed")

	require.NoError(t, Save(ctx, fs, sample()))
	assert.False(t, HasUpdate(ctx, fs, "v1"))
	assert.True(t, HasUpdate(ctx, fs, "v2"))
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fs := gateway.NewMemory()
	require.NoError(t, Save(ctx, fs, sample()))

	require.NoError(t, Clear(ctx, fs))
	assert.Nil(t, Get(ctx, fs))
	require.NoError(t, Clear(ctx, fs))
}

func TestSaveRejectsIncompleteRecord(t *testing.T) {
	rec := sample()
	rec.VersionName = ""
	assert.ErrorContains(t, Save(context.Background(), gateway.NewMemory(), rec), "version_name")
}

func TestGetKeepsUnknownProviderAndBadTimestamp(t *testing.T) {
	ctx := context.Background()
	fs := gateway.NewMemory()
	fs.Put("/"+FileName, []byte(`{"provider":"gdlauncher","modpack_id":"a","modpack_name":"b","version_id":"c","version_name":"d","installed_at":"yesterday"}`))

	got := Get(ctx, fs)
	require.NotNil(t, got)
	assert.Equal(t, modpack.Provider("gdlauncher"), got.Provider)
	assert.True(t, got.InstalledAt.IsZero())
	assert.True(t, HasUpdate(ctx, fs, "e"))
	assert.False(t, HasUpdate(ctx, fs, "c"))
}
