package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/modpack-installer/internal/db"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 20, cfg.ResultsPerPage)
	assert.Equal(t, ":5298", cfg.ListenAddr)
	assert.True(t, cfg.Install.Backup)
	assert.Equal(t, "Minecraft Modpack Installer", cfg.Install.InstallerProfile)
	assert.Equal(t, 60*time.Second, cfg.Timings().OfflineTimeout)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "modpacks.yaml")
	require.NoError(t, os.WriteFile(file, []byte("results_per_page: 500\ninstall:\n  profile_enabled: true\n"), 0o600))
	t.Setenv("MODPACKS_API_KEY", "from-env")
	t.Setenv("MODPACKS_INSTALL_OFFLINE_TIMEOUT_SECONDS", "5")

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.ResultsPerPage, "clamped")
	assert.True(t, cfg.Install.ProfileEnabled)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Timings().OfflineTimeout)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func openDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.Migrate(context.Background()))
	return d
}

func TestCurseForgeKeyEncrypted(t *testing.T) {
	ctx := context.Background()
	d := openDB(t)

	require.NoError(t, SaveCurseForgeAPIKey(ctx, d, "passphrase", "cf-secret"))
	raw, err := d.GetSetting(ctx, CurseForgeAPIKeySetting)
	require.NoError(t, err)
	assert.NotContains(t, raw, "cf-secret")

	got, err := LoadCurseForgeAPIKey(ctx, d, "passphrase")
	require.NoError(t, err)
	assert.Equal(t, "cf-secret", got)

	_, err = LoadCurseForgeAPIKey(ctx, d, "")
	assert.Error(t, err)
	_, err = LoadCurseForgeAPIKey(ctx, d, "wrong")
	assert.Error(t, err)
}

func TestEffectiveAPIKey(t *testing.T) {
	ctx := context.Background()
	d := openDB(t)
	cfg := &Config{APIKey: "configured"}

	key, err := cfg.EffectiveAPIKey(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "configured", key)

	require.NoError(t, SaveCurseForgeAPIKey(ctx, d, "", "stored"))
	key, err = cfg.EffectiveAPIKey(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "stored", key)

	require.NoError(t, SaveCurseForgeAPIKey(ctx, d, "", "  "))
	key, err = cfg.EffectiveAPIKey(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "configured", key)
}
