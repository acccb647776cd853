package jobs

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/modpack-installer/internal/db"
	"github.com/example/modpack-installer/internal/gateway"
	"github.com/example/modpack-installer/internal/installer"
	"github.com/example/modpack-installer/internal/modpack"
	"github.com/example/modpack-installer/internal/targets"
)

type staticCatalog struct{ url string }

func (c staticCatalog) DownloadInfo(context.Context, modpack.Provider, string, string) *modpack.DownloadInfo {
	if c.url == "" {
		return nil
	}
	return &modpack.DownloadInfo{URL: &c.url}
}

func (staticCatalog) Details(context.Context, modpack.Provider, string) *modpack.Details { return nil }

func (staticCatalog) Versions(context.Context, modpack.Provider, string) []modpack.Version {
	return nil
}

func setup(t *testing.T, url string) (*db.DB, *Worker, *gateway.Memory, int64) {
	t.Helper()
	ctx := context.Background()
	d, err := db.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.Migrate(ctx))

	tg, err := targets.Create(ctx, d, targets.Target{Name: "survival", Host: "127.0.0.1", SSHUser: "mc", RootDir: "/srv/mc"})
	require.NoError(t, err)

	fs := gateway.NewMemory()
	fs.URLs["https://example.com/server.jar"] = []byte("jar")
	ins := &installer.Installer{Catalog: staticCatalog{url: url}}
	w := NewWorker(d, ins, func(context.Context, int64) (installer.Target, error) {
		return installer.Target{FS: fs}, nil
	})
	return d, w, fs, tg.ID
}

func TestWorkerRunsQueuedInstall(t *testing.T) {
	ctx := context.Background()
	d, w, fs, targetID := setup(t, "https://example.com/server.jar")

	inst, err := EnqueueInstall(ctx, d, InstallRequest{TargetID: targetID, Provider: modpack.VoidsWrath, ModpackID: "a", VersionID: "latest"})
	require.NoError(t, err)
	assert.Len(t, inst.RunID, 36)

	require.NoError(t, w.ProcessNext(ctx))
	assert.ErrorIs(t, w.ProcessNext(ctx), sql.ErrNoRows)

	got, err := GetInstall(ctx, d, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, got.Status)
	require.NotNil(t, got.Format)
	assert.Equal(t, installer.FormatRaw, *got.Format)

	steps, err := Steps(ctx, d, inst.ID)
	require.NoError(t, err)
	require.NotEmpty(t, steps)
	assert.Equal(t, installer.StepResolveDownload, steps[0].Name)
	assert.Equal(t, installer.StepRecord, steps[len(steps)-1].Name)

	_, ok := fs.File("/server.jar")
	assert.True(t, ok)
}

func TestWorkerRecordsFailure(t *testing.T) {
	ctx := context.Background()
	d, w, _, targetID := setup(t, "")

	inst, err := EnqueueInstall(ctx, d, InstallRequest{TargetID: targetID, Provider: modpack.Modrinth, ModpackID: "a", VersionID: "b"})
	require.NoError(t, err)

	assert.Error(t, w.ProcessNext(ctx))
	got, err := GetInstall(ctx, d, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.Reason)
	assert.Equal(t, installer.ErrDownloadInfoUnavailable.Error(), *got.Reason)
}

func TestWorkerSkipsBusyTarget(t *testing.T) {
	ctx := context.Background()
	d, w, _, targetID := setup(t, "https://example.com/server.jar")

	_, err := RecordInstall(ctx, d, InstallRequest{TargetID: targetID, Provider: modpack.Modrinth, ModpackID: "a", VersionID: "b"})
	require.NoError(t, err)
	queued, err := EnqueueInstall(ctx, d, InstallRequest{TargetID: targetID, Provider: modpack.Modrinth, ModpackID: "a", VersionID: "c"})
	require.NoError(t, err)

	assert.ErrorIs(t, w.ProcessNext(ctx), sql.ErrNoRows)
	got, err := GetInstall(ctx, d, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, got.Status)

	list, err := ListInstalls(ctx, d, targetID, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, queued.ID, list[0].ID)
}

func TestCancelledInstallDoesNotBlockTarget(t *testing.T) {
	ctx := context.Background()
	d, w, fs, targetID := setup(t, "https://example.com/server.jar")

	req := InstallRequest{TargetID: targetID, Provider: modpack.VoidsWrath, ModpackID: "a", VersionID: "latest"}
	first, err := RecordInstall(ctx, d, req)
	require.NoError(t, err)

	// The in-memory gateway ignores ctx, so the run completes; what matters is
	// that steps and outcome written after the cancel still land.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	res := Execute(runCtx, d, w.Installer, installer.Target{FS: fs}, first.ID, req.installerRequest(), func(s installer.Step) {
		if s.Name == installer.StepFetch {
			cancel()
		}
	})
	require.Error(t, runCtx.Err())

	got, err := GetInstall(ctx, d, first.ID)
	require.NoError(t, err)
	assert.NotEqual(t, StatusRunning, got.Status)
	if res.Success {
		assert.Equal(t, StatusSuccess, got.Status)
	} else {
		assert.Equal(t, StatusFailed, got.Status)
	}

	steps, err := Steps(ctx, d, first.ID)
	require.NoError(t, err)
	require.NotEmpty(t, steps)
	assert.Equal(t, res.Steps[len(res.Steps)-1].Name, steps[len(steps)-1].Name)

	second, err := EnqueueInstall(ctx, d, req)
	require.NoError(t, err)
	require.NoError(t, w.ProcessNext(ctx))
	got, err = GetInstall(ctx, d, second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, got.Status)
}

func TestFailInterruptedReleasesTarget(t *testing.T) {
	ctx := context.Background()
	d, w, _, targetID := setup(t, "https://example.com/server.jar")

	req := InstallRequest{TargetID: targetID, Provider: modpack.VoidsWrath, ModpackID: "a", VersionID: "latest"}
	orphan, err := RecordInstall(ctx, d, req)
	require.NoError(t, err)
	queued, err := EnqueueInstall(ctx, d, req)
	require.NoError(t, err)
	assert.ErrorIs(t, w.ProcessNext(ctx), sql.ErrNoRows)

	n, err := FailInterrupted(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := GetInstall(ctx, d, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.Reason)
	assert.Equal(t, reasonInterrupted, *got.Reason)

	require.NoError(t, w.ProcessNext(ctx))
	got, err = GetInstall(ctx, d, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, got.Status)
}

func TestWorkerStopWaitsForLoop(t *testing.T) {
	ctx := context.Background()
	d, w, _, targetID := setup(t, "https://example.com/server.jar")
	w.PollInterval = time.Hour

	orphan, err := RecordInstall(ctx, d, InstallRequest{TargetID: targetID, Provider: modpack.VoidsWrath, ModpackID: "a", VersionID: "latest"})
	require.NoError(t, err)

	w.Start()
	w.Stop()

	got, err := GetInstall(ctx, d, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	select {
	case <-w.done:
	default:
		t.Fatal("worker loop still running after Stop")
	}
}
