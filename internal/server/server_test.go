package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/modpack-installer/internal/auth"
	"github.com/example/modpack-installer/internal/catalog"
	"github.com/example/modpack-installer/internal/config"
	"github.com/example/modpack-installer/internal/curseforge"
	"github.com/example/modpack-installer/internal/db"
	"github.com/example/modpack-installer/internal/gateway"
	"github.com/example/modpack-installer/internal/installer"
	"github.com/example/modpack-installer/internal/jobs"
	"github.com/example/modpack-installer/internal/modpack"
	"github.com/example/modpack-installer/internal/tracker"
)

const testToken = "0123456789abcdef0123"

type fakeAdapter struct{}

func (fakeAdapter) FetchModpacks(_ context.Context, query string, limit, offset int) modpack.SearchResult {
	return modpack.SearchResult{Items: []modpack.Summary{{ID: "p1", Name: "Pack " + query}}, Total: 1}
}

func (fakeAdapter) FetchVersions(context.Context, string) []modpack.Version {
	return []modpack.Version{{ID: "v2", Name: "2.0"}, {ID: "v1", Name: "1.0"}}
}

func (fakeAdapter) FetchDetails(_ context.Context, id string) *modpack.Details {
	if id != "p1" {
		return nil
	}
	return &modpack.Details{Summary: modpack.Summary{ID: "p1", Name: "Pack"}}
}

func (fakeAdapter) FetchDownloadInfo(_ context.Context, id, versionID string) *modpack.DownloadInfo {
	switch versionID {
	case "v2":
		u := "https://cdn.example.com/pack.mrpack"
		return &modpack.DownloadInfo{URL: &u, Filename: "pack.mrpack"}
	case "launcher":
		return modpack.LauncherOnly("pack.zip")
	}
	return nil
}

type testEnv struct {
	srv *Server
	db  *db.DB
	fs  *gateway.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithProfiles(t, false)
}

// newTestEnvWithProfiles builds the API over an in-memory target; with
// profiles on, the installer prefers the target's installer profile.
func newTestEnvWithProfiles(t *testing.T, profiles bool) *testEnv {
	t.Helper()
	ctx := context.Background()
	d, err := db.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.Migrate(ctx))
	require.NoError(t, auth.SetToken(ctx, d, testToken))

	cat := catalog.NewManager(map[modpack.Provider]catalog.Adapter{modpack.Modrinth: fakeAdapter{}}, nil, time.Minute)
	fs := gateway.NewMemory()
	tf := func(context.Context, int64) (installer.Target, error) {
		if profiles {
			return installer.Target{FS: fs, Power: fs, ProfilesSupported: true}, nil
		}
		return installer.Target{FS: fs}, nil
	}
	cfg := &config.Config{ResultsPerPage: 20}
	cfg.Install.ProfileEnabled = profiles
	cf := curseforge.New("", time.Second)
	ins := installer.New(cat, cf)
	ins.ProfileEnabled = cfg.Install.ProfileEnabled
	srv := New(d, cfg, cat, cf, ins, jobs.TargetFunc(tf))
	return &testEnv{srv: srv, db: d, fs: fs}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	e.srv.Router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestStatusIsPublic(t *testing.T) {
	e := newTestEnv(t)
	rec := httptest.NewRecorder()
	e.srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)

	rec := httptest.NewRecorder()
	e.srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/providers", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/providers", nil)
	req.Header.Set("Authorization", "Bearer wrong-token-value")
	rec = httptest.NewRecorder()
	e.srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCatalogRoutes(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/providers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	providers := decode[[]modpack.ProviderInfo](t, rec)
	require.Len(t, providers, 1)
	assert.Equal(t, modpack.Modrinth, providers[0].Key)

	rec = e.do(t, http.MethodGet, "/api/providers/modrinth/modpacks?q=tech", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[modpack.SearchResult](t, rec)
	assert.Equal(t, "Pack tech", res.Items[0].Name)

	rec = e.do(t, http.MethodGet, "/api/providers/nope/modpacks", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/providers/modrinth/modpacks/p1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/providers/modrinth/modpacks/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/providers/modrinth/modpacks/p1/versions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]modpack.Version](t, rec), 2)

	rec = e.do(t, http.MethodGet, "/api/providers/modrinth/modpacks/p1/versions/launcher/download", "")
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[modpack.DownloadInfo](t, rec)
	assert.True(t, info.RequiresLauncher)
	assert.Nil(t, info.URL)

	rec = e.do(t, http.MethodPost, "/api/cache/clear", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCurseForgeSettings(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPut, "/api/settings/curseforge", `{"api_key":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[curseForgeSettingsResponse](t, rec).APIKeySet)
	assert.True(t, e.srv.CurseForge.HasAPIKey())

	rec = e.do(t, http.MethodPut, "/api/settings/curseforge", `{"api_key":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, e.srv.CurseForge.HasAPIKey())
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func TestTargetsAndInstalls(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	rec := e.do(t, http.MethodPost, "/api/targets", `{"name":"bad name","host":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/targets",
		`{"name":"survival","host":"mc.example.com","ssh_user":"minecraft","root_dir":"/srv/minecraft","rcon_password":"hunter2"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "hunter2")
	created := decode[struct {
		ID int64 `json:"id"`
	}](t, rec)

	rec = e.do(t, http.MethodGet, "/api/targets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "survival")

	path := "/api/targets/" + itoa(created.ID)

	rec = e.do(t, http.MethodGet, path+"/installed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[installedResponse](t, rec).Installed)

	require.NoError(t, tracker.Save(ctx, e.fs, modpack.InstalledRecord{
		Provider: modpack.Modrinth, ModpackID: "p1", ModpackName: "Pack",
		VersionID: "v1", VersionName: "1.0", InstalledAt: time.Now(),
	}))
	rec = e.do(t, http.MethodGet, path+"/installed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[installedResponse](t, rec)
	require.NotNil(t, got.Installed)
	assert.Equal(t, "v1", got.Installed.VersionID)
	require.NotNil(t, got.LatestVersion)
	assert.Equal(t, "v2", got.LatestVersion.ID)
	assert.True(t, got.UpdateAvailable)

	rec = e.do(t, http.MethodPost, path+"/installs", `{"provider":"modrinth","modpack_id":"p1","version_id":"launcher"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodPost, path+"/installs", `{"provider":"modrinth","modpack_id":"p1","version_id":"gone"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, path+"/installs", `{"provider":"modrinth","modpack_id":"p1","version_id":"v2","delete_existing":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	inst := decode[jobs.Install](t, rec)
	assert.Equal(t, jobs.StatusQueued, inst.Status)
	assert.True(t, inst.DeleteExisting)

	rec = e.do(t, http.MethodGet, "/api/installs?target_id="+itoa(created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]jobs.Install](t, rec), 1)

	rec = e.do(t, http.MethodGet, "/api/installs/"+itoa(inst.ID)+"/steps", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]jobs.StepLog](t, rec))

	rec = e.do(t, http.MethodGet, "/api/installs/9999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodDelete, path+"/installed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, tracker.Get(ctx, e.fs))
}

func TestProfileTargetQueuesLauncherOnlyVersion(t *testing.T) {
	e := newTestEnvWithProfiles(t, true)

	rec := e.do(t, http.MethodPost, "/api/targets",
		`{"name":"ftb","host":"mc.example.com","ssh_user":"minecraft","root_dir":"/srv/minecraft","profiles_supported":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		ID int64 `json:"id"`
	}](t, rec)

	rec = e.do(t, http.MethodPost, "/api/targets/"+itoa(created.ID)+"/installs",
		`{"provider":"modrinth","modpack_id":"p1","version_id":"launcher"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, jobs.StatusQueued, decode[jobs.Install](t, rec).Status)
}
