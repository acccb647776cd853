package curseforge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, key string, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(key, 5*time.Second)
	c.BaseURL = srv.URL
	return c
}

func TestFetchModpacksClampsPageSizeAndTotal(t *testing.T) {
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		q := r.URL.Query()
		assert.Equal(t, "432", q.Get("gameId"))
		assert.Equal(t, "4471", q.Get("classId"))
		assert.Equal(t, "50", q.Get("pageSize"))
		assert.Equal(t, "100", q.Get("index"))
		assert.Equal(t, "2", q.Get("sortField"))
		assert.Equal(t, "desc", q.Get("sortOrder"))
		_, _ = w.Write([]byte(`{"data":[{"id":12,"name":"ATM","summary":"s","downloadCount":1234,"logo":{"thumbnailUrl":"https://img/t.png"},"authors":[{"name":"team"}]}],"pagination":{"totalCount":250000}}`))
	})

	res := c.FetchModpacks(context.Background(), "", 80, 100)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 10000, res.Total)
	assert.Equal(t, "12", res.Items[0].ID)
	assert.Equal(t, "team", res.Items[0].Author)
	assert.EqualValues(t, 1234, res.Items[0].Downloads)
	require.NotNil(t, res.Items[0].IconURL)
	assert.Equal(t, "https://img/t.png", *res.Items[0].IconURL)
}

func TestMissingAPIKeyFailsOperationsNotConstruction(t *testing.T) {
	calls := 0
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	assert.False(t, c.HasAPIKey())
	res := c.FetchModpacks(context.Background(), "x", 20, 0)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0, res.Total)
	assert.Empty(t, c.FetchVersions(context.Background(), "1"))
	assert.Nil(t, c.FetchDetails(context.Background(), "1"))
	assert.Nil(t, c.FetchDownloadInfo(context.Background(), "1", "2"))
	_, err := c.ResolveFileDownloadURL(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
	assert.Zero(t, calls)

	c.SetAPIKey("now-set")
	assert.True(t, c.HasAPIKey())
}

func TestFetchDownloadInfoWithoutURLRequiresLauncher(t *testing.T) {
	c := newTestClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/mods/10/files/20", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"id":20,"fileName":"pack.zip","fileLength":5,"downloadUrl":null}}`))
	})

	info := c.FetchDownloadInfo(context.Background(), "10", "20")
	require.NotNil(t, info)
	assert.Nil(t, info.URL)
	assert.True(t, info.RequiresLauncher)
	assert.Equal(t, "pack.zip", info.Filename)
}

func TestResolveFileDownloadURLFallsBackToMetadata(t *testing.T) {
	c := newTestClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/mods/1/files/2/download-url":
			http.NotFound(w, r)
		case "/v1/mods/1/files/2":
			_, _ = w.Write([]byte(`{"data":{"id":2,"fileName":"mod.jar","downloadUrl":"https://edge/mod.jar"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	u, err := c.ResolveFileDownloadURL(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "https://edge/mod.jar", u)
}

func TestResolveFileDownloadURLDirect(t *testing.T) {
	c := newTestClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/mods/1/files/2/download-url", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":"https://edge/direct.jar"}`))
	})

	u, err := c.ResolveFileDownloadURL(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "https://edge/direct.jar", u)
}

func TestManifestDefaults(t *testing.T) {
	no := false
	m := Manifest{Files: []ManifestFile{{ProjectID: 1, FileID: 2}, {ProjectID: 3, FileID: 4, Required: &no}}}
	assert.Equal(t, "overrides", m.OverridesDir())
	assert.True(t, m.Files[0].IsRequired())
	assert.False(t, m.Files[1].IsRequired())
}

func TestFetchModpacksUpstreamErrorIsEmpty(t *testing.T) {
	calls := 0
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})

	res := c.FetchModpacks(context.Background(), "atm", 20, 0)
	require.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, 1, calls)
}
