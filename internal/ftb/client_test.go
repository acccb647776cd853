package ftb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := New(5 * time.Second)
	c.BaseURL = srv.URL
	return c
}

func TestFetchVersionsNewestFirst(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/100", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":100,"name":"Pack","versions":[{"id":1,"name":"1.0.0"},{"id":2,"name":"1.1.0"},{"id":3,"name":"1.2.0"}]}`))
	})
	c := newTestClient(t, mux)

	versions := c.FetchVersions(context.Background(), "100")
	require.Len(t, versions, 3)
	assert.Equal(t, "3", versions[0].ID)
	assert.Equal(t, "1.2.0", versions[0].Name)
	assert.Equal(t, "1", versions[2].ID)
}

func TestFetchModpacksSkipsHiddenPackAndResolvesDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/popular/installs/5", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"packs":[81,7,9]}`))
	})
	mux.HandleFunc("/7", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":7,"name":"Seven","description":"s","art":[{"type":"splash","url":"x"},{"type":"square","url":"https://art/7.png"}]}`))
	})
	mux.HandleFunc("/9", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"not found"}`))
	})
	mux.HandleFunc("/81", func(w http.ResponseWriter, r *http.Request) {
		t.Error("hidden pack must not be resolved")
	})
	c := newTestClient(t, mux)

	res := c.FetchModpacks(context.Background(), "", 5, 0)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, "7", res.Items[0].ID)
	assert.Equal(t, "Feed The Beast", res.Items[0].Author)
	require.NotNil(t, res.Items[0].IconURL)
	assert.Equal(t, "https://art/7.png", *res.Items[0].IconURL)
}

func TestSearchUsesTerm(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/10", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "academy", r.URL.Query().Get("term"))
		_, _ = w.Write([]byte(`{"packs":[]}`))
	})
	c := newTestClient(t, mux)

	res := c.FetchModpacks(context.Background(), "academy", 10, 0)
	assert.Empty(t, res.Items)
}

func TestDownloadInfoIsLauncherOnly(t *testing.T) {
	info := New(time.Second).FetchDownloadInfo(context.Background(), "7", "3")
	require.NotNil(t, info)
	assert.Nil(t, info.URL)
	assert.True(t, info.RequiresLauncher)
	assert.Equal(t, "ftb-7-3.zip", info.Filename)
}

func TestFetchModpacksUpstreamErrorIsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/20", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sky", r.URL.Query().Get("term"))
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := newTestClient(t, mux)

	res := c.FetchModpacks(context.Background(), "sky", 20, 0)
	require.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0, res.Total)
}
