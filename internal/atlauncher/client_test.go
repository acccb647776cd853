package atlauncher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchPacksEscapesQuery(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/graphql", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = body["query"]
		_, _ = w.Write([]byte(`{"data":{"searchPacks":[{"id":5,"safeName":"SkyFactory","name":"Sky Factory","description":"d"}]}}`))
	}))
	defer srv.Close()
	c := New(5 * time.Second)
	c.BaseURL = srv.URL

	res := c.FetchModpacks(context.Background(), `sky "x"`, 15, 0)
	assert.Contains(t, got, `searchPacks(first: 15, query: "sky \"x\"")`)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, "5", res.Items[0].ID)
	require.NotNil(t, res.Items[0].IconURL)
	assert.Equal(t, "https://cdn.atlcdn.net/images/packs/skyfactory.png", *res.Items[0].IconURL)
}

func TestFetchModpacksServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := New(5 * time.Second)
	c.BaseURL = srv.URL

	res := c.FetchModpacks(context.Background(), "", 20, 0)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0, res.Total)
}

func TestDownloadInfoIsLauncherOnly(t *testing.T) {
	info := New(time.Second).FetchDownloadInfo(context.Background(), "7", "1.2.3")
	require.NotNil(t, info)
	assert.Nil(t, info.URL)
	assert.True(t, info.RequiresLauncher)
	assert.Equal(t, "atlauncher-7-1.2.3.zip", info.Filename)
}

func TestFetchVersionsRejectsNonNumericID(t *testing.T) {
	assert.Empty(t, New(time.Second).FetchVersions(context.Background(), "1) { evil }"))
}
