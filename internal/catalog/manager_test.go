package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/modpack-installer/internal/curseforge"
	"github.com/example/modpack-installer/internal/modpack"
)

type countingAdapter struct {
	searches  int
	versions  int
	details   int
	downloads int
	lastLimit int
	lastOff   int
}

func (a *countingAdapter) FetchModpacks(_ context.Context, _ string, limit, offset int) modpack.SearchResult {
	a.searches++
	a.lastLimit, a.lastOff = limit, offset
	return modpack.SearchResult{Items: []modpack.Summary{{ID: "1"}}, Total: 1}
}

func (a *countingAdapter) FetchVersions(context.Context, string) []modpack.Version {
	a.versions++
	return []modpack.Version{{ID: "new"}, {ID: "old"}}
}

func (a *countingAdapter) FetchDetails(context.Context, string) *modpack.Details {
	a.details++
	return nil
}

func (a *countingAdapter) FetchDownloadInfo(context.Context, string, string) *modpack.DownloadInfo {
	a.downloads++
	return modpack.LauncherOnly("x.zip")
}

func newManager(a Adapter) *Manager {
	return NewManager(map[modpack.Provider]Adapter{modpack.Modrinth: a}, NewMemoryCache(), time.Minute)
}

func TestSearchIsCachedUntilCleared(t *testing.T) {
	a := &countingAdapter{}
	m := newManager(a)
	ctx := context.Background()

	m.Search(ctx, modpack.Modrinth, "sky", 2, 10)
	m.Search(ctx, modpack.Modrinth, "sky", 2, 10)
	assert.Equal(t, 1, a.searches)
	assert.Equal(t, 10, a.lastLimit)
	assert.Equal(t, 10, a.lastOff)

	m.Search(ctx, modpack.Modrinth, "sky", 3, 10)
	assert.Equal(t, 2, a.searches)

	m.ClearCache(modpack.CurseForge)
	m.Search(ctx, modpack.Modrinth, "sky", 2, 10)
	assert.Equal(t, 3, a.searches)
}

func TestNilResultsAreCached(t *testing.T) {
	a := &countingAdapter{}
	m := newManager(a)
	ctx := context.Background()

	assert.Nil(t, m.Details(ctx, modpack.Modrinth, "x"))
	assert.Nil(t, m.Details(ctx, modpack.Modrinth, "x"))
	assert.Equal(t, 1, a.details)
}

func TestCacheExpires(t *testing.T) {
	a := &countingAdapter{}
	cache := NewMemoryCache()
	now := time.Now()
	cache.now = func() time.Time { return now }
	m := NewManager(map[modpack.Provider]Adapter{modpack.Modrinth: a}, cache, time.Minute)
	ctx := context.Background()

	m.Versions(ctx, modpack.Modrinth, "p")
	now = now.Add(2 * time.Minute)
	m.Versions(ctx, modpack.Modrinth, "p")
	assert.Equal(t, 2, a.versions)
}

func TestPerPageClampAndPageFloor(t *testing.T) {
	a := &countingAdapter{}
	m := newManager(a)

	m.Search(context.Background(), modpack.Modrinth, "", 0, 1000)
	assert.Equal(t, MaxPerPage, a.lastLimit)
	assert.Equal(t, 0, a.lastOff)

	m.Search(context.Background(), modpack.Modrinth, "", 1, 1)
	assert.Equal(t, MinPerPage, a.lastLimit)
}

func TestLatestVersionAndUnknownProvider(t *testing.T) {
	m := newManager(&countingAdapter{})
	ctx := context.Background()

	latest := m.LatestVersion(ctx, modpack.Modrinth, "p")
	require.NotNil(t, latest)
	assert.Equal(t, "new", latest.ID)

	res := m.Search(ctx, modpack.Technic, "q", 1, 20)
	assert.Empty(t, res.Items)
	assert.Nil(t, m.DownloadInfo(ctx, modpack.Technic, "1", "2"))
}

func TestCacheKeyFiltersEmptyParams(t *testing.T) {
	assert.Equal(t, CacheKey("search", modpack.Modrinth, "", "1", "20"), CacheKey("search", modpack.Modrinth, "1", "20"))
	assert.Regexp(t, `^modpacks:search:modrinth:[0-9a-f]{32}$`, CacheKey("search", modpack.Modrinth, "q"))
	assert.NotEqual(t, CacheKey("search", modpack.Modrinth, "q"), CacheKey("search", modpack.CurseForge, "q"))
}

func TestProvidersListsRegisteredAdapters(t *testing.T) {
	m := NewManager(DefaultAdapters(curseforge.New("", time.Second), time.Second), nil, 0)
	providers := m.Providers()
	require.Len(t, providers, 6)
	assert.Equal(t, modpack.Modrinth, providers[0].Key)
	assert.False(t, providers[5].SupportsSearch)
}
