// Package catalog routes catalog requests to provider adapters and caches their answers.
package catalog

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/example/modpack-installer/internal/modpack"
)

// Adapter is implemented once per upstream catalog. Implementations never
// return errors: failures are logged and surface as empty results or nil.
type Adapter interface {
	FetchModpacks(ctx context.Context, query string, limit, offset int) modpack.SearchResult
	FetchVersions(ctx context.Context, id string) []modpack.Version
	FetchDetails(ctx context.Context, id string) *modpack.Details
	FetchDownloadInfo(ctx context.Context, id, versionID string) *modpack.DownloadInfo
}

const (
	DefaultTTL     = 1800 * time.Second
	DefaultPerPage = 20
	MinPerPage     = 5
	MaxPerPage     = 100
)

// Manager dispatches to the adapter registered for a provider and memoizes
// every call, including empty ones, for TTL.
type Manager struct {
	adapters map[modpack.Provider]Adapter
	cache    Cache
	ttl      time.Duration
}

func NewManager(adapters map[modpack.Provider]Adapter, cache Cache, ttl time.Duration) *Manager {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{adapters: adapters, cache: cache, ttl: ttl}
}

// ClampPerPage bounds a requested page size to [MinPerPage, MaxPerPage].
func ClampPerPage(n int) int {
	if n <= 0 {
		return DefaultPerPage
	}
	return min(max(n, MinPerPage), MaxPerPage)
}

// CacheKey builds modpacks:<op>:<provider>:<md5 of the non-empty params joined by ":">.
func CacheKey(op string, provider modpack.Provider, params ...string) string {
	kept := make([]string, 0, len(params))
	for _, p := range params {
		if p != "" {
			kept = append(kept, p)
		}
	}
	sum := md5.Sum([]byte(strings.Join(kept, ":")))
	return fmt.Sprintf("modpacks:%s:%s:%s", op, provider, hex.EncodeToString(sum[:]))
}

func (m *Manager) adapter(provider modpack.Provider) (Adapter, bool) {
	a, ok := m.adapters[provider]
	if !ok {
		log.WithField("provider", provider).Warn("no adapter registered for provider")
	}
	return a, ok
}

func remember[T any](m *Manager, key string, compute func() T) T {
	if v, ok := m.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed
		}
	}
	v := compute()
	m.cache.Set(key, v, m.ttl)
	return v
}

// Search returns one page of modpacks. Pages are 1-based.
func (m *Manager) Search(ctx context.Context, provider modpack.Provider, query string, page, perPage int) modpack.SearchResult {
	a, ok := m.adapter(provider)
	if !ok {
		return modpack.EmptyResult()
	}
	if page < 1 {
		page = 1
	}
	perPage = ClampPerPage(perPage)
	offset := (page - 1) * perPage
	key := CacheKey("search", provider, query, strconv.Itoa(page), strconv.Itoa(perPage))
	return remember(m, key, func() modpack.SearchResult {
		return a.FetchModpacks(ctx, query, perPage, offset)
	})
}

// Versions returns the versions of a modpack, newest-first.
func (m *Manager) Versions(ctx context.Context, provider modpack.Provider, id string) []modpack.Version {
	a, ok := m.adapter(provider)
	if !ok {
		return []modpack.Version{}
	}
	return remember(m, CacheKey("versions", provider, id), func() []modpack.Version {
		return a.FetchVersions(ctx, id)
	})
}

// LatestVersion returns index 0 of Versions, or nil when there is none.
func (m *Manager) LatestVersion(ctx context.Context, provider modpack.Provider, id string) *modpack.Version {
	versions := m.Versions(ctx, provider, id)
	if len(versions) == 0 {
		return nil
	}
	v := versions[0]
	return &v
}

func (m *Manager) Details(ctx context.Context, provider modpack.Provider, id string) *modpack.Details {
	a, ok := m.adapter(provider)
	if !ok {
		return nil
	}
	return remember(m, CacheKey("details", provider, id), func() *modpack.Details {
		return a.FetchDetails(ctx, id)
	})
}

func (m *Manager) DownloadInfo(ctx context.Context, provider modpack.Provider, id, versionID string) *modpack.DownloadInfo {
	a, ok := m.adapter(provider)
	if !ok {
		return nil
	}
	return remember(m, CacheKey("download", provider, id, versionID), func() *modpack.DownloadInfo {
		return a.FetchDownloadInfo(ctx, id, versionID)
	})
}

// Providers describes every provider with a registered adapter, in display order.
func (m *Manager) Providers() []modpack.ProviderInfo {
	out := make([]modpack.ProviderInfo, 0, len(m.adapters))
	for _, p := range modpack.AllProviders() {
		if _, ok := m.adapters[p]; ok {
			out = append(out, p.Info())
		}
	}
	return out
}

// ClearCache drops every cached entry. Invalidation is all-or-nothing: the
// provider arguments are accepted for call-site clarity but ignored.
func (m *Manager) ClearCache(_ ...modpack.Provider) {
	m.cache.Flush()
	log.Info("modpack catalog cache cleared")
}
