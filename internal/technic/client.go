package technic

import (
	"context"
	"fmt"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/example/modpack-installer/internal/httpx"
	"github.com/example/modpack-installer/internal/modpack"
)

const (
	baseURL = "https://api.technicpack.net"
	// fallbackBuild is used when the stable launcher build cannot be resolved.
	fallbackBuild = "822"
	// defaultQuery is sent when no query is given; the search endpoint requires one.
	defaultQuery = "Technic"
)

type Client struct {
	BaseURL string
	http    *httpx.Client
}

func New(timeout time.Duration) *Client {
	return &Client{BaseURL: baseURL, http: httpx.New(timeout)}
}

func logFailure(op string, err error) {
	log.WithFields(log.Fields{"provider": modpack.Technic, "op": op}).WithError(err).Warn("technic request failed")
}

// build returns the current stable launcher build number, which every API call must carry.
func (c *Client) build(ctx context.Context) string {
	var res struct {
		Build any `json:"build"`
	}
	if err := c.http.GetJSON(ctx, c.BaseURL+"/launcher/version/stable4", nil, &res); err != nil || res.Build == nil {
		return fallbackBuild
	}
	switch b := res.Build.(type) {
	case float64:
		return fmt.Sprintf("%d", int64(b))
	case string:
		if b != "" {
			return b
		}
	}
	return fallbackBuild
}

func (c *Client) FetchModpacks(ctx context.Context, query string, limit, offset int) modpack.SearchResult {
	if query == "" {
		query = defaultQuery
	}
	var res struct {
		Modpacks []struct {
			Name        string `json:"name"`
			Slug        string `json:"slug"`
			Description string `json:"description"`
			IconURL     string `json:"iconUrl"`
		} `json:"modpacks"`
	}
	q := url.Values{"q": {query}, "build": {c.build(ctx)}}
	if err := c.http.GetJSON(ctx, c.BaseURL+"/search", q, &res); err != nil {
		logFailure("search", err)
		return modpack.EmptyResult()
	}
	packs := res.Modpacks
	if limit >= 0 && len(packs) > limit {
		packs = packs[:limit]
	}
	items := make([]modpack.Summary, 0, len(packs))
	for _, p := range packs {
		id := p.Slug
		if id == "" {
			id = p.Name
		}
		name := p.Name
		if name == "" {
			name = "Unknown"
		}
		items = append(items, modpack.Summary{
			ID:      id,
			Name:    name,
			Summary: p.Description,
			IconURL: modpack.StrPtr(p.IconURL),
			Author:  "Technic",
		})
	}
	return modpack.SearchResult{Items: items, Total: len(items)}
}

// FetchVersions exposes the single current build of a pack.
func (c *Client) FetchVersions(ctx context.Context, id string) []modpack.Version {
	d := c.FetchDetails(ctx, id)
	if d == nil || d.Version == "" {
		return []modpack.Version{}
	}
	return []modpack.Version{{ID: d.Version, Name: d.Version, VersionNumber: d.Version}}
}

func (c *Client) FetchDetails(ctx context.Context, id string) *modpack.Details {
	var p struct {
		Name        *string `json:"name"`
		DisplayName string  `json:"displayName"`
		Description string  `json:"description"`
		User        string  `json:"user"`
		Runs        int64   `json:"runs"`
		PlatformURL string  `json:"platformUrl"`
		Version     string  `json:"version"`
		Icon        *struct {
			URL string `json:"url"`
		} `json:"icon"`
	}
	q := url.Values{"build": {c.build(ctx)}}
	if err := c.http.GetJSON(ctx, c.BaseURL+"/modpack/"+url.PathEscape(id), q, &p); err != nil {
		logFailure("details", err)
		return nil
	}
	if p.Name == nil {
		return nil
	}
	d := &modpack.Details{
		Summary: modpack.Summary{
			ID:        id,
			Name:      firstNonEmpty(p.DisplayName, *p.Name, "Unknown"),
			Summary:   p.Description,
			Author:    firstNonEmpty(p.User, "Technic"),
			Downloads: p.Runs,
		},
		Body:    p.Description,
		URL:     firstNonEmpty(p.PlatformURL, "https://www.technicpack.net/modpack/"+id),
		Version: firstNonEmpty(p.Version, "latest"),
	}
	if p.Icon != nil {
		d.IconURL = modpack.StrPtr(p.Icon.URL)
	}
	return d
}

// FetchDownloadInfo is launcher-only for existing packs and nil for unknown ones.
func (c *Client) FetchDownloadInfo(ctx context.Context, id, versionID string) *modpack.DownloadInfo {
	if c.FetchDetails(ctx, id) == nil {
		return nil
	}
	return modpack.LauncherOnly(fmt.Sprintf("technic-%s.zip", id))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
