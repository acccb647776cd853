package atlauncher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/example/modpack-installer/internal/httpx"
	"github.com/example/modpack-installer/internal/modpack"
)

const (
	baseURL  = "https://api.atlauncher.com/v2"
	iconBase = "https://cdn.atlcdn.net/images/packs/"
)

// Client talks to the ATLauncher GraphQL API. Packs can only be installed
// through the ATLauncher client, so download info is always launcher-only.
type Client struct {
	BaseURL string
	http    *httpx.Client
}

func New(timeout time.Duration) *Client {
	return &Client{BaseURL: baseURL, http: httpx.New(timeout)}
}

type pack struct {
	ID          int    `json:"id"`
	SafeName    string `json:"safeName"`
	Name        string `json:"name"`
	Description string `json:"description"`
	WebsiteURL  string `json:"websiteUrl"`
}

func (p pack) icon() *string {
	if p.SafeName == "" {
		return nil
	}
	return modpack.StrPtr(iconBase + strings.ToLower(p.SafeName) + ".png")
}

func logFailure(op string, err error) {
	log.WithFields(log.Fields{"provider": modpack.ATLauncher, "op": op}).WithError(err).Warn("atlauncher request failed")
}

func (c *Client) graphql(ctx context.Context, query string, out any) error {
	var res struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := c.http.PostJSON(ctx, c.BaseURL+"/graphql", map[string]string{"query": query}, &res); err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("graphql: %s", res.Errors[0].Message)
	}
	if len(res.Data) == 0 || string(res.Data) == "null" {
		return httpx.ErrNotFound
	}
	return json.Unmarshal(res.Data, out)
}

// quote renders s as a GraphQL string literal.
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// FetchModpacks lists packs, or searches them when query is set. ATLauncher
// reports no total, so the page size stands in for it.
func (c *Client) FetchModpacks(ctx context.Context, query string, limit, offset int) modpack.SearchResult {
	const fields = "{ id safeName name description websiteUrl }"
	var gql string
	if query == "" {
		gql = fmt.Sprintf("query { packs(first: %d) %s }", limit, fields)
	} else {
		gql = fmt.Sprintf("query { searchPacks(first: %d, query: %s) %s }", limit, quote(query), fields)
	}
	var data struct {
		Packs       []pack `json:"packs"`
		SearchPacks []pack `json:"searchPacks"`
	}
	if err := c.graphql(ctx, gql, &data); err != nil {
		logFailure("search", err)
		return modpack.EmptyResult()
	}
	packs := data.Packs
	if query != "" {
		packs = data.SearchPacks
	}
	items := make([]modpack.Summary, 0, len(packs))
	for _, p := range packs {
		items = append(items, modpack.Summary{
			ID:      strconv.Itoa(p.ID),
			Name:    p.Name,
			Summary: p.Description,
			IconURL: p.icon(),
			Author:  "ATLauncher",
		})
	}
	return modpack.SearchResult{Items: items, Total: len(items)}
}

// FetchVersions returns up to 100 versions in upstream order (newest-first).
func (c *Client) FetchVersions(ctx context.Context, id string) []modpack.Version {
	n, err := strconv.Atoi(id)
	if err != nil {
		logFailure("versions", fmt.Errorf("invalid pack id %q", id))
		return []modpack.Version{}
	}
	var data struct {
		Pack *struct {
			Versions []struct {
				Version string `json:"version"`
			} `json:"versions"`
		} `json:"pack"`
	}
	if err := c.graphql(ctx, fmt.Sprintf("query { pack(pack: { id: %d }) { versions(first: 100) { version } } }", n), &data); err != nil {
		logFailure("versions", err)
		return []modpack.Version{}
	}
	if data.Pack == nil {
		return []modpack.Version{}
	}
	out := make([]modpack.Version, 0, len(data.Pack.Versions))
	for _, v := range data.Pack.Versions {
		out = append(out, modpack.Version{ID: v.Version, Name: v.Version, VersionNumber: v.Version})
	}
	return out
}

func (c *Client) FetchDetails(ctx context.Context, id string) *modpack.Details {
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil
	}
	var data struct {
		Pack *pack `json:"pack"`
	}
	if err := c.graphql(ctx, fmt.Sprintf("query { pack(pack: { id: %d }) { name description safeName websiteUrl } }", n), &data); err != nil {
		logFailure("details", err)
		return nil
	}
	if data.Pack == nil {
		return nil
	}
	p := data.Pack
	site := p.WebsiteURL
	if site == "" {
		site = "https://atlauncher.com/pack/" + p.SafeName
	}
	return &modpack.Details{
		Summary: modpack.Summary{
			ID:      id,
			Name:    p.Name,
			Summary: p.Description,
			IconURL: p.icon(),
			Author:  "ATLauncher",
		},
		Body: p.Description,
		URL:  site,
	}
}

func (c *Client) FetchDownloadInfo(_ context.Context, id, versionID string) *modpack.DownloadInfo {
	return modpack.LauncherOnly(fmt.Sprintf("atlauncher-%s-%s.zip", id, versionID))
}
