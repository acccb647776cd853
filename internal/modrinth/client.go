package modrinth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/example/modpack-installer/internal/httpx"
	"github.com/example/modpack-installer/internal/modpack"
)

const baseURL = "https://api.modrinth.com/v2"

// searchFacets restricts search to modpacks that can run on a dedicated server.
var searchFacets = [][]string{
	{"project_type:modpack"},
	{"server_side:required", "server_side:optional"},
}

type Client struct {
	BaseURL string
	http    *httpx.Client
}

func New(timeout time.Duration) *Client {
	return &Client{BaseURL: baseURL, http: httpx.New(timeout)}
}

type searchHit struct {
	ProjectID    string `json:"project_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	IconURL      string `json:"icon_url"`
	Author       string `json:"author"`
	Downloads    int64  `json:"downloads"`
	DateModified string `json:"date_modified"`
}

type project struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Body        string `json:"body"`
	IconURL     string `json:"icon_url"`
	Team        string `json:"team"`
	Downloads   int64  `json:"downloads"`
	Followers   int64  `json:"followers"`
	Published   string `json:"published"`
	Updated     string `json:"updated"`
}

type version struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	VersionNumber string `json:"version_number"`
	DatePublished string `json:"date_published"`
	Downloads     int64  `json:"downloads"`
	Changelog     string `json:"changelog"`
	Files         []struct {
		URL      string            `json:"url"`
		Filename string            `json:"filename"`
		Primary  bool              `json:"primary"`
		Size     int64             `json:"size"`
		Hashes   map[string]string `json:"hashes"`
	} `json:"files"`
}

func logFailure(op string, err error) {
	log.WithFields(log.Fields{"provider": modpack.Modrinth, "op": op}).WithError(err).Warn("modrinth request failed")
}

// FetchModpacks searches server-compatible modpacks.
func (c *Client) FetchModpacks(ctx context.Context, query string, limit, offset int) modpack.SearchResult {
	facets, _ := json.Marshal(searchFacets)
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("facets", string(facets))
	if query != "" {
		q.Set("query", query)
	}
	var res struct {
		Hits      []searchHit `json:"hits"`
		TotalHits int         `json:"total_hits"`
	}
	if err := c.http.GetJSON(ctx, c.BaseURL+"/search", q, &res); err != nil {
		logFailure("search", err)
		return modpack.EmptyResult()
	}
	items := make([]modpack.Summary, 0, len(res.Hits))
	for _, h := range res.Hits {
		items = append(items, modpack.Summary{
			ID:        h.ProjectID,
			Name:      h.Title,
			Summary:   h.Description,
			IconURL:   modpack.StrPtr(h.IconURL),
			Author:    orUnknown(h.Author),
			Downloads: h.Downloads,
			UpdatedAt: modpack.StrPtr(h.DateModified),
		})
	}
	return modpack.SearchResult{Items: items, Total: res.TotalHits}
}

// FetchVersions lists versions; Modrinth already returns them newest-first.
func (c *Client) FetchVersions(ctx context.Context, id string) []modpack.Version {
	var res []version
	if err := c.http.GetJSON(ctx, fmt.Sprintf("%s/project/%s/version", c.BaseURL, url.PathEscape(id)), nil, &res); err != nil {
		logFailure("versions", err)
		return []modpack.Version{}
	}
	out := make([]modpack.Version, 0, len(res))
	for _, v := range res {
		out = append(out, modpack.Version{
			ID:            v.ID,
			Name:          v.Name,
			VersionNumber: v.VersionNumber,
			PublishedAt:   modpack.StrPtr(v.DatePublished),
			Downloads:     v.Downloads,
			Changelog:     v.Changelog,
		})
	}
	return out
}

func (c *Client) FetchDetails(ctx context.Context, id string) *modpack.Details {
	var p project
	if err := c.http.GetJSON(ctx, fmt.Sprintf("%s/project/%s", c.BaseURL, url.PathEscape(id)), nil, &p); err != nil {
		logFailure("details", err)
		return nil
	}
	return &modpack.Details{
		Summary: modpack.Summary{
			ID:        p.ID,
			Name:      p.Title,
			Summary:   p.Description,
			IconURL:   modpack.StrPtr(p.IconURL),
			Author:    orUnknown(p.Team),
			Downloads: p.Downloads,
			UpdatedAt: modpack.StrPtr(p.Updated),
		},
		Body:        p.Body,
		Followers:   p.Followers,
		PublishedAt: modpack.StrPtr(p.Published),
		URL:         "https://modrinth.com/modpack/" + p.Slug,
	}
}

// FetchDownloadInfo returns the primary file of a version, or the first one.
func (c *Client) FetchDownloadInfo(ctx context.Context, id, versionID string) *modpack.DownloadInfo {
	var v version
	if err := c.http.GetJSON(ctx, fmt.Sprintf("%s/version/%s", c.BaseURL, url.PathEscape(versionID)), nil, &v); err != nil {
		logFailure("download_info", err)
		return nil
	}
	if len(v.Files) == 0 {
		return nil
	}
	f := v.Files[0]
	for _, candidate := range v.Files {
		if candidate.Primary {
			f = candidate
			break
		}
	}
	return (&modpack.DownloadInfo{
		URL:         modpack.StrPtr(f.URL),
		Filename:    f.Filename,
		SizeBytes:   f.Size,
		ContentHash: modpack.StrPtr(f.Hashes["sha1"]),
	}).Normalize()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
