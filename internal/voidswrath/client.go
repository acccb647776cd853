package voidswrath

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/example/modpack-installer/internal/httpx"
	"github.com/example/modpack-installer/internal/modpack"
)

// feedURL is a static catalog; VoidsWrath has no API and no search.
const feedURL = "https://www.ric-rac.org/minecraft-modpack-server-installer/voidswrath.json"

type Client struct {
	FeedURL string
	http    *httpx.Client
}

func New(timeout time.Duration) *Client {
	return &Client{FeedURL: feedURL, http: httpx.New(timeout)}
}

type pack struct {
	ID            json.Number `json:"id"`
	DisplayName   string      `json:"displayName"`
	Description   string      `json:"description"`
	Logo          string      `json:"logo"`
	ServerPackURL string      `json:"serverPackUrl"`
	PlatformURL   string      `json:"platformUrl"`
}

func (p pack) summary() modpack.Summary {
	name := p.DisplayName
	if name == "" {
		name = "Unknown"
	}
	return modpack.Summary{
		ID:      p.ID.String(),
		Name:    name,
		Summary: p.Description,
		IconURL: modpack.StrPtr(p.Logo),
		Author:  "Voids Wrath",
	}
}

func logFailure(op string, err error) {
	log.WithFields(log.Fields{"provider": modpack.VoidsWrath, "op": op}).WithError(err).Warn("voidswrath feed failed")
}

func (c *Client) feed(ctx context.Context) ([]pack, error) {
	var packs []pack
	if err := c.http.GetJSON(ctx, c.FeedURL, nil, &packs); err != nil {
		return nil, err
	}
	return packs, nil
}

func (c *Client) find(ctx context.Context, id string) (*pack, error) {
	packs, err := c.feed(ctx)
	if err != nil {
		return nil, err
	}
	want, err := strconv.Atoi(id)
	if err != nil {
		return nil, nil
	}
	for i := range packs {
		if n, err := packs[i].ID.Int64(); err == nil && int(n) == want {
			return &packs[i], nil
		}
	}
	return nil, nil
}

// FetchModpacks ignores query and pages through the whole feed.
func (c *Client) FetchModpacks(ctx context.Context, _ string, limit, offset int) modpack.SearchResult {
	packs, err := c.feed(ctx)
	if err != nil {
		logFailure("search", err)
		return modpack.EmptyResult()
	}
	total := len(packs)
	start := min(max(offset, 0), total)
	end := total
	if limit >= 0 {
		end = min(start+limit, total)
	}
	items := make([]modpack.Summary, 0, end-start)
	for _, p := range packs[start:end] {
		items = append(items, p.summary())
	}
	return modpack.SearchResult{Items: items, Total: total}
}

// FetchVersions always reports a single "latest" version.
func (c *Client) FetchVersions(_ context.Context, _ string) []modpack.Version {
	return []modpack.Version{{ID: "latest", Name: "Latest", VersionNumber: "latest"}}
}

func (c *Client) FetchDetails(ctx context.Context, id string) *modpack.Details {
	p, err := c.find(ctx, id)
	if err != nil {
		logFailure("details", err)
		return nil
	}
	if p == nil {
		return nil
	}
	site := p.PlatformURL
	if site == "" {
		site = "https://www.voidswrath.com/"
	}
	return &modpack.Details{Summary: p.summary(), Body: p.Description, URL: site}
}

func (c *Client) FetchDownloadInfo(ctx context.Context, id, _ string) *modpack.DownloadInfo {
	p, err := c.find(ctx, id)
	if err != nil {
		logFailure("download_info", err)
		return nil
	}
	if p == nil || p.ServerPackURL == "" {
		return nil
	}
	return &modpack.DownloadInfo{
		URL:      modpack.StrPtr(p.ServerPackURL),
		Filename: basename(p.ServerPackURL),
	}
}

func basename(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		raw = u.Path
	}
	b := path.Base(raw)
	if b == "." || b == "/" {
		return fmt.Sprintf("voidswrath-%d.zip", time.Now().Unix())
	}
	return b
}
