package ftb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/example/modpack-installer/internal/httpx"
	"github.com/example/modpack-installer/internal/modpack"
)

const baseURL = "https://api.feed-the-beast.com/v1/modpacks/public/modpack"

// hiddenPackID is an internal FTB pack that the public listing still returns.
const hiddenPackID = 81

type Client struct {
	BaseURL string
	http    *httpx.Client
}

func New(timeout time.Duration) *Client {
	return &Client{BaseURL: baseURL, http: httpx.New(timeout)}
}

type modpackResponse struct {
	Status      string `json:"status"`
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Art         []struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"art"`
	Versions []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"versions"`
}

func (m modpackResponse) squareArt() *string {
	for _, a := range m.Art {
		if a.Type == "square" {
			return modpack.StrPtr(a.URL)
		}
	}
	return nil
}

func logFailure(op string, err error) {
	log.WithFields(log.Fields{"provider": modpack.FeedTheBeast, "op": op}).WithError(err).Warn("ftb request failed")
}

func (c *Client) fetchPack(ctx context.Context, id string) (*modpackResponse, error) {
	var res modpackResponse
	if err := c.http.GetJSON(ctx, c.BaseURL+"/"+url.PathEscape(id), nil, &res); err != nil {
		return nil, err
	}
	if res.Status == "error" {
		return nil, httpx.ErrNotFound
	}
	return &res, nil
}

// FetchModpacks returns popular packs, or search results when query is set.
// The listing only carries ids so every pack is resolved through FetchDetails.
func (c *Client) FetchModpacks(ctx context.Context, query string, limit, offset int) modpack.SearchResult {
	endpoint := fmt.Sprintf("%s/popular/installs/%d", c.BaseURL, limit)
	var q url.Values
	if query != "" {
		endpoint = fmt.Sprintf("%s/search/%d", c.BaseURL, limit)
		q = url.Values{"term": {query}}
	}
	var res struct {
		Packs []int `json:"packs"`
	}
	if err := c.http.GetJSON(ctx, endpoint, q, &res); err != nil {
		logFailure("search", err)
		return modpack.EmptyResult()
	}
	items := make([]modpack.Summary, 0, len(res.Packs))
	for _, id := range res.Packs {
		if id == hiddenPackID {
			continue
		}
		d := c.FetchDetails(ctx, strconv.Itoa(id))
		if d == nil {
			continue
		}
		items = append(items, modpack.Summary{
			ID:      d.ID,
			Name:    d.Name,
			Summary: d.Summary.Summary,
			IconURL: d.IconURL,
			Author:  d.Author,
		})
	}
	return modpack.SearchResult{Items: items, Total: len(items)}
}

// FetchVersions reverses FTB's oldest-first order.
func (c *Client) FetchVersions(ctx context.Context, id string) []modpack.Version {
	p, err := c.fetchPack(ctx, id)
	if err != nil {
		logFailure("versions", err)
		return []modpack.Version{}
	}
	out := make([]modpack.Version, 0, len(p.Versions))
	for i := len(p.Versions) - 1; i >= 0; i-- {
		v := p.Versions[i]
		out = append(out, modpack.Version{
			ID:            strconv.Itoa(v.ID),
			Name:          v.Name,
			VersionNumber: v.Name,
		})
	}
	return out
}

func (c *Client) FetchDetails(ctx context.Context, id string) *modpack.Details {
	p, err := c.fetchPack(ctx, id)
	if err != nil {
		logFailure("details", err)
		return nil
	}
	return &modpack.Details{
		Summary: modpack.Summary{
			ID:      strconv.Itoa(p.ID),
			Name:    p.Name,
			Summary: p.Description,
			IconURL: p.squareArt(),
			Author:  "Feed The Beast",
		},
		Body: p.Description,
		URL:  fmt.Sprintf("https://feed-the-beast.com/modpacks/%d", p.ID),
	}
}

// FetchDownloadInfo is launcher-only: FTB packs are assembled by the FTB app.
func (c *Client) FetchDownloadInfo(_ context.Context, id, versionID string) *modpack.DownloadInfo {
	return modpack.LauncherOnly(fmt.Sprintf("ftb-%s-%s.zip", id, versionID))
}
