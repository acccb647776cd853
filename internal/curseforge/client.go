package curseforge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/example/modpack-installer/internal/httpx"
	"github.com/example/modpack-installer/internal/modpack"
)

const baseURL = "https://api.curseforge.com"

const (
	gameIDMinecraft = "432"
	classIDModpacks = "4471"
	maxPageSize     = 50
	maxTotal        = 10000
)

// ErrAPIKeyMissing is returned by every operation when no key is configured.
var ErrAPIKeyMissing = errors.New("curseforge API key is not configured")

type Client struct {
	BaseURL string

	mu     sync.RWMutex
	apiKey string
	http   *http.Client
}

// New never fails on an empty key; operations that need it report ErrAPIKeyMissing.
func New(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = httpx.DefaultTimeout
	}
	return &Client{
		BaseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		http: &http.Client{
			Timeout:   timeout,
			Transport: &httpx.LoggingTransport{Transport: http.DefaultTransport},
		},
	}
}

// SetAPIKey replaces the key used by subsequent requests.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = strings.TrimSpace(key)
	c.mu.Unlock()
}

// HasAPIKey reports whether a key is configured.
func (c *Client) HasAPIKey() bool {
	return c.key() != ""
}

func (c *Client) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, out any) error {
	key := c.key()
	if key == "" {
		return ErrAPIKeyMissing
	}
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", key)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("curseforge %s %s returned %d: %w", method, path, resp.StatusCode, httpx.StatusError(resp.StatusCode))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func logFailure(op string, err error) {
	entry := log.WithFields(log.Fields{"provider": modpack.CurseForge, "op": op}).WithError(err)
	if errors.Is(err, ErrAPIKeyMissing) {
		entry.Error("curseforge API key is required but not configured")
		return
	}
	entry.Warn("curseforge request failed")
}

// FetchModpacks searches Minecraft modpacks sorted by popularity.
// Uses gameId 432 (Minecraft) and classId 4471 (Modpacks).
func (c *Client) FetchModpacks(ctx context.Context, query string, limit, offset int) modpack.SearchResult {
	pageSize := limit
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	q := url.Values{}
	q.Set("gameId", gameIDMinecraft)
	q.Set("classId", classIDModpacks)
	q.Set("index", strconv.Itoa(offset))
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("sortField", "2")
	q.Set("sortOrder", "desc")
	if query != "" {
		q.Set("searchFilter", query)
	}

	var res struct {
		Data       []Modpack `json:"data"`
		Pagination struct {
			TotalCount int `json:"totalCount"`
		} `json:"pagination"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/mods/search", q, &res); err != nil {
		logFailure("search", err)
		return modpack.EmptyResult()
	}
	items := make([]modpack.Summary, 0, len(res.Data))
	for _, m := range res.Data {
		items = append(items, m.summary())
	}
	return modpack.SearchResult{Items: items, Total: min(res.Pagination.TotalCount, maxTotal)}
}

func (m Modpack) summary() modpack.Summary {
	return modpack.Summary{
		ID:        strconv.Itoa(m.ID),
		Name:      m.Name,
		Summary:   m.Summary,
		IconURL:   modpack.StrPtr(m.thumbnail()),
		Author:    m.author(),
		Downloads: int64(m.DownloadCount),
		UpdatedAt: modpack.StrPtr(m.DateModified),
	}
}

// FetchVersions lists the files of a modpack project. The API returns them newest-first.
func (c *Client) FetchVersions(ctx context.Context, id string) []modpack.Version {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(maxPageSize))
	var res struct {
		Data []File `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/mods/"+url.PathEscape(id)+"/files", q, &res); err != nil {
		logFailure("versions", err)
		return []modpack.Version{}
	}
	out := make([]modpack.Version, 0, len(res.Data))
	for _, f := range res.Data {
		out = append(out, modpack.Version{
			ID:            strconv.Itoa(f.ID),
			Name:          f.DisplayName,
			VersionNumber: f.FileName,
			PublishedAt:   f.FileDate,
			Downloads:     f.DownloadCount,
		})
	}
	return out
}

func (c *Client) FetchDetails(ctx context.Context, id string) *modpack.Details {
	var res struct {
		Data *Modpack `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/mods/"+url.PathEscape(id), nil, &res); err != nil {
		logFailure("details", err)
		return nil
	}
	if res.Data == nil {
		return nil
	}
	return &modpack.Details{
		Summary:     res.Data.summary(),
		Body:        res.Data.Description,
		PublishedAt: modpack.StrPtr(res.Data.DateCreated),
		URL:         res.Data.Links.WebsiteURL,
	}
}

// FetchDownloadInfo returns the archive of a file. Files whose author disabled
// third-party distribution have no downloadUrl and are reported as launcher-only.
func (c *Client) FetchDownloadInfo(ctx context.Context, id, versionID string) *modpack.DownloadInfo {
	var res struct {
		Data *File `json:"data"`
	}
	path := fmt.Sprintf("/v1/mods/%s/files/%s", url.PathEscape(id), url.PathEscape(versionID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &res); err != nil {
		logFailure("download_info", err)
		return nil
	}
	if res.Data == nil {
		return nil
	}
	return (&modpack.DownloadInfo{
		URL:       res.Data.DownloadURL,
		Filename:  res.Data.FileName,
		SizeBytes: res.Data.FileLength,
	}).Normalize()
}

// GetFile returns file details.
func (c *Client) GetFile(ctx context.Context, modID, fileID int) (*File, error) {
	var res struct {
		Data File `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/v1/mods/%d/files/%d", modID, fileID), nil, &res); err != nil {
		return nil, err
	}
	return &res.Data, nil
}

// ResolveFileDownloadURL returns a direct URL for a mod file referenced by a manifest.
// The download-url endpoint is tried first, then the file metadata's downloadUrl.
func (c *Client) ResolveFileDownloadURL(ctx context.Context, projectID, fileID int) (string, error) {
	var res struct {
		Data string `json:"data"`
	}
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/v1/mods/%d/files/%d/download-url", projectID, fileID), nil, &res)
	if err == nil && res.Data != "" {
		return res.Data, nil
	}
	if errors.Is(err, ErrAPIKeyMissing) {
		return "", err
	}
	f, err := c.GetFile(ctx, projectID, fileID)
	if err != nil {
		return "", fmt.Errorf("file %d/%d metadata: %w", projectID, fileID, err)
	}
	if f.DownloadURL == nil || *f.DownloadURL == "" {
		return "", fmt.Errorf("file %d/%d has no download url", projectID, fileID)
	}
	return *f.DownloadURL, nil
}
