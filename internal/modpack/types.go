// Package modpack holds the provider-agnostic catalog model shared by the
// adapters, the catalog manager and the install pipeline.
package modpack

import "time"

// Summary is one row of a catalog search.
type Summary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Summary   string  `json:"summary"`
	IconURL   *string `json:"icon_url,omitempty"`
	Author    string  `json:"author"`
	Downloads int64   `json:"downloads"`
	UpdatedAt *string `json:"updated_at,omitempty"`
}

// Details extends Summary with the fields only a project page returns.
type Details struct {
	Summary
	Body        string  `json:"body"`
	Followers   int64   `json:"followers"`
	PublishedAt *string `json:"published_at,omitempty"`
	URL         string  `json:"url"`
	// Version is only reported by providers exposing a single current build (Technic).
	Version string `json:"version,omitempty"`
}

// Version is one release of a modpack. Lists are always newest-first.
type Version struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	VersionNumber string  `json:"version_number"`
	PublishedAt   *string `json:"published_at,omitempty"`
	Downloads     int64   `json:"downloads"`
	Changelog     string  `json:"changelog"`
}

// SearchResult is a page of summaries plus the upstream total.
type SearchResult struct {
	Items []Summary `json:"items"`
	Total int       `json:"total"`
}

// EmptyResult is returned by adapters when the upstream call failed.
func EmptyResult() SearchResult {
	return SearchResult{Items: []Summary{}, Total: 0}
}

// DownloadInfo describes how to obtain a modpack version.
type DownloadInfo struct {
	URL              *string `json:"url"`
	Filename         string  `json:"filename"`
	SizeBytes        int64   `json:"size"`
	ContentHash      *string `json:"hash,omitempty"`
	RequiresLauncher bool    `json:"requires_launcher"`
}

// Direct reports whether the version can be fetched without a launcher.
func (d *DownloadInfo) Direct() bool {
	return d != nil && d.URL != nil && *d.URL != ""
}

// Normalize enforces that a missing URL always means launcher-only.
func (d *DownloadInfo) Normalize() *DownloadInfo {
	if d == nil {
		return nil
	}
	if !d.Direct() {
		d.URL = nil
		d.RequiresLauncher = true
	}
	return d
}

// LauncherOnly builds the DownloadInfo of a version that exists but has no direct archive.
func LauncherOnly(filename string) *DownloadInfo {
	return &DownloadInfo{Filename: filename, RequiresLauncher: true}
}

// InstalledRecord is persisted on the server root after a successful install.
type InstalledRecord struct {
	Provider    Provider  `json:"provider"`
	ModpackID   string    `json:"modpack_id"`
	ModpackName string    `json:"modpack_name"`
	VersionID   string    `json:"version_id"`
	VersionName string    `json:"version_name"`
	InstalledAt time.Time `json:"installed_at"`
}

// StrPtr returns nil for the empty string.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
