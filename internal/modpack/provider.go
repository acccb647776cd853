package modpack

import (
	"fmt"
	"strings"
)

// Provider identifies an upstream modpack catalog.
type Provider string

const (
	Modrinth     Provider = "modrinth"
	CurseForge   Provider = "curseforge"
	ATLauncher   Provider = "atlauncher"
	FeedTheBeast Provider = "feedthebeast"
	Technic      Provider = "technic"
	VoidsWrath   Provider = "voidswrath"
)

// AllProviders returns every known provider in display order.
func AllProviders() []Provider {
	return []Provider{Modrinth, CurseForge, ATLauncher, FeedTheBeast, Technic, VoidsWrath}
}

// ParseProvider converts a user supplied key to a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllProviders() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

func (p Provider) String() string { return string(p) }

func (p Provider) DisplayName() string {
	switch p {
	case Modrinth:
		return "Modrinth"
	case CurseForge:
		return "CurseForge"
	case ATLauncher:
		return "ATLauncher"
	case FeedTheBeast:
		return "Feed The Beast"
	case Technic:
		return "Technic"
	case VoidsWrath:
		return "Voids Wrath"
	}
	return string(p)
}

func (p Provider) WebsiteURL() string {
	switch p {
	case Modrinth:
		return "https://modrinth.com"
	case CurseForge:
		return "https://www.curseforge.com"
	case ATLauncher:
		return "https://atlauncher.com"
	case FeedTheBeast:
		return "https://www.feed-the-beast.com"
	case Technic:
		return "https://www.technicpack.net"
	case VoidsWrath:
		return "https://www.voidswrath.com"
	}
	return ""
}

// SupportsSearch reports whether the upstream honours a free text query.
// VoidsWrath publishes a static feed and always returns its full catalog.
func (p Provider) SupportsSearch() bool {
	return p != VoidsWrath
}

// Color is the badge color used by front-ends.
func (p Provider) Color() string {
	switch p {
	case Modrinth:
		return "success"
	case CurseForge:
		return "warning"
	case ATLauncher:
		return "info"
	case FeedTheBeast:
		return "danger"
	case Technic:
		return "primary"
	}
	return "gray"
}

// ProviderInfo is the serialisable description of a provider.
type ProviderInfo struct {
	Key            Provider `json:"key"`
	DisplayName    string   `json:"display_name"`
	WebsiteURL     string   `json:"website_url"`
	SupportsSearch bool     `json:"supports_search"`
	Color          string   `json:"color"`
}

// Info describes p.
func (p Provider) Info() ProviderInfo {
	return ProviderInfo{
		Key:            p,
		DisplayName:    p.DisplayName(),
		WebsiteURL:     p.WebsiteURL(),
		SupportsSearch: p.SupportsSearch(),
		Color:          p.Color(),
	}
}
