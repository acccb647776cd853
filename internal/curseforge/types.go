package curseforge

// Modpack represents a CurseForge project (modpack).
// Only fields we need are defined; the API returns more.
type Modpack struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Slug          string  `json:"slug"`
	Summary       string  `json:"summary"`
	Description   string  `json:"description"`
	DownloadCount float64 `json:"downloadCount"`
	DateCreated   string  `json:"dateCreated"`
	DateModified  string  `json:"dateModified"`

	Logo *struct {
		ThumbnailURL string `json:"thumbnailUrl"`
		URL          string `json:"url"`
	} `json:"logo,omitempty"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Links struct {
		WebsiteURL string `json:"websiteUrl"`
	} `json:"links"`
}

func (m Modpack) thumbnail() string {
	if m.Logo == nil {
		return ""
	}
	return m.Logo.ThumbnailURL
}

func (m Modpack) author() string {
	if len(m.Authors) == 0 || m.Authors[0].Name == "" {
		return "Unknown"
	}
	return m.Authors[0].Name
}

// File represents a CurseForge file (version).
type File struct {
	ID            int      `json:"id"`
	DisplayName   string   `json:"displayName"`
	FileName      string   `json:"fileName"`
	FileLength    int64    `json:"fileLength"`
	DownloadCount int64    `json:"downloadCount"`
	DownloadURL   *string  `json:"downloadUrl,omitempty"`
	GameVersions  []string `json:"gameVersions,omitempty"`
	FileDate      *string  `json:"fileDate,omitempty"`
}

// Manifest is the manifest.json at the root of a CurseForge modpack archive.
type Manifest struct {
	Minecraft struct {
		Version    string `json:"version"`
		ModLoaders []struct {
			ID      string `json:"id"`
			Primary bool   `json:"primary"`
		} `json:"modLoaders"`
	} `json:"minecraft"`
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	Files     []ManifestFile `json:"files"`
	Overrides string         `json:"overrides"`
}

// ManifestFile references one mod file. A missing "required" defaults to true.
type ManifestFile struct {
	ProjectID int   `json:"projectID"`
	FileID    int   `json:"fileID"`
	Required  *bool `json:"required"`
}

// IsRequired reports whether the entry must be installed.
func (f ManifestFile) IsRequired() bool {
	return f.Required == nil || *f.Required
}

// OverridesDir returns the declared overrides directory, defaulting to "overrides".
func (m Manifest) OverridesDir() string {
	if m.Overrides == "" {
		return "overrides"
	}
	return m.Overrides
}
