// Package minecraft holds the mod loader knowledge the installer needs:
// which loader a pack declares, where its server jar lives, and how to launch it.
package minecraft

import (
	"errors"
	"fmt"
	"strings"
)

// Loader is a modded server runtime.
type Loader string

const (
	LoaderFabric   Loader = "fabric"
	LoaderQuilt    Loader = "quilt"
	LoaderForge    Loader = "forge"
	LoaderNeoForge Loader = "neoforge"
)

// ErrUnsupportedLoader is returned for loaders whose server cannot be fetched as a single jar.
var ErrUnsupportedLoader = errors.New("loader cannot be installed automatically")

const (
	fabricMetaBase = "https://meta.fabricmc.net/v2"
	quiltMetaBase  = "https://meta.quiltmc.org/v3"
)

// dependencyKeys is the preference order of Modrinth index dependency keys.
var dependencyKeys = []struct {
	key    string
	loader Loader
}{
	{"fabric-loader", LoaderFabric},
	{"quilt-loader", LoaderQuilt},
	{"forge", LoaderForge},
	{"neoforge", LoaderNeoForge},
}

// LoaderFromDependencies picks the loader declared in a Modrinth index
// dependencies map. ok is false when the pack names no loader.
func LoaderFromDependencies(deps map[string]string) (loader Loader, version string, ok bool) {
	for _, d := range dependencyKeys {
		if v := strings.TrimSpace(deps[d.key]); v != "" {
			return d.loader, v, true
		}
	}
	return "", "", false
}

// ServerJarURL returns the download URL of the loader's launcher server jar.
func ServerJarURL(loader Loader, mcVersion, loaderVersion string) (string, error) {
	mcVersion, loaderVersion = strings.TrimSpace(mcVersion), strings.TrimSpace(loaderVersion)
	if mcVersion == "" || loaderVersion == "" {
		return "", fmt.Errorf("%s: minecraft and loader versions are required", loader)
	}
	switch loader {
	case LoaderFabric:
		return fmt.Sprintf("%s/versions/loader/%s/%s/server/jar", fabricMetaBase, mcVersion, loaderVersion), nil
	case LoaderQuilt:
		return fmt.Sprintf("%s/versions/loader/%s/%s/server/jar", quiltMetaBase, mcVersion, loaderVersion), nil
	case LoaderForge, LoaderNeoForge:
		return "", fmt.Errorf("%s %s: %w", loader, loaderVersion, ErrUnsupportedLoader)
	}
	return "", fmt.Errorf("unknown loader %q", loader)
}
