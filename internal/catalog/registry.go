package catalog

import (
	"time"

	"github.com/example/modpack-installer/internal/atlauncher"
	"github.com/example/modpack-installer/internal/curseforge"
	"github.com/example/modpack-installer/internal/ftb"
	"github.com/example/modpack-installer/internal/modpack"
	"github.com/example/modpack-installer/internal/modrinth"
	"github.com/example/modpack-installer/internal/technic"
	"github.com/example/modpack-installer/internal/voidswrath"
)

// DefaultAdapters builds the adapter of every provider. cf is shared with the
// install pipeline, which needs it to resolve manifest files.
func DefaultAdapters(cf *curseforge.Client, timeout time.Duration) map[modpack.Provider]Adapter {
	return map[modpack.Provider]Adapter{
		modpack.Modrinth:     modrinth.New(timeout),
		modpack.CurseForge:   cf,
		modpack.ATLauncher:   atlauncher.New(timeout),
		modpack.FeedTheBeast: ftb.New(timeout),
		modpack.Technic:      technic.New(timeout),
		modpack.VoidsWrath:   voidswrath.New(timeout),
	}
}
