package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/example/modpack-installer/internal/catalog"
	"github.com/example/modpack-installer/internal/curseforge"
	"github.com/example/modpack-installer/internal/db"
	"github.com/example/modpack-installer/internal/installer"
)

// openDB opens and migrates the configured database.
func openDB(ctx context.Context) (*db.DB, error) {
	d, err := db.Open(globalConfig.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := d.Migrate(ctx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return d, nil
}

// newCurseForge builds the CurseForge client with the stored key, or the
// configured one when nothing is stored.
func newCurseForge(ctx context.Context, d *db.DB) *curseforge.Client {
	key, err := globalConfig.EffectiveAPIKey(ctx, d)
	if err != nil {
		log.WithError(err).Warn("stored curseforge api key unusable, falling back to config")
		key = globalConfig.APIKey
	}
	return curseforge.New(key, globalConfig.RequestTimeout())
}

func newCatalog(cf *curseforge.Client) *catalog.Manager {
	adapters := catalog.DefaultAdapters(cf, globalConfig.RequestTimeout())
	return catalog.NewManager(adapters, catalog.NewMemoryCache(), globalConfig.CacheTTL())
}

func newInstaller(cat *catalog.Manager, cf *curseforge.Client) *installer.Installer {
	ins := installer.New(cat, cf)
	ins.Timings = globalConfig.Timings()
	ins.Backup = globalConfig.Install.Backup
	ins.ProfileEnabled = globalConfig.Install.ProfileEnabled
	ins.InstallerProfile = globalConfig.Install.InstallerProfile
	ins.RuntimeProfile = globalConfig.Install.RuntimeProfile
	return ins
}

// catalogOnly opens just enough to query the catalogs.
func catalogOnly(ctx context.Context) (*catalog.Manager, func(), error) {
	d, err := openDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	return newCatalog(newCurseForge(ctx, d)), func() { _ = d.Close() }, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
