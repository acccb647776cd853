package installer

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/example/modpack-installer/internal/gateway"
	"github.com/example/modpack-installer/internal/modpack"
	"github.com/example/modpack-installer/internal/tracker"
)

const StepRecord = "record"

// Catalog is the subset of the catalog manager the installer reads.
type Catalog interface {
	DownloadResolver
	Details(ctx context.Context, provider modpack.Provider, id string) *modpack.Details
	Versions(ctx context.Context, provider modpack.Provider, id string) []modpack.Version
}

// Target is a server an install runs against. Power and Backup are optional.
type Target struct {
	FS                gateway.FS
	Power             gateway.Power
	Backup            gateway.Backuper
	ProfilesSupported bool
}

// Installer picks the install strategy for a target and records the outcome.
type Installer struct {
	Catalog    Catalog
	CurseForge FileURLResolver
	Timings    Timings

	// ProfileEnabled prefers the installer profile on targets that support it.
	ProfileEnabled   bool
	InstallerProfile string
	RuntimeProfile   string
	// Backup requests a snapshot before every direct install.
	Backup bool
}

func New(c Catalog, cf FileURLResolver) *Installer {
	return &Installer{Catalog: c, CurseForge: cf, Timings: DefaultTimings()}
}

// Install runs req against t. onStep, when non-nil, sees every step as it completes.
func (i *Installer) Install(ctx context.Context, t Target, req Request, onStep func(Step)) *Result {
	var res *Result
	if i.UsesProfile(t) {
		p := &ProfileInstaller{
			Power:            t.Power,
			FS:               t.FS,
			InstallerProfile: i.InstallerProfile,
			RuntimeProfile:   i.RuntimeProfile,
			Timings:          i.Timings,
			OnStep:           onStep,
		}
		res = p.Run(ctx, req)
	} else {
		req.Backup = req.Backup || i.Backup
		p := &Pipeline{
			Catalog:    i.Catalog,
			CurseForge: i.CurseForge,
			Backup:     t.Backup,
			Timings:    i.Timings,
			OnStep:     onStep,
		}
		res = p.Run(ctx, t.FS, req)
	}
	if !res.Success {
		return res
	}

	rec := i.record(ctx, req)
	s := Step{Name: StepRecord, Status: StatusCompleted, Detail: rec.ModpackName + " " + rec.VersionName}
	if err := tracker.Save(ctx, t.FS, rec); err != nil {
		log.WithError(err).Warn("install succeeded but the record could not be saved")
		s.Status, s.Detail = StatusFailed, err.Error()
	}
	res.Steps = append(res.Steps, s)
	if onStep != nil {
		onStep(s)
	}
	return res
}

// record names the installed pack, falling back to ids when the catalog has no names.
func (i *Installer) record(ctx context.Context, req Request) modpack.InstalledRecord {
	rec := modpack.InstalledRecord{
		Provider:    req.Provider,
		ModpackID:   req.ModpackID,
		ModpackName: req.ModpackID,
		VersionID:   req.VersionID,
		VersionName: req.VersionID,
		InstalledAt: time.Now().UTC().Truncate(time.Second),
	}
	if d := i.Catalog.Details(ctx, req.Provider, req.ModpackID); d != nil && d.Name != "" {
		rec.ModpackName = d.Name
	}
	for _, v := range i.Catalog.Versions(ctx, req.Provider, req.ModpackID) {
		if v.ID == req.VersionID && v.Name != "" {
			rec.VersionName = v.Name
			break
		}
	}
	return rec
}

// UsesProfile reports whether installs on t go through the installer profile,
// which fetches the pack itself and so needs no direct download.
func (i *Installer) UsesProfile(t Target) bool {
	return i.ProfileEnabled && t.ProfilesSupported && t.Power != nil
}

// CanInstall reports whether the version has a direct download.
func (i *Installer) CanInstall(ctx context.Context, provider modpack.Provider, id, versionID string) bool {
	return i.Catalog.DownloadInfo(ctx, provider, id, versionID).Direct()
}
