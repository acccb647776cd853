// Package installer drives a modpack install on a remote server.
//
// The remote filesystem has no completion signals, so the pipeline settles
// with fixed delays after fire-and-forget operations. Only download
// resolution and the initial fetch abort an install; every other step logs
// its failure and the install continues.
package installer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"

	"github.com/example/modpack-installer/internal/curseforge"
	"github.com/example/modpack-installer/internal/gateway"
	"github.com/example/modpack-installer/internal/minecraft"
	"github.com/example/modpack-installer/internal/modpack"
)

var (
	ErrDownloadInfoUnavailable = errors.New("download info unavailable")
	ErrRequiresLauncher        = errors.New("modpack requires its launcher and cannot be installed automatically")
	ErrFetchFailed             = errors.New("fetch failed")
)

// Step names, in execution order.
const (
	StepResolveDownload   = "resolve_download"
	StepBackup            = "backup"
	StepWipe              = "wipe"
	StepFetch             = "fetch"
	StepDeriveFilename    = "derive_filename"
	StepClassify          = "classify"
	StepDecompress        = "decompress"
	StepDetectFormat      = "detect_format"
	StepModrinthIndex     = "modrinth_index"
	StepModrinthLoader    = "modrinth_loader"
	StepClearMods         = "clear_mods"
	StepDownloadMods      = "download_mods"
	StepRelocateOverrides = "relocate_overrides"
	StepRemoveExtracted   = "remove_extracted"
	StepCleanup           = "cleanup"
)

// Pack formats reported in Result.Format.
const (
	FormatModrinth   = "modrinth"
	FormatCurseForge = "curseforge"
	FormatGeneric    = "generic"
	FormatRaw        = "raw"
)

const (
	modrinthIndexFile = "modrinth.index.json"
	manifestFile      = "manifest.json"
	loaderTempDir     = "/.modpack-loader"
	serverJar         = "server.jar"
)

// Timings are the settle and poll delays used against the remote daemon.
type Timings struct {
	DecompressSettle time.Duration
	FileOpSettle     time.Duration
	ReinstallSettle  time.Duration
	OfflineTimeout   time.Duration
	OfflinePoll      time.Duration
	FetchPoll        time.Duration
	FetchTimeout     time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		DecompressSettle: 3 * time.Second,
		FileOpSettle:     2 * time.Second,
		ReinstallSettle:  10 * time.Second,
		OfflineTimeout:   60 * time.Second,
		OfflinePoll:      time.Second,
		FetchPoll:        time.Second,
		FetchTimeout:     30 * time.Second,
	}
}

type StepStatus string

const (
	StatusCompleted StepStatus = "completed"
	StatusSkipped   StepStatus = "skipped"
	StatusFailed    StepStatus = "failed"
)

type Step struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// Request names the modpack version to install.
type Request struct {
	Provider       modpack.Provider `json:"provider"`
	ModpackID      string           `json:"modpack_id"`
	VersionID      string           `json:"version_id"`
	DeleteExisting bool             `json:"delete_existing"`
	Backup         bool             `json:"backup"`
}

type Result struct {
	Steps        []Step `json:"steps"`
	Success      bool   `json:"success"`
	Reason       string `json:"reason,omitempty"`
	Filename     string `json:"filename,omitempty"`
	Format       string `json:"format,omitempty"`
	ManifestHash string `json:"manifest_hash,omitempty"`
	// Err is the hard failure, for errors.Is checks.
	Err error `json:"-"`
}

// DownloadResolver is the catalog lookup the pipeline starts from.
type DownloadResolver interface {
	DownloadInfo(ctx context.Context, provider modpack.Provider, id, versionID string) *modpack.DownloadInfo
}

// FileURLResolver resolves CurseForge manifest entries to download URLs.
type FileURLResolver interface {
	HasAPIKey() bool
	ResolveFileDownloadURL(ctx context.Context, projectID, fileID int) (string, error)
}

// Pipeline installs an archive by manipulating the server's files directly.
type Pipeline struct {
	Catalog    DownloadResolver
	CurseForge FileURLResolver
	Backup     gateway.Backuper
	Timings    Timings
	OnStep     func(Step)
}

// ClassifyArchive reports whether name has an extension the gateway can decompress.
func ClassifyArchive(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range []string{".zip", ".mrpack", ".tar", ".gz", ".rar", ".7z", ".bz2", ".xz"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// DecompressName is the name an archive must carry for decompression:
// .mrpack files are zips the daemon only recognises by extension.
func DecompressName(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".mrpack") {
		return name[:len(name)-len(".mrpack")] + ".zip"
	}
	return name
}

// FilenameFromURL is the decoded basename of the URL path, or "".
func FilenameFromURL(rawURL string) string {
	return gateway.BaseNameFromURL(rawURL)
}

// packDirName is the directory an archive extracts into when it wraps its content.
func packDirName(filename string) string {
	lower := strings.ToLower(filename)
	for _, ext := range []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tgz"} {
		if strings.HasSuffix(lower, ext) {
			return filename[:len(filename)-len(ext)]
		}
	}
	return strings.TrimSuffix(filename, path.Ext(filename))
}

func manifestHash(raw []byte) string {
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// run carries one pipeline execution.
type run struct {
	ctx    context.Context
	p      *Pipeline
	fs     gateway.FS
	res    *Result
	logger *log.Entry

	filename string
	packDir  string
}

func (r *run) step(name string, status StepStatus, detail string) {
	s := Step{Name: name, Status: status, Detail: detail}
	r.res.Steps = append(r.res.Steps, s)
	entry := r.logger.WithField("step", name)
	switch status {
	case StatusFailed:
		entry.Warn(detail)
	default:
		entry.WithField("status", status).Info(detail)
	}
	if r.p.OnStep != nil {
		r.p.OnStep(s)
	}
}

func (r *run) fail(name string, err error) *Result {
	r.step(name, StatusFailed, err.Error())
	r.res.Success = false
	r.res.Reason = err.Error()
	r.res.Err = err
	return r.res
}

// Run installs req onto fs. The returned Result is never nil.
func (p *Pipeline) Run(ctx context.Context, fs gateway.FS, req Request) *Result {
	r := &run{
		ctx: ctx,
		p:   p,
		fs:  fs,
		res: &Result{},
		logger: log.WithFields(log.Fields{
			"provider": req.Provider,
			"modpack":  req.ModpackID,
			"version":  req.VersionID,
		}),
	}

	info := p.Catalog.DownloadInfo(ctx, req.Provider, req.ModpackID, req.VersionID)
	if info == nil {
		return r.fail(StepResolveDownload, ErrDownloadInfoUnavailable)
	}
	if !info.Direct() {
		return r.fail(StepResolveDownload, ErrRequiresLauncher)
	}
	url := *info.URL
	r.step(StepResolveDownload, StatusCompleted, url)

	r.backup(req)
	if req.DeleteExisting {
		r.wipe()
	} else {
		r.step(StepWipe, StatusSkipped, "existing files kept")
	}

	r.filename = FilenameFromURL(url)
	r.res.Filename = r.filename
	isArchive := r.filename != "" && ClassifyArchive(r.filename)
	cleanup := []string{r.filename}
	if isArchive {
		defer func() { r.cleanup(cleanup) }()
	}

	if err := fs.PullURL(ctx, url, "/"); err != nil {
		return r.fail(StepFetch, fmt.Errorf("%w: %v", ErrFetchFailed, err))
	}
	if r.filename != "" {
		if err := r.waitExists("/" + r.filename); err != nil {
			return r.fail(StepFetch, fmt.Errorf("%w: %v", ErrFetchFailed, err))
		}
	}
	r.step(StepFetch, StatusCompleted, url)

	if r.filename == "" {
		r.step(StepDeriveFilename, StatusSkipped, "download URL has no file name")
		r.res.Format = FormatRaw
		r.res.Success = true
		return r.res
	}
	r.step(StepDeriveFilename, StatusCompleted, r.filename)

	if !isArchive {
		r.step(StepClassify, StatusCompleted, "not an archive, installed as is")
		r.res.Format = FormatRaw
		r.res.Success = true
		return r.res
	}
	r.step(StepClassify, StatusCompleted, "archive")
	r.packDir = packDirName(r.filename)

	if name := r.decompress(); name != r.filename {
		cleanup = append(cleanup, name)
	}

	switch raw, base := r.locate(modrinthIndexFile); {
	case raw != nil:
		r.res.Format = FormatModrinth
		r.res.ManifestHash = manifestHash(raw)
		r.step(StepDetectFormat, StatusCompleted, path.Join(base, modrinthIndexFile))
		r.modrinth(raw, base)
	default:
		raw, base = r.locate(manifestFile)
		if raw == nil {
			r.res.Format = FormatGeneric
			r.step(StepDetectFormat, StatusCompleted, "no pack manifest, applying overrides only")
			r.generic()
			break
		}
		r.res.Format = FormatCurseForge
		r.res.ManifestHash = manifestHash(raw)
		r.step(StepDetectFormat, StatusCompleted, path.Join(base, manifestFile))
		r.curseForge(raw, base)
	}

	r.res.Success = true
	return r.res
}

func (r *run) backup(req Request) {
	if !req.Backup || r.p.Backup == nil {
		r.step(StepBackup, StatusSkipped, "backup not requested")
		return
	}
	name := fmt.Sprintf("pre-install-%s-%s", time.Now().UTC().Format("20060102-150405"), uuid.NewString()[:8])
	if err := r.p.Backup.Backup(r.ctx, name); err != nil {
		r.step(StepBackup, StatusFailed, fmt.Sprintf("backup %s: %v", name, err))
		return
	}
	r.step(StepBackup, StatusCompleted, name)
}

// entryNames drops the "." and ".." rows some daemons return.
func entryNames(entries []gateway.Entry) []string {
	var names []string
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." || e.Name == "" {
			continue
		}
		names = append(names, e.Name)
	}
	return names
}

// wipe deletes everything at the server root. Without a listing nothing is deleted.
func (r *run) wipe() {
	entries, err := r.fs.ListDirectory(r.ctx, "/")
	if err != nil {
		r.step(StepWipe, StatusFailed, fmt.Sprintf("list /: %v", err))
		return
	}
	names := entryNames(entries)
	if len(names) == 0 {
		r.step(StepWipe, StatusCompleted, "server root already empty")
		return
	}
	if err := r.fs.DeleteFiles(r.ctx, "/", names); err != nil {
		r.step(StepWipe, StatusFailed, fmt.Sprintf("delete: %v", err))
		return
	}
	r.step(StepWipe, StatusCompleted, fmt.Sprintf("%d entries deleted", len(names)))
}

// waitExists polls until p exists or FetchTimeout elapses.
func (r *run) waitExists(p string) error {
	deadline := time.Now().Add(r.p.Timings.FetchTimeout)
	for {
		ok, err := r.fs.Exists(r.ctx, p)
		if err == nil && ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			if err != nil {
				return fmt.Errorf("%s not found: %v", p, err)
			}
			return fmt.Errorf("%s not found after %s", p, r.p.Timings.FetchTimeout)
		}
		if err := sleep(r.ctx, r.p.Timings.FetchPoll); err != nil {
			return err
		}
	}
}

// decompress extracts the archive in place and returns the name it extracted under.
func (r *run) decompress() string {
	name := DecompressName(r.filename)
	if name != r.filename {
		if err := r.fs.Move(r.ctx, "/"+r.filename, "/"+name); err != nil {
			r.logger.WithError(err).WithField("path", "/"+r.filename).Warn("rename for decompression failed, using original name")
			name = r.filename
		}
	}
	if err := r.fs.Decompress(r.ctx, "/", name); err != nil {
		r.step(StepDecompress, StatusFailed, fmt.Sprintf("decompress %s: %v", name, err))
		return name
	}
	if err := sleep(r.ctx, r.p.Timings.DecompressSettle); err != nil {
		r.step(StepDecompress, StatusFailed, err.Error())
		return name
	}
	r.step(StepDecompress, StatusCompleted, name)
	return name
}

// locate reads file from the root, else from the pack directory. It returns
// the content and the directory it was found in, or nil.
func (r *run) locate(file string) ([]byte, string) {
	for _, dir := range r.packDirs() {
		raw, err := r.fs.ReadFile(r.ctx, gateway.Join(dir, file))
		if err == nil {
			return raw, dir
		}
	}
	return nil, ""
}

func (r *run) packDirs() []string {
	if r.packDir == "" {
		return []string{"/"}
	}
	return []string{"/", gateway.Join("/", r.packDir)}
}

func (r *run) clearMods() {
	if err := r.fs.DeleteFiles(r.ctx, "/", []string{"mods"}); err != nil {
		r.step(StepClearMods, StatusFailed, fmt.Sprintf("delete /mods: %v", err))
		return
	}
	if err := r.fs.CreateDirectory(r.ctx, "/mods"); err != nil {
		r.step(StepClearMods, StatusFailed, fmt.Sprintf("create /mods: %v", err))
		return
	}
	r.step(StepClearMods, StatusCompleted, "/mods")
}

// relocate moves every entry of dir to the server root, one move per entry.
// It returns the number of entries moved; a missing or empty dir moves nothing.
func (r *run) relocate(dir string) int {
	entries, err := r.fs.ListDirectory(r.ctx, dir)
	if err != nil {
		r.logger.WithError(err).WithField("path", dir).Debug("no overrides here")
		return 0
	}
	moved := 0
	for _, name := range entryNames(entries) {
		from := gateway.Join(dir, name)
		if err := r.fs.Move(r.ctx, from, gateway.Join("/", name)); err != nil {
			r.logger.WithError(err).WithField("path", from).Warn("override move failed")
			continue
		}
		moved++
	}
	return moved
}

// relocateFirst applies the first overrides directory in dirs that yields entries.
func (r *run) relocateFirst(dirs []string) {
	seen := map[string]bool{}
	for _, dir := range dirs {
		dir = gateway.Clean(dir)
		if seen[dir] || dir == "/" {
			continue
		}
		seen[dir] = true
		if n := r.relocate(dir); n > 0 {
			if dir == "/overrides" {
				if err := r.fs.DeleteFiles(r.ctx, "/", []string{"overrides"}); err != nil {
					r.logger.WithError(err).Warn("remove /overrides")
				}
			}
			r.step(StepRelocateOverrides, StatusCompleted, fmt.Sprintf("%d entries from %s", n, dir))
			return
		}
	}
	r.step(StepRelocateOverrides, StatusSkipped, "no overrides")
}

func (r *run) removeExtracted(extra ...string) {
	names := append([]string{}, extra...)
	if r.packDir != "" {
		names = append(names, r.packDir)
	}
	if len(names) == 0 {
		r.step(StepRemoveExtracted, StatusSkipped, "nothing extracted")
		return
	}
	if err := r.fs.DeleteFiles(r.ctx, "/", names); err != nil {
		r.step(StepRemoveExtracted, StatusFailed, fmt.Sprintf("delete %s: %v", strings.Join(names, ", "), err))
		return
	}
	r.step(StepRemoveExtracted, StatusCompleted, strings.Join(names, ", "))
}

// cleanup deletes the downloaded archive under each name it carried.
func (r *run) cleanup(names []string) {
	seen := map[string]bool{}
	var unique []string
	for _, n := range names {
		if n != "" && !seen[n] {
			seen[n] = true
			unique = append(unique, n)
		}
	}
	if err := r.fs.DeleteFiles(r.ctx, "/", unique); err != nil {
		r.step(StepCleanup, StatusFailed, fmt.Sprintf("delete %s: %v", strings.Join(unique, ", "), err))
		return
	}
	r.step(StepCleanup, StatusCompleted, strings.Join(unique, ", "))
}

type modrinthIndex struct {
	FormatVersion int    `json:"formatVersion"`
	Name          string `json:"name"`
	VersionID     string `json:"versionId"`
	Files         []struct {
		Path      string   `json:"path"`
		Downloads []string `json:"downloads"`
		Env       *struct {
			Server string `json:"server"`
		} `json:"env"`
	} `json:"files"`
	Dependencies map[string]string `json:"dependencies"`
}

func (r *run) modrinth(raw []byte, base string) {
	var idx modrinthIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		r.step(StepModrinthIndex, StatusFailed, fmt.Sprintf("parse %s: %v", modrinthIndexFile, err))
		r.relocateFirst([]string{"/overrides", gateway.Join("/", r.packDir, "overrides")})
		r.removeExtracted()
		return
	}

	r.installLoader(idx.Dependencies)
	r.clearMods()

	pulled, failed := 0, 0
	for _, f := range idx.Files {
		if f.Env != nil && f.Env.Server == "unsupported" {
			continue
		}
		if len(f.Downloads) == 0 || f.Path == "" {
			continue
		}
		if err := r.pullTo(f.Downloads[0], gateway.Clean(f.Path)); err != nil {
			r.logger.WithError(err).WithField("path", f.Path).Warn("mod download failed")
			failed++
			continue
		}
		pulled++
	}
	r.modsStep(pulled, failed)

	if err := sleep(r.ctx, r.p.Timings.FileOpSettle); err != nil {
		r.logger.WithError(err).Warn("settle interrupted")
	}
	r.relocateFirst([]string{"/overrides", gateway.Join("/", r.packDir, "overrides")})

	var extra []string
	if base == "/" {
		extra = append(extra, modrinthIndexFile)
	}
	r.removeExtracted(extra...)
}

func (r *run) modsStep(pulled, failed int) {
	detail := fmt.Sprintf("%d pulled, %d failed", pulled, failed)
	if failed > 0 {
		r.step(StepDownloadMods, StatusFailed, detail)
		return
	}
	r.step(StepDownloadMods, StatusCompleted, detail)
}

// pullTo downloads rawURL so that it ends up at dest.
func (r *run) pullTo(rawURL, dest string) error {
	dir := path.Dir(dest)
	if err := r.fs.PullURL(r.ctx, rawURL, dir); err != nil {
		return err
	}
	got := FilenameFromURL(rawURL)
	if got == "" || got == path.Base(dest) {
		return nil
	}
	return r.fs.Move(r.ctx, gateway.Join(dir, got), dest)
}

func (r *run) installLoader(deps map[string]string) {
	loader, version, ok := minecraft.LoaderFromDependencies(deps)
	if !ok {
		r.step(StepModrinthLoader, StatusSkipped, "pack declares no loader")
		return
	}
	jarURL, err := minecraft.ServerJarURL(loader, deps["minecraft"], version)
	if errors.Is(err, minecraft.ErrUnsupportedLoader) {
		r.step(StepModrinthLoader, StatusSkipped, err.Error())
		return
	}
	if err != nil {
		r.step(StepModrinthLoader, StatusFailed, err.Error())
		return
	}
	if err := r.loaderJar(jarURL); err != nil {
		r.step(StepModrinthLoader, StatusFailed, fmt.Sprintf("%s %s: %v", loader, version, err))
		return
	}
	r.step(StepModrinthLoader, StatusCompleted, fmt.Sprintf("%s %s", loader, version))
}

func (r *run) loaderJar(jarURL string) error {
	defer func() {
		if err := r.fs.DeleteFiles(r.ctx, "/", []string{strings.TrimPrefix(loaderTempDir, "/")}); err != nil {
			r.logger.WithError(err).WithField("path", loaderTempDir).Warn("remove loader temp dir")
		}
	}()
	if err := r.fs.CreateDirectory(r.ctx, loaderTempDir); err != nil {
		return err
	}
	if err := r.fs.PullURL(r.ctx, jarURL, loaderTempDir); err != nil {
		return err
	}
	if err := sleep(r.ctx, r.p.Timings.FileOpSettle); err != nil {
		return err
	}
	entries, err := r.fs.ListDirectory(r.ctx, loaderTempDir)
	if err != nil {
		return err
	}
	jar := pickJar(entries)
	if jar == "" {
		return fmt.Errorf("no jar downloaded from %s", jarURL)
	}
	if err := r.fs.DeleteFiles(r.ctx, "/", []string{serverJar}); err != nil {
		r.logger.WithError(err).Debug("no previous server.jar")
	}
	if err := r.fs.Move(r.ctx, gateway.Join(loaderTempDir, jar), "/"+serverJar); err != nil {
		return err
	}
	sh, bat := minecraft.RunScripts(serverJar)
	if err := r.fs.WriteFile(r.ctx, "/run.sh", []byte(sh)); err != nil {
		return err
	}
	return r.fs.WriteFile(r.ctx, "/run.bat", []byte(bat))
}

// pickJar prefers a .jar file; meta servers may serve one without the extension.
func pickJar(entries []gateway.Entry) string {
	var files []string
	for _, e := range entries {
		if !e.IsFile {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name), ".jar") {
			return e.Name
		}
		files = append(files, e.Name)
	}
	if len(files) == 1 {
		return files[0]
	}
	return ""
}

func (r *run) curseForge(raw []byte, base string) {
	var m curseforge.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		r.logger.WithError(err).Warn("manifest.json is not valid, applying overrides only")
		r.res.Format = FormatGeneric
		r.generic()
		return
	}

	r.clearMods()

	cf := r.p.CurseForge
	if cf == nil || !cf.HasAPIKey() {
		r.step(StepDownloadMods, StatusSkipped, curseforge.ErrAPIKeyMissing.Error())
	} else {
		pulled, failed := 0, 0
		for _, f := range m.Files {
			if !f.IsRequired() || f.ProjectID == 0 || f.FileID == 0 {
				continue
			}
			logger := r.logger.WithFields(log.Fields{"project_id": f.ProjectID, "file_id": f.FileID})
			u, err := cf.ResolveFileDownloadURL(r.ctx, f.ProjectID, f.FileID)
			if err != nil {
				logger.WithError(err).Warn("resolve mod download url")
				failed++
				continue
			}
			if err := r.fs.PullURL(r.ctx, u, "/mods"); err != nil {
				logger.WithError(err).Warn("mod download failed")
				failed++
				continue
			}
			pulled++
		}
		r.modsStep(pulled, failed)
	}

	r.relocateFirst([]string{
		gateway.Join(base, m.OverridesDir()),
		"/overrides",
		gateway.Join("/", r.packDir, "overrides"),
	})

	var extra []string
	if base == "/" {
		extra = append(extra, manifestFile)
	}
	r.removeExtracted(extra...)
}

func (r *run) generic() {
	r.relocateFirst([]string{"/overrides", gateway.Join("/", r.packDir, "overrides")})
	r.removeExtracted()
}
