// Package tracker keeps the record of the modpack installed on a server.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/example/modpack-installer/internal/gateway"
	"github.com/example/modpack-installer/internal/modpack"
)

// FileName is the record's path relative to the server root.
const FileName = ".installed_modpack.json"

// record is the on-disk shape. Every field is required.
type record struct {
	Provider    string `json:"provider"`
	ModpackID   string `json:"modpack_id"`
	ModpackName string `json:"modpack_name"`
	VersionID   string `json:"version_id"`
	VersionName string `json:"version_name"`
	InstalledAt string `json:"installed_at"`
}

func (r record) missing() string {
	switch "" {
	case r.Provider:
		return "provider"
	case r.ModpackID:
		return "modpack_id"
	case r.ModpackName:
		return "modpack_name"
	case r.VersionID:
		return "version_id"
	case r.VersionName:
		return "version_name"
	case r.InstalledAt:
		return "installed_at"
	}
	return ""
}

// Get returns the installed record, or nil when the file is absent, is not
// JSON, or lacks a field. An unrecognised provider is kept as written and an
// unparsable installed_at becomes the zero time.
func Get(ctx context.Context, fs gateway.FS) *modpack.InstalledRecord {
	logger := log.WithField("path", "/"+FileName)
	raw, err := fs.ReadFile(ctx, "/"+FileName)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			logger.Debug("no installed modpack record")
		} else {
			logger.WithError(err).Warn("read installed modpack record")
		}
		return nil
	}
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		logger.WithError(err).Warn("installed modpack record is not valid JSON")
		return nil
	}
	if f := r.missing(); f != "" {
		logger.WithField("field", f).Warn("installed modpack record is missing a field")
		return nil
	}
	provider, err := modpack.ParseProvider(r.Provider)
	if err != nil {
		logger.WithError(err).Warn("installed modpack record has an unknown provider")
		provider = modpack.Provider(r.Provider)
	}
	at, err := time.Parse(time.RFC3339, r.InstalledAt)
	if err != nil {
		logger.WithError(err).Warn("installed modpack record has a bad timestamp")
		at = time.Time{}
	}
	return &modpack.InstalledRecord{
		Provider:    provider,
		ModpackID:   r.ModpackID,
		ModpackName: r.ModpackName,
		VersionID:   r.VersionID,
		VersionName: r.VersionName,
		InstalledAt: at,
	}
}

// Save overwrites the record. Concurrent writers race; the last one wins.
func Save(ctx context.Context, fs gateway.FS, rec modpack.InstalledRecord) error {
	if rec.InstalledAt.IsZero() {
		rec.InstalledAt = time.Now()
	}
	r := record{
		Provider:    string(rec.Provider),
		ModpackID:   rec.ModpackID,
		ModpackName: rec.ModpackName,
		VersionID:   rec.VersionID,
		VersionName: rec.VersionName,
		InstalledAt: rec.InstalledAt.UTC().Format(time.RFC3339),
	}
	if f := r.missing(); f != "" {
		return fmt.Errorf("installed record: %s is required", f)
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := fs.WriteFile(ctx, "/"+FileName, b); err != nil {
		return fmt.Errorf("save installed record: %w", err)
	}
	log.WithFields(log.Fields{
		"provider": r.Provider,
		"modpack":  r.ModpackID,
		"version":  r.VersionID,
	}).Info("installed modpack recorded")
	return nil
}

// HasUpdate reports whether latestVersionID differs from the installed version.
// Versions are compared by id only.
func HasUpdate(ctx context.Context, fs gateway.FS, latestVersionID string) bool {
	rec := Get(ctx, fs)
	if rec == nil {
		return false
	}
	return rec.VersionID != latestVersionID
}

// Clear removes the record. A missing record is not an error.
func Clear(ctx context.Context, fs gateway.FS) error {
	if err := fs.DeleteFiles(ctx, "/", []string{FileName}); err != nil && !errors.Is(err, gateway.ErrNotFound) {
		return fmt.Errorf("clear installed record: %w", err)
	}
	return nil
}
