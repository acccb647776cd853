package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/example/modpack-installer/internal/jobs"
	"github.com/example/modpack-installer/internal/modpack"
	"github.com/example/modpack-installer/internal/targets"
	"github.com/example/modpack-installer/internal/tracker"
)

type createTargetRequest struct {
	Name              string `json:"name"`
	Host              string `json:"host"`
	Port              int    `json:"port"`
	SSHUser           string `json:"ssh_user"`
	RootDir           string `json:"root_dir"`
	Unit              string `json:"unit"`
	RunAs             string `json:"run_as"`
	RCONPort          int    `json:"rcon_port"`
	RCONPassword      string `json:"rcon_password"`
	ProfilesSupported bool   `json:"profiles_supported"`
}

type installedResponse struct {
	Installed       *modpack.InstalledRecord `json:"installed"`
	LatestVersion   *modpack.Version         `json:"latest_version,omitempty"`
	UpdateAvailable bool                     `json:"update_available"`
}

type createInstallRequest struct {
	Provider       string `json:"provider"`
	ModpackID      string `json:"modpack_id"`
	VersionID      string `json:"version_id"`
	DeleteExisting bool   `json:"delete_existing"`
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errUser("invalid id")
	}
	return id, nil
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	list, err := targets.List(r.Context(), s.DB)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateTarget(w http.ResponseWriter, r *http.Request) {
	var req createTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	t := targets.Target{
		Name:              req.Name,
		Host:              req.Host,
		Port:              req.Port,
		SSHUser:           req.SSHUser,
		RootDir:           req.RootDir,
		Unit:              req.Unit,
		RunAs:             req.RunAs,
		RCONPort:          req.RCONPort,
		RCONPassword:      req.RCONPassword,
		ProfilesSupported: req.ProfilesSupported,
	}
	if err := targets.Validate(&t); err != nil {
		writeUserOrServerError(w, errUser(err.Error()))
		return
	}
	created, err := targets.Create(r.Context(), s.DB, t)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	t, err := targets.Get(r.Context(), s.DB, id)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	if err := targets.Delete(r.Context(), s.DB, id); err != nil {
		writeUserOrServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, genericOKResponse{OK: true})
}

// handleGetInstalled reads the install record from the server and compares it
// against the provider's latest version.
func (s *Server) handleGetInstalled(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	t, err := s.Targets(r.Context(), id)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	resp := installedResponse{Installed: tracker.Get(r.Context(), t.FS)}
	if resp.Installed != nil {
		resp.LatestVersion = s.Catalog.LatestVersion(r.Context(), resp.Installed.Provider, resp.Installed.ModpackID)
		if resp.LatestVersion != nil {
			resp.UpdateAvailable = tracker.HasUpdate(r.Context(), t.FS, resp.LatestVersion.ID)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearInstalled(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	t, err := s.Targets(r.Context(), id)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	if err := tracker.Clear(r.Context(), t.FS); err != nil {
		writeUserOrServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, genericOKResponse{OK: true})
}

// handleCreateInstall queues an install. Unless the target installs through
// its installer profile, the version must have a direct download.
func (s *Server) handleCreateInstall(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	var body createInstallRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	provider, err := modpack.ParseProvider(body.Provider)
	if err != nil {
		writeUserOrServerError(w, errUser(err.Error()))
		return
	}
	if body.ModpackID == "" || body.VersionID == "" {
		writeUserOrServerError(w, errUser("modpack_id and version_id are required"))
		return
	}
	if _, err := targets.Get(r.Context(), s.DB, id); err != nil {
		writeUserOrServerError(w, err)
		return
	}
	t, err := s.Targets(r.Context(), id)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}

	if !s.Installer.UsesProfile(t) {
		info := s.Catalog.DownloadInfo(r.Context(), provider, body.ModpackID, body.VersionID)
		if info == nil {
			writeError(w, http.StatusNotFound, "version not found")
			return
		}
		if !info.Direct() {
			writeUserOrServerError(w, errUser("this version has no direct download and must be installed through a launcher"))
			return
		}
	}

	inst, err := jobs.EnqueueInstall(r.Context(), s.DB, jobs.InstallRequest{
		TargetID:       id,
		Provider:       provider,
		ModpackID:      body.ModpackID,
		VersionID:      body.VersionID,
		DeleteExisting: body.DeleteExisting,
	})
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, inst)
}
