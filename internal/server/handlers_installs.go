package server

import (
	"net/http"
	"strconv"

	"github.com/example/modpack-installer/internal/jobs"
)

func (s *Server) handleListInstalls(w http.ResponseWriter, r *http.Request) {
	var targetID int64
	if v := r.URL.Query().Get("target_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeUserOrServerError(w, errUser("invalid target_id"))
			return
		}
		targetID = id
	}
	list, err := jobs.ListInstalls(r.Context(), s.DB, targetID, intQuery(r, "limit", 100))
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetInstall(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	inst, err := jobs.GetInstall(r.Context(), s.DB, id)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleInstallSteps(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	if _, err := jobs.GetInstall(r.Context(), s.DB, id); err != nil {
		writeUserOrServerError(w, err)
		return
	}
	steps, err := jobs.Steps(r.Context(), s.DB, id)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, steps)
}
