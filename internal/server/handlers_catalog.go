package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/modpack-installer/internal/modpack"
)

func providerParam(r *http.Request) (modpack.Provider, error) {
	p, err := modpack.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		return "", errUser(err.Error())
	}
	return p, nil
}

func intQuery(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Catalog.Providers())
}

// handleSearch lists a page of modpacks; an empty q lists popular packs.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	p, err := providerParam(r)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	page := intQuery(r, "page", 1)
	perPage := intQuery(r, "per_page", s.Config.ResultsPerPage)
	writeJSON(w, http.StatusOK, s.Catalog.Search(r.Context(), p, q, page, perPage))
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	p, err := providerParam(r)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	d := s.Catalog.Details(r.Context(), p, chi.URLParam(r, "id"))
	if d == nil {
		writeError(w, http.StatusNotFound, "modpack not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	p, err := providerParam(r)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Catalog.Versions(r.Context(), p, chi.URLParam(r, "id")))
}

func (s *Server) handleDownloadInfo(w http.ResponseWriter, r *http.Request) {
	p, err := providerParam(r)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	info := s.Catalog.DownloadInfo(r.Context(), p, chi.URLParam(r, "id"), chi.URLParam(r, "version"))
	if info == nil {
		writeError(w, http.StatusNotFound, "version not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.Catalog.ClearCache()
	writeJSON(w, http.StatusOK, genericOKResponse{OK: true})
}
