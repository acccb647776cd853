package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/example/modpack-installer/internal/catalog"
	"github.com/example/modpack-installer/internal/config"
	"github.com/example/modpack-installer/internal/curseforge"
	"github.com/example/modpack-installer/internal/db"
	"github.com/example/modpack-installer/internal/installer"
	"github.com/example/modpack-installer/internal/jobs"
)

// Server bundles all dependencies of the HTTP API.
type Server struct {
	DB         *db.DB
	Config     *config.Config
	Catalog    *catalog.Manager
	CurseForge *curseforge.Client
	Installer  *installer.Installer
	// Targets opens the gateway of a registered target.
	Targets jobs.TargetFunc
	Router  *chi.Mux
}

// New wires the routes. The database must already be migrated.
func New(database *db.DB, cfg *config.Config, cat *catalog.Manager, cf *curseforge.Client, ins *installer.Installer, tf jobs.TargetFunc) *Server {
	s := &Server{DB: database, Config: cfg, Catalog: cat, CurseForge: cf, Installer: ins, Targets: tf}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware)

			r.Get("/providers", s.handleProviders)
			r.Get("/providers/{provider}/modpacks", s.handleSearch)
			r.Get("/providers/{provider}/modpacks/{id}", s.handleDetails)
			r.Get("/providers/{provider}/modpacks/{id}/versions", s.handleVersions)
			r.Get("/providers/{provider}/modpacks/{id}/versions/{version}/download", s.handleDownloadInfo)
			r.Post("/cache/clear", s.handleClearCache)

			r.Get("/settings/curseforge", s.handleGetCurseForgeSettings)
			r.Put("/settings/curseforge", s.handlePutCurseForgeSettings)

			r.Get("/targets", s.handleListTargets)
			r.Post("/targets", s.handleCreateTarget)
			r.Get("/targets/{id}", s.handleGetTarget)
			r.Delete("/targets/{id}", s.handleDeleteTarget)
			r.Get("/targets/{id}/installed", s.handleGetInstalled)
			r.Delete("/targets/{id}/installed", s.handleClearInstalled)
			r.Post("/targets/{id}/installs", s.handleCreateInstall)

			r.Get("/installs", s.handleListInstalls)
			r.Get("/installs/{id}", s.handleGetInstall)
			r.Get("/installs/{id}/steps", s.handleInstallSteps)
		})
	})

	s.Router = r
	return s
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type genericOKResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

type userError struct{ msg string }

func (e userError) Error() string { return e.msg }

func errUser(msg string) error { return userError{msg: msg} }

func writeUserOrServerError(w http.ResponseWriter, err error) {
	var ue userError
	switch {
	case errors.As(err, &ue):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
