package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/example/modpack-installer/internal/auth"
)

// AuthMiddleware requires a bearer token matching the stored API token.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		err := auth.CheckToken(r.Context(), s.DB, strings.TrimSpace(token))
		switch {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, auth.ErrNoToken):
			writeError(w, http.StatusUnauthorized, "api token not configured, run `modpack-installer token set`")
		case errors.Is(err, auth.ErrInvalidCredentials):
			log.WithField("request_id", getRequestID(r)).Warn("rejected request with invalid token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
		default:
			writeUserOrServerError(w, err)
		}
	})
}

// getRequestID pulls the request ID for logging.
func getRequestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return middleware.GetReqID(r.Context())
}
