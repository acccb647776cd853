package server

import (
	"encoding/json"
	"net/http"

	"github.com/example/modpack-installer/internal/config"
)

type curseForgeSettingsRequest struct {
	APIKey string `json:"api_key"`
}

type curseForgeSettingsResponse struct {
	APIKeySet bool `json:"api_key_set"`
}

func (s *Server) handleGetCurseForgeSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, curseForgeSettingsResponse{APIKeySet: s.CurseForge.HasAPIKey()})
}

// handlePutCurseForgeSettings stores the key and swaps it into the live client.
// A blank key falls back to the configured one.
func (s *Server) handlePutCurseForgeSettings(w http.ResponseWriter, r *http.Request) {
	var req curseForgeSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := config.SaveCurseForgeAPIKey(r.Context(), s.DB, s.Config.EncKey, req.APIKey); err != nil {
		writeUserOrServerError(w, err)
		return
	}
	key, err := s.Config.EffectiveAPIKey(r.Context(), s.DB)
	if err != nil {
		writeUserOrServerError(w, err)
		return
	}
	s.CurseForge.SetAPIKey(key)
	s.Catalog.ClearCache()
	writeJSON(w, http.StatusOK, curseForgeSettingsResponse{APIKeySet: s.CurseForge.HasAPIKey()})
}
