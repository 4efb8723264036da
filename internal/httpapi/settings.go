package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/RBarbieri13/decant/internal/core"
)

type setAPIKeyRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// handleSetAPIKey stores a user-supplied credential (e.g. "openai",
// "github", "twitter") encrypted at rest via internal/keystore
// (spec.md §6, §7's API-key-missing/invalid-format error kinds).
func (s *Server) handleSetAPIKey(w http.ResponseWriter, r *http.Request) {
	var req setAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, core.NewError("httpapi.handleSetAPIKey", core.KindValidationFailed, "invalid request body", err))
		return
	}
	if req.Name == "" || req.Value == "" {
		s.writeError(w, r, core.NewError("httpapi.handleSetAPIKey", core.KindValidationFailed, "name and value are required", nil))
		return
	}
	if err := s.Keystore.Set(req.Name, req.Value); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "name": req.Name})
}

// handleListAPIKeys returns only the configured key names, never values.
func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"names": s.Keystore.Names()})
}

func (s *Server) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		s.writeError(w, r, core.NewError("httpapi.handleDeleteAPIKey", core.KindValidationFailed, "name is required", nil))
		return
	}
	if err := s.Keystore.Delete(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
