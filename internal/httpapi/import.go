package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/RBarbieri13/decant/internal/core"
	"github.com/RBarbieri13/decant/internal/orchestrator"
)

type importRequest struct {
	URL          string `json:"url"`
	ForceRefresh bool   `json:"forceRefresh"`
	Priority     string `json:"priority"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, core.NewError("httpapi.handleImport", core.KindValidationFailed, "invalid request body", err))
		return
	}

	start := time.Now()
	result, err := s.Orchestrator.Import(r.Context(), orchestrator.ImportInput{
		URL: req.URL, ForceRefresh: req.ForceRefresh, Priority: req.Priority,
	})
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.observeImport("error", start)
		}
		s.writeError(w, r, err)
		return
	}
	if s.Metrics != nil {
		outcome := "created"
		if result.Cached {
			outcome = "cached"
		}
		s.Metrics.observeImport(outcome, start)
	}

	node, _ := s.Store.ReadNode(r.Context(), result.NodeID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"nodeId":         result.NodeID,
		"cached":         result.Cached,
		"node":           node,
		"classification": result.Classification,
		"hierarchyCodes": result.HierarchyCodes,
		"metadata":       result.Metadata,
		"phase2":         result.Phase2,
	})
}

func (s *Server) handleImportCheck(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	normalized := orchestrator.NormalizeURL(url)

	if entry, ok := s.Orchestrator.Cache.Get(normalized); ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"exists": true, "cached": true, "nodeId": entry.NodeID, "cachedAt": entry.CachedAt,
		})
		return
	}
	if node, err := s.Store.FindNodeByURL(r.Context(), url); err == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"exists": true, "cached": false, "nodeId": node.ID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exists": false, "cached": false})
}

func (s *Server) handleImportCacheDelete(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	normalized := orchestrator.NormalizeURL(url)
	_, existed := s.Orchestrator.Cache.Get(normalized)
	s.Orchestrator.Cache.Invalidate(normalized)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "invalidated": existed})
}

func (s *Server) handleImportCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"note": "in-process cache, no cross-instance stats"})
}
