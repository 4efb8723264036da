package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/RBarbieri13/decant/internal/core"
	"github.com/RBarbieri13/decant/internal/storage"
)

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := storage.Pagination{}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		p.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		p.Limit = limit
	}
	results, err := s.Store.SearchNodes(r.Context(), "", p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": results})
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	node, err := s.Store.ReadNode(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

type updateNodeRequest struct {
	Title             *string                `json:"title"`
	Company           *string                `json:"company"`
	PhraseDescription *string                `json:"phraseDescription"`
	ShortDescription  *string                `json:"shortDescription"`
	AISummary         *string                `json:"aiSummary"`
	ExtractedFields   map[string]interface{} `json:"extractedFields"`
	MetadataTags      []string               `json:"metadataTags"`
	KeyConcepts       []string               `json:"keyConcepts"`
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, core.NewError("httpapi.handleUpdateNode", core.KindValidationFailed, "invalid request body", err))
		return
	}

	node, err := s.Store.UpdateNode(r.Context(), id, storage.UpdateNodePatch{
		Title: req.Title, Company: req.Company, PhraseDescription: req.PhraseDescription,
		ShortDescription: req.ShortDescription, AISummary: req.AISummary,
		ExtractedFields: req.ExtractedFields, MetadataTags: req.MetadataTags, KeyConcepts: req.KeyConcepts,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Store.DeleteNode(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

type mergeNodeRequest struct {
	SecondaryID string `json:"secondaryId"`
	Options     struct {
		KeepMetadata  bool `json:"keepMetadata"`
		AppendSummary bool `json:"appendSummary"`
	} `json:"options"`
}

func (s *Server) handleMergeNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req mergeNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, core.NewError("httpapi.handleMergeNode", core.KindValidationFailed, "invalid request body", err))
		return
	}
	node, err := s.Store.MergeNodes(r.Context(), id, req.SecondaryID, storage.MergeOptions{
		KeepMetadata: req.Options.KeepMetadata, AppendSummary: req.Options.AppendSummary,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

type moveNodeRequest struct {
	TargetParentID  string `json:"targetParentId"`
	TargetHierarchy string `json:"targetHierarchy"`
}

func (s *Server) handleMoveNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req moveNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, core.NewError("httpapi.handleMoveNode", core.KindValidationFailed, "invalid request body", err))
		return
	}

	view := storage.HierarchyFunction
	if req.TargetHierarchy == "organization" {
		view = storage.HierarchyOrganization
	}

	node, err := s.Store.ReadNode(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	newCode := req.TargetParentID
	if view == storage.HierarchyFunction {
		newCode = node.FunctionHierarchyCode
	}

	if err := s.Store.MoveNode(r.Context(), id, req.TargetParentID, view, newCode); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.Store.ReadNode(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleRelatedNodes(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := 10
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	edges, err := s.Similarity.GetSimilar(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"related": edges})
}

// handleBacklinks groups similarity edges into "similar" (score ≥ 0.8),
// "sibling" (score ≥ 0.6 with ≥ 3 shared metadata codes) and "related"
// buckets; there is no "manual" bucket.
func (s *Server) handleBacklinks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	edges, err := s.Similarity.GetSimilar(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ownCodes, err := s.Store.GetMetadataCodeSet(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ownSet := flattenCodeSet(ownCodes)

	groups := map[string][]storage.SimilarEdge{"similar": {}, "sibling": {}, "related": {}}
	for _, e := range edges {
		switch {
		case e.Score >= 0.8:
			groups["similar"] = append(groups["similar"], e)
		case e.Score >= 0.6 && s.sharedTagCount(r.Context(), ownSet, e.NodeID) >= 3:
			groups["sibling"] = append(groups["sibling"], e)
		default:
			groups["related"] = append(groups["related"], e)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"backlinks": groups})
}

func flattenCodeSet(codes map[storage.MetadataType][]string) map[string]bool {
	out := make(map[string]bool)
	for _, vals := range codes {
		for _, v := range vals {
			out[v] = true
		}
	}
	return out
}

// sharedTagCount counts how many of otherID's metadata codes also appear
// in ownSet, used to classify the "sibling" backlink bucket (spec.md §6:
// score >= 0.6 with >= 3 shared tags).
func (s *Server) sharedTagCount(ctx context.Context, ownSet map[string]bool, otherID string) int {
	otherCodes, err := s.Store.GetMetadataCodeSet(ctx, otherID)
	if err != nil {
		return 0
	}
	count := 0
	for _, vals := range otherCodes {
		for _, v := range vals {
			if ownSet[v] {
				count++
			}
		}
	}
	return count
}
